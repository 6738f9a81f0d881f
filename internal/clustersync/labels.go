package clustersync

import (
	"sort"
	"strconv"
	"strings"

	"github.com/kuberos-io/kuberos/internal/fleet"
)

// The Kubernetes label keys a synced onboard node must carry once bound into a fleet,
// generalized from the original's NodeState.kuberos_labels
// (_examples/original_source/kuberos/pykuberos/scheduler/node.py) onto a fleet/device/robot
// vocabulary.
const (
	LabelRole              = "kuberos.io/role"
	LabelDeviceHostname    = "device.kuberos.io/hostname"
	LabelDeviceUUID        = "device.kuberos.io/uuid"
	LabelDeviceGroup       = "device.kuberos.io/group"
	LabelRobotName         = "robot.kuberos.io/name"
	LabelRobotID           = "robot.kuberos.io/id"
	LabelFleetName         = "fleet.kuberos.io/name"
	LabelFleetUUID         = "fleet.kuberos.io/uuid"
	LabelPeripheralDevices = "peripheral.kuberos.io/device_list"
	LabelKuberosRegistered = "status.kuberos.io/kuberos_registered"
)

// ExpectedLabels returns the label set a FleetNode's live node should carry once bound into
// fleetName, reading the backing ClusterNode for the fields owned by cluster sync rather than
// by the binding itself.
func ExpectedLabels(fleetName string, node fleet.FleetNode, clusterNode fleet.ClusterNode) map[string]string {
	labels := map[string]string{
		LabelRole:              string(fleet.RoleOnboard),
		LabelDeviceHostname:    node.Hostname,
		LabelDeviceUUID:        node.ClusterNodeID.String(),
		LabelDeviceGroup:       node.OnboardCompGroup,
		LabelRobotName:         node.RobotName,
		LabelRobotID:           node.RobotID,
		LabelFleetName:         fleetName,
		LabelFleetUUID:         node.FleetID.String(),
		LabelKuberosRegistered: strconv.FormatBool(clusterNode.Registered),
	}
	if names := peripheralDeviceNames(clusterNode); names != "" {
		labels[LabelPeripheralDevices] = names
	}
	return labels
}

func peripheralDeviceNames(clusterNode fleet.ClusterNode) string {
	if len(clusterNode.PeripheralDevices) == 0 {
		return ""
	}
	names := make([]string, len(clusterNode.PeripheralDevices))
	for i, d := range clusterNode.PeripheralDevices {
		names[i] = d.DeviceName
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// ClearedLabels is the label set written back onto a node when its FleetNode binding is
// removed: role resets to unassigned and every fleet/robot-scoped key is blanked, leaving the
// node's own device.kuberos.io/{hostname,uuid} identity untouched since that describes the
// node, not its fleet binding.
func ClearedLabels() map[string]string {
	return map[string]string{
		LabelRole:        string(fleet.RoleUnassigned),
		LabelDeviceGroup: "",
		LabelRobotName:   "",
		LabelRobotID:     "",
		LabelFleetName:   "",
		LabelFleetUUID:   "",
	}
}

// IsLabelSynced reports whether live carries every expected key with the expected value for
// the node's current FleetNode binding.
func IsLabelSynced(live map[string]string, expected map[string]string) bool {
	for k, v := range expected {
		if live[k] != v {
			return false
		}
	}
	return true
}
