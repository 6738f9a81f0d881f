// Package appsched implements the application scheduler (spec.md §4.3): given a parsed
// manifest and a fleet snapshot, it produces a placement plan of discovery-server, onboard,
// and edge pod/service specs per robot, plus the global set of ConfigMaps the deployment
// shares. Grounded on the original implementation's scheduler.scheduler/scheduler_base/
// rosmodule modules (_examples/original_source/kuberos/pykuberos/scheduler/{scheduler,
// scheduler_base,rosmodule}.py).
package appsched

import (
	"github.com/kuberos-io/kuberos/internal/fleet"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
	"github.com/kuberos-io/kuberos/internal/manifest"
)

const (
	discoveryServerPort     = 11811
	discoveryServiceSvcPort = 11311
)

// RobotPlacement is one robot's materialised placement: its discovery server, and the
// onboard/edge module pods bound to it.
type RobotPlacement struct {
	RobotName          string
	DiscoveryServerPod k8sexec.PodSpec
	DiscoveryService   k8sexec.ServiceSpec
	OnboardModules     []k8sexec.PodSpec
	EdgeModules        []k8sexec.PodSpec
}

// Plan is the scheduler's full output for one deployment: a placement per target robot, and
// the global ConfigMap set every job references by name.
type Plan struct {
	Robots     []RobotPlacement
	ConfigMaps []ConfigMapSpec
	Warnings   []string
}

// ConfigMapSpec is one materialised ConfigMap the placement's pods mount or read env vars
// from, derived from a manifest's rosParamMap entry (spec.md §4.1/§4.3 step 6).
type ConfigMapSpec struct {
	Name string
	Data map[string]string
}

// robotSource is the fleet-side input the scheduler needs per selected robot: the primary
// onboard node's hostname and its peripheral-device list, following the original's
// node_state dict (hostname, robot_name, robot_id, cluster_node_state.peripheral_devices).
type robotSource struct {
	RobotName         string
	RobotID           string
	Hostname          string
	PeripheralDevices []fleet.PeripheralDevice
}
