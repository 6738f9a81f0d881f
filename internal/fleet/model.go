// Package fleet holds the typed snapshots of a fleet and its nodes (spec.md §3), with
// filters over onboard computer group, peripheral devices, and availability, grounded on the
// original implementation's scheduler.fleet module
// (_examples/original_source/kuberos/pykuberos/scheduler/fleet.py: NodeState/FleetState).
package fleet

import (
	"time"

	"github.com/google/uuid"
)

// ClusterRole is where a registered cluster node sits in the topology.
type ClusterRole string

const (
	RoleControlPlane ClusterRole = "control-plane"
	RoleOnboard      ClusterRole = "onboard"
	RoleEdge         ClusterRole = "edge"
	RoleCloud        ClusterRole = "cloud"
	RoleUnassigned   ClusterRole = "unassigned"
)

// FleetStatus is the derived health/occupancy state of a Fleet.
type FleetStatus string

const (
	FleetStatusPending        FleetStatus = "pending"
	FleetStatusIdle           FleetStatus = "idle"
	FleetStatusPartiallyUsed  FleetStatus = "partially-used"
	FleetStatusFullyUsed      FleetStatus = "fully-used"
	FleetStatusInProgress     FleetStatus = "in-progress"
	FleetStatusError          FleetStatus = "error"
)

// FleetNodeStatus is the lifecycle state of a node bound into a fleet.
type FleetNodeStatus string

const (
	FleetNodeDeployable FleetNodeStatus = "deployable"
	FleetNodeActive     FleetNodeStatus = "active"
	FleetNodeDeploying  FleetNodeStatus = "deploying"
	FleetNodeReleasing  FleetNodeStatus = "releasing"
	FleetNodeOffline    FleetNodeStatus = "offline"
	FleetNodeError      FleetNodeStatus = "error"
	FleetNodeUnknown    FleetNodeStatus = "unknown"
	FleetNodeDeactivated FleetNodeStatus = "deactivated"
)

// Cluster is a registered Kubernetes cluster (spec.md §3). Deletion is rejected while any
// Fleet references it as its main cluster.
type Cluster struct {
	ID              uuid.UUID  `db:"id"`
	Name            string     `db:"name"`
	EndpointURL     string     `db:"endpoint_url"`
	ServiceToken    string     `db:"service_token"`
	CACert          []byte     `db:"ca_cert"`
	Distribution    string     `db:"distribution"`
	Version         string     `db:"version"`
	Available       bool       `db:"available"`
	LastSyncAt      *time.Time `db:"last_sync_at"`
	LastErrorAt     *time.Time `db:"last_error_at"`
	CreatedAt       time.Time  `db:"created_at"`
}

func (Cluster) TableName() string  { return "clusters" }
func (Cluster) PrimaryKey() string { return "id" }

// ClusterNode is one node of a registered cluster, carrying everything the scheduler and the
// cluster synchroniser need: role, labels, condition, and a capacity/usage snapshot.
type ClusterNode struct {
	ID                uuid.UUID `db:"id"`
	ClusterID         uuid.UUID `db:"cluster_id"`
	Hostname          string    `db:"hostname"`
	Role              ClusterRole `db:"role"`
	Labels            map[string]string `db:"labels"`
	Condition         string    `db:"condition"`
	IsAlive           bool      `db:"is_alive"`
	IsLabelSynced     bool      `db:"is_label_synced"`
	Registered        bool      `db:"registered"`
	PeripheralDevices []PeripheralDevice `db:"peripheral_devices"`
	ResourceGroup     string    `db:"resource_group"`
	Shared            bool      `db:"shared"`
	CPUAllocatableCores float64 `db:"cpu_allocatable_cores"`
	CPUUsageCores       float64 `db:"cpu_usage_cores"`
	MemoryAllocatableB  int64   `db:"memory_allocatable_b"`
	MemoryUsageB        int64   `db:"memory_usage_b"`
}

func (ClusterNode) TableName() string  { return "cluster_nodes" }
func (ClusterNode) PrimaryKey() string { return "id" }

// PeripheralDevice is a device attached to a cluster node (e.g. a robot's lidar), named and
// keyed by a parameter map the scheduler resolves UPPERCASE launch parameters against.
type PeripheralDevice struct {
	DeviceName string            `json:"deviceName"`
	Parameter  map[string]string `json:"parameter"`
}

// UppercaseParameter mirrors the original's NodeState.parse_peripheral_devices: parameter
// keys are exposed in UPPERCASE so they match the manifest's device-parameter convention.
func (d PeripheralDevice) UppercaseParameter() map[string]string {
	out := make(map[string]string, len(d.Parameter))
	for k, v := range d.Parameter {
		out[upper(k)] = v
	}
	return out
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// Fleet is a named set of robot onboard nodes sharing a main cluster (spec.md §3).
type Fleet struct {
	ID            uuid.UUID   `db:"id"`
	Name          string      `db:"name"`
	MainClusterID uuid.UUID   `db:"main_cluster_id"`
	Healthy       bool        `db:"healthy"`
	Status        FleetStatus `db:"status"`
	Active        bool        `db:"active"`
	CreatedAt     time.Time   `db:"created_at"`
}

func (Fleet) TableName() string  { return "fleets" }
func (Fleet) PrimaryKey() string { return "id" }

// FleetNode binds a cluster node into a fleet under fleet-scoped labels (spec.md §3). It
// holds a weak reference to its ClusterNode: the cluster node outlives the fleet node.
type FleetNode struct {
	ID            uuid.UUID       `db:"id"`
	FleetID       uuid.UUID       `db:"fleet_id"`
	ClusterNodeID uuid.UUID       `db:"cluster_node_id"`
	Hostname      string          `db:"hostname"`
	RobotName     string          `db:"robot_name"`
	RobotID       string          `db:"robot_id"`
	OnboardCompGroup string       `db:"onboard_comp_group"`
	Status        FleetNodeStatus `db:"status"`
}

func (FleetNode) TableName() string  { return "fleet_nodes" }
func (FleetNode) PrimaryKey() string { return "id" }
