package k8sexec

// PodPhase is the tagged sum type spec.md §9 calls for in place of the original's
// dynamically-typed JSON status blob: Pending | Running | Succeeded | Failed | Terminating |
// NotFound, the last two synthesised by this package rather than reported verbatim by the
// API (NotFound when the object is absent, Terminating when deletionTimestamp is set).
type PodPhase string

const (
	PodPending     PodPhase = "Pending"
	PodRunning     PodPhase = "Running"
	PodSucceeded   PodPhase = "Succeeded"
	PodFailed      PodPhase = "Failed"
	PodTerminating PodPhase = "Terminating"
	PodNotFound    PodPhase = "NotFound"
)

// ContainerStatus is a per-container view attached to a PodObservedStatus.
type ContainerStatus struct {
	Name  string
	Ready bool
	// State is one of "waiting", "running", "terminated".
	State  string
	Reason string
}

// PodCondition mirrors a corev1.PodCondition without dragging the whole apimachinery type
// into callers that only want to read Type/Status.
type PodCondition struct {
	Type   string
	Status string
	Reason string
}

// PodObservedStatus is the normalised view returned by ReadPod.
type PodObservedStatus struct {
	Phase      PodPhase
	PodIP      string
	Reason     string
	Message    string
	Conditions []PodCondition
	Containers []ContainerStatus
}

// ServiceObservedStatus is the normalised view returned by ReadService.
type ServiceObservedStatus struct {
	Found     bool
	ClusterIP string
	Ports     []int32
}

// NodeCondition is a single reported condition of a cluster node.
type NodeCondition struct {
	Type   string
	Status string
}

// NodeView is the normalised view returned by ListNodes.
type NodeView struct {
	Hostname  string
	Labels    map[string]string
	Conditions []NodeCondition
	Ready     bool
	// Pods is only populated when ListNodes is called with withPodListings=true; it is the
	// batch-job scheduler's view (spec.md §4.4) of what is already running on this node.
	Pods []PodSummary
}

// PodSummary is the minimal per-pod information the batch-job scheduler needs to compute
// node allocatability (spec.md §4.4): how many pods already occupy a node.
type PodSummary struct {
	Name      string
	Namespace string
	Phase     PodPhase
}

// NodeMetricsSample is one node's capacity/usage snapshot (spec.md §3 ClusterNode).
type NodeMetricsSample struct {
	Hostname        string
	CPUUsageCores   float64
	CPUAllocatable  float64
	MemoryUsageB    int64
	MemoryAllocatableB int64
}

// PodMetricsSample is one pod's resource usage snapshot.
type PodMetricsSample struct {
	Namespace     string
	Name          string
	CPUUsageCores float64
	MemoryUsageB  int64
}
