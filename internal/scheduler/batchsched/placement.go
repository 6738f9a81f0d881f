package batchsched

import (
	"sort"
	"strconv"

	"github.com/kuberos-io/kuberos/internal/manifest"
)

// reservedCPUCores is the headroom spec.md §4.4 reserves on every node for the kubelet and
// the per-job discovery server, on top of whatever a job requests.
const reservedCPUCores = 0.3

// NodeSnapshot is one cluster node's resource state as of the current scheduling tick,
// following spec.md §4.4's job-cluster snapshot ("per-node allocatable CPU/memory/storage
// and current pod count").
type NodeSnapshot struct {
	Hostname          string
	CPUAvailableCores float64
	CPUAllocatable    float64
	PodCount          int
}

// IsAllocatable reports whether node can take one more job pod given spec's resource request
// and the manifest's numProNode pod cap (spec.md §4.4 step 1).
func IsAllocatable(node NodeSnapshot, requestCores float64, numProNode int) bool {
	if node.CPUAvailableCores < requestCores {
		return false
	}
	if node.CPUAllocatable < requestCores+reservedCPUCores {
		return false
	}
	if numProNode > 0 && node.PodCount >= numProNode {
		return false
	}
	return true
}

// AllocatableNodes filters and returns, in cluster-sync order, every node that can currently
// take a job pod.
func AllocatableNodes(nodes []NodeSnapshot, requestCores float64, numProNode int) []NodeSnapshot {
	var out []NodeSnapshot
	for _, n := range nodes {
		if IsAllocatable(n, requestCores, numProNode) {
			out = append(out, n)
		}
	}
	return out
}

// CPUBudget picks the optimal CPU request for a node if it has headroom for it, falling back
// to the plain requested value otherwise (spec.md §4.4 step 2: "Use optimal CPU if the node
// has sufficient headroom; otherwise the requested value").
func CPUBudget(node NodeSnapshot, requestCPU, optimalCPU manifest.CPUQuantity) float64 {
	optimal := optimalCPU.Cores()
	if optimal > 0 && node.CPUAllocatable >= optimal+reservedCPUCores {
		return optimal
	}
	return requestCPU.Cores()
}

// PopPendingJobs pops up to n jobs from the front of a pending queue, preserving insertion
// order (spec.md §4.4 tie-break: "jobs are popped in pending-queue insertion order").
func PopPendingJobs(pending []string, n int) (popped, remaining []string) {
	if n >= len(pending) {
		return pending, nil
	}
	return pending[:n], pending[n:]
}

// ClusterGroups buckets pending groups by their exec cluster, used to visit each cluster at
// most once per scheduling tick (spec.md §4.4 step 1: "Clusters already visited in the
// current tick are skipped").
func ClusterGroups(groupExecCluster map[string]string) map[string][]string {
	out := make(map[string][]string)
	for group, cluster := range groupExecCluster {
		out[cluster] = append(out[cluster], group)
	}
	for cluster := range out {
		sort.Strings(out[cluster])
	}
	return out
}

// VolumeSubPath builds a job's volume subPath following spec.md §4.4 step 3(c): when the
// deployment groups data in storage, the path is namespaced by queue number ahead of the job
// slug; otherwise it is keyed by slug alone.
func VolumeSubPath(base string, groupDataInStorage bool, queueNumber int, slug string) string {
	if groupDataInStorage {
		return base + "/queue_" + strconv.Itoa(queueNumber) + "/job_" + slug
	}
	return base + "/job_" + slug
}

// ModulePodName follows spec.md §4.4 step 3(d): "<groupPostfix>-<moduleName>-<slug>".
func ModulePodName(groupPostfix, moduleName, slug string) string {
	return groupPostfix + "-" + moduleName + "-" + slug
}
