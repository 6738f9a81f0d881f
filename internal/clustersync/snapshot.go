package clustersync

import (
	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/fleet"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
)

// ClusterSnapshot is one cluster synchroniser pass's result: the node rows to upsert, grouped
// by whether they are newly discovered, still alive, or have vanished from the live cluster
// .
type ClusterSnapshot struct {
	NewNodes      []fleet.ClusterNode
	UpdatedNodes  []fleet.ClusterNode
	VanishedNodes []fleet.ClusterNode
}

// DiffNodes compares the cluster's live node listing against its previously known
// ClusterNode rows, hostnames absent from existing are new
// (role=unassigned, alive); hostnames present in existing but absent from live are marked
// not-alive, never deleted, since a FleetNode may still reference them.
func DiffNodes(clusterID uuid.UUID, live []k8sexec.NodeView, existing []fleet.ClusterNode) ClusterSnapshot {
	existingByHostname := make(map[string]fleet.ClusterNode, len(existing))
	for _, n := range existing {
		existingByHostname[n.Hostname] = n
	}
	liveByHostname := make(map[string]k8sexec.NodeView, len(live))
	for _, n := range live {
		liveByHostname[n.Hostname] = n
	}

	var snap ClusterSnapshot
	for _, view := range live {
		if existingNode, ok := existingByHostname[view.Hostname]; ok {
			existingNode.Labels = view.Labels
			existingNode.IsAlive = view.Ready
			existingNode.Condition = conditionSummary(view)
			snap.UpdatedNodes = append(snap.UpdatedNodes, existingNode)
			continue
		}
		snap.NewNodes = append(snap.NewNodes, fleet.ClusterNode{
			ID:         uuid.New(),
			ClusterID:  clusterID,
			Hostname:   view.Hostname,
			Role:       fleet.RoleUnassigned,
			Labels:     view.Labels,
			Condition:  conditionSummary(view),
			IsAlive:    view.Ready,
			Registered: false,
		})
	}

	for _, n := range existing {
		if _, stillLive := liveByHostname[n.Hostname]; stillLive {
			continue
		}
		n.IsAlive = false
		snap.VanishedNodes = append(snap.VanishedNodes, n)
	}

	return snap
}

func conditionSummary(view k8sexec.NodeView) string {
	if view.Ready {
		return "Ready"
	}
	return "NotReady"
}

// AttachMetrics applies a NodeMetricsSample's capacity/usage fields onto every ClusterNode in
// nodes sharing its hostname.
func AttachMetrics(nodes []fleet.ClusterNode, metrics []k8sexec.NodeMetricsSample) []fleet.ClusterNode {
	byHostname := make(map[string]k8sexec.NodeMetricsSample, len(metrics))
	for _, m := range metrics {
		byHostname[m.Hostname] = m
	}
	out := make([]fleet.ClusterNode, len(nodes))
	for i, n := range nodes {
		if m, ok := byHostname[n.Hostname]; ok {
			n.CPUAllocatableCores = m.CPUAllocatable
			n.CPUUsageCores = m.CPUUsageCores
			n.MemoryAllocatableB = m.MemoryAllocatableB
			n.MemoryUsageB = m.MemoryUsageB
		}
		out[i] = n
	}
	return out
}

// RecomputeLabelSync updates IsLabelSynced on every ClusterNode that backs a FleetNode,
// leaving unbound nodes untouched. This only detects drift between a
// node's live labels and the set its binding expects; actually re-patching a drifted node's
// labels happens where the binding itself changes (fleet node bind/unbind), not here.
func RecomputeLabelSync(nodes []fleet.ClusterNode, fleetNamesByID map[uuid.UUID]string, fleetNodesByClusterNodeID map[uuid.UUID]fleet.FleetNode) []fleet.ClusterNode {
	out := make([]fleet.ClusterNode, len(nodes))
	for i, n := range nodes {
		fn, bound := fleetNodesByClusterNodeID[n.ID]
		if bound {
			n.IsLabelSynced = IsLabelSynced(n.Labels, ExpectedLabels(fleetNamesByID[fn.FleetID], fn, n))
		}
		out[i] = n
	}
	return out
}

