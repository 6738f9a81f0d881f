// Package clustersync refreshes one registered cluster's node inventory, labels, and
// resource metrics on a recurring schedule, gating further sync attempts behind a
// per-cluster circuit breaker once a cluster has failed three times in a row.
package clustersync

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/fleet"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
)

// Syncer runs one cluster's synchronisation pass against its executor.
type Syncer struct {
	executor *k8sexec.Executor
	breakers *BreakerManager
}

// NewSyncer builds a Syncer whose breaker manager reports trips via onAvailabilityChange,
// the callback the caller wires to persist Cluster.available/last_error_at.
func NewSyncer(executor *k8sexec.Executor, onAvailabilityChange func(clusterID string, available bool)) *Syncer {
	return &Syncer{
		executor: executor,
		breakers: NewBreakerManager(func(clusterID string, open bool) {
			onAvailabilityChange(clusterID, !open)
		}),
	}
}

// Sync performs one pass through the cluster's circuit breaker:
// lists live nodes with pod listings, diffs them against existing, recomputes label sync for
// fleet-bound nodes, and attaches the latest metrics sample.
func (s *Syncer) Sync(ctx context.Context, cluster fleet.Cluster, existing []fleet.ClusterNode, fleetNodesByClusterNodeID map[uuid.UUID]fleet.FleetNode, fleetNamesByID map[uuid.UUID]string) (*ClusterSnapshot, error) {
	return s.breakers.Execute(cluster.ID.String(), func() (*ClusterSnapshot, error) {
		listed := s.executor.ListNodes(ctx, true)
		if listed.Status != k8sexec.StatusSuccess {
			return nil, syncError(listed.Errors)
		}

		snap := DiffNodes(cluster.ID, listed.Data, existing)

		metrics := s.executor.NodeMetrics(ctx)
		if metrics.Status == k8sexec.StatusSuccess {
			snap.NewNodes = AttachMetrics(snap.NewNodes, metrics.Data)
			snap.UpdatedNodes = AttachMetrics(snap.UpdatedNodes, metrics.Data)
		}

		snap.NewNodes = RecomputeLabelSync(snap.NewNodes, fleetNamesByID, fleetNodesByClusterNodeID)
		snap.UpdatedNodes = RecomputeLabelSync(snap.UpdatedNodes, fleetNamesByID, fleetNodesByClusterNodeID)

		return &snap, nil
	})
}

func syncError(errs []k8sexec.Error) error {
	if len(errs) == 0 {
		return fmt.Errorf("cluster sync failed")
	}
	return fmt.Errorf("cluster sync failed: %s: %s", errs[0].Reason, errs[0].Msg)
}
