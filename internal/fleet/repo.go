package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/um"

	"github.com/kuberos-io/kuberos/internal/db"
)

// Repository is a thin wrapper over the generic db repository, adding the lookups the
// scheduler and cluster synchroniser need beyond plain CRUD by primary key.
type Repository struct {
	pool db.Queryer
}

func NewRepository(pool db.Queryer) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetCluster(ctx context.Context, id any) (*Cluster, error) {
	return db.Find[Cluster](ctx, r.pool, id)
}

func (r *Repository) ListClusters(ctx context.Context) ([]Cluster, error) {
	return db.FindAll[Cluster](ctx, r.pool)
}

func (r *Repository) SaveCluster(ctx context.Context, c Cluster) (*Cluster, error) {
	return db.Create[Cluster](ctx, r.pool, c)
}

// UpdateClusterAvailability flips a Cluster's availability at instant, stamping last_sync_at
// on a successful pass or last_error_at on a failed one - only one of the two columns is
// included in the update, so the other keeps its previous value rather than being
// overwritten. Built with explicit SetCol rather than the generic db.Update: that helper
// skips a record's zero-value fields, which would silently drop an available=false write.
func (r *Repository) UpdateClusterAvailability(ctx context.Context, id any, available bool, instant time.Time) (*Cluster, error) {
	var sql string
	var args []any
	var err error
	if available {
		sql, args, err = psql.Update(
			um.Table("clusters"),
			um.Where(psql.Quote("id").EQ(psql.Arg(id))),
			um.SetCol("available").ToArg(available),
			um.SetCol("last_sync_at").ToArg(instant),
			um.Returning("*"),
		).Build()
	} else {
		sql, args, err = psql.Update(
			um.Table("clusters"),
			um.Where(psql.Quote("id").EQ(psql.Arg(id))),
			um.SetCol("available").ToArg(available),
			um.SetCol("last_error_at").ToArg(instant),
			um.Returning("*"),
		).Build()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build cluster availability update: %w", err)
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update cluster availability: %w", err)
	}
	updated, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[Cluster])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read updated cluster row: %w", err)
	}
	return &updated, nil
}

// SaveClusterNode inserts a newly discovered ClusterNode row.
func (r *Repository) SaveClusterNode(ctx context.Context, n ClusterNode) (*ClusterNode, error) {
	return db.Create[ClusterNode](ctx, r.pool, n)
}

// UpdateClusterNode overwrites an existing ClusterNode's mutable sync state (labels,
// liveness, condition, metrics). Same explicit-SetCol reasoning as
// UpdateClusterAvailability: is_alive/is_label_synced must be writable to false.
func (r *Repository) UpdateClusterNode(ctx context.Context, id any, n ClusterNode) (*ClusterNode, error) {
	sql, args, err := psql.Update(
		um.Table("cluster_nodes"),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
		um.SetCol("role").ToArg(n.Role),
		um.SetCol("labels").ToArg(n.Labels),
		um.SetCol("condition").ToArg(n.Condition),
		um.SetCol("is_alive").ToArg(n.IsAlive),
		um.SetCol("is_label_synced").ToArg(n.IsLabelSynced),
		um.SetCol("registered").ToArg(n.Registered),
		um.SetCol("cpu_allocatable_cores").ToArg(n.CPUAllocatableCores),
		um.SetCol("cpu_usage_cores").ToArg(n.CPUUsageCores),
		um.SetCol("memory_allocatable_b").ToArg(n.MemoryAllocatableB),
		um.SetCol("memory_usage_b").ToArg(n.MemoryUsageB),
		um.Returning("*"),
	).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build cluster node update: %w", err)
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update cluster node: %w", err)
	}
	updated, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[ClusterNode])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read updated cluster node row: %w", err)
	}
	return &updated, nil
}

// GetClusterNode looks up a single ClusterNode by id, the lookup fleet node bind/unbind needs
// to read the node's current role, registration, and peripheral-device state before patching
// its live labels.
func (r *Repository) GetClusterNode(ctx context.Context, id any) (*ClusterNode, error) {
	return db.Find[ClusterNode](ctx, r.pool, id)
}

// DeleteCluster removes a Cluster row. Callers must check CountFleetsReferencingCluster and
// any active exec-cluster usage first; the schema's ON DELETE CASCADE removes the cluster's
// ClusterNode rows with it.
func (r *Repository) DeleteCluster(ctx context.Context, id any) (int64, error) {
	return db.Delete[Cluster](ctx, r.pool, id)
}

func (r *Repository) GetFleet(ctx context.Context, id any) (*Fleet, error) {
	return db.Find[Fleet](ctx, r.pool, id)
}

// DeleteFleet removes a Fleet row. Callers must check for active deployments referencing it
// and unbind its FleetNodes first; the schema's ON DELETE CASCADE removes the fleet's
// FleetNode rows with it.
func (r *Repository) DeleteFleet(ctx context.Context, id any) (int64, error) {
	return db.Delete[Fleet](ctx, r.pool, id)
}

func (r *Repository) ListFleets(ctx context.Context) ([]Fleet, error) {
	return db.FindAll[Fleet](ctx, r.pool)
}

func (r *Repository) SaveFleet(ctx context.Context, f Fleet) (*Fleet, error) {
	return db.Create[Fleet](ctx, r.pool, f)
}

func (r *Repository) UpdateFleetStatus(ctx context.Context, id any, status FleetStatus) (*Fleet, error) {
	return db.Update[Fleet](ctx, r.pool, id, Fleet{Status: status})
}

// UpdateFleet overwrites a Fleet's mutable fields (name, health, status, active). Explicit
// SetCol, not the generic db.Update: that helper skips a record's zero-value fields, which
// would silently drop a healthy=false or active=false write.
func (r *Repository) UpdateFleet(ctx context.Context, id any, f Fleet) (*Fleet, error) {
	sql, args, err := psql.Update(
		um.Table("fleets"),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
		um.SetCol("name").ToArg(f.Name),
		um.SetCol("healthy").ToArg(f.Healthy),
		um.SetCol("status").ToArg(f.Status),
		um.SetCol("active").ToArg(f.Active),
		um.Returning("*"),
	).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build fleet update: %w", err)
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update fleet: %w", err)
	}
	updated, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[Fleet])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read updated fleet row: %w", err)
	}
	return &updated, nil
}

// ListClusterNodesByCluster returns every node registered under the given cluster.
func (r *Repository) ListClusterNodesByCluster(ctx context.Context, clusterID any) ([]ClusterNode, error) {
	return db.Search[ClusterNode](ctx, r.pool, psql.Quote("cluster_id").EQ(psql.Arg(clusterID)))
}

// FleetNodesByClusterNodeID returns every FleetNode bound to one of clusterID's ClusterNode
// rows, keyed by ClusterNodeID - the shape clustersync.RecomputeLabelSync expects to decide
// which live nodes are fleet-bound and so need their expected labels checked.
func (r *Repository) FleetNodesByClusterNodeID(ctx context.Context, clusterID any) (map[uuid.UUID]FleetNode, error) {
	nodes, err := r.ListClusterNodesByCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cluster nodes for %v: %w", clusterID, err)
	}
	boundIDs := make(map[uuid.UUID]struct{}, len(nodes))
	for _, n := range nodes {
		boundIDs[n.ID] = struct{}{}
	}

	allFleetNodes, err := db.FindAll[FleetNode](ctx, r.pool)
	if err != nil {
		return nil, fmt.Errorf("failed to list fleet nodes: %w", err)
	}
	byClusterNodeID := make(map[uuid.UUID]FleetNode, len(boundIDs))
	for _, fn := range allFleetNodes {
		if _, bound := boundIDs[fn.ClusterNodeID]; bound {
			byClusterNodeID[fn.ClusterNodeID] = fn
		}
	}
	return byClusterNodeID, nil
}

// ListFleetNodesByFleet returns every node currently bound into the given fleet, the input to
// DeriveStatus, IsDeployable, ComputerGroups and RobotNames.
func (r *Repository) ListFleetNodesByFleet(ctx context.Context, fleetID any) ([]FleetNode, error) {
	return db.Search[FleetNode](ctx, r.pool, psql.Quote("fleet_id").EQ(psql.Arg(fleetID)))
}

// CountFleetsReferencingCluster reports how many Fleets use clusterID as their main cluster,
// the check enforced before a Cluster may be deleted.
func (r *Repository) CountFleetsReferencingCluster(ctx context.Context, clusterID any) (int, error) {
	fleets, err := db.Search[Fleet](ctx, r.pool, psql.Quote("main_cluster_id").EQ(psql.Arg(clusterID)))
	if err != nil {
		return 0, fmt.Errorf("failed to count fleets referencing cluster: %w", err)
	}
	return len(fleets), nil
}

// GetFleetNode looks up a single FleetNode by id, the lookup deleteFleetNode needs to resolve
// the backing ClusterNode/cluster before it unbinds and clears live labels.
func (r *Repository) GetFleetNode(ctx context.Context, id any) (*FleetNode, error) {
	return db.Find[FleetNode](ctx, r.pool, id)
}

func (r *Repository) SaveFleetNode(ctx context.Context, n FleetNode) (*FleetNode, error) {
	return db.Create[FleetNode](ctx, r.pool, n)
}

func (r *Repository) UpdateFleetNodeStatus(ctx context.Context, id any, status FleetNodeStatus) (*FleetNode, error) {
	return db.Update[FleetNode](ctx, r.pool, id, FleetNode{Status: status})
}

func (r *Repository) DeleteFleetNode(ctx context.Context, id any) (int64, error) {
	return db.Delete[FleetNode](ctx, r.pool, id)
}
