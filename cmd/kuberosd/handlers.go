package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/api"
	"github.com/kuberos-io/kuberos/internal/batchjob"
	"github.com/kuberos-io/kuberos/internal/controller/batchctl"
	"github.com/kuberos-io/kuberos/internal/controller/deployctl"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
	"github.com/kuberos-io/kuberos/internal/scheduler/batchsched"
	"github.com/kuberos-io/kuberos/internal/taskq"
	"github.com/kuberos-io/kuberos/internal/worker"
)

// reconcilePollEvery is how soon a non-terminal job/deployment re-enqueues its own reconcile.
const reconcilePollEvery = 3 * time.Second

// clusterSyncEvery is the recurring interval a cluster_sync task re-enqueues itself at.
const clusterSyncEvery = 20 * time.Second

// clusterSyncPayload names the single cluster one cluster_sync task refreshes. Unlike the
// other three task kinds, no HTTP handler originates this one: the worker seeds one per
// registered cluster at startup, and every run re-enqueues itself to stay recurring.
type clusterSyncPayload struct {
	ClusterID uuid.UUID `json:"clusterId"`
}

// registerHandlers binds every task kind to its handler closure over d, the shared wiring both
// serve's embedded worker and the standalone worker sub-command build identically.
func (d *deps) registerHandlers(pool *worker.Pool) {
	pool.Register(api.DeployJobReconcileTaskKind, d.handleDeployJobReconcile)
	pool.Register(api.BatchDeploymentTickTaskKind, d.handleBatchDeploymentTick)
	pool.Register(api.BatchJobReconcileTaskKind, d.handleBatchJobReconcile)
	pool.Register(api.ClusterSyncTaskKind, d.handleClusterSync)
}

func (d *deps) handleDeployJobReconcile(ctx context.Context, task *taskq.Task) error {
	var payload api.DeployJobReconcilePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("decoding deploy job reconcile payload: %w", err)
	}

	job, err := d.deployments.GetJob(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("loading deployment job %s: %w", payload.JobID, err)
	}
	dep, err := d.deployments.GetDeployment(ctx, job.DeploymentID)
	if err != nil {
		return fmt.Errorf("loading deployment %s: %w", job.DeploymentID, err)
	}
	fleetRow, err := d.fleets.GetFleet(ctx, dep.FleetID)
	if err != nil {
		return fmt.Errorf("loading fleet %s: %w", dep.FleetID, err)
	}
	executor, err := d.executors.forCluster(ctx, fleetRow.MainClusterID)
	if err != nil {
		return fmt.Errorf("resolving executor for fleet %s: %w", fleetRow.ID, err)
	}

	controller := deployctl.NewController(executor, d.deployments, d.logger)
	updated, changed, err := controller.ReconcileJob(ctx, *job, job.PendingOnboardPods, job.PendingEdgePods)
	if err != nil {
		d.logger.Error("reconciling deployment job", "job_id", job.ID, "error", err)
	}
	if changed {
		if _, err := d.deployments.UpdateJob(ctx, updated.ID, updated); err != nil {
			return fmt.Errorf("persisting deployment job %s: %w", updated.ID, err)
		}
	}

	jobs, err := d.deployments.ListJobsByDeployment(ctx, dep.ID)
	if err != nil {
		return fmt.Errorf("listing jobs for deployment %s: %w", dep.ID, err)
	}
	if _, err := controller.ReconcileDeployment(ctx, *dep, jobs); err != nil {
		return fmt.Errorf("reconciling deployment %s: %w", dep.ID, err)
	}

	if !updated.Phase.IsTerminal() {
		return d.tasks.Enqueue(ctx, api.DeployJobReconcileTaskKind, api.DeployJobReconcilePayload{JobID: updated.ID}, reconcilePollEvery)
	}
	return nil
}

func (d *deps) handleBatchJobReconcile(ctx context.Context, task *taskq.Task) error {
	var payload api.BatchJobReconcilePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("decoding batch job reconcile payload: %w", err)
	}

	job, err := d.batchJobs.GetJob(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("loading kuberos job %s: %w", payload.JobID, err)
	}
	group, err := d.batchJobs.GetGroup(ctx, job.GroupID)
	if err != nil {
		return fmt.Errorf("loading batch job group %s: %w", job.GroupID, err)
	}
	executor, err := d.executors.forCluster(ctx, group.ExecClusterID)
	if err != nil {
		return fmt.Errorf("resolving executor for exec cluster %s: %w", group.ExecClusterID, err)
	}

	controller := batchctl.NewController(map[uuid.UUID]*k8sexec.Executor{group.ExecClusterID: executor}, d.batchJobs, d.logger)
	updated, changed := controller.ReconcileJob(ctx, *job, group.LifecycleModuleName, executor)
	if changed {
		if _, err := d.batchJobs.UpdateJob(ctx, updated.ID, updated); err != nil {
			return fmt.Errorf("persisting kuberos job %s: %w", updated.ID, err)
		}
	}

	if !updated.Status.IsTerminal() {
		return d.tasks.Enqueue(ctx, api.BatchJobReconcileTaskKind, api.BatchJobReconcilePayload{JobID: updated.ID}, reconcilePollEvery)
	}
	return nil
}

func (d *deps) handleBatchDeploymentTick(ctx context.Context, task *taskq.Task) error {
	var payload api.BatchDeploymentTickPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("decoding batch deployment tick payload: %w", err)
	}

	dep, err := d.batchJobs.GetDeployment(ctx, payload.DeploymentID)
	if err != nil {
		return fmt.Errorf("loading batch job deployment %s: %w", payload.DeploymentID, err)
	}
	groups, err := d.batchJobs.ListGroupsByDeployment(ctx, dep.ID)
	if err != nil {
		return fmt.Errorf("listing groups for batch deployment %s: %w", dep.ID, err)
	}
	jobsByGroup := make(map[uuid.UUID][]batchjob.KuberosJob, len(groups))
	for _, g := range groups {
		jobs, err := d.batchJobs.ListJobsByGroup(ctx, g.ID)
		if err != nil {
			return fmt.Errorf("listing jobs for group %s: %w", g.GroupPostfix, err)
		}
		jobsByGroup[g.ID] = jobs
	}

	executors := make(map[uuid.UUID]*k8sexec.Executor, len(groups))
	for _, g := range groups {
		executor, err := d.executors.forCluster(ctx, g.ExecClusterID)
		if err != nil {
			return fmt.Errorf("resolving executor for exec cluster %s: %w", g.ExecClusterID, err)
		}
		executors[g.ExecClusterID] = executor
	}
	controller := batchctl.NewController(executors, d.batchJobs, d.logger)

	updated, err := controller.Tick(ctx, *dep, groups, jobsByGroup)
	if err != nil {
		return fmt.Errorf("ticking batch deployment %s: %w", dep.ID, err)
	}

	if updated.Status == batchjob.StatusExecuting {
		var volume batchjob.VolumeSpec
		if err := json.Unmarshal(dep.VolumeSpecJSON, &volume); err != nil {
			return fmt.Errorf("decoding volume spec for batch deployment %s: %w", dep.ID, err)
		}
		for _, g := range groups {
			pending := pendingJobs(jobsByGroup[g.ID])
			if len(pending) == 0 {
				continue
			}
			nodes, err := d.nodeSnapshotsFor(ctx, executors[g.ExecClusterID])
			if err != nil {
				d.logger.Error("building node snapshot for placement", "group", g.GroupPostfix, "error", err)
				continue
			}
			if _, err := controller.PlaceTick(ctx, g, pending, nodes, volume); err != nil {
				d.logger.Error("placing jobs for group", "group", g.GroupPostfix, "error", err)
			}
		}
	}

	if !updated.Status.IsTerminal() {
		return d.tasks.Enqueue(ctx, api.BatchDeploymentTickTaskKind, api.BatchDeploymentTickPayload{DeploymentID: updated.ID}, reconcilePollEvery)
	}
	return nil
}

func pendingJobs(jobs []batchjob.KuberosJob) []batchjob.KuberosJob {
	pending := make([]batchjob.KuberosJob, 0, len(jobs))
	for _, j := range jobs {
		if j.Status == batchjob.JobPending {
			pending = append(pending, j)
		}
	}
	return pending
}

// nodeSnapshotsFor rebuilds the batch scheduler's per-node resource view for one tick,
// combining live pod counts (for numProNode gating) with the latest CPU metrics sample (for
// allocatability and the optimal-CPU budget).
func (d *deps) nodeSnapshotsFor(ctx context.Context, executor *k8sexec.Executor) ([]batchsched.NodeSnapshot, error) {
	listed := executor.ListNodes(ctx, true)
	if listed.Status != k8sexec.StatusSuccess {
		return nil, fmt.Errorf("listing nodes: %v", listed.Errors)
	}
	metrics := executor.NodeMetrics(ctx)
	usageByHostname := make(map[string]float64, len(metrics.Data))
	allocByHostname := make(map[string]float64, len(metrics.Data))
	if metrics.Status == k8sexec.StatusSuccess {
		for _, m := range metrics.Data {
			usageByHostname[m.Hostname] = m.CPUUsageCores
			allocByHostname[m.Hostname] = m.CPUAllocatable
		}
	}

	snapshots := make([]batchsched.NodeSnapshot, 0, len(listed.Data))
	for _, view := range listed.Data {
		allocatable := allocByHostname[view.Hostname]
		snapshots = append(snapshots, batchsched.NodeSnapshot{
			Hostname:          view.Hostname,
			CPUAvailableCores: allocatable - usageByHostname[view.Hostname],
			CPUAllocatable:    allocatable,
			PodCount:          len(view.Pods),
		})
	}
	return snapshots, nil
}

func (d *deps) handleClusterSync(ctx context.Context, task *taskq.Task) error {
	var payload clusterSyncPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("decoding cluster sync payload: %w", err)
	}

	cluster, err := d.fleets.GetCluster(ctx, payload.ClusterID)
	if err != nil {
		return fmt.Errorf("loading cluster %s: %w", payload.ClusterID, err)
	}
	existing, err := d.fleets.ListClusterNodesByCluster(ctx, cluster.ID)
	if err != nil {
		return fmt.Errorf("listing existing nodes for cluster %s: %w", cluster.ID, err)
	}
	fleetNodesByClusterNodeID, err := d.fleets.FleetNodesByClusterNodeID(ctx, cluster.ID)
	if err != nil {
		return fmt.Errorf("listing fleet-bound nodes for cluster %s: %w", cluster.ID, err)
	}
	fleets, err := d.fleets.ListFleets(ctx)
	if err != nil {
		return fmt.Errorf("listing fleets: %w", err)
	}
	fleetNamesByID := make(map[uuid.UUID]string, len(fleets))
	for _, f := range fleets {
		fleetNamesByID[f.ID] = f.Name
	}

	syncer, err := d.syncers.forCluster(ctx, cluster.ID)
	if err != nil {
		return fmt.Errorf("resolving syncer for cluster %s: %w", cluster.ID, err)
	}

	snap, syncErr := syncer.Sync(ctx, *cluster, existing, fleetNodesByClusterNodeID, fleetNamesByID)
	if syncErr != nil {
		d.logger.Warn("cluster sync failed", "cluster", cluster.Name, "error", syncErr)
	} else {
		for _, n := range snap.NewNodes {
			if _, err := d.fleets.SaveClusterNode(ctx, n); err != nil {
				d.logger.Error("saving new cluster node", "hostname", n.Hostname, "error", err)
			}
		}
		for _, n := range append(snap.UpdatedNodes, snap.VanishedNodes...) {
			if _, err := d.fleets.UpdateClusterNode(ctx, n.ID, n); err != nil {
				d.logger.Error("updating cluster node", "hostname", n.Hostname, "error", err)
			}
		}
	}

	return d.tasks.Enqueue(ctx, api.ClusterSyncTaskKind, clusterSyncPayload{ClusterID: cluster.ID}, clusterSyncEvery)
}
