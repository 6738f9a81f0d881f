// Package deployctl drives the per-robot deployment state machine (spec.md §4.5). Each
// reconcile is one short, idempotent step over a single DeploymentJob, dispatched by a taskq
// task rather than a long-lived per-deployment goroutine (SPEC_FULL.md §5) - the same
// single-responsibility reconcile shape as the teacher's CRD reconcilers
// (internal/controllers/*.go), generalized from watching a Kubernetes object to popping a
// durable task naming a job ID.
package deployctl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/deployment"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
	"github.com/kuberos-io/kuberos/internal/scheduler/appsched"
	"github.com/kuberos-io/kuberos/internal/typederrors"
)

// Controller reconciles Deployment/DeploymentJob/DeploymentEvent rows against one cluster's
// executor.
type Controller struct {
	executor *k8sexec.Executor
	repo     *deployment.Repository
	logger   *slog.Logger
}

func NewController(executor *k8sexec.Executor, repo *deployment.Repository, logger *slog.Logger) *Controller {
	return &Controller{executor: executor, repo: repo, logger: logger}
}

// StartDeployment materialises a scheduled plan (internal/scheduler/appsched's output) into a
// Deployment row, its global ConfigMaps, and one pending DeploymentJob per robot placement,
// then kicks off each job's discovery server (spec.md §4.3 step 4 / §4.5's first transition).
// ConfigMap creation is the gating step (spec.md §4.5): on failure, every ConfigMap already
// created for this deployment is deleted before returning.
func (c *Controller) StartDeployment(ctx context.Context, fleetID uuid.UUID, name string, plan *appsched.Plan) (*deployment.Deployment, []deployment.DeploymentJob, error) {
	var createdConfigMaps []string
	for _, cm := range plan.ConfigMaps {
		res := c.executor.CreateConfigMap(ctx, "default", cm.Name, cm.Data, nil)
		if res.Status != k8sexec.StatusSuccess {
			c.rollbackConfigMaps(ctx, createdConfigMaps)
			return nil, nil, typederrors.NewFailedToCreateConfigMapError(resultErr(res.Errors), "creating config map %q", cm.Name)
		}
		createdConfigMaps = append(createdConfigMaps, cm.Name)
	}

	dep := deployment.Deployment{
		ID:                uuid.New(),
		Name:              name,
		FleetID:           fleetID,
		Status:            deployment.StatusDeploying,
		Active:            true,
		ConfigMapNames:    createdConfigMaps,
		ConfigMapsCreated: true,
		CreatedAt:         time.Now(),
	}
	saved, err := c.repo.SaveDeployment(ctx, dep)
	if err != nil {
		c.rollbackConfigMaps(ctx, createdConfigMaps)
		return nil, nil, fmt.Errorf("saving deployment: %w", err)
	}

	var jobs []deployment.DeploymentJob
	for _, placement := range plan.Robots {
		job, err := c.startJob(ctx, saved.ID, placement)
		if err != nil {
			return saved, jobs, err
		}
		jobs = append(jobs, job)
	}

	return saved, jobs, nil
}

// startJob creates one robot's discovery server pod/service and the job row tracking it,
// pending -> disc_server_in_progress (spec.md §4.5).
func (c *Controller) startJob(ctx context.Context, deploymentID uuid.UUID, placement appsched.RobotPlacement) (deployment.DeploymentJob, error) {
	job := deployment.DeploymentJob{
		ID:           uuid.New(),
		DeploymentID: deploymentID,
		RobotName:    placement.RobotName,
		Phase:        deployment.PhasePending,
	}

	podRes := c.executor.CreatePod(ctx, placement.DiscoveryServerPod)
	if podRes.Status != k8sexec.StatusSuccess {
		job.Phase = deployment.PhaseDiscServerFailed
		saved, err := c.repo.SaveJob(ctx, job)
		if err != nil {
			return job, err
		}
		return *saved, typederrors.NewFailedToCreateDDSServerError(resultErr(podRes.Errors),
			"creating discovery server pod for robot %q", placement.RobotName)
	}

	svcRes := c.executor.CreateService(ctx, placement.DiscoveryService)
	if svcRes.Status != k8sexec.StatusSuccess {
		job.Phase = deployment.PhaseDiscServerFailed
		saved, err := c.repo.SaveJob(ctx, job)
		if err != nil {
			return job, err
		}
		return *saved, typederrors.NewFailedToCreateDDSServerError(resultErr(svcRes.Errors),
			"creating discovery server service for robot %q", placement.RobotName)
	}

	job.Phase = deployment.PhaseDiscServerInProgress
	job.DiscServer = &deployment.ModuleRef{
		ModuleName:  "discovery-server",
		PodName:     placement.DiscoveryServerPod.Name,
		ServiceName: placement.DiscoveryService.Name,
		Namespace:   placement.DiscoveryServerPod.Namespace,
	}
	job.OnboardModules = modRefs(placement.OnboardModules)
	job.EdgeModules = modRefs(placement.EdgeModules)
	job.PendingOnboardPods = placement.OnboardModules
	job.PendingEdgePods = placement.EdgeModules

	saved, err := c.repo.SaveJob(ctx, job)
	if err != nil {
		return job, fmt.Errorf("saving job for robot %q: %w", placement.RobotName, err)
	}
	return *saved, nil
}

func modRefs(pods []k8sexec.PodSpec) []deployment.ModuleRef {
	refs := make([]deployment.ModuleRef, 0, len(pods))
	for _, p := range pods {
		refs = append(refs, deployment.ModuleRef{ModuleName: p.Name, PodName: p.Name, Namespace: p.Namespace})
	}
	return refs
}

// ReconcileJob performs spec.md §4.5's single reconcile operation for one job: it re-reads
// every pod/service the job references, advances the phase, and - when the advance is
// disc_server_success - emits the robot's module pods in the same step ("advance ... and emit
// the rosmodule deployment"). onboard/edge are normally job.PendingOnboardPods/PendingEdgePods,
// passed explicitly so callers that already hold them in memory (tests) don't need a round
// trip through the job row. Callers persist the returned job only when changed is true.
func (c *Controller) ReconcileJob(ctx context.Context, job deployment.DeploymentJob, onboard, edge []k8sexec.PodSpec) (deployment.DeploymentJob, bool, error) {
	job.PodStatus = c.observePods(ctx, job)
	job.ServiceStatus = c.observeServices(ctx, job)

	next, changed := deployment.AdvancePhase(job)
	if !changed {
		return job, false, nil
	}

	if next == deployment.PhaseDiscServerSuccess {
		if err := c.emitModulePods(ctx, &job, onboard, edge); err != nil {
			job.Phase = deployment.PhaseRosmoduleFailed
			return job, true, err
		}
		job.Phase = deployment.PhaseRosmoduleInProgress
		job.PendingOnboardPods = nil
		job.PendingEdgePods = nil
		return job, true, nil
	}

	job.Phase = next
	if next == deployment.PhaseDeploySuccess {
		now := time.Now()
		job.RunningAt = &now
	}
	return job, true, nil
}

// emitModulePods creates every onboard/edge module pod for a job once its discovery server is
// ready (spec.md §4.3 steps 5-7 / §4.5 step 2). Pod creation failures are per-pod and surface
// via the aggregate phase, not by rolling back siblings already created (spec.md §4.5).
func (c *Controller) emitModulePods(ctx context.Context, job *deployment.DeploymentJob, onboard, edge []k8sexec.PodSpec) error {
	var firstErr error
	for _, pod := range append(append([]k8sexec.PodSpec{}, onboard...), edge...) {
		res := c.executor.CreatePod(ctx, pod)
		if res.Status != k8sexec.StatusSuccess && firstErr == nil {
			firstErr = typederrors.NewFailedToCreatePodError(resultErr(res.Errors), "creating module pod %q", pod.Name)
		}
	}
	return firstErr
}

func (c *Controller) observePods(ctx context.Context, job deployment.DeploymentJob) []deployment.PodStatusEntry {
	var entries []deployment.PodStatusEntry
	if job.DiscServer != nil {
		entries = append(entries, c.readPod(ctx, job.DiscServer.Namespace, job.DiscServer.PodName))
	}
	for _, refs := range [][]deployment.ModuleRef{job.OnboardModules, job.EdgeModules, job.CloudModules} {
		for _, ref := range refs {
			entries = append(entries, c.readPod(ctx, ref.Namespace, ref.PodName))
		}
	}
	return entries
}

func (c *Controller) readPod(ctx context.Context, namespace, name string) deployment.PodStatusEntry {
	res := c.executor.ReadPod(ctx, namespace, name)
	status := res.Data
	if res.Status != k8sexec.StatusSuccess {
		c.logger.Error("reading pod status", "namespace", namespace, "name", name, "error", resultErr(res.Errors))
	}
	return deployment.PodStatusEntry{Name: name, Namespace: namespace, Status: status}
}

func (c *Controller) observeServices(ctx context.Context, job deployment.DeploymentJob) []deployment.SvcStatusEntry {
	if job.DiscServer == nil || job.DiscServer.ServiceName == "" {
		return nil
	}
	res := c.executor.ReadService(ctx, job.DiscServer.Namespace, job.DiscServer.ServiceName)
	status := res.Data
	if res.Status != k8sexec.StatusSuccess {
		c.logger.Error("reading service status", "name", job.DiscServer.ServiceName, "error", resultErr(res.Errors))
	}
	return []deployment.SvcStatusEntry{{Name: job.DiscServer.ServiceName, Namespace: job.DiscServer.Namespace, Status: status}}
}

// ReconcileDeployment aggregates a deployment's current job phases into its own status
// (spec.md §4.5's parent aggregation rule) and persists the change, if any.
func (c *Controller) ReconcileDeployment(ctx context.Context, dep deployment.Deployment, jobs []deployment.DeploymentJob) (*deployment.Deployment, error) {
	phases := make([]deployment.Phase, 0, len(jobs))
	for _, j := range jobs {
		phases = append(phases, j.Phase)
	}

	status, name, changed := deployment.AggregateStatus(dep.Name, phases)
	if !changed {
		return &dep, nil
	}

	dep.Status = status
	dep.Name = name
	if status == deployment.StatusDeleted {
		dep.Active = false
	}
	if status == deployment.StatusRunning {
		now := time.Now()
		dep.RunningAt = &now
	}

	return c.repo.UpdateDeployment(ctx, dep.ID, dep)
}

// RequestDelete issues the pod/service deletes for every job of a deployment and moves each
// job straight to delete_in_progress (spec.md §4.5's forced-delete branch, reachable from any
// state); jobs already in delete_in_progress or delete_success are returned unchanged.
func (c *Controller) RequestDelete(ctx context.Context, jobs []deployment.DeploymentJob) ([]deployment.DeploymentJob, error) {
	out := make([]deployment.DeploymentJob, 0, len(jobs))
	for _, job := range jobs {
		if job.Phase == deployment.PhaseDeleteInProgress || job.Phase == deployment.PhaseDeleteSuccess {
			out = append(out, job)
			continue
		}

		if job.DiscServer != nil {
			c.executor.DeletePod(ctx, job.DiscServer.Namespace, job.DiscServer.PodName)
			if job.DiscServer.ServiceName != "" {
				c.executor.DeleteService(ctx, job.DiscServer.Namespace, job.DiscServer.ServiceName)
			}
		}
		for _, refs := range [][]deployment.ModuleRef{job.OnboardModules, job.EdgeModules, job.CloudModules} {
			for _, ref := range refs {
				c.executor.DeletePod(ctx, ref.Namespace, ref.PodName)
			}
		}

		job.Phase = deployment.PhaseDeleteInProgress
		out = append(out, job)
	}
	return out, nil
}

func (c *Controller) rollbackConfigMaps(ctx context.Context, names []string) {
	for _, name := range names {
		if res := c.executor.DeleteConfigMap(ctx, "default", name); res.Status != k8sexec.StatusSuccess {
			c.logger.Error("rolling back config map after deployment start failure", "name", name, "error", resultErr(res.Errors))
		}
	}
}

func resultErr(errs []k8sexec.Error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %s", errs[0].Reason, errs[0].Msg)
}
