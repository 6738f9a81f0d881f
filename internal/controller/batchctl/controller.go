// Package batchctl drives the batch-job deployment workflow: a single tick
// per batch deployment advances its own state, and a separate per-job reconcile advances each
// KuberosJob's ten-state machine. Both are dispatched as taskq tasks rather
// than a per-deployment goroutine, the same durable-step shape deployctl uses.
package batchctl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/batchjob"
	"github.com/kuberos-io/kuberos/internal/deployment"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
	"github.com/kuberos-io/kuberos/internal/manifest"
	"github.com/kuberos-io/kuberos/internal/scheduler/batchsched"
	"github.com/kuberos-io/kuberos/internal/typederrors"
)

// Controller reconciles BatchJobDeployment/BatchJobGroup/KuberosJob rows against a set of
// exec-cluster executors, keyed by cluster ID.
type Controller struct {
	executors map[uuid.UUID]*k8sexec.Executor
	repo      *batchjob.Repository
	logger    *slog.Logger
}

func NewController(executors map[uuid.UUID]*k8sexec.Executor, repo *batchjob.Repository, logger *slog.Logger) *Controller {
	return &Controller{executors: executors, repo: repo, logger: logger}
}

func (c *Controller) executorFor(clusterID uuid.UUID) (*k8sexec.Executor, error) {
	e, ok := c.executors[clusterID]
	if !ok {
		return nil, fmt.Errorf("no executor registered for exec cluster %s", clusterID)
	}
	return e, nil
}

// Expand runs the PENDING -> EXECUTING transition: it expands the job spec's Cartesian product into one
// BatchJobGroup per combination bound to the deployment's first exec cluster, materialises
// each group's ConfigMaps, and creates its KuberosJob rows. ConfigMap creation gates job
// creation: on failure the whole deployment is marked FAILED without dispatching any job.
func (c *Controller) Expand(ctx context.Context, dep batchjob.BatchJobDeployment, m *manifest.Manifest, execClusterID uuid.UUID) (*batchjob.BatchJobDeployment, []batchjob.BatchJobGroup, []batchjob.KuberosJob, error) {
	executor, err := c.executorFor(execClusterID)
	if err != nil {
		return nil, nil, nil, err
	}

	plans, err := batchsched.Expand(m)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("expanding job spec: %w", err)
	}

	var volume batchjob.VolumeSpec
	if len(dep.VolumeSpecJSON) > 0 {
		if err := json.Unmarshal(dep.VolumeSpecJSON, &volume); err != nil {
			return nil, nil, nil, fmt.Errorf("decoding volume spec: %w", err)
		}
	}

	lifecycleModuleName := ""
	repeatNum := 1
	if m.JobSpec != nil {
		lifecycleModuleName = m.JobSpec.LifecycleModule.Name
		if m.JobSpec.LifecycleModule.RepeatNum > 0 {
			repeatNum = m.JobSpec.LifecycleModule.RepeatNum
		}
	}

	var groups []batchjob.BatchJobGroup
	var jobs []batchjob.KuberosJob

	for _, plan := range plans {
		configMapNames := batchsched.GroupConfigMapNames(plan.GroupPostfix, rosParamMapNames(plan.Manifest))
		if err := c.materialiseGroupConfigMaps(ctx, executor, plan, configMapNames); err != nil {
			dep.Status = batchjob.StatusFailed
			saved, saveErr := c.repo.UpdateDeployment(ctx, dep.ID, dep)
			if saveErr != nil {
				return nil, nil, nil, saveErr
			}
			return saved, groups, jobs, err
		}

		renderedManifest, err := json.Marshal(plan.Manifest)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encoding rendered manifest for group %q: %w", plan.GroupPostfix, err)
		}

		group := batchsched.NewGroup(dep.ID, execClusterID, plan, repeatNum, lifecycleModuleName)
		group.ConfigMapNames = configMapNames
		group.RenderedManifestJSON = renderedManifest
		savedGroup, err := c.repo.SaveGroup(ctx, group)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("saving group %q: %w", plan.GroupPostfix, err)
		}
		groups = append(groups, *savedGroup)

		groupJobs, err := batchsched.NewJobs(savedGroup.ID, repeatNum, dep.StartupTimeoutSec, dep.RunningTimeoutSec, volume)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("creating jobs for group %q: %w", plan.GroupPostfix, err)
		}
		for _, job := range groupJobs {
			saved, err := c.repo.SaveJob(ctx, job)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("saving job for group %q: %w", plan.GroupPostfix, err)
			}
			jobs = append(jobs, *saved)
		}
	}

	dep.Status = batchjob.StatusExecuting
	now := time.Now()
	dep.StartedAt = &now
	saved, err := c.repo.UpdateDeployment(ctx, dep.ID, dep)
	if err != nil {
		return nil, groups, jobs, fmt.Errorf("saving deployment after expansion: %w", err)
	}
	return saved, groups, jobs, nil
}

func rosParamMapNames(m *manifest.Manifest) []string {
	names := make([]string, 0, len(m.RosParamMap))
	for _, pm := range m.RosParamMap {
		names = append(names, pm.Name)
	}
	return names
}

func (c *Controller) materialiseGroupConfigMaps(ctx context.Context, executor *k8sexec.Executor, plan batchsched.GroupPlan, prefixedNames []string) error {
	for i, pm := range plan.Manifest.RosParamMap {
		data := pm.Data
		if pm.Type == manifest.ParamTypeYAML {
			data = map[string]string{"params.yaml": pm.YAMLContent}
		}
		res := executor.CreateConfigMap(ctx, "default", prefixedNames[i], data, nil)
		if res.Status != k8sexec.StatusSuccess {
			return typederrors.NewFailedToCreateConfigMapError(resultErr(res.Errors), "creating config map %q for group %q", prefixedNames[i], plan.GroupPostfix)
		}
	}
	return nil
}

// Tick runs one workflow step for a batch deployment: EXECUTING moves to WAITING_FOR_FINISHING
// once no job is pending (placing pending jobs is PlaceTick's work); WAITING_FOR_FINISHING
// moves to CLEANING once nothing is in flight or the startup+running timeout budget has
// elapsed; CLEANING deletes every group's ConfigMaps and force-terminates any non-completed
// job before completing. STOPPED and terminal statuses are a no-op.
func (c *Controller) Tick(ctx context.Context, dep batchjob.BatchJobDeployment, groups []batchjob.BatchJobGroup, jobsByGroup map[uuid.UUID][]batchjob.KuberosJob) (*batchjob.BatchJobDeployment, error) {
	switch dep.Status {
	case batchjob.StatusExecuting:
		return c.tickExecuting(ctx, dep, groups, jobsByGroup)
	case batchjob.StatusWaitingForFinishing:
		return c.tickWaitingForFinishing(ctx, dep, jobsByGroup)
	case batchjob.StatusCleaning:
		return c.tickCleaning(ctx, dep, groups, jobsByGroup)
	default:
		return &dep, nil
	}
}

func (c *Controller) tickExecuting(ctx context.Context, dep batchjob.BatchJobDeployment, groups []batchjob.BatchJobGroup, jobsByGroup map[uuid.UUID][]batchjob.KuberosJob) (*batchjob.BatchJobDeployment, error) {
	totalPending := 0
	for _, g := range groups {
		totalPending += batchjob.PendingCount(jobsByGroup[g.ID])
	}
	if totalPending == 0 {
		dep.Status = batchjob.StatusWaitingForFinishing
		now := time.Now()
		dep.SchedulingDoneAt = &now
		return c.repo.UpdateDeployment(ctx, dep.ID, dep)
	}
	// Placement itself is done by Controller.PlaceTick, which the batch deployment tick handler
	// calls after Tick to pop pending jobs onto each group's exec cluster; this tick only watches the
	// pending count to decide when to advance past EXECUTING.
	return &dep, nil
}

func (c *Controller) tickWaitingForFinishing(ctx context.Context, dep batchjob.BatchJobDeployment, jobsByGroup map[uuid.UUID][]batchjob.KuberosJob) (*batchjob.BatchJobDeployment, error) {
	inFlight := 0
	for _, jobs := range jobsByGroup {
		inFlight += batchjob.InFlightCount(jobs)
	}

	timedOut := dep.SchedulingDoneAt != nil &&
		batchjob.WaitingForFinishingTimedOut(*dep.SchedulingDoneAt, time.Now(), dep.StartupTimeoutSec, dep.RunningTimeoutSec)

	if inFlight == 0 || timedOut {
		dep.Status = batchjob.StatusCleaning
		return c.repo.UpdateDeployment(ctx, dep.ID, dep)
	}
	return &dep, nil
}

func (c *Controller) tickCleaning(ctx context.Context, dep batchjob.BatchJobDeployment, groups []batchjob.BatchJobGroup, jobsByGroup map[uuid.UUID][]batchjob.KuberosJob) (*batchjob.BatchJobDeployment, error) {
	for _, g := range groups {
		executor, err := c.executorFor(g.ExecClusterID)
		if err != nil {
			c.logger.Error("no executor for cleanup", "group", g.GroupPostfix, "error", err)
			continue
		}
		for _, name := range g.ConfigMapNames {
			if res := executor.DeleteConfigMap(ctx, "default", name); res.Status != k8sexec.StatusSuccess {
				c.logger.Error("deleting group config map", "name", name, "error", resultErr(res.Errors))
			}
		}
		for _, job := range jobsByGroup[g.ID] {
			c.terminateJobPods(ctx, executor, job)
		}
	}

	dep.Status = batchjob.StatusCompleted
	now := time.Now()
	dep.CompletedAt = &now
	return c.repo.UpdateDeployment(ctx, dep.ID, dep)
}

func (c *Controller) terminateJobPods(ctx context.Context, executor *k8sexec.Executor, job batchjob.KuberosJob) {
	if job.DiscServer != nil {
		executor.DeletePod(ctx, "default", job.DiscServer.PodName)
	}
	for _, ref := range job.ScheduledModules {
		executor.DeletePod(ctx, ref.Namespace, ref.PodName)
	}
}

// PlaceTick runs one scheduling pass for a single group: it rebuilds the group's rendered manifest, asks batchsched.PlaceTick for as
// many placements as the cluster's free nodes allow, and materialises each one via Place,
// persisting every job it touches.
func (c *Controller) PlaceTick(ctx context.Context, group batchjob.BatchJobGroup, pendingJobs []batchjob.KuberosJob, nodes []batchsched.NodeSnapshot, volume batchjob.VolumeSpec) ([]batchjob.KuberosJob, error) {
	executor, err := c.executorFor(group.ExecClusterID)
	if err != nil {
		return nil, err
	}

	var m manifest.Manifest
	if err := json.Unmarshal(group.RenderedManifestJSON, &m); err != nil {
		return nil, fmt.Errorf("decoding rendered manifest for group %q: %w", group.GroupPostfix, err)
	}

	var requestCPU, optimalCPU manifest.CPUQuantity
	numProNode := 0
	if m.JobSpec != nil {
		requestCPU = m.JobSpec.ResourceRequestCPU
		optimalCPU = m.JobSpec.ResourceOptimalCPU
		numProNode = m.JobSpec.NumProNode
	}

	pending := make([]batchsched.PendingJob, len(pendingJobs))
	for i, job := range pendingJobs {
		pending[i] = batchsched.PendingJob{
			Job:                job,
			GroupPostfix:       group.GroupPostfix,
			QueueNumber:        group.QueueNumber,
			Manifest:           &m,
			GroupDataInStorage: volume.Type != "",
			VolumeBase:         volume.MountPath,
		}
	}

	placements, _ := batchsched.PlaceTick(pending, nodes, requestCPU, optimalCPU, numProNode)

	byID := make(map[string]batchjob.KuberosJob, len(pendingJobs))
	for _, job := range pendingJobs {
		byID[job.ID.String()] = job
	}

	placed := make([]batchjob.KuberosJob, 0, len(placements))
	for _, placement := range placements {
		job, ok := byID[placement.JobID]
		if !ok {
			continue
		}
		job, err := c.Place(ctx, executor, job, placement)
		if err != nil {
			c.logger.Error("placing job", "job", job.Slug, "error", err)
		}
		saved, err := c.repo.UpdateJob(ctx, job.ID, job)
		if err != nil {
			return placed, fmt.Errorf("saving placed job %q: %w", job.Slug, err)
		}
		placed = append(placed, *saved)
	}
	return placed, nil
}

// Place materialises one job's scheduled discovery server: it creates the pod and service batchsched.PlaceTick
// pinned to an allocatable node, and records the job's module references for the deploying
// step that follows once the discovery server is ready. A creation failure fails the job
// immediately, matching the original's single_job_preparing task: nothing was deployed, so
// there is nothing to clean up.
func (c *Controller) Place(ctx context.Context, executor *k8sexec.Executor, job batchjob.KuberosJob, placement batchsched.JobPlacement) (batchjob.KuberosJob, error) {
	podRes := executor.CreatePod(ctx, placement.DiscoveryServerPod)
	if podRes.Status != k8sexec.StatusSuccess {
		job.Status = batchjob.JobFailed
		return job, typederrors.NewFailedToCreateDDSServerError(resultErr(podRes.Errors),
			"creating discovery server pod for job %q", job.Slug)
	}
	svcRes := executor.CreateService(ctx, placement.DiscoveryService)
	if svcRes.Status != k8sexec.StatusSuccess {
		job.Status = batchjob.JobFailed
		return job, typederrors.NewFailedToCreateDDSServerError(resultErr(svcRes.Errors),
			"creating discovery server service for job %q", job.Slug)
	}

	now := time.Now()
	job.ScheduledAt = &now
	job.NodeHostname = placement.NodeHostname
	job.Volume = placement.Volume
	job.DiscServer = &deployment.ModuleRef{
		ModuleName:  "discovery-server",
		PodName:     placement.DiscoveryServerPod.Name,
		ServiceName: placement.DiscoveryService.Name,
		Namespace:   placement.DiscoveryServerPod.Namespace,
	}
	job.ScheduledModules = placement.ModuleRefs
	job.ModulePods = placement.ModulePods
	job.Status = batchjob.JobPreparing
	return job, nil
}

// ReconcileJob advances one KuberosJob's state machine: it re-reads every pod
// the job references, fails the job if any module pod is in error, completes it once the
// lifecycle module pod succeeds (the only normal exit from RUNNING), and jumps a startup/
// running stage that has exceeded its timeout to the failure branch through
// FINISHED -> TERMINATING, so cleanup is uniform for both success and failure.
func (c *Controller) ReconcileJob(ctx context.Context, job batchjob.KuberosJob, lifecycleModuleName string, executor *k8sexec.Executor) (batchjob.KuberosJob, bool) {
	if job.Status.IsTerminal() {
		return job, false
	}

	now := time.Now()
	if c.timedOut(job, now) {
		return c.failJob(job), true
	}

	switch job.Status {
	case batchjob.JobPending, batchjob.JobScheduled:
		return job, false

	case batchjob.JobPreparing:
		return c.reconcilePreparing(ctx, job, executor)

	case batchjob.JobPrepared:
		job.Status = batchjob.JobDeploying
		return job, true

	case batchjob.JobDeploying:
		return c.reconcileDeploying(ctx, job, executor)

	case batchjob.JobRunning:
		return c.reconcileRunning(ctx, job, lifecycleModuleName, executor)

	case batchjob.JobFinished:
		c.terminateJobPods(ctx, executor, job)
		job.Status = batchjob.JobTerminating
		return job, true

	case batchjob.JobTerminating:
		job.Status = batchjob.JobCompleted
		return job, true

	default:
		return job, false
	}
}

// reconcilePreparing waits for the discovery server pod to become Running, then creates every
// module pod for the job and advances to PREPARED. A pod
// creation failure here fails the job, same as a Place failure.
func (c *Controller) reconcilePreparing(ctx context.Context, job batchjob.KuberosJob, executor *k8sexec.Executor) (batchjob.KuberosJob, bool) {
	if job.DiscServer == nil {
		return job, false
	}
	res := executor.ReadPod(ctx, job.DiscServer.Namespace, job.DiscServer.PodName)
	if res.Status != k8sexec.StatusSuccess || res.Data.Phase != k8sexec.PodRunning {
		return job, false
	}

	for _, pod := range job.ModulePods {
		if podRes := executor.CreatePod(ctx, pod); podRes.Status != k8sexec.StatusSuccess {
			job.Status = batchjob.JobFailed
			return job, true
		}
	}
	job.Status = batchjob.JobPrepared
	return job, true
}

// reconcileDeploying waits for every module pod to become Running before advancing to RUNNING
//.
func (c *Controller) reconcileDeploying(ctx context.Context, job batchjob.KuberosJob, executor *k8sexec.Executor) (batchjob.KuberosJob, bool) {
	for _, ref := range job.ScheduledModules {
		res := executor.ReadPod(ctx, ref.Namespace, ref.PodName)
		if res.Status != k8sexec.StatusSuccess || res.Data.Phase != k8sexec.PodRunning {
			return job, false
		}
	}
	now := time.Now()
	job.RunningAt = &now
	job.Status = batchjob.JobRunning
	return job, true
}

func (c *Controller) reconcileRunning(ctx context.Context, job batchjob.KuberosJob, lifecycleModuleName string, executor *k8sexec.Executor) (batchjob.KuberosJob, bool) {
	var lifecyclePodName string
	for _, ref := range job.ScheduledModules {
		if ref.ModuleName == lifecycleModuleName {
			lifecyclePodName = ref.PodName
		}
	}

	for _, ref := range job.ScheduledModules {
		res := executor.ReadPod(ctx, ref.Namespace, ref.PodName)
		if res.Status != k8sexec.StatusSuccess {
			continue
		}
		if res.Data.Phase == k8sexec.PodFailed {
			return c.failJob(job), true
		}
		if ref.PodName == lifecyclePodName && res.Data.Phase == k8sexec.PodSucceeded {
			job.Status = batchjob.JobFinished
			job.SuccessCompleted = true
			return job, true
		}
	}
	return job, false
}

func (c *Controller) failJob(job batchjob.KuberosJob) batchjob.KuberosJob {
	job.Status = batchjob.JobFinished
	job.SuccessCompleted = false
	return job
}

func (c *Controller) timedOut(job batchjob.KuberosJob, now time.Time) bool {
	switch job.Status {
	case batchjob.JobPreparing, batchjob.JobPrepared, batchjob.JobDeploying:
		if job.ScheduledAt == nil {
			return false
		}
		return now.Sub(*job.ScheduledAt) > time.Duration(job.StartupTimeoutSec)*time.Second
	case batchjob.JobRunning:
		if job.RunningAt == nil {
			return false
		}
		return now.Sub(*job.RunningAt) > time.Duration(job.RunningTimeoutSec)*time.Second
	default:
		return false
	}
}

func resultErr(errs []k8sexec.Error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %s", errs[0].Reason, errs[0].Msg)
}
