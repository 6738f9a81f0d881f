package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/batchjob"
	"github.com/kuberos-io/kuberos/internal/controller/batchctl"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
	"github.com/kuberos-io/kuberos/internal/manifest"
	"github.com/kuberos-io/kuberos/internal/typederrors"
)

// listBatchJobDeployments handles GET /batch-job-deployments.
func (s *Server) listBatchJobDeployments(w http.ResponseWriter, r *http.Request) {
	deployments, err := s.batchJobs.ListActiveDeployments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deployments)
}

// createBatchJobDeployment handles POST /batch-job-deployments?execClusterId=...
// with a manifest body containing a jobSpec section: it expands the manifest's Cartesian
// product into groups and jobs on the named exec cluster, the synchronous PENDING->EXECUTING
// transition; the worker pool then ticks the deployment and places its jobs asynchronously.
func (s *Server) createBatchJobDeployment(w http.ResponseWriter, r *http.Request) {
	execClusterID, err := uuid.Parse(r.URL.Query().Get("execClusterId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid or missing execClusterId"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxManifestBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: err.Error()})
		return
	}
	m, err := manifest.Parse(raw)
	if err != nil {
		writeError(w, typederrors.NewInvalidDeploymentManifestError(err, "parsing batch job manifest: %v", err))
		return
	}
	if m.JobSpec == nil {
		writeError(w, typederrors.NewInvalidDeploymentManifestError(nil, "manifest has no jobSpec section"))
		return
	}

	jobSpecJSON, err := json.Marshal(m.JobSpec)
	if err != nil {
		writeError(w, err)
		return
	}

	startupTimeout := m.JobSpec.StartupTimeoutSeconds
	if startupTimeout <= 0 {
		startupTimeout = 60
	}
	runningTimeout := m.JobSpec.RunningTimeoutSeconds
	if runningTimeout <= 0 {
		runningTimeout = 300
	}

	dep := batchjob.BatchJobDeployment{
		ID:                uuid.New(),
		Name:              m.Metadata.Name,
		Active:            true,
		Status:            batchjob.StatusPending,
		JobSpecJSON:       jobSpecJSON,
		ExecClusterIDs:    []uuid.UUID{execClusterID},
		StartupTimeoutSec: startupTimeout,
		RunningTimeoutSec: runningTimeout,
		CreatedAt:         time.Now(),
	}
	saved, err := s.batchJobs.SaveDeployment(r.Context(), dep)
	if err != nil {
		writeError(w, err)
		return
	}

	executor, err := s.executorFor(r.Context(), execClusterID)
	if err != nil {
		writeError(w, err)
		return
	}
	controller := batchctl.NewController(map[uuid.UUID]*k8sexec.Executor{execClusterID: executor}, s.batchJobs, s.logger)

	expanded, groups, jobs, err := controller.Expand(r.Context(), *saved, m, execClusterID)
	if err != nil {
		writeError(w, err)
		return
	}

	_ = s.tasks.Enqueue(r.Context(), BatchDeploymentTickTaskKind, BatchDeploymentTickPayload{DeploymentID: expanded.ID}, 0)

	writeJSON(w, http.StatusCreated, struct {
		Deployment *batchjob.BatchJobDeployment `json:"deployment"`
		Groups     []batchjob.BatchJobGroup     `json:"groups"`
		Jobs       []batchjob.KuberosJob        `json:"jobs"`
	}{Deployment: expanded, Groups: groups, Jobs: jobs})
}

// getBatchJobDeployment handles GET /batch-job-deployments/{id}.
func (s *Server) getBatchJobDeployment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid batch job deployment id"})
		return
	}
	dep, err := s.batchJobs.GetDeployment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	groups, err := s.batchJobs.ListGroupsByDeployment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	jobsByGroup := make(map[uuid.UUID][]batchjob.KuberosJob, len(groups))
	for _, g := range groups {
		jobs, err := s.batchJobs.ListJobsByGroup(r.Context(), g.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		jobsByGroup[g.ID] = jobs
	}
	writeJSON(w, http.StatusOK, struct {
		Deployment  *batchjob.BatchJobDeployment            `json:"deployment"`
		Groups      []batchjob.BatchJobGroup                `json:"groups"`
		JobsByGroup map[uuid.UUID][]batchjob.KuberosJob      `json:"jobsByGroup"`
	}{Deployment: dep, Groups: groups, JobsByGroup: jobsByGroup})
}

// stopBatchJobDeployment handles POST /batch-job-deployments/{id}/stop: requests the
// EXECUTING/WAITING_FOR_FINISHING -> STOPPED transition, a pause rather than a teardown, so the
// deployment can later be resumed instead of cleaned up. Rejects the request if the deployment
// isn't currently running.
func (s *Server) stopBatchJobDeployment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid batch job deployment id"})
		return
	}
	dep, err := s.batchJobs.GetDeployment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if dep.Status != batchjob.StatusExecuting && dep.Status != batchjob.StatusWaitingForFinishing {
		writeError(w, typederrors.NewBatchJobNotRunningError("batch job deployment %s is not running", id))
		return
	}
	dep.Status = batchjob.StatusStopped
	updated, err := s.batchJobs.UpdateDeployment(r.Context(), id, *dep)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// resumeBatchJobDeployment handles POST /batch-job-deployments/{id}/resume: reverses stop,
// putting a STOPPED deployment back to EXECUTING and re-enqueuing its tick so the controller
// picks its groups/jobs back up.
func (s *Server) resumeBatchJobDeployment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid batch job deployment id"})
		return
	}
	dep, err := s.batchJobs.GetDeployment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if dep.Status != batchjob.StatusStopped {
		writeError(w, typederrors.NewBatchJobNotInStoppedStatusError("batch job deployment %s is not stopped", id))
		return
	}
	dep.Status = batchjob.StatusExecuting
	updated, err := s.batchJobs.UpdateDeployment(r.Context(), id, *dep)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = s.tasks.Enqueue(r.Context(), BatchDeploymentTickTaskKind, BatchDeploymentTickPayload{DeploymentID: id}, 0)
	writeJSON(w, http.StatusOK, updated)
}

// deleteBatchJobDeployment handles DELETE /batch-job-deployments/{id}: hard-deletes a deployment
// row once its status is finished, completed or failed, rejecting the request in any other status.
func (s *Server) deleteBatchJobDeployment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid batch job deployment id"})
		return
	}
	dep, err := s.batchJobs.GetDeployment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	switch dep.Status {
	case batchjob.StatusFinished, batchjob.StatusCompleted, batchjob.StatusFailed:
	default:
		writeError(w, typederrors.NewInvalidCommandError("batch job deployment %s is still active", id))
		return
	}
	if _, err := s.batchJobs.DeleteDeployment(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
