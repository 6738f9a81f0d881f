package api

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/controller/deployctl"
	"github.com/kuberos-io/kuberos/internal/deployment"
	"github.com/kuberos-io/kuberos/internal/manifest"
	"github.com/kuberos-io/kuberos/internal/scheduler/appsched"
	"github.com/kuberos-io/kuberos/internal/typederrors"
)

// createDeploymentRequest names the deployment created by POST /fleets/{id}/deployments. The
// handler does not decode it: it reads the name from the ?name= query parameter and the
// deployment manifest from the raw request body.
type createDeploymentRequest struct {
	Name string `json:"name"`
}

// listDeployments handles GET /fleets/{id}/deployments.
func (s *Server) listDeployments(w http.ResponseWriter, r *http.Request) {
	deployments, err := s.deployments.ListActiveDeployments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deployments)
}

// createDeployment handles POST /fleets/{id}/deployments?name=... with a YAML manifest body:
// it schedules the manifest against the fleet's current nodes and materialises the resulting
// plan via deployctl, the synchronous half of deployment creation (the
// per-robot reconcile that follows runs asynchronously through the worker pool).
func (s *Server) createDeployment(w http.ResponseWriter, r *http.Request) {
	fleetID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid fleet id"})
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "name query parameter is required"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxManifestBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: err.Error()})
		return
	}
	m, err := manifest.Parse(raw)
	if err != nil {
		writeError(w, typederrors.NewInvalidDeploymentManifestError(err, "parsing deployment manifest: %v", err))
		return
	}

	f, err := s.fleets.GetFleet(r.Context(), fleetID)
	if err != nil {
		writeError(w, err)
		return
	}

	nodes, err := s.fleets.ListFleetNodesByFleet(r.Context(), fleetID)
	if err != nil {
		writeError(w, err)
		return
	}
	clusterNodesByID, err := s.clusterNodesByID(r.Context(), f.MainClusterID)
	if err != nil {
		writeError(w, err)
		return
	}
	snap := appsched.NewFleetSnapshot(nodes, clusterNodesByID)

	plan, err := appsched.Schedule(m, snap)
	if err != nil {
		writeError(w, err)
		return
	}

	executor, err := s.executorFor(r.Context(), f.MainClusterID)
	if err != nil {
		writeError(w, err)
		return
	}

	controller := deployctl.NewController(executor, s.deployments, s.logger)
	saved, jobs, err := controller.StartDeployment(r.Context(), fleetID, name, plan)
	if err != nil {
		writeError(w, err)
		return
	}

	for _, job := range jobs {
		_ = s.tasks.Enqueue(r.Context(), DeployJobReconcileTaskKind, DeployJobReconcilePayload{JobID: job.ID}, 0)
	}

	writeJSON(w, http.StatusCreated, struct {
		Deployment *deployment.Deployment    `json:"deployment"`
		Jobs       []deployment.DeploymentJob `json:"jobs"`
	}{Deployment: saved, Jobs: jobs})
}

// getDeployment handles GET /deployments/{id}.
func (s *Server) getDeployment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid deployment id"})
		return
	}
	dep, err := s.deployments.GetDeployment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	jobs, err := s.deployments.ListJobsByDeployment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Deployment *deployment.Deployment    `json:"deployment"`
		Jobs       []deployment.DeploymentJob `json:"jobs"`
	}{Deployment: dep, Jobs: jobs})
}

// deleteDeployment handles DELETE /deployments/{id}: requests deletion of every job not
// already deleting or deleted, the same RequestDelete entrypoint the teardown path uses, then enqueues each job's
// reconcile so the worker pool carries it through delete_in_progress asynchronously. A
// DeploymentEvent records the request so a second concurrent delete on an already-deleting
// deployment is rejected rather than re-issuing teardown.
func (s *Server) deleteDeployment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid deployment id"})
		return
	}
	dep, err := s.deployments.GetDeployment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if dep.Status == deployment.StatusDeleting || dep.Status == deployment.StatusDeleted {
		writeError(w, typederrors.NewInvalidCommandError("deployment %s is already being deleted", id))
		return
	}

	jobs, err := s.deployments.ListJobsByDeployment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := s.deployments.SaveEvent(r.Context(), deployment.DeploymentEvent{
		ID:           uuid.New(),
		DeploymentID: id,
		EventType:    deployment.EventDelete,
		EventStatus:  deployment.EventStatusCreated,
		CreatedAt:    time.Now(),
	}); err != nil {
		writeError(w, err)
		return
	}

	f, err := s.fleets.GetFleet(r.Context(), dep.FleetID)
	if err != nil {
		writeError(w, err)
		return
	}
	executor, err := s.executorFor(r.Context(), f.MainClusterID)
	if err != nil {
		writeError(w, err)
		return
	}
	controller := deployctl.NewController(executor, s.deployments, s.logger)
	updated, err := controller.RequestDelete(r.Context(), jobs)
	if err != nil {
		writeError(w, err)
		return
	}

	dep.Status = deployment.StatusDeleting
	if _, err := s.deployments.UpdateDeployment(r.Context(), id, *dep); err != nil {
		writeError(w, err)
		return
	}
	for _, job := range updated {
		if _, err := s.deployments.UpdateJob(r.Context(), job.ID, job); err != nil {
			writeError(w, err)
			return
		}
		_ = s.tasks.Enqueue(r.Context(), DeployJobReconcileTaskKind, DeployJobReconcilePayload{JobID: job.ID}, 0)
	}
	w.WriteHeader(http.StatusAccepted)
}

const maxManifestBytes = 1 << 20
