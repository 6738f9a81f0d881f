package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/clustersync"
	"github.com/kuberos-io/kuberos/internal/deployment"
	"github.com/kuberos-io/kuberos/internal/fleet"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
	"github.com/kuberos-io/kuberos/internal/typederrors"
)

// createFleetRequest is the payload accepted by POST /fleets.
type createFleetRequest struct {
	Name          string `json:"name"`
	MainClusterID string `json:"mainClusterId"`
}

// listFleets handles GET /fleets.
func (s *Server) listFleets(w http.ResponseWriter, r *http.Request) {
	fleets, err := s.fleets.ListFleets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fleets)
}

// createFleet handles POST /fleets.
func (s *Server) createFleet(w http.ResponseWriter, r *http.Request) {
	var req createFleetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: err.Error()})
		return
	}
	mainClusterID, err := uuid.Parse(req.MainClusterID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid mainClusterId"})
		return
	}
	if _, err := s.fleets.GetCluster(r.Context(), mainClusterID); err != nil {
		writeError(w, typederrors.NewClusterDoesNotExistError("main cluster %s does not exist", mainClusterID))
		return
	}

	f := fleet.Fleet{
		ID:            uuid.New(),
		Name:          req.Name,
		MainClusterID: mainClusterID,
		Healthy:       true,
		Status:        fleet.FleetStatusPending,
		Active:        true,
		CreatedAt:     time.Now(),
	}
	saved, err := s.fleets.SaveFleet(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// getFleet handles GET /fleets/{id}.
func (s *Server) getFleet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid fleet id"})
		return
	}
	f, err := s.fleets.GetFleet(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// deleteFleet handles DELETE /fleets/{id}: rejects the request while any active deployment
// still targets the fleet, otherwise unbinds every fleet node (clearing its live labels) before
// removing the fleet row.
func (s *Server) deleteFleet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid fleet id"})
		return
	}
	if _, err := s.fleets.GetFleet(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	deployments, err := s.deployments.ListActiveDeployments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	for _, dep := range deployments {
		if dep.FleetID == id && dep.Status != deployment.StatusDeleted {
			writeError(w, typederrors.NewFleetInUseError("fleet %s has an active deployment %s", id, dep.ID))
			return
		}
	}

	nodes, err := s.fleets.ListFleetNodesByFleet(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, n := range nodes {
		s.clearFleetNodeBinding(r.Context(), n.ClusterNodeID)
		if _, err := s.fleets.DeleteFleetNode(r.Context(), n.ID); err != nil {
			writeError(w, err)
			return
		}
	}

	if _, err := s.fleets.DeleteFleet(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// patchFleetRequest is the payload accepted by PATCH /fleets/{id}: operation "add"/"remove"
// bind or unbind a single cluster node, "rename" changes the fleet's name.
type patchFleetRequest struct {
	Operation        string `json:"operation"`
	ClusterNodeID    string `json:"clusterNodeId,omitempty"`
	Hostname         string `json:"hostname,omitempty"`
	RobotName        string `json:"robotName,omitempty"`
	RobotID          string `json:"robotId,omitempty"`
	OnboardCompGroup string `json:"onboardCompGroup,omitempty"`
	NodeID           string `json:"nodeId,omitempty"`
	Name             string `json:"name,omitempty"`
}

// patchFleet handles PATCH /fleets/{id}.
func (s *Server) patchFleet(w http.ResponseWriter, r *http.Request) {
	fleetID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid fleet id"})
		return
	}
	var req patchFleetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: err.Error()})
		return
	}

	f, err := s.fleets.GetFleet(r.Context(), fleetID)
	if err != nil {
		writeError(w, err)
		return
	}

	switch req.Operation {
	case "add":
		saved, err := s.addFleetNode(r.Context(), f, bindFleetNodeRequest{
			ClusterNodeID:    req.ClusterNodeID,
			Hostname:         req.Hostname,
			RobotName:        req.RobotName,
			RobotID:          req.RobotID,
			OnboardCompGroup: req.OnboardCompGroup,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)

	case "remove":
		nodeID, err := uuid.Parse(req.NodeID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid nodeId"})
			return
		}
		if _, err := s.removeFleetNode(r.Context(), nodeID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, f)

	case "rename":
		if req.Name == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "name is required for a rename operation"})
			return
		}
		f.Name = req.Name
		updated, err := s.fleets.UpdateFleet(r.Context(), fleetID, *f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "operation must be one of add, remove, rename"})
	}
}

// listFleetNodes handles GET /fleets/{id}/nodes.
func (s *Server) listFleetNodes(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid fleet id"})
		return
	}
	nodes, err := s.fleets.ListFleetNodesByFleet(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// bindFleetNodeRequest is the payload accepted by POST /fleets/{id}/nodes.
type bindFleetNodeRequest struct {
	ClusterNodeID    string `json:"clusterNodeId"`
	Hostname         string `json:"hostname"`
	RobotName        string `json:"robotName"`
	RobotID          string `json:"robotId"`
	OnboardCompGroup string `json:"onboardCompGroup"`
}

// bindFleetNode handles POST /fleets/{id}/nodes: binds one cluster node into the fleet under
// a robot name, the step that makes the node visible to the application scheduler.
func (s *Server) bindFleetNode(w http.ResponseWriter, r *http.Request) {
	fleetID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid fleet id"})
		return
	}
	var req bindFleetNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: err.Error()})
		return
	}

	f, err := s.fleets.GetFleet(r.Context(), fleetID)
	if err != nil {
		writeError(w, err)
		return
	}

	saved, err := s.addFleetNode(r.Context(), f, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// addFleetNode binds clusterNodeId into fleet f: it saves the FleetNode row and, on a
// best-effort basis, patches the fleet/robot label set onto the node's live Kubernetes object
// so the application scheduler's node selectors (device.kuberos.io/hostname, kuberos.io/role)
// resolve against it. A label-patch failure doesn't fail the bind - it leaves IsLabelSynced
// false for the cluster synchroniser to report as drift.
func (s *Server) addFleetNode(ctx context.Context, f *fleet.Fleet, req bindFleetNodeRequest) (*fleet.FleetNode, error) {
	clusterNodeID, err := uuid.Parse(req.ClusterNodeID)
	if err != nil {
		return nil, typederrors.NewValidationFailedError(err, "invalid clusterNodeId")
	}
	clusterNode, err := s.fleets.GetClusterNode(ctx, clusterNodeID)
	if err != nil {
		return nil, err
	}

	node := fleet.FleetNode{
		ID:               uuid.New(),
		FleetID:          f.ID,
		ClusterNodeID:    clusterNodeID,
		Hostname:         req.Hostname,
		RobotName:        req.RobotName,
		RobotID:          req.RobotID,
		OnboardCompGroup: req.OnboardCompGroup,
		Status:           fleet.FleetNodeDeployable,
	}

	labels := clustersync.ExpectedLabels(f.Name, node, *clusterNode)
	clusterNode.Role = fleet.RoleOnboard
	executor, err := s.executorFor(ctx, clusterNode.ClusterID)
	if err != nil {
		s.logger.Warn("failed to build executor while binding fleet node", "clusterId", clusterNode.ClusterID, "error", err)
		clusterNode.IsLabelSynced = false
	} else {
		patched := executor.PatchNodeLabels(ctx, clusterNode.Hostname, labels)
		if patched.Status == k8sexec.StatusSuccess {
			clusterNode.Labels = patched.Data
			clusterNode.IsLabelSynced = true
		} else {
			clusterNode.IsLabelSynced = false
			s.logger.Warn("failed to patch fleet node labels onto live node", "hostname", clusterNode.Hostname, "errors", patched.Errors)
		}
	}

	if _, err := s.fleets.UpdateClusterNode(ctx, clusterNode.ID, *clusterNode); err != nil {
		return nil, err
	}
	return s.fleets.SaveFleetNode(ctx, node)
}

// deleteFleetNode handles DELETE /fleets/{id}/nodes/{nodeId}.
func (s *Server) deleteFleetNode(w http.ResponseWriter, r *http.Request) {
	nodeID, err := uuid.Parse(r.PathValue("nodeId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid node id"})
		return
	}
	n, err := s.removeFleetNode(r.Context(), nodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	if n == 0 {
		writeJSON(w, http.StatusNotFound, errorBody{Reason: "NotFound", Message: "fleet node not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// removeFleetNode clears the node's live fleet/robot labels (best-effort) before deleting its
// FleetNode row.
func (s *Server) removeFleetNode(ctx context.Context, nodeID uuid.UUID) (int64, error) {
	if fn, err := s.fleets.GetFleetNode(ctx, nodeID); err == nil {
		s.clearFleetNodeBinding(ctx, fn.ClusterNodeID)
	}
	return s.fleets.DeleteFleetNode(ctx, nodeID)
}

// clearFleetNodeBinding resets clusterNodeID's role to unassigned and blanks its fleet/robot
// labels on the live node, best-effort: a failure here is logged and leaves IsLabelSynced
// false rather than blocking the unbind.
func (s *Server) clearFleetNodeBinding(ctx context.Context, clusterNodeID uuid.UUID) {
	clusterNode, err := s.fleets.GetClusterNode(ctx, clusterNodeID)
	if err != nil {
		return
	}
	clusterNode.Role = fleet.RoleUnassigned
	clusterNode.IsLabelSynced = false

	executor, err := s.executorFor(ctx, clusterNode.ClusterID)
	if err != nil {
		s.logger.Warn("failed to build executor while clearing fleet node labels", "clusterId", clusterNode.ClusterID, "error", err)
	} else {
		patched := executor.PatchNodeLabels(ctx, clusterNode.Hostname, clustersync.ClearedLabels())
		if patched.Status == k8sexec.StatusSuccess {
			clusterNode.Labels = patched.Data
		} else {
			s.logger.Warn("failed to clear fleet node labels on live node", "hostname", clusterNode.Hostname, "errors", patched.Errors)
		}
	}

	if _, err := s.fleets.UpdateClusterNode(ctx, clusterNode.ID, *clusterNode); err != nil {
		s.logger.Warn("failed to persist cleared cluster node labels", "clusterNodeId", clusterNode.ID, "error", err)
	}
}
