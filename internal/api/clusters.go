package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/fleet"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
	"github.com/kuberos-io/kuberos/internal/typederrors"
)

// registerClusterRequest is the payload accepted by POST /clusters.
type registerClusterRequest struct {
	Name         string `json:"name"`
	EndpointURL  string `json:"endpointUrl"`
	ServiceToken string `json:"serviceToken"`
	CACert       []byte `json:"caCert,omitempty"`
}

// listClusters handles GET /clusters.
func (s *Server) listClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := s.fleets.ListClusters(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clusters)
}

// registerCluster handles POST /clusters: validates the cluster is reachable before
// persisting it, the reachability gate cluster registration requires.
func (s *Server) registerCluster(w http.ResponseWriter, r *http.Request) {
	var req registerClusterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: err.Error()})
		return
	}

	executor, err := k8sexec.NewClient().
		SetLogger(s.logger).
		SetCluster(k8sexec.ClusterConfig{
			Name:         req.Name,
			EndpointURL:  req.EndpointURL,
			ServiceToken: req.ServiceToken,
			CACert:       req.CACert,
		}).
		Build()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: err.Error()})
		return
	}

	listed := executor.ListNodes(r.Context(), false)
	if listed.Status != k8sexec.StatusSuccess {
		writeJSON(w, http.StatusBadGateway, errorBody{Reason: "ClusterNotReachable", Message: "cluster did not respond to an initial node listing"})
		return
	}

	cluster := fleet.Cluster{
		ID:           uuid.New(),
		Name:         req.Name,
		EndpointURL:  req.EndpointURL,
		ServiceToken: req.ServiceToken,
		CACert:       req.CACert,
		Available:    true,
		CreatedAt:    time.Now(),
	}
	saved, err := s.fleets.SaveCluster(r.Context(), cluster)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// getCluster handles GET /clusters/{id}.
func (s *Server) getCluster(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid cluster id"})
		return
	}
	cluster, err := s.fleets.GetCluster(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cluster)
}

// deleteCluster handles DELETE /clusters/{id}: rejects the request while any fleet still uses
// the cluster as its main cluster, or any active batch job deployment still executes against
// it.
func (s *Server) deleteCluster(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid cluster id"})
		return
	}
	if _, err := s.fleets.GetCluster(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	fleetCount, err := s.fleets.CountFleetsReferencingCluster(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if fleetCount > 0 {
		writeError(w, typederrors.NewClusterInUseError("cluster %s is the main cluster of %d fleet(s)", id, fleetCount))
		return
	}

	deployments, err := s.batchJobs.ListActiveDeployments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	for _, dep := range deployments {
		if slices.Contains(dep.ExecClusterIDs, id) {
			writeError(w, typederrors.NewClusterInUseError("cluster %s is used by active batch job deployment %s", id, dep.ID))
			return
		}
	}

	if _, err := s.fleets.DeleteCluster(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listClusterNodes handles GET /clusters/{id}/nodes.
func (s *Server) listClusterNodes(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid cluster id"})
		return
	}
	nodes, err := s.fleets.ListClusterNodesByCluster(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}
