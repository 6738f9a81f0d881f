package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/registry"
)

// createRegistryCredentialRequest is the payload accepted by POST /registry-credentials. The
// access token is write-once: it is accepted here and never echoed back by a read, matching
// registry.Credential's json:"-" tag on AccessToken.
type createRegistryCredentialRequest struct {
	Name        string `json:"name"`
	User        string `json:"user"`
	RegistryURL string `json:"registryUrl"`
	AccessToken string `json:"accessToken"`
}

// listRegistryCredentials handles GET /registry-credentials.
func (s *Server) listRegistryCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := s.registries.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

// createRegistryCredential handles POST /registry-credentials.
func (s *Server) createRegistryCredential(w http.ResponseWriter, r *http.Request) {
	var req createRegistryCredentialRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: err.Error()})
		return
	}
	cred := registry.Credential{
		ID:          uuid.New(),
		Name:        req.Name,
		User:        req.User,
		RegistryURL: req.RegistryURL,
		AccessToken: req.AccessToken,
		CreatedAt:   time.Now(),
	}
	saved, err := s.registries.Create(r.Context(), cred)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// deleteRegistryCredential handles DELETE /registry-credentials/{id}.
func (s *Server) deleteRegistryCredential(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "ValidationFailed", Message: "invalid registry credential id"})
		return
	}
	n, err := s.registries.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if n == 0 {
		writeJSON(w, http.StatusNotFound, errorBody{Reason: "NotFound", Message: "registry credential not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
