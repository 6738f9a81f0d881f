// Package api exposes the HTTP control plane: cluster/fleet registration, deployment and
// batch job deployment lifecycle endpoints, and registry credential management, routed over
// the standard library's net/http.ServeMux and validated against an embedded OpenAPI
// document with kin-openapi/oapi-codegen-nethttp-middleware, the same stack the teacher's
// resource server validates its generated handlers with.
package api

import (
	"encoding/json"
	"net/http"
)

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing left to do but note it happened.
		_ = err
	}
}

// decodeJSON reads and decodes the request body into v, rejecting unknown fields so typos in
// a client's payload surface as a 400 instead of being silently ignored.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type errorBody struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}
