// Package k8sexec is the narrow, uniform wrapper over a single Kubernetes cluster's API
// described in spec.md §4.2: create/read/delete of namespace, pod, service, config map,
// secret; node listing with readiness and metrics; label patching; file-into-pod writes.
//
// Every operation returns a Result, a tagged success/rejected/failed value carrying a
// structured error, modelled directly on the original implementation's ExecutionResponse
// (_examples/original_source/kuberos/pykuberos/kuberos_executer.py): {status, data, errors,
// msgs}.
package k8sexec

import (
	"errors"
	"net"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Status is the outcome tag of a Result.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Error is a structured error: a stable reason code, a short user-facing message, and an
// optional verbose detail (e.g. the raw API response body).
type Error struct {
	Reason     string `json:"reason"`
	Msg        string `json:"msg"`
	MsgVerbose string `json:"msg_verbose,omitempty"`
}

// Result is the tagged outcome of one executor operation.
type Result[T any] struct {
	Status Status  `json:"status"`
	Data   T       `json:"data"`
	Errors []Error `json:"errors"`
	Msgs   []string `json:"msgs,omitempty"`
}

// Ok wraps a successful result.
func Ok[T any](data T) Result[T] {
	return Result[T]{Status: StatusSuccess, Data: data}
}

// Rejected wraps a synchronous validation failure - the caller's request was well-formed
// but cannot be honoured (e.g. deleting a namespace that doesn't belong to this system).
func Rejected[T any](reason, msg string) Result[T] {
	return Result[T]{Status: StatusRejected, Errors: []Error{{Reason: reason, Msg: msg}}}
}

// Failed wraps a cluster-communication or API failure, normalised per spec.md §4.2.
func Failed[T any](err error) Result[T] {
	reason, msg := normalizeError(err)
	return Result[T]{
		Status: StatusFailed,
		Errors: []Error{{Reason: reason, Msg: msg, MsgVerbose: err.Error()}},
	}
}

// IsNotFound reports whether err is the API server's "not found" error.
func IsNotFound(err error) bool {
	return apierrors.IsNotFound(err)
}

// normalizeError maps a raw client-go/API error onto the reason/message pairs spec.md §4.2
// requires: "Unauthorized" becomes a token-expiry message, connection errors become a
// reachability message, and everything else falls back to the API server's own reason and
// message.
func normalizeError(err error) (reason, msg string) {
	var statusErr *apierrors.StatusError
	if errors.As(err, &statusErr) {
		status := statusErr.ErrStatus
		if apierrors.IsUnauthorized(err) {
			return "Unauthorized", "cluster service account token is invalid or expired"
		}
		return string(status.Reason), status.Message
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return "ClusterNotReachable", "cluster is not reachable"
	}

	return "Unknown", err.Error()
}
