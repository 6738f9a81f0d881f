package api

import (
	"errors"
	"net/http"

	"github.com/kuberos-io/kuberos/internal/db"
	"github.com/kuberos-io/kuberos/internal/typederrors"
)

// reasonStatus maps each stable reason code to the HTTP status a client should see for it.
// Reasons not listed here (and plain errors with no typederrors.ReasonedError in their chain)
// fall back to 500.
var reasonStatus = map[typederrors.Reason]int{
	typederrors.ReasonInvalidDeploymentManifest:   http.StatusBadRequest,
	typederrors.ReasonDeploymentAlreadyExists:     http.StatusConflict,
	typederrors.ReasonDeploymentDoesNotExist:      http.StatusNotFound,
	typederrors.ReasonFleetDoesNotExist:           http.StatusNotFound,
	typederrors.ReasonFleetAlreadyExists:          http.StatusConflict,
	typederrors.ReasonFleetInUse:                  http.StatusConflict,
	typederrors.ReasonFleetResourceCheckFailed:    http.StatusUnprocessableEntity,
	typederrors.ReasonClusterNotReachable:         http.StatusBadGateway,
	typederrors.ReasonClusterAlreadyRegistered:    http.StatusConflict,
	typederrors.ReasonClusterDoesNotExist:         http.StatusNotFound,
	typederrors.ReasonClusterInUse:                http.StatusConflict,
	typederrors.ReasonClusterNodeNotAvailable:     http.StatusUnprocessableEntity,
	typederrors.ReasonValidationFailed:            http.StatusBadRequest,
	typederrors.ReasonFailedToCreateConfigMap:     http.StatusBadGateway,
	typederrors.ReasonFailedToDeleteConfigMap:     http.StatusBadGateway,
	typederrors.ReasonFailedToCreatePod:           http.StatusBadGateway,
	typederrors.ReasonFailedToDeletePod:           http.StatusBadGateway,
	typederrors.ReasonFailedToCreateDDSServer:     http.StatusBadGateway,
	typederrors.ReasonBatchJobDeploymentNotExist:  http.StatusNotFound,
	typederrors.ReasonBatchJobNotRunning:          http.StatusConflict,
	typederrors.ReasonBatchJobNotInStoppedStatus:  http.StatusConflict,
	typederrors.ReasonInvalidCommand:              http.StatusConflict,
	typederrors.ReasonRegistryTokenDoesNotExist:   http.StatusNotFound,
}

// writeError renders err as a JSON error body, picking the status code from its
// typederrors.Reason when it carries one, db.ErrNotFound when that's the cause, or 500
// otherwise.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Reason: "NotFound", Message: err.Error()})
		return
	}

	reason := typederrors.ReasonOf(err)
	status, ok := reasonStatus[reason]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := errorBody{Reason: string(reason), Message: err.Error()}
	if reason == "" {
		body.Reason = "InternalError"
	}
	writeJSON(w, status, body)
}
