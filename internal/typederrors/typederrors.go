// Package typederrors defines the stable reason-code error taxonomy of spec.md §7.
//
// Each reason is its own type embedding GenericError, constructed with a NewXxxError
// function and discovered with errors.As - not a bare string or an exception hierarchy, so
// callers can carry a wrapped cause while still switching on a concrete Go type.
package typederrors

import (
	"errors"
	"fmt"
)

// GenericError is embedded by every reason-specific error type below.
type GenericError struct {
	Message string
	Err     error
}

func (e GenericError) Error() string {
	return e.Message
}

func (e GenericError) Unwrap() error {
	return e.Err
}

// Reason is one of the stable reason codes from spec.md §7.
type Reason string

const (
	ReasonInvalidDeploymentManifest Reason = "InvalidDeploymentManifest"
	ReasonDeploymentAlreadyExists   Reason = "DeploymentAlreadyExists"
	ReasonDeploymentDoesNotExist    Reason = "DeploymentDoesNotExist"
	ReasonFleetDoesNotExist         Reason = "FleetDoesNotExist"
	ReasonFleetAlreadyExists        Reason = "FleetAlreadyExists"
	ReasonFleetInUse                Reason = "FleetInUse"
	ReasonFleetResourceCheckFailed  Reason = "FleetResourceCheckFailed"
	ReasonClusterNotReachable       Reason = "ClusterNotReachable"
	ReasonClusterAlreadyRegistered  Reason = "ClusterAlreadyRegistered"
	ReasonClusterDoesNotExist       Reason = "ClusterDoesNotExist"
	ReasonClusterInUse              Reason = "ClusterInUse"
	ReasonClusterNodeNotAvailable   Reason = "ClusterNodeNotAvailable"
	ReasonValidationFailed          Reason = "ValidationFailed"
	ReasonFailedToCreateConfigMap   Reason = "FailedToCreateConfigMap"
	ReasonFailedToDeleteConfigMap   Reason = "FailedToDeleteConfigMap"
	ReasonFailedToCreatePod         Reason = "FailedToCreatePod"
	ReasonFailedToDeletePod         Reason = "FailedToDeletePod"
	ReasonFailedToCreateDDSServer   Reason = "FailedToCreateDDSServer"
	ReasonBatchJobDeploymentNotExist Reason = "BatchJobDeploymentNotExist"
	ReasonBatchJobNotRunning        Reason = "BatchJobNotRunning"
	ReasonBatchJobNotInStoppedStatus Reason = "BatchJobNotInStoppedStatus"
	ReasonInvalidCommand            Reason = "InvalidCommand"
	ReasonRegistryTokenDoesNotExist Reason = "RegistryTokenDoesNotExist"
)

// ReasonedError is any error constructed by this package; Reason() returns its stable code.
type ReasonedError interface {
	error
	Reason() Reason
}

// taxonomyError is the single concrete type behind every NewXxxError constructor below; the
// constructors exist so call sites read as a small, fixed vocabulary (NewFleetInUseError(...))
// rather than a free-form reason string that could typo silently.
type taxonomyError struct {
	GenericError
	reason Reason
}

func (e taxonomyError) Reason() Reason {
	return e.reason
}

func newError(reason Reason, err error, format string, args ...any) error {
	return taxonomyError{
		GenericError: GenericError{Message: fmt.Sprintf(format, args...), Err: err},
		reason:       reason,
	}
}

func NewInvalidDeploymentManifestError(err error, format string, args ...any) error {
	return newError(ReasonInvalidDeploymentManifest, err, format, args...)
}

func NewDeploymentAlreadyExistsError(format string, args ...any) error {
	return newError(ReasonDeploymentAlreadyExists, nil, format, args...)
}

func NewDeploymentDoesNotExistError(format string, args ...any) error {
	return newError(ReasonDeploymentDoesNotExist, nil, format, args...)
}

func NewFleetDoesNotExistError(format string, args ...any) error {
	return newError(ReasonFleetDoesNotExist, nil, format, args...)
}

func NewFleetAlreadyExistsError(format string, args ...any) error {
	return newError(ReasonFleetAlreadyExists, nil, format, args...)
}

func NewFleetInUseError(format string, args ...any) error {
	return newError(ReasonFleetInUse, nil, format, args...)
}

func NewFleetResourceCheckFailedError(format string, args ...any) error {
	return newError(ReasonFleetResourceCheckFailed, nil, format, args...)
}

func NewClusterNotReachableError(err error, format string, args ...any) error {
	return newError(ReasonClusterNotReachable, err, format, args...)
}

func NewClusterAlreadyRegisteredError(format string, args ...any) error {
	return newError(ReasonClusterAlreadyRegistered, nil, format, args...)
}

func NewClusterDoesNotExistError(format string, args ...any) error {
	return newError(ReasonClusterDoesNotExist, nil, format, args...)
}

func NewClusterInUseError(format string, args ...any) error {
	return newError(ReasonClusterInUse, nil, format, args...)
}

func NewClusterNodeNotAvailableError(format string, args ...any) error {
	return newError(ReasonClusterNodeNotAvailable, nil, format, args...)
}

func NewValidationFailedError(err error, format string, args ...any) error {
	return newError(ReasonValidationFailed, err, format, args...)
}

func NewFailedToCreateConfigMapError(err error, format string, args ...any) error {
	return newError(ReasonFailedToCreateConfigMap, err, format, args...)
}

func NewFailedToDeleteConfigMapError(err error, format string, args ...any) error {
	return newError(ReasonFailedToDeleteConfigMap, err, format, args...)
}

func NewFailedToCreatePodError(err error, format string, args ...any) error {
	return newError(ReasonFailedToCreatePod, err, format, args...)
}

func NewFailedToDeletePodError(err error, format string, args ...any) error {
	return newError(ReasonFailedToDeletePod, err, format, args...)
}

func NewFailedToCreateDDSServerError(err error, format string, args ...any) error {
	return newError(ReasonFailedToCreateDDSServer, err, format, args...)
}

func NewBatchJobDeploymentNotExistError(format string, args ...any) error {
	return newError(ReasonBatchJobDeploymentNotExist, nil, format, args...)
}

func NewBatchJobNotRunningError(format string, args ...any) error {
	return newError(ReasonBatchJobNotRunning, nil, format, args...)
}

func NewBatchJobNotInStoppedStatusError(format string, args ...any) error {
	return newError(ReasonBatchJobNotInStoppedStatus, nil, format, args...)
}

func NewInvalidCommandError(format string, args ...any) error {
	return newError(ReasonInvalidCommand, nil, format, args...)
}

func NewRegistryTokenDoesNotExistError(format string, args ...any) error {
	return newError(ReasonRegistryTokenDoesNotExist, nil, format, args...)
}

// ReasonOf extracts the stable reason code from an error produced by this package, or ""
// if the error wasn't.
func ReasonOf(err error) Reason {
	var re ReasonedError
	if errors.As(err, &re) {
		return re.Reason()
	}
	return ""
}
