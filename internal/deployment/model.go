// Package deployment holds the Deployment/DeploymentEvent/DeploymentJob aggregate and the
// per-robot phase state machine driving it (spec.md §4.5), grounded on the original's
// main.models.deployments (Deployment, DeploymentEvent, DeploymentJob).
package deployment

import (
	"time"

	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/k8sexec"
)

// Status is a Deployment's aggregate lifecycle state.
type Status string

const (
	StatusDeploying Status = "deploying"
	StatusRunning   Status = "running"
	StatusUpdating  Status = "updating"
	StatusDeleting  Status = "deleting"
	StatusDeleted   Status = "deleted"
	StatusFailed    Status = "failed"
)

// Phase is one of the 17 explicit DeploymentJob states (spec.md §4.5), kept in the order the
// original's JOB_PHASE_CHOICES declares them - "don't change the keys" carried over as a
// comment there, so the ordering (and therefore any index-based comparisons) stays stable
// here too.
type Phase string

const (
	PhasePending Phase = "pending"

	PhaseDiscServerInProgress Phase = "disc_server_in_progress"
	PhaseDiscServerFailed     Phase = "disc_server_failed"
	PhaseDiscServerSuccess    Phase = "disc_server_success"

	PhaseDaemonInProgress Phase = "daemon_in_progress"
	PhaseDaemonFailed     Phase = "daemon_failed"
	PhaseDaemonSuccess    Phase = "daemon_success"

	PhaseRosmoduleInProgress Phase = "rosmodule_in_progress"
	PhaseRosmoduleFailed     Phase = "rosmodule_failed"
	PhaseRosmoduleSuccess    Phase = "rosmodule_success"

	PhaseDeploySuccess Phase = "deploy_success"
	PhaseDeployFailed  Phase = "deploy_failed"
	PhaseJobCompleted  Phase = "job_completed"

	PhaseRequestForDelete Phase = "request_for_delete"
	PhaseDeleteInProgress Phase = "delete_in_progress"
	PhaseDeleteFailed     Phase = "delete_failed"
	PhaseDeleteSuccess    Phase = "delete_success"
)

// allPhases is used by IsValid; declared once to avoid rebuilding the set on every call.
var allPhases = map[Phase]struct{}{
	PhasePending:              {},
	PhaseDiscServerInProgress: {},
	PhaseDiscServerFailed:     {},
	PhaseDiscServerSuccess:    {},
	PhaseDaemonInProgress:     {},
	PhaseDaemonFailed:         {},
	PhaseDaemonSuccess:        {},
	PhaseRosmoduleInProgress:  {},
	PhaseRosmoduleFailed:      {},
	PhaseRosmoduleSuccess:     {},
	PhaseDeploySuccess:        {},
	PhaseDeployFailed:         {},
	PhaseJobCompleted:         {},
	PhaseRequestForDelete:     {},
	PhaseDeleteInProgress:     {},
	PhaseDeleteFailed:         {},
	PhaseDeleteSuccess:        {},
}

func (p Phase) IsValid() bool {
	_, ok := allPhases[p]
	return ok
}

// terminalPhases mirrors the subset spec.md §4.5 names terminal: no reconcile advances a job
// out of one of these.
var terminalPhases = map[Phase]struct{}{
	PhaseDeploySuccess: {},
	PhaseDeployFailed:  {},
	PhaseDeleteSuccess: {},
	PhaseDeleteFailed:  {},
	PhaseJobCompleted:  {},
}

func (p Phase) IsTerminal() bool {
	_, ok := terminalPhases[p]
	return ok
}

// failurePhases is the set update_entire_deployment_status/update_dep_event_status check to
// fail the parent Deployment/DeploymentEvent.
var failurePhases = map[Phase]struct{}{
	PhaseDiscServerFailed: {},
	PhaseDaemonFailed:     {},
	PhaseRosmoduleFailed:  {},
	PhaseDeployFailed:     {},
	PhaseDeleteFailed:     {},
}

func (p Phase) IsFailure() bool {
	_, ok := failurePhases[p]
	return ok
}

// EventType is one of the deployment lifecycle operations a DeploymentEvent records.
type EventType string

const (
	EventDeploy EventType = "DEPLOY"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	EventScale  EventType = "SCALE"
)

// EventStatus tracks a DeploymentEvent's own completion, independent of the jobs it spawned.
type EventStatus string

const (
	EventStatusCreated EventStatus = "CREATED"
	EventStatusFailed  EventStatus = "FAILED"
	EventStatusSuccess EventStatus = "SUCCESS"
)

// Deployment is one robot-fleet application rollout: spec.md §3's Deployment entity.
type Deployment struct {
	ID                  uuid.UUID  `db:"id"`
	Name                string     `db:"name"`
	FleetID             uuid.UUID  `db:"fleet_id"`
	Status              Status     `db:"status"`
	Active              bool       `db:"active"`
	RunningAt           *time.Time `db:"running_at"`
	Description         string     `db:"description"`
	ConfigMapNames      []string   `db:"config_map_names"`
	ConfigMapsCreated   bool       `db:"config_maps_created"`
	CreatedAt           time.Time  `db:"created_at"`
}

func (Deployment) TableName() string  { return "deployments" }
func (Deployment) PrimaryKey() string { return "id" }

// DeploymentEvent records one lifecycle operation (deploy/update/delete/scale) applied to a
// Deployment; spec.md §3.
type DeploymentEvent struct {
	ID           uuid.UUID   `db:"id"`
	DeploymentID uuid.UUID   `db:"deployment_id"`
	EventType    EventType   `db:"event_type"`
	EventStatus  EventStatus `db:"event_status"`
	CreatedAt    time.Time   `db:"created_at"`
	FinishedAt   *time.Time  `db:"finished_at"`
}

func (DeploymentEvent) TableName() string  { return "deployment_events" }
func (DeploymentEvent) PrimaryKey() string { return "id" }

// DeploymentJob is the per-robot state machine: spec.md §3's DeploymentJob entity.
type DeploymentJob struct {
	ID              uuid.UUID                      `db:"id"`
	DeploymentID    uuid.UUID                       `db:"deployment_id"`
	RobotName       string                          `db:"robot_name"`
	Phase           Phase                           `db:"phase"`
	DiscServer      *ModuleRef                      `db:"disc_server"`
	OnboardModules  []ModuleRef                     `db:"onboard_modules"`
	EdgeModules     []ModuleRef                     `db:"edge_modules"`
	CloudModules    []ModuleRef                     `db:"cloud_modules"`
	ConfigMapNames  []string         `db:"config_map_names"`
	PodStatus       []PodStatusEntry `db:"pod_status"`
	ServiceStatus   []SvcStatusEntry `db:"service_status"`
	// PendingOnboardPods and PendingEdgePods hold the module pod specs StartDeployment
	// computed but hasn't created yet; ReconcileJob consumes and clears them once the disc
	// server succeeds and the pods are actually created, since a reconcile tick is a fresh
	// task pop with no in-memory link back to the scheduler's Plan.
	PendingOnboardPods []k8sexec.PodSpec `db:"pending_onboard_pods"`
	PendingEdgePods    []k8sexec.PodSpec `db:"pending_edge_pods"`
	RunningAt          *time.Time        `db:"running_at"`
}

func (DeploymentJob) TableName() string  { return "deployment_jobs" }
func (DeploymentJob) PrimaryKey() string { return "id" }

// ModuleRef names one materialised pod/service pair within a job: the module name, the pod
// name, the service name if one was created, and their namespace.
type ModuleRef struct {
	ModuleName  string `json:"moduleName"`
	PodName     string `json:"podName"`
	ServiceName string `json:"serviceName,omitempty"`
	Namespace   string `json:"namespace"`
}

// PodStatusEntry names the pod a PodObservedStatus was read for, since the executor's view is
// unnamed by itself - reconcile needs to know which job pod each entry belongs to.
type PodStatusEntry struct {
	Name      string                   `json:"name"`
	Namespace string                   `json:"namespace"`
	Status    k8sexec.PodObservedStatus `json:"status"`
}

// SvcStatusEntry is PodStatusEntry's counterpart for services.
type SvcStatusEntry struct {
	Name      string                        `json:"name"`
	Namespace string                        `json:"namespace"`
	Status    k8sexec.ServiceObservedStatus `json:"status"`
}
