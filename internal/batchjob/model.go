// Package batchjob holds the BatchJobDeployment/BatchJobGroup/KuberosJob aggregate driving
// spec.md §4.6's batch-job controller, grounded on the original's main.models.batchjobs
// (BatchJobDeployment, BatchJobGroup, KuberosJob).
package batchjob

import (
	"time"

	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/deployment"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
)

// Status is a BatchJobDeployment's workflow state (spec.md §3/§4.6).
type Status string

const (
	StatusPending              Status = "pending"
	StatusExecuting            Status = "executing"
	StatusWaitingForFinishing  Status = "waiting-for-finishing"
	StatusStopped              Status = "stopped"
	StatusFinished             Status = "finished"
	StatusCleaning             Status = "cleaning"
	StatusCompleted            Status = "completed"
	StatusFailed               Status = "failed"
)

var allStatuses = map[Status]struct{}{
	StatusPending: {}, StatusExecuting: {}, StatusWaitingForFinishing: {}, StatusStopped: {},
	StatusFinished: {}, StatusCleaning: {}, StatusCompleted: {}, StatusFailed: {},
}

func (s Status) IsValid() bool { _, ok := allStatuses[s]; return ok }

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobStatus is one of the 10 explicit KuberosJob states, kept in the original's declaration
// order (StatusChoices on main.models.batchjobs.KuberosJob).
type JobStatus string

const (
	JobPending     JobStatus = "PENDING"
	JobScheduled   JobStatus = "SCHEDULED"
	JobPreparing   JobStatus = "PREPARING"
	JobPrepared    JobStatus = "PREPARED"
	JobDeploying   JobStatus = "DEPLOYING"
	JobRunning     JobStatus = "RUNNING"
	JobFinished    JobStatus = "FINISHED"
	JobTerminating JobStatus = "TERMINATING"
	JobCompleted   JobStatus = "COMPLETED"
	JobFailed      JobStatus = "FAILED"
)

var allJobStatuses = map[JobStatus]struct{}{
	JobPending: {}, JobScheduled: {}, JobPreparing: {}, JobPrepared: {}, JobDeploying: {},
	JobRunning: {}, JobFinished: {}, JobTerminating: {}, JobCompleted: {}, JobFailed: {},
}

func (s JobStatus) IsValid() bool { _, ok := allJobStatuses[s]; return ok }

func (s JobStatus) IsTerminal() bool { return s == JobCompleted || s == JobFailed }

func (s JobStatus) InFlight() bool {
	switch s {
	case JobPending, JobCompleted, JobFailed:
		return false
	default:
		return true
	}
}

// VolumeSpec is the per-job volume attachment: a localhost hostPath or NFS mount, with an
// optional subPath derived from the group/job slug (spec.md §4.4).
type VolumeSpec struct {
	Name      string `json:"name"`
	Type      string `json:"type"` // "hostPath" | "nfs"
	MountPath string `json:"mountPath"`
	HostPath  string `json:"hostPath,omitempty"`
	SubPath   string `json:"subPath,omitempty"`
	NFSServer string `json:"nfsServer,omitempty"`
	Username  string `json:"username,omitempty"`
}

// BatchJobDeployment is the parent record for one batch evaluation run (spec.md §3).
type BatchJobDeployment struct {
	ID                uuid.UUID  `db:"id"`
	Name              string     `db:"name"`
	Subname           string     `db:"subname"`
	Active            bool       `db:"active"`
	Status            Status     `db:"status"`
	JobSpecJSON       []byte     `db:"job_spec"`
	VolumeSpecJSON    []byte     `db:"volume_spec"`
	ExecClusterIDs    []uuid.UUID `db:"exec_cluster_ids"`
	StartupTimeoutSec int        `db:"startup_timeout_sec"`
	RunningTimeoutSec int        `db:"running_timeout_sec"`
	StartedAt         *time.Time `db:"started_at"`
	CompletedAt       *time.Time `db:"completed_at"`
	SchedulingDoneAt  *time.Time `db:"scheduling_done_at"`
	Description       string     `db:"description"`
	CreatedAt         time.Time  `db:"created_at"`
}

func (BatchJobDeployment) TableName() string  { return "batch_job_deployments" }
func (BatchJobDeployment) PrimaryKey() string { return "id" }

// BatchJobGroup is one exec-cluster's slice of a batch deployment's Cartesian job set
// (spec.md §4.4): its own ConfigMaps, repeat count, and lifecycle module name.
type BatchJobGroup struct {
	ID                   uuid.UUID `db:"id"`
	DeploymentID         uuid.UUID `db:"deployment_id"`
	ExecClusterID        uuid.UUID `db:"exec_cluster_id"`
	GroupPostfix         string    `db:"group_postfix"`
	QueueNumber          int       `db:"queue_number"`
	ConfigMapNames       []string  `db:"config_map_names"`
	RepeatNum            int       `db:"repeat_num"`
	LifecycleModuleName  string    `db:"lifecycle_module_name"`
	// RenderedManifestJSON holds the group's post-substitution manifest (encoding/json of
	// manifest.Manifest), so placement can rebuild each job's pod specs without re-running
	// expansion.
	RenderedManifestJSON []byte    `db:"rendered_manifest"`
}

func (BatchJobGroup) TableName() string  { return "batch_job_groups" }
func (BatchJobGroup) PrimaryKey() string { return "id" }

// KuberosJob is a single scheduled evaluation run within a group (spec.md §3): one
// combination of varying parameters, repeated repeatNum times with its own slug.
type KuberosJob struct {
	ID                 uuid.UUID                  `db:"id"`
	GroupID             uuid.UUID                  `db:"group_id"`
	Slug                string                      `db:"slug"`
	Status              JobStatus                   `db:"status"`
	RunningTimeoutSec   int                          `db:"running_timeout_sec"`
	StartupTimeoutSec   int                          `db:"startup_timeout_sec"`
	DiscServer          *deployment.ModuleRef        `db:"disc_server"`
	ScheduledModules    []deployment.ModuleRef       `db:"scheduled_modules"`
	PodStatus           []deployment.PodStatusEntry  `db:"pod_status"`
	ServiceStatus       []deployment.SvcStatusEntry  `db:"service_status"`
	NodeHostname        string                       `db:"node_hostname"`
	Volume              VolumeSpec                   `db:"volume"`
	ModulePods          []k8sexec.PodSpec            `db:"module_pods"`
	LastCheckAt         time.Time                    `db:"last_check_at"`
	ScheduledAt         *time.Time                   `db:"scheduled_at"`
	RunningAt           *time.Time                   `db:"running_at"`
	SuccessCompleted    bool                         `db:"success_completed"`
}

func (KuberosJob) TableName() string  { return "batch_kuberos_jobs" }
func (KuberosJob) PrimaryKey() string { return "id" }
