package deployment

import (
	"math/rand"

	"github.com/kuberos-io/kuberos/internal/k8sexec"
)

const deletedNameSuffixLength = 5

var suffixLetters = []rune("abcdefghijklmnopqrstuvwxyz")

// randomSuffix mirrors the original's random_string(length): a lowercase slug appended to a
// deleted Deployment's name to free the unique-active-name constraint.
func randomSuffix(n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = suffixLetters[rand.Intn(len(suffixLetters))]
	}
	return string(out)
}

// AdvancePhase applies one reconcile step to a job's phase given its freshly observed pod and
// service status, following spec.md §4.5's four data-driven transition rules. It returns the
// next phase and whether anything changed; callers persist the job only when changed is true.
func AdvancePhase(job DeploymentJob) (next Phase, changed bool) {
	switch job.Phase {
	case PhaseDiscServerInProgress:
		if discServerReady(job) {
			return PhaseDiscServerSuccess, true
		}
		return job.Phase, false

	case PhaseRosmoduleInProgress:
		if anyModulePodFailed(job) {
			return PhaseDeployFailed, true
		}
		if allModulePodsRunning(job) {
			return PhaseDeploySuccess, true
		}
		return job.Phase, false

	case PhaseDeleteInProgress:
		if allPodsNotFound(job) {
			return PhaseDeleteSuccess, true
		}
		return job.Phase, false

	default:
		return job.Phase, false
	}
}

func discServerReady(job DeploymentJob) bool {
	if job.DiscServer == nil {
		return false
	}
	for _, p := range job.PodStatus {
		if p.Name != job.DiscServer.PodName {
			continue
		}
		return p.Status.Phase == k8sexec.PodRunning || p.Status.Phase == k8sexec.PodSucceeded
	}
	return false
}

func modulePodNames(job DeploymentJob) map[string]struct{} {
	names := make(map[string]struct{})
	for _, refs := range [][]ModuleRef{job.OnboardModules, job.EdgeModules, job.CloudModules} {
		for _, ref := range refs {
			names[ref.PodName] = struct{}{}
		}
	}
	return names
}

func allModulePodsRunning(job DeploymentJob) bool {
	names := modulePodNames(job)
	if len(names) == 0 {
		return false
	}
	seen := make(map[string]bool, len(names))
	for _, p := range job.PodStatus {
		if _, ok := names[p.Name]; !ok {
			continue
		}
		seen[p.Name] = p.Status.Phase == k8sexec.PodRunning
	}
	if len(seen) != len(names) {
		return false
	}
	for _, running := range seen {
		if !running {
			return false
		}
	}
	return true
}

func anyModulePodFailed(job DeploymentJob) bool {
	names := modulePodNames(job)
	for _, p := range job.PodStatus {
		if _, ok := names[p.Name]; !ok {
			continue
		}
		if p.Status.Phase == k8sexec.PodFailed {
			return true
		}
	}
	return false
}

func allPodsNotFound(job DeploymentJob) bool {
	if len(job.PodStatus) == 0 {
		return true
	}
	for _, p := range job.PodStatus {
		if p.Status.Phase != k8sexec.PodNotFound {
			return false
		}
	}
	return true
}

// AggregateStatus computes a Deployment's status and the new name to persist (with the
// delete-suffix mangling applied, if any) from the phases of its current jobs. Following
// update_entire_deployment_status: all deploy_success -> running, all delete_success ->
// deleted (name mangled), any failure phase -> failed, otherwise no change.
func AggregateStatus(currentName string, jobPhases []Phase) (status Status, name string, changed bool) {
	if len(jobPhases) == 0 {
		return "", currentName, false
	}

	allDeleteSuccess := true
	allDeploySuccess := true
	anyFailure := false
	for _, phase := range jobPhases {
		if phase != PhaseDeleteSuccess {
			allDeleteSuccess = false
		}
		if phase != PhaseDeploySuccess {
			allDeploySuccess = false
		}
		if phase.IsFailure() {
			anyFailure = true
		}
	}

	switch {
	case allDeleteSuccess:
		return StatusDeleted, currentName + "-deleted-" + randomSuffix(deletedNameSuffixLength), true
	case allDeploySuccess:
		return StatusRunning, currentName, true
	case anyFailure:
		return StatusFailed, currentName, true
	default:
		return "", currentName, false
	}
}

// AggregateEventStatus computes a DeploymentEvent's terminal status from its job phases,
// scoped to the event's own type - following update_dep_event_status: a DEPLOY event
// completes when every job reaches deploy_success, a DELETE event when every job reaches
// delete_success, and either completes as FAILED the moment any job reports a failure phase.
func AggregateEventStatus(eventType EventType, jobPhases []Phase) (status EventStatus, done bool) {
	if len(jobPhases) == 0 {
		return "", false
	}

	for _, phase := range jobPhases {
		if phase.IsFailure() {
			return EventStatusFailed, true
		}
	}

	target := PhaseDeploySuccess
	if eventType == EventDelete {
		target = PhaseDeleteSuccess
	}
	for _, phase := range jobPhases {
		if phase != target {
			return "", false
		}
	}
	return EventStatusSuccess, true
}
