package deployment_test

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/kuberos-io/kuberos/internal/deployment"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
)

func TestAdvancePhaseDiscServerReady(t *testing.T) {
	g := NewWithT(t)

	job := deployment.DeploymentJob{
		Phase:      deployment.PhaseDiscServerInProgress,
		DiscServer: &deployment.ModuleRef{PodName: "disc-1"},
		PodStatus: []deployment.PodStatusEntry{
			{Name: "disc-1", Status: k8sexec.PodObservedStatus{Phase: k8sexec.PodRunning}},
		},
	}

	next, changed := deployment.AdvancePhase(job)
	g.Expect(changed).To(BeTrue())
	g.Expect(next).To(Equal(deployment.PhaseDiscServerSuccess))
}

func TestAdvancePhaseDiscServerNotYetReady(t *testing.T) {
	g := NewWithT(t)

	job := deployment.DeploymentJob{
		Phase:      deployment.PhaseDiscServerInProgress,
		DiscServer: &deployment.ModuleRef{PodName: "disc-1"},
		PodStatus: []deployment.PodStatusEntry{
			{Name: "disc-1", Status: k8sexec.PodObservedStatus{Phase: k8sexec.PodPending}},
		},
	}

	_, changed := deployment.AdvancePhase(job)
	g.Expect(changed).To(BeFalse())
}

func TestAdvancePhaseRosmoduleSuccessRequiresAllRunning(t *testing.T) {
	g := NewWithT(t)

	job := deployment.DeploymentJob{
		Phase:          deployment.PhaseRosmoduleInProgress,
		OnboardModules: []deployment.ModuleRef{{PodName: "m1"}, {PodName: "m2"}},
		PodStatus: []deployment.PodStatusEntry{
			{Name: "m1", Status: k8sexec.PodObservedStatus{Phase: k8sexec.PodRunning}},
			{Name: "m2", Status: k8sexec.PodObservedStatus{Phase: k8sexec.PodPending}},
		},
	}
	_, changed := deployment.AdvancePhase(job)
	g.Expect(changed).To(BeFalse())

	job.PodStatus[1].Status.Phase = k8sexec.PodRunning
	next, changed := deployment.AdvancePhase(job)
	g.Expect(changed).To(BeTrue())
	g.Expect(next).To(Equal(deployment.PhaseDeploySuccess))
}

func TestAdvancePhaseRosmoduleFailure(t *testing.T) {
	g := NewWithT(t)

	job := deployment.DeploymentJob{
		Phase:          deployment.PhaseRosmoduleInProgress,
		OnboardModules: []deployment.ModuleRef{{PodName: "m1"}},
		PodStatus: []deployment.PodStatusEntry{
			{Name: "m1", Status: k8sexec.PodObservedStatus{Phase: k8sexec.PodFailed}},
		},
	}
	next, changed := deployment.AdvancePhase(job)
	g.Expect(changed).To(BeTrue())
	g.Expect(next).To(Equal(deployment.PhaseDeployFailed))
}

func TestAdvancePhaseDeleteSuccess(t *testing.T) {
	g := NewWithT(t)

	job := deployment.DeploymentJob{
		Phase: deployment.PhaseDeleteInProgress,
		PodStatus: []deployment.PodStatusEntry{
			{Name: "m1", Status: k8sexec.PodObservedStatus{Phase: k8sexec.PodNotFound}},
			{Name: "m2", Status: k8sexec.PodObservedStatus{Phase: k8sexec.PodNotFound}},
		},
	}
	next, changed := deployment.AdvancePhase(job)
	g.Expect(changed).To(BeTrue())
	g.Expect(next).To(Equal(deployment.PhaseDeleteSuccess))
}

func TestAggregateStatusAllRunning(t *testing.T) {
	g := NewWithT(t)

	status, name, changed := deployment.AggregateStatus("fleet-a",
		[]deployment.Phase{deployment.PhaseDeploySuccess, deployment.PhaseDeploySuccess})
	g.Expect(changed).To(BeTrue())
	g.Expect(status).To(Equal(deployment.StatusRunning))
	g.Expect(name).To(Equal("fleet-a"))
}

func TestAggregateStatusAllDeletedManglesName(t *testing.T) {
	g := NewWithT(t)

	status, name, changed := deployment.AggregateStatus("fleet-a",
		[]deployment.Phase{deployment.PhaseDeleteSuccess, deployment.PhaseDeleteSuccess})
	g.Expect(changed).To(BeTrue())
	g.Expect(status).To(Equal(deployment.StatusDeleted))
	g.Expect(name).To(HavePrefix("fleet-a-deleted-"))
}

func TestAggregateStatusAnyFailure(t *testing.T) {
	g := NewWithT(t)

	status, _, changed := deployment.AggregateStatus("fleet-a",
		[]deployment.Phase{deployment.PhaseDeploySuccess, deployment.PhaseDeployFailed})
	g.Expect(changed).To(BeTrue())
	g.Expect(status).To(Equal(deployment.StatusFailed))
}

func TestAggregateStatusNoChangeWhileInProgress(t *testing.T) {
	g := NewWithT(t)

	_, _, changed := deployment.AggregateStatus("fleet-a",
		[]deployment.Phase{deployment.PhaseDeploySuccess, deployment.PhaseRosmoduleInProgress})
	g.Expect(changed).To(BeFalse())
}

func TestAggregateEventStatusDeploy(t *testing.T) {
	g := NewWithT(t)

	status, done := deployment.AggregateEventStatus(deployment.EventDeploy,
		[]deployment.Phase{deployment.PhaseDeploySuccess, deployment.PhaseDeploySuccess})
	g.Expect(done).To(BeTrue())
	g.Expect(status).To(Equal(deployment.EventStatusSuccess))
}

func TestAggregateEventStatusFailureShortCircuits(t *testing.T) {
	g := NewWithT(t)

	status, done := deployment.AggregateEventStatus(deployment.EventDeploy,
		[]deployment.Phase{deployment.PhaseDeploySuccess, deployment.PhaseDiscServerFailed})
	g.Expect(done).To(BeTrue())
	g.Expect(status).To(Equal(deployment.EventStatusFailed))
}

func TestPhaseValidity(t *testing.T) {
	g := NewWithT(t)

	g.Expect(deployment.Phase("disc_server_in_progress").IsValid()).To(BeTrue())
	g.Expect(deployment.Phase("bogus").IsValid()).To(BeFalse())
	g.Expect(deployment.PhaseDeploySuccess.IsTerminal()).To(BeTrue())
	g.Expect(deployment.PhasePending.IsTerminal()).To(BeFalse())
}
