package batchjob_test

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/kuberos-io/kuberos/internal/batchjob"
)

func TestStatisticsCounts(t *testing.T) {
	g := NewWithT(t)

	jobs := []batchjob.KuberosJob{
		{Status: batchjob.JobCompleted, SuccessCompleted: true},
		{Status: batchjob.JobCompleted, SuccessCompleted: false},
		{Status: batchjob.JobPending},
		{Status: batchjob.JobRunning},
	}

	stats := batchjob.Statistics("q0", jobs)
	g.Expect(stats.Completed).To(Equal(2))
	g.Expect(stats.Failed).To(Equal(1))
	g.Expect(stats.Pending).To(Equal(1))
	g.Expect(stats.Processing).To(Equal(1))
	g.Expect(stats.IsFinished()).To(BeFalse())
}

func TestPendingAndInFlightCount(t *testing.T) {
	g := NewWithT(t)

	jobs := []batchjob.KuberosJob{
		{Status: batchjob.JobPending},
		{Status: batchjob.JobDeploying},
		{Status: batchjob.JobCompleted},
		{Status: batchjob.JobFailed},
	}

	g.Expect(batchjob.PendingCount(jobs)).To(Equal(1))
	g.Expect(batchjob.InFlightCount(jobs)).To(Equal(1))
}

func TestWaitingForFinishingTimedOut(t *testing.T) {
	g := NewWithT(t)

	done := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := done.Add(10 * time.Minute)

	g.Expect(batchjob.WaitingForFinishingTimedOut(done, now, 60, 180)).To(BeTrue())
	g.Expect(batchjob.WaitingForFinishingTimedOut(done, done.Add(time.Minute), 60, 180)).To(BeFalse())
}

func TestJobStatusTerminalAndInFlight(t *testing.T) {
	g := NewWithT(t)

	g.Expect(batchjob.JobCompleted.IsTerminal()).To(BeTrue())
	g.Expect(batchjob.JobPending.InFlight()).To(BeFalse())
	g.Expect(batchjob.JobDeploying.InFlight()).To(BeTrue())
}
