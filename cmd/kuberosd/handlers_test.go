package main

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	. "github.com/onsi/gomega"

	"github.com/kuberos-io/kuberos/internal/batchjob"
)

func TestPendingJobsFiltersToPendingOnly(t *testing.T) {
	g := NewWithT(t)

	jobs := []batchjob.KuberosJob{
		{ID: uuid.New(), Status: batchjob.JobPending},
		{ID: uuid.New(), Status: batchjob.JobScheduled},
		{ID: uuid.New(), Status: batchjob.JobRunning},
		{ID: uuid.New(), Status: batchjob.JobPending},
		{ID: uuid.New(), Status: batchjob.JobCompleted},
	}

	pending := pendingJobs(jobs)

	g.Expect(pending).To(HaveLen(2))
	for _, j := range pending {
		g.Expect(j.Status).To(Equal(batchjob.JobPending))
	}
}

func TestPendingJobsEmptyInputReturnsEmptySlice(t *testing.T) {
	g := NewWithT(t)

	pending := pendingJobs(nil)

	g.Expect(pending).To(BeEmpty())
	g.Expect(pending).NotTo(BeNil())
}

func TestCountJobsByStatusTalliesAcrossCalls(t *testing.T) {
	g := NewWithT(t)

	counts := make(map[string]int)
	countJobsByStatus([]batchjob.KuberosJob{
		{Status: batchjob.JobRunning},
		{Status: batchjob.JobRunning},
		{Status: batchjob.JobFailed},
	}, counts)
	countJobsByStatus([]batchjob.KuberosJob{
		{Status: batchjob.JobRunning},
		{Status: batchjob.JobCompleted},
	}, counts)

	g.Expect(counts).To(HaveKeyWithValue(string(batchjob.JobRunning), 3))
	g.Expect(counts).To(HaveKeyWithValue(string(batchjob.JobFailed), 1))
	g.Expect(counts).To(HaveKeyWithValue(string(batchjob.JobCompleted), 1))
}

func TestClusterSyncPayloadRoundTrips(t *testing.T) {
	g := NewWithT(t)

	id := uuid.New()
	payload := clusterSyncPayload{ClusterID: id}

	encoded, err := json.Marshal(payload)
	g.Expect(err).NotTo(HaveOccurred())

	var decoded clusterSyncPayload
	g.Expect(json.Unmarshal(encoded, &decoded)).To(Succeed())
	g.Expect(decoded.ClusterID).To(Equal(id))
}
