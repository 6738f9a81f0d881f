package clustersync_test

import (
	"errors"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/kuberos-io/kuberos/internal/clustersync"
)

func TestBreakerManagerTripsAfterThreeConsecutiveFailures(t *testing.T) {
	g := NewWithT(t)

	var transitions []bool
	mgr := clustersync.NewBreakerManager(func(clusterID string, open bool) {
		transitions = append(transitions, open)
	})

	failing := func() (*clustersync.ClusterSnapshot, error) {
		return nil, errors.New("cluster unreachable")
	}

	for i := 0; i < 3; i++ {
		_, err := mgr.Execute("cluster-a", failing)
		g.Expect(err).To(HaveOccurred())
	}

	g.Expect(transitions).To(ContainElement(true), "breaker should have opened after 3 consecutive failures")
}

func TestBreakerManagerStaysClosedOnSuccess(t *testing.T) {
	g := NewWithT(t)

	var transitions []bool
	mgr := clustersync.NewBreakerManager(func(clusterID string, open bool) {
		transitions = append(transitions, open)
	})

	succeeding := func() (*clustersync.ClusterSnapshot, error) {
		return &clustersync.ClusterSnapshot{}, nil
	}

	for i := 0; i < 5; i++ {
		snap, err := mgr.Execute("cluster-b", succeeding)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(snap).NotTo(BeNil())
	}

	g.Expect(transitions).To(BeEmpty())
}
