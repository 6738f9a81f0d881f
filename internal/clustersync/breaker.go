package clustersync

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// breakerSettings mirrors the per-channel circuit breaker configuration in
// jordigilh-kubernaut's notification test harness (ReadyToTrip on 3 consecutive failures,
// 30s open timeout), generalized from per-channel to per-cluster (spec.md §4.7 step 5: "On
// three consecutive sync failures the parent Cluster.availability flips to false").
func breakerSettings(name string, onStateChange func(name string, from, to gobreaker.State)) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: onStateChange,
	}
}

// BreakerManager holds one circuit breaker per cluster, opening a cluster's breaker after
// three consecutive sync failures and gating further sync attempts while it is open.
type BreakerManager struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	onTrip   func(clusterID string, open bool)
}

// NewBreakerManager builds a manager whose onTrip callback fires whenever a cluster's breaker
// opens (open=true, meaning the cluster should be marked unavailable) or closes again
// (open=false).
func NewBreakerManager(onTrip func(clusterID string, open bool)) *BreakerManager {
	return &BreakerManager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		onTrip:   onTrip,
	}
}

func (m *BreakerManager) breakerFor(clusterID string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[clusterID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(breakerSettings(clusterID, func(name string, from, to gobreaker.State) {
		if m.onTrip == nil {
			return
		}
		switch to {
		case gobreaker.StateOpen:
			m.onTrip(name, true)
		case gobreaker.StateClosed:
			m.onTrip(name, false)
		}
	}))
	m.breakers[clusterID] = cb
	return cb
}

// Execute runs fn through the named cluster's breaker, returning gobreaker's own
// ErrOpenState when the cluster has been tripped and the backoff window has not elapsed.
func (m *BreakerManager) Execute(clusterID string, fn func() (*ClusterSnapshot, error)) (*ClusterSnapshot, error) {
	result, err := m.breakerFor(clusterID).Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	snap, _ := result.(*ClusterSnapshot)
	return snap, nil
}
