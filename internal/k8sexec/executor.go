package k8sexec

import (
	"log/slog"

	"k8s.io/client-go/rest"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Executor is a thin, typed wrapper over one cluster's Kubernetes API, implementing the
// operation vocabulary of spec.md §4.2. Build one with NewClient().
type Executor struct {
	logger        *slog.Logger
	clusterName   string
	client        Client
	restConfig    *rest.Config
	metricsClient metricsv.Interface
}

// ClusterName returns the name of the cluster this executor talks to.
func (e *Executor) ClusterName() string {
	return e.clusterName
}
