package k8sexec

import (
	"fmt"
	"log/slog"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/rest"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

// Client is the subset of the controller-runtime client this package depends on. Declared
// explicitly (rather than importing client.WithWatch) because the executor never watches -
// every operation is a single poll, per spec.md §5 ("every external call... is a suspension
// point"; there is no long-running watch per deployment).
type Client = client.Client

// ClusterConfig is the subset of the Cluster entity (spec.md §3) needed to reach a cluster's
// API server.
type ClusterConfig struct {
	Name         string
	EndpointURL  string
	ServiceToken string
	CACert       []byte
}

// ClientBuilder contains the data and logic needed to create an Executor. Don't create
// instances of this directly, use NewClient instead. Modelled on the teacher's
// internal/k8s.ClientBuilder (a builder around a wrapped controller-runtime client.WithWatch).
type ClientBuilder struct {
	logger  *slog.Logger
	cluster ClusterConfig
}

// NewClient creates a builder that can then be used to configure and build an Executor for
// one cluster.
func NewClient() *ClientBuilder {
	return &ClientBuilder{}
}

// SetLogger sets the logger the executor will use.
func (b *ClientBuilder) SetLogger(value *slog.Logger) *ClientBuilder {
	b.logger = value
	return b
}

// SetCluster sets the cluster this executor will talk to.
func (b *ClientBuilder) SetCluster(value ClusterConfig) *ClientBuilder {
	b.cluster = value
	return b
}

// Build creates the Executor configured by this builder.
func (b *ClientBuilder) Build() (*Executor, error) {
	if b.cluster.EndpointURL == "" {
		return nil, fmt.Errorf("cluster endpoint url is required")
	}
	restConfig := &rest.Config{
		Host:        b.cluster.EndpointURL,
		BearerToken: b.cluster.ServiceToken,
	}
	if len(b.cluster.CACert) > 0 {
		restConfig.CAData = b.cluster.CACert
	} else {
		restConfig.Insecure = true
	}

	scheme := runtime.NewScheme()
	if err := corev1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("failed to register core/v1 scheme: %w", err)
	}

	crClient, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster client for '%s': %w", b.cluster.Name, err)
	}

	metricsClient, err := metricsv.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics client for '%s': %w", b.cluster.Name, err)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		logger:        logger.With("cluster", b.cluster.Name),
		clusterName:   b.cluster.Name,
		client:        crClient,
		restConfig:    restConfig,
		metricsClient: metricsClient,
	}, nil
}

// NewFakeExecutor builds an Executor backed by a controller-runtime fake client, for tests
// that don't need a live API server (teacher: internal/k8s.NewFakeClient).
func NewFakeExecutor(objects ...client.Object) *Executor {
	scheme := runtime.NewScheme()
	_ = corev1.AddToScheme(scheme)
	fakeClient := fake.NewClientBuilder().WithScheme(scheme).WithObjects(objects...).Build()
	return &Executor{
		logger:      slog.Default(),
		clusterName: "fake",
		client:      fakeClient,
	}
}
