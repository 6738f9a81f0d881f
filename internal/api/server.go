package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kuberos-io/kuberos/internal/batchjob"
	"github.com/kuberos-io/kuberos/internal/deployment"
	"github.com/kuberos-io/kuberos/internal/fleet"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
	"github.com/kuberos-io/kuberos/internal/metrics"
	"github.com/kuberos-io/kuberos/internal/registry"
	"github.com/kuberos-io/kuberos/internal/taskq"
)

// Task kinds the worker pool dispatches on. Exported so cmd/kuberosd can register handlers
// against the exact same strings the HTTP handlers below enqueue with; ClusterSyncTaskKind has
// no HTTP originator and is instead self-seeded by the worker process.
const (
	DeployJobReconcileTaskKind  = "deploy_job_reconcile"
	BatchDeploymentTickTaskKind = "batch_deployment_tick"
	BatchJobReconcileTaskKind   = "batch_job_reconcile"
	ClusterSyncTaskKind         = "cluster_sync"
)

type DeployJobReconcilePayload struct {
	JobID uuid.UUID `json:"jobId"`
}

type BatchDeploymentTickPayload struct {
	DeploymentID uuid.UUID `json:"deploymentId"`
}

type BatchJobReconcilePayload struct {
	JobID uuid.UUID `json:"jobId"`
}

// Server holds every dependency the HTTP control plane's handlers need: the domain
// repositories, the durable task queue handlers enqueue onto, and a cache of per-cluster
// executors built lazily from registered Cluster rows.
type Server struct {
	fleets      *fleet.Repository
	deployments *deployment.Repository
	batchJobs   *batchjob.Repository
	registries  *registry.Repository
	tasks       *taskq.Queue
	logger      *slog.Logger

	mux *http.ServeMux

	mu        sync.Mutex
	executors map[uuid.UUID]*k8sexec.Executor
}

// Dependencies bundles the constructor arguments for NewServer.
type Dependencies struct {
	Fleets      *fleet.Repository
	Deployments *deployment.Repository
	BatchJobs   *batchjob.Repository
	Registries  *registry.Repository
	Tasks       *taskq.Queue
	Logger      *slog.Logger
}

// NewServer builds the HTTP control plane handler, wiring every route onto a
// metrics-wrapped http.ServeMux.
func NewServer(deps Dependencies) (http.Handler, error) {
	s := &Server{
		fleets:      deps.Fleets,
		deployments: deps.Deployments,
		batchJobs:   deps.BatchJobs,
		registries:  deps.Registries,
		tasks:       deps.Tasks,
		logger:      deps.Logger,
		mux:         http.NewServeMux(),
		executors:   make(map[uuid.UUID]*k8sexec.Executor),
	}
	s.routes()

	wrap, err := metrics.NewHandlerWrapper().
		SetSubsystem("kuberos_api").
		AddPaths(
			"/healthz", "/metrics",
			"/clusters", "/clusters/{id}", "/clusters/{id}/nodes",
			"/fleets", "/fleets/{id}", "/fleets/{id}/nodes", "/fleets/{id}/nodes/{nodeId}",
			"/fleets/{id}/deployments", "/deployments/{id}",
			"/batch-job-deployments", "/batch-job-deployments/{id}", "/batch-job-deployments/{id}/stop",
			"/batch-job-deployments/{id}/resume",
			"/registry-credentials", "/registry-credentials/{id}",
		).
		Build()
	if err != nil {
		return nil, fmt.Errorf("building request metrics wrapper: %w", err)
	}

	validate, err := requestValidationMiddleware()
	if err != nil {
		return nil, fmt.Errorf("building openapi request validator: %w", err)
	}

	return chain(s.mux, loggingMiddleware(s.logger), wrap, validate, bearerAuth), nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.healthz)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /clusters", s.listClusters)
	s.mux.HandleFunc("POST /clusters", s.registerCluster)
	s.mux.HandleFunc("GET /clusters/{id}", s.getCluster)
	s.mux.HandleFunc("DELETE /clusters/{id}", s.deleteCluster)
	s.mux.HandleFunc("GET /clusters/{id}/nodes", s.listClusterNodes)

	s.mux.HandleFunc("GET /fleets", s.listFleets)
	s.mux.HandleFunc("POST /fleets", s.createFleet)
	s.mux.HandleFunc("GET /fleets/{id}", s.getFleet)
	s.mux.HandleFunc("DELETE /fleets/{id}", s.deleteFleet)
	s.mux.HandleFunc("PATCH /fleets/{id}", s.patchFleet)
	s.mux.HandleFunc("GET /fleets/{id}/nodes", s.listFleetNodes)
	s.mux.HandleFunc("POST /fleets/{id}/nodes", s.bindFleetNode)
	s.mux.HandleFunc("DELETE /fleets/{id}/nodes/{nodeId}", s.deleteFleetNode)
	s.mux.HandleFunc("GET /fleets/{id}/deployments", s.listDeployments)
	s.mux.HandleFunc("POST /fleets/{id}/deployments", s.createDeployment)

	s.mux.HandleFunc("GET /deployments/{id}", s.getDeployment)
	s.mux.HandleFunc("DELETE /deployments/{id}", s.deleteDeployment)

	s.mux.HandleFunc("GET /batch-job-deployments", s.listBatchJobDeployments)
	s.mux.HandleFunc("POST /batch-job-deployments", s.createBatchJobDeployment)
	s.mux.HandleFunc("GET /batch-job-deployments/{id}", s.getBatchJobDeployment)
	s.mux.HandleFunc("DELETE /batch-job-deployments/{id}", s.deleteBatchJobDeployment)
	s.mux.HandleFunc("POST /batch-job-deployments/{id}/stop", s.stopBatchJobDeployment)
	s.mux.HandleFunc("POST /batch-job-deployments/{id}/resume", s.resumeBatchJobDeployment)

	s.mux.HandleFunc("GET /registry-credentials", s.listRegistryCredentials)
	s.mux.HandleFunc("POST /registry-credentials", s.createRegistryCredential)
	s.mux.HandleFunc("DELETE /registry-credentials/{id}", s.deleteRegistryCredential)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// executorFor returns the cached Executor for clusterID, building and caching one from the
// Cluster row on first use.
func (s *Server) executorFor(ctx context.Context, clusterID uuid.UUID) (*k8sexec.Executor, error) {
	s.mu.Lock()
	if e, ok := s.executors[clusterID]; ok {
		s.mu.Unlock()
		return e, nil
	}
	s.mu.Unlock()

	cluster, err := s.fleets.GetCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("loading cluster %s: %w", clusterID, err)
	}

	executor, err := k8sexec.NewClient().
		SetLogger(s.logger).
		SetCluster(k8sexec.ClusterConfig{
			Name:         cluster.Name,
			EndpointURL:  cluster.EndpointURL,
			ServiceToken: cluster.ServiceToken,
			CACert:       cluster.CACert,
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("building executor for cluster %s: %w", cluster.Name, err)
	}

	s.mu.Lock()
	s.executors[clusterID] = executor
	s.mu.Unlock()
	return executor, nil
}

// clusterNodesByID loads every ClusterNode of clusterID keyed by its string ID, the shape
// appsched.NewFleetSnapshot expects.
func (s *Server) clusterNodesByID(ctx context.Context, clusterID uuid.UUID) (map[string]fleet.ClusterNode, error) {
	nodes, err := s.fleets.ListClusterNodesByCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("loading nodes for cluster %s: %w", clusterID, err)
	}
	byID := make(map[string]fleet.ClusterNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID.String()] = n
	}
	return byID, nil
}
