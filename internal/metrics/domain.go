package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// DomainGauges tracks the controllers' current view of deployments and batch jobs, refreshed by
// whoever polls the repositories (the kuberosd process's periodic gauge-refresh loop). Separate from the
// request-metrics handler wrapper above: these are point-in-time snapshots, not per-call counters.
type DomainGauges struct {
	deploymentsByStatus  *prometheus.GaugeVec
	batchJobsByStatus    *prometheus.GaugeVec
	kuberosJobsByStatus  *prometheus.GaugeVec
	taskQueueDepth       *prometheus.GaugeVec
	clusterBreakerOpen   *prometheus.GaugeVec
}

func NewDomainGauges(registerer prometheus.Registerer) (*DomainGauges, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	g := &DomainGauges{
		deploymentsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: "kuberos", Name: "deployments_by_status",
			Help: "Number of fleet deployments currently in each status.",
		}, []string{"status"}),
		batchJobsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: "kuberos", Name: "batch_job_deployments_by_status",
			Help: "Number of batch job deployments currently in each status.",
		}, []string{"status"}),
		kuberosJobsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: "kuberos", Name: "batch_kuberos_jobs_by_status",
			Help: "Number of individual batch jobs currently in each status.",
		}, []string{"status"}),
		taskQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: "kuberos", Name: "task_queue_depth",
			Help: "Number of pending taskq tasks by kind.",
		}, []string{"kind"}),
		clusterBreakerOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: "kuberos", Name: "cluster_breaker_open",
			Help: "1 if a cluster's sync circuit breaker is open, 0 otherwise.",
		}, []string{"cluster"}),
	}

	for _, c := range []prometheus.Collector{
		g.deploymentsByStatus, g.batchJobsByStatus, g.kuberosJobsByStatus,
		g.taskQueueDepth, g.clusterBreakerOpen,
	} {
		if err := registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, err
			}
		}
	}
	return g, nil
}

func (g *DomainGauges) SetDeploymentsByStatus(counts map[string]int) {
	setGaugeVec(g.deploymentsByStatus, counts)
}

func (g *DomainGauges) SetBatchJobDeploymentsByStatus(counts map[string]int) {
	setGaugeVec(g.batchJobsByStatus, counts)
}

func (g *DomainGauges) SetKuberosJobsByStatus(counts map[string]int) {
	setGaugeVec(g.kuberosJobsByStatus, counts)
}

func (g *DomainGauges) SetTaskQueueDepth(kind string, depth int) {
	g.taskQueueDepth.WithLabelValues(kind).Set(float64(depth))
}

func (g *DomainGauges) SetClusterBreakerOpen(cluster string, open bool) {
	value := 0.0
	if open {
		value = 1.0
	}
	g.clusterBreakerOpen.WithLabelValues(cluster).Set(value)
}

func setGaugeVec(vec *prometheus.GaugeVec, counts map[string]int) {
	vec.Reset()
	for status, count := range counts {
		vec.WithLabelValues(status).Set(float64(count))
	}
}
