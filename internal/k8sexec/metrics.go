package k8sexec

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// NodeMetrics returns the latest CPU/memory usage-vs-allocatable sample for every node, the
// input the application scheduler (spec.md §4.3) uses to rank candidate nodes.
func (e *Executor) NodeMetrics(ctx context.Context) Result[[]NodeMetricsSample] {
	metricsList, err := e.metricsClient.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return Failed[[]NodeMetricsSample](err)
	}

	allocatable, err := e.nodeAllocatable(ctx)
	if err != nil {
		return Failed[[]NodeMetricsSample](err)
	}

	samples := make([]NodeMetricsSample, 0, len(metricsList.Items))
	for _, m := range metricsList.Items {
		alloc := allocatable[m.Name]
		samples = append(samples, NodeMetricsSample{
			Hostname:           m.Name,
			CPUUsageCores:      m.Usage.Cpu().AsApproximateFloat64(),
			CPUAllocatable:     alloc.cpuCores,
			MemoryUsageB:       m.Usage.Memory().Value(),
			MemoryAllocatableB: alloc.memoryBytes,
		})
	}
	return Ok(samples)
}

type nodeAllocatable struct {
	cpuCores    float64
	memoryBytes int64
}

func (e *Executor) nodeAllocatable(ctx context.Context) (map[string]nodeAllocatable, error) {
	var nodes corev1.NodeList
	if err := e.client.List(ctx, &nodes); err != nil {
		return nil, err
	}
	out := make(map[string]nodeAllocatable, len(nodes.Items))
	for _, n := range nodes.Items {
		out[n.Name] = nodeAllocatable{
			cpuCores:    n.Status.Allocatable.Cpu().AsApproximateFloat64(),
			memoryBytes: n.Status.Allocatable.Memory().Value(),
		}
	}
	return out, nil
}

// PodMetrics returns the latest CPU/memory usage sample for every pod in namespace, used to
// evaluate resource headroom before placing a new batch job (spec.md §4.4).
func (e *Executor) PodMetrics(ctx context.Context, namespace string) Result[[]PodMetricsSample] {
	metricsList, err := e.metricsClient.MetricsV1beta1().PodMetricses(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return Failed[[]PodMetricsSample](err)
	}

	samples := make([]PodMetricsSample, 0, len(metricsList.Items))
	for _, m := range metricsList.Items {
		var cpu float64
		var mem int64
		for _, c := range m.Containers {
			cpu += c.Usage.Cpu().AsApproximateFloat64()
			mem += c.Usage.Memory().Value()
		}
		samples = append(samples, PodMetricsSample{
			Namespace:     m.Namespace,
			Name:          m.Name,
			CPUUsageCores: cpu,
			MemoryUsageB:  mem,
		})
	}
	return Ok(samples)
}
