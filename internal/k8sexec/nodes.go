package k8sexec

import (
	"context"
	"maps"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
)

// ListNodes returns every node in the cluster with its labels, raw conditions, and
// readiness. When withPodListings is true, each node is also annotated with the pods
// currently scheduled onto it - the view the batch-job scheduler (spec.md §4.4) needs to
// compute node allocatability.
func (e *Executor) ListNodes(ctx context.Context, withPodListings bool) Result[[]NodeView] {
	var nodeList corev1.NodeList
	if err := e.client.List(ctx, &nodeList); err != nil {
		return Failed[[]NodeView](err)
	}

	var podsByNode map[string][]PodSummary
	if withPodListings {
		var podList corev1.PodList
		if err := e.client.List(ctx, &podList); err != nil {
			return Failed[[]NodeView](err)
		}
		podsByNode = make(map[string][]PodSummary)
		for _, pod := range podList.Items {
			if pod.Spec.NodeName == "" {
				continue
			}
			podsByNode[pod.Spec.NodeName] = append(podsByNode[pod.Spec.NodeName], PodSummary{
				Name:      pod.Name,
				Namespace: pod.Namespace,
				Phase:     normalizePodPhase(&pod),
			})
		}
	}

	views := make([]NodeView, 0, len(nodeList.Items))
	for _, node := range nodeList.Items {
		view := NodeView{
			Hostname: node.Name,
			Labels:   maps.Clone(node.Labels),
		}
		for _, cond := range node.Status.Conditions {
			view.Conditions = append(view.Conditions, NodeCondition{
				Type:   string(cond.Type),
				Status: string(cond.Status),
			})
			if cond.Type == corev1.NodeReady {
				view.Ready = cond.Status == corev1.ConditionTrue
			}
		}
		if withPodListings {
			view.Pods = podsByNode[node.Name]
		}
		views = append(views, view)
	}
	return Ok(views)
}

// PatchNodeLabels merges the given labels into the node's existing label set and returns
// the resulting labels.
func (e *Executor) PatchNodeLabels(ctx context.Context, hostname string, labels map[string]string) Result[map[string]string] {
	var node corev1.Node
	if err := e.client.Get(ctx, types.NamespacedName{Name: hostname}, &node); err != nil {
		return Failed[map[string]string](err)
	}

	merged := maps.Clone(node.Labels)
	if merged == nil {
		merged = map[string]string{}
	}
	maps.Copy(merged, labels)

	patch := node.DeepCopy()
	patch.Labels = merged
	if err := e.client.Patch(ctx, patch, mergeFrom(&node)); err != nil {
		return Failed[map[string]string](err)
	}
	return Ok(merged)
}
