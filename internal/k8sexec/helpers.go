package k8sexec

import (
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// mergeFrom is a thin alias kept local so every patch call site in this package goes
// through one place.
func mergeFrom(obj client.Object) client.Patch {
	return client.MergeFrom(obj)
}

// normalizePodPhase maps a corev1.Pod onto the PodPhase tagged sum type of spec.md §9,
// synthesising Terminating when a deletion timestamp is set - the API itself never reports
// that as a phase.
func normalizePodPhase(pod *corev1.Pod) PodPhase {
	if pod.DeletionTimestamp != nil {
		return PodTerminating
	}
	switch pod.Status.Phase {
	case corev1.PodRunning:
		return PodRunning
	case corev1.PodSucceeded:
		return PodSucceeded
	case corev1.PodFailed:
		return PodFailed
	default:
		return PodPending
	}
}

func normalizeContainerStatuses(statuses []corev1.ContainerStatus) []ContainerStatus {
	out := make([]ContainerStatus, 0, len(statuses))
	for _, cs := range statuses {
		entry := ContainerStatus{Name: cs.Name, Ready: cs.Ready}
		switch {
		case cs.State.Waiting != nil:
			entry.State = "waiting"
			entry.Reason = cs.State.Waiting.Reason
		case cs.State.Running != nil:
			entry.State = "running"
		case cs.State.Terminated != nil:
			entry.State = "terminated"
			entry.Reason = cs.State.Terminated.Reason
		}
		out = append(out, entry)
	}
	return out
}
