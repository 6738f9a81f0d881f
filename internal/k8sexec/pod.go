package k8sexec

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// podDeleteGracePeriod is the 3s grace period spec.md §4.2 specifies for pod deletion.
const podDeleteGracePeriod = 3 * time.Second

// PodSpec is the minimal set of attributes the application and batch-job schedulers need
// to materialise a pod; it is translated into a corev1.PodSpec by CreatePod.
type PodSpec struct {
	Name           string
	Namespace      string
	Labels         map[string]string
	NodeSelector   map[string]string
	Image          string
	ImagePullSecret string
	ImagePullPolicy corev1.PullPolicy
	Command        []string
	Args           []string
	Env            []corev1.EnvVar
	Volumes        []corev1.Volume
	VolumeMounts   []corev1.VolumeMount
	Ports          []corev1.ContainerPort
	Resources      corev1.ResourceRequirements
	ContainerName  string
}

// CreatePod materialises a single-container pod from the given spec.
func (e *Executor) CreatePod(ctx context.Context, spec PodSpec) Result[*corev1.Pod] {
	containerName := spec.ContainerName
	if containerName == "" {
		containerName = spec.Name
	}
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: spec.Namespace,
			Labels:    spec.Labels,
		},
		Spec: corev1.PodSpec{
			NodeSelector:  spec.NodeSelector,
			RestartPolicy: corev1.RestartPolicyNever,
			Volumes:       spec.Volumes,
			Containers: []corev1.Container{
				{
					Name:            containerName,
					Image:           spec.Image,
					ImagePullPolicy: spec.ImagePullPolicy,
					Command:         spec.Command,
					Args:            spec.Args,
					Env:             spec.Env,
					VolumeMounts:    spec.VolumeMounts,
					Ports:           spec.Ports,
					Resources:       spec.Resources,
				},
			},
		},
	}
	if spec.ImagePullSecret != "" {
		pod.Spec.ImagePullSecrets = []corev1.LocalObjectReference{{Name: spec.ImagePullSecret}}
	}

	if err := e.client.Create(ctx, pod); err != nil {
		return Failed[*corev1.Pod](err)
	}
	return Ok(pod)
}

// ReadPod returns the normalised observed status of a pod, or PodNotFound if it is absent -
// absence is not an error here, only a status value (spec.md §4.2).
func (e *Executor) ReadPod(ctx context.Context, namespace, name string) Result[PodObservedStatus] {
	var pod corev1.Pod
	err := e.client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, &pod)
	if apierrors.IsNotFound(err) {
		return Ok(PodObservedStatus{Phase: PodNotFound})
	}
	if err != nil {
		return Failed[PodObservedStatus](err)
	}

	status := PodObservedStatus{
		Phase:      normalizePodPhase(&pod),
		PodIP:      pod.Status.PodIP,
		Reason:     pod.Status.Reason,
		Message:    pod.Status.Message,
		Containers: normalizeContainerStatuses(pod.Status.ContainerStatuses),
	}
	for _, cond := range pod.Status.Conditions {
		status.Conditions = append(status.Conditions, PodCondition{
			Type:   string(cond.Type),
			Status: string(cond.Status),
			Reason: cond.Reason,
		})
	}
	return Ok(status)
}

// DeletePod deletes a pod with the standard 3s grace period. A not-found response is
// treated as success, never as an error.
func (e *Executor) DeletePod(ctx context.Context, namespace, name string) Result[struct{}] {
	grace := int64(podDeleteGracePeriod.Seconds())
	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name}}
	err := e.client.Delete(ctx, pod, client.GracePeriodSeconds(grace))
	if err != nil && !apierrors.IsNotFound(err) {
		return Failed[struct{}](err)
	}
	return Ok(struct{}{})
}
