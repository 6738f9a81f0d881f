package k8sexec

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

// ServiceSpec is the minimal description needed to expose a deployment's pod.
type ServiceSpec struct {
	Name      string
	Namespace string
	Labels    map[string]string
	Selector  map[string]string
	Ports     []corev1.ServicePort
	Type      corev1.ServiceType
}

// CreateService materialises a ClusterIP (or otherwise typed) service fronting a pod.
func (e *Executor) CreateService(ctx context.Context, spec ServiceSpec) Result[*corev1.Service] {
	svcType := spec.Type
	if svcType == "" {
		svcType = corev1.ServiceTypeClusterIP
	}
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: spec.Namespace,
			Labels:    spec.Labels,
		},
		Spec: corev1.ServiceSpec{
			Selector: spec.Selector,
			Ports:    spec.Ports,
			Type:     svcType,
		},
	}
	if err := e.client.Create(ctx, svc); err != nil {
		return Failed[*corev1.Service](err)
	}
	return Ok(svc)
}

// ReadService reports whether a service exists and, if so, its assigned cluster IP and ports.
func (e *Executor) ReadService(ctx context.Context, namespace, name string) Result[ServiceObservedStatus] {
	var svc corev1.Service
	err := e.client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, &svc)
	if apierrors.IsNotFound(err) {
		return Ok(ServiceObservedStatus{Found: false})
	}
	if err != nil {
		return Failed[ServiceObservedStatus](err)
	}

	status := ServiceObservedStatus{Found: true, ClusterIP: svc.Spec.ClusterIP}
	for _, port := range svc.Spec.Ports {
		status.Ports = append(status.Ports, port.Port)
	}
	return Ok(status)
}

// DeleteService deletes a service; a not-found response is treated as success.
func (e *Executor) DeleteService(ctx context.Context, namespace, name string) Result[struct{}] {
	svc := &corev1.Service{ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name}}
	if err := e.client.Delete(ctx, svc); err != nil && !apierrors.IsNotFound(err) {
		return Failed[struct{}](err)
	}
	return Ok(struct{}{})
}
