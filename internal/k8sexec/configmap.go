package k8sexec

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

// CreateConfigMap materialises a config map holding one entry per file in data, keyed by
// file name - the vehicle the deployment controller uses to stage the manifest's static
// file map into a pod's mounted volume (spec.md §9).
func (e *Executor) CreateConfigMap(ctx context.Context, namespace, name string, data map[string]string, labels map[string]string) Result[*corev1.ConfigMap] {
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    labels,
		},
		Data: data,
	}
	if err := e.client.Create(ctx, cm); err != nil {
		return Failed[*corev1.ConfigMap](err)
	}
	return Ok(cm)
}

// DeleteConfigMap deletes a config map; a not-found response is treated as success.
func (e *Executor) DeleteConfigMap(ctx context.Context, namespace, name string) Result[struct{}] {
	cm := &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name}}
	if err := e.client.Delete(ctx, cm); err != nil && !apierrors.IsNotFound(err) {
		return Failed[struct{}](err)
	}
	return Ok(struct{}{})
}

// UpdateConfigMap replaces a config map's data in place, re-creating it if it no longer
// exists by the time the update lands.
func (e *Executor) UpdateConfigMap(ctx context.Context, namespace, name string, data map[string]string) Result[*corev1.ConfigMap] {
	var cm corev1.ConfigMap
	err := e.client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, &cm)
	if apierrors.IsNotFound(err) {
		return e.CreateConfigMap(ctx, namespace, name, data, nil)
	}
	if err != nil {
		return Failed[*corev1.ConfigMap](err)
	}

	patch := cm.DeepCopy()
	patch.Data = data
	if err := e.client.Patch(ctx, patch, mergeFrom(&cm)); err != nil {
		return Failed[*corev1.ConfigMap](err)
	}
	return Ok(patch)
}
