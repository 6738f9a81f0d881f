package k8sexec

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

// EnsureNamespace creates the namespace if it doesn't exist yet, or returns the existing
// object - idempotent, per spec.md §4.2.
func (e *Executor) EnsureNamespace(ctx context.Context, name string) Result[*corev1.Namespace] {
	ns := &corev1.Namespace{}
	err := e.client.Get(ctx, types.NamespacedName{Name: name}, ns)
	if err == nil {
		return Ok(ns)
	}
	if !apierrors.IsNotFound(err) {
		return Failed[*corev1.Namespace](err)
	}

	ns = &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
	if err := e.client.Create(ctx, ns); err != nil {
		if apierrors.IsAlreadyExists(err) {
			if getErr := e.client.Get(ctx, types.NamespacedName{Name: name}, ns); getErr == nil {
				return Ok(ns)
			}
		}
		return Failed[*corev1.Namespace](err)
	}
	return Ok(ns)
}
