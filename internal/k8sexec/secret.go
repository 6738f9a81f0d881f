package k8sexec

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// dockerConfigJSON mirrors the shape Kubernetes expects under the
// ".dockerconfigjson" key of a kubernetes.io/dockerconfigjson secret.
type dockerConfigJSON struct {
	Auths map[string]dockerConfigEntry `json:"auths"`
}

type dockerConfigEntry struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Auth     string `json:"auth"`
}

// buildDockerConfigJSON derives the base64 "auth" field from username:password, the
// derivation spec.md §6 requires when materialising a registry credential as a pull secret.
func buildDockerConfigJSON(registryHost, username, password string) ([]byte, error) {
	auth := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", username, password)))
	cfg := dockerConfigJSON{
		Auths: map[string]dockerConfigEntry{
			registryHost: {Username: username, Password: password, Auth: auth},
		},
	}
	return json.Marshal(cfg)
}

// CreateDockerConfigSecret materialises a kubernetes.io/dockerconfigjson secret from a
// registry credential, the form the image-pull-secret reference on a pod expects.
func (e *Executor) CreateDockerConfigSecret(ctx context.Context, namespace, name, registryHost, username, password string) Result[*corev1.Secret] {
	raw, err := buildDockerConfigJSON(registryHost, username, password)
	if err != nil {
		return Failed[*corev1.Secret](err)
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Type:       corev1.SecretTypeDockerConfigJson,
		Data: map[string][]byte{
			corev1.DockerConfigJsonKey: raw,
		},
	}
	if err := e.client.Create(ctx, secret); err != nil {
		return Failed[*corev1.Secret](err)
	}
	return Ok(secret)
}

// UpdateDockerConfigSecret replaces an existing pull secret's credentials. Kubernetes
// secrets of this type are immutable in practice for credential rotation purposes, so the
// update is implemented as delete-then-create, matching spec.md §6's stated semantics.
func (e *Executor) UpdateDockerConfigSecret(ctx context.Context, namespace, name, registryHost, username, password string) Result[*corev1.Secret] {
	if res := e.DeleteSecret(ctx, namespace, name); res.Status == StatusFailed {
		return Failed[*corev1.Secret](fmt.Errorf("deleting existing pull secret: %s", res.Errors[0].Msg))
	}
	return e.CreateDockerConfigSecret(ctx, namespace, name, registryHost, username, password)
}

// DeleteSecret deletes a secret; a not-found response is treated as success.
func (e *Executor) DeleteSecret(ctx context.Context, namespace, name string) Result[struct{}] {
	secret := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name}}
	if err := e.client.Delete(ctx, secret); err != nil && !apierrors.IsNotFound(err) {
		return Failed[struct{}](err)
	}
	return Ok(struct{}{})
}
