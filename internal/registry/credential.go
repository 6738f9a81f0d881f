// Package registry holds container-registry credentials (spec.md §3/§6): a name, a
// registry URL, and a write-once access token, from which a Docker-config-JSON pull secret
// is derived fresh on every materialisation rather than stored. Grounded on the original's
// registry-token handling referenced from `kuberos/main/models/rospackages.py` and the
// `.dockerconfigjson` shape reused from `internal/k8sexec`'s pull-secret derivation.
package registry

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Credential is a named container-registry access token. AccessToken is write-once: it is
// accepted on create, never returned by a read, and the encoded Docker-config form is
// recomputed from it on every materialisation instead of being persisted alongside it.
type Credential struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	User        string    `db:"user" json:"user"`
	RegistryURL string    `db:"registry_url" json:"registryUrl"`
	AccessToken string    `db:"access_token" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

func (Credential) TableName() string  { return "registry_credentials" }
func (Credential) PrimaryKey() string { return "id" }

// dockerConfigJSON mirrors the ".dockerconfigjson" secret payload shape spec.md §6 requires:
// one "auths" entry keyed by the registry URL, whose "auth" is the base64 of "user:token".
type dockerConfigJSON struct {
	Auths map[string]dockerConfigAuth `json:"auths"`
}

type dockerConfigAuth struct {
	Auth string `json:"auth"`
}

// DockerConfigJSON derives the ".dockerconfigjson" payload for this credential. It is
// recomputed on every call rather than cached, matching the write-once/derive-on-demand
// contract spec.md §3 places on RegistryCredential.
func (c Credential) DockerConfigJSON() ([]byte, error) {
	auth := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", c.User, c.AccessToken)))
	cfg := dockerConfigJSON{
		Auths: map[string]dockerConfigAuth{
			c.RegistryURL: {Auth: auth},
		},
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode docker config for registry credential %q: %w", c.Name, err)
	}
	return raw, nil
}

// EncodedDockerConfigJSON returns the base64 encoding of DockerConfigJSON, the value stored
// under a kubernetes.io/dockerconfigjson secret's ".dockerconfigjson" key.
func (c Credential) EncodedDockerConfigJSON() (string, error) {
	raw, err := c.DockerConfigJSON()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
