package registry_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/kuberos-io/kuberos/internal/registry"
)

func TestDockerConfigJSONDerivation(t *testing.T) {
	g := NewWithT(t)

	c := registry.Credential{
		Name:        "my-harbor",
		User:        "u",
		AccessToken: "t",
		RegistryURL: "r.example:5050",
	}

	raw, err := c.DockerConfigJSON()
	g.Expect(err).NotTo(HaveOccurred())

	var decoded map[string]map[string]map[string]string
	g.Expect(json.Unmarshal(raw, &decoded)).To(Succeed())

	auth := decoded["auths"]["r.example:5050"]["auth"]
	g.Expect(auth).To(Equal(base64.StdEncoding.EncodeToString([]byte("u:t"))))
}

func TestEncodedDockerConfigJSONIsBase64OfDockerConfigJSON(t *testing.T) {
	g := NewWithT(t)

	c := registry.Credential{Name: "x", User: "a", AccessToken: "b", RegistryURL: "reg.io"}

	raw, err := c.DockerConfigJSON()
	g.Expect(err).NotTo(HaveOccurred())

	encoded, err := c.EncodedDockerConfigJSON()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(encoded).To(Equal(base64.StdEncoding.EncodeToString(raw)))
}

func TestCredentialTokenExcludedFromJSON(t *testing.T) {
	g := NewWithT(t)

	c := registry.Credential{Name: "x", User: "a", AccessToken: "super-secret", RegistryURL: "reg.io"}
	raw, err := json.Marshal(c)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(raw)).NotTo(ContainSubstring("super-secret"))
}
