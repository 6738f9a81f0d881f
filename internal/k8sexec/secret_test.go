package k8sexec

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	. "github.com/onsi/gomega"
)

func TestBuildDockerConfigJSON(t *testing.T) {
	g := NewWithT(t)

	raw, err := buildDockerConfigJSON("registry.example.com", "robot-ci", "s3cr3t")
	g.Expect(err).NotTo(HaveOccurred())

	var decoded dockerConfigJSON
	g.Expect(json.Unmarshal(raw, &decoded)).To(Succeed())

	entry, ok := decoded.Auths["registry.example.com"]
	g.Expect(ok).To(BeTrue())
	g.Expect(entry.Username).To(Equal("robot-ci"))
	g.Expect(entry.Password).To(Equal("s3cr3t"))

	wantAuth := base64.StdEncoding.EncodeToString([]byte("robot-ci:s3cr3t"))
	g.Expect(entry.Auth).To(Equal(wantAuth))
}
