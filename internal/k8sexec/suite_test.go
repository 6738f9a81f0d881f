package k8sexec

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestK8sExecSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "k8sexec Suite")
}
