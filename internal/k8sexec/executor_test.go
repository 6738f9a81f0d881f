package k8sexec

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var _ = Describe("Namespace", func() {
	It("creates a namespace that doesn't exist yet", func() {
		e := NewFakeExecutor()
		res := e.EnsureNamespace(context.Background(), "ros-default")
		Expect(res.Status).To(Equal(StatusSuccess))
		Expect(res.Data.Name).To(Equal("ros-default"))
	})

	It("is idempotent for a namespace that already exists", func() {
		existing := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "ros-default"}}
		e := NewFakeExecutor(existing)
		res := e.EnsureNamespace(context.Background(), "ros-default")
		Expect(res.Status).To(Equal(StatusSuccess))
		Expect(res.Data.Name).To(Equal("ros-default"))
	})
})

var _ = Describe("Pod lifecycle", func() {
	It("creates and reads back a pending pod", func() {
		e := NewFakeExecutor()
		created := e.CreatePod(context.Background(), PodSpec{
			Name:      "talker",
			Namespace: "ros-default",
			Image:     "ros:humble",
		})
		Expect(created.Status).To(Equal(StatusSuccess))

		read := e.ReadPod(context.Background(), "ros-default", "talker")
		Expect(read.Status).To(Equal(StatusSuccess))
		Expect(read.Data.Phase).To(Equal(PodPending))
	})

	It("reports PodNotFound for a pod that was never created", func() {
		e := NewFakeExecutor()
		read := e.ReadPod(context.Background(), "ros-default", "missing")
		Expect(read.Status).To(Equal(StatusSuccess))
		Expect(read.Data.Phase).To(Equal(PodNotFound))
	})

	It("treats deleting an absent pod as success", func() {
		e := NewFakeExecutor()
		res := e.DeletePod(context.Background(), "ros-default", "missing")
		Expect(res.Status).To(Equal(StatusSuccess))
	})
})

var _ = Describe("Node labels", func() {
	It("merges new labels into the existing label set", func() {
		node := &corev1.Node{
			ObjectMeta: metav1.ObjectMeta{
				Name:   "robot-01",
				Labels: map[string]string{"existing": "true"},
			},
		}
		e := NewFakeExecutor(node)
		res := e.PatchNodeLabels(context.Background(), "robot-01", map[string]string{"kuberos.io/fleet": "warehouse-a"})
		Expect(res.Status).To(Equal(StatusSuccess))
		Expect(res.Data).To(HaveKeyWithValue("existing", "true"))
		Expect(res.Data).To(HaveKeyWithValue("kuberos.io/fleet", "warehouse-a"))
	})
})

var _ = Describe("normalizeError", func() {
	It("maps Unauthorized to a token-expiry message", func() {
		err := apierrors.NewUnauthorized("token expired")
		reason, msg := normalizeError(err)
		Expect(reason).To(Equal("Unauthorized"))
		Expect(msg).To(Equal("cluster service account token is invalid or expired"))
	})

	It("passes through other API status errors", func() {
		err := apierrors.NewNotFound(schema.GroupResource{Resource: "pods"}, "talker")
		reason, _ := normalizeError(err)
		Expect(reason).To(Equal("NotFound"))
	})
})
