package batchsched_test

import (
	"testing"

	"github.com/google/uuid"
	. "github.com/onsi/gomega"

	"github.com/kuberos-io/kuberos/internal/batchjob"
	"github.com/kuberos-io/kuberos/internal/manifest"
	"github.com/kuberos-io/kuberos/internal/scheduler/batchsched"
)

func TestExpandCartesianProduct(t *testing.T) {
	g := NewWithT(t)

	m := &manifest.Manifest{
		RosParamMap: []manifest.RosParamMap{
			{Name: "eval-params", Type: manifest.ParamTypeKeyValue, Data: map[string]string{}},
		},
		JobSpec: &manifest.JobSpec{
			VaryingParameters: []manifest.VaryingParameter{
				{ToRosParamMap: "eval-params", ParamName: "algorithm", ValueList: []string{"a-star", "dijkstra"}},
				{ToRosParamMap: "eval-params", ParamName: "speed", ValueList: []string{"slow", "fast"}},
			},
		},
	}

	plans, err := batchsched.Expand(m)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(plans).To(HaveLen(4))

	seenPostfixes := map[string]struct{}{}
	for i, p := range plans {
		g.Expect(p.QueueNumber).To(Equal(i))
		g.Expect(p.GroupPostfix).To(HaveLen(10))
		seenPostfixes[p.GroupPostfix] = struct{}{}
		g.Expect(p.Manifest.RosParamMap[0].Data).To(HaveKey("algorithm"))
		g.Expect(p.Manifest.RosParamMap[0].Data).To(HaveKey("speed"))
	}
	g.Expect(seenPostfixes).To(HaveLen(4))

	// original manifest untouched by substitution
	g.Expect(m.RosParamMap[0].Data).NotTo(HaveKey("algorithm"))
}

func TestExpandWithoutVaryingParametersReturnsSingleGroup(t *testing.T) {
	g := NewWithT(t)

	m := &manifest.Manifest{}
	plans, err := batchsched.Expand(m)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(plans).To(HaveLen(1))
	g.Expect(plans[0].QueueNumber).To(Equal(0))
}

func TestIsAllocatable(t *testing.T) {
	g := NewWithT(t)

	node := batchsched.NodeSnapshot{Hostname: "n1", CPUAvailableCores: 2, CPUAllocatable: 2, PodCount: 3}

	g.Expect(batchsched.IsAllocatable(node, 1.0, 0)).To(BeTrue())
	g.Expect(batchsched.IsAllocatable(node, 1.8, 0)).To(BeFalse(), "not enough headroom for RESERVED 0.3 cores")
	g.Expect(batchsched.IsAllocatable(node, 1.0, 3)).To(BeFalse(), "numProNode cap reached")
	g.Expect(batchsched.IsAllocatable(node, 1.0, 4)).To(BeTrue())
}

func TestCPUBudgetPrefersOptimalWhenHeadroomAllows(t *testing.T) {
	g := NewWithT(t)

	roomy := batchsched.NodeSnapshot{CPUAllocatable: 4}
	tight := batchsched.NodeSnapshot{CPUAllocatable: 1}

	g.Expect(batchsched.CPUBudget(roomy, manifest.CPUQuantity(1), manifest.CPUQuantity(2))).To(Equal(2.0))
	g.Expect(batchsched.CPUBudget(tight, manifest.CPUQuantity(0.5), manifest.CPUQuantity(2))).To(Equal(0.5))
}

func TestVolumeSubPath(t *testing.T) {
	g := NewWithT(t)

	g.Expect(batchsched.VolumeSubPath("/data", true, 3, "ab12cd34ef")).To(Equal("/data/queue_3/job_ab12cd34ef"))
	g.Expect(batchsched.VolumeSubPath("/data", false, 3, "ab12cd34ef")).To(Equal("/data/job_ab12cd34ef"))
}

func TestModulePodName(t *testing.T) {
	g := NewWithT(t)
	g.Expect(batchsched.ModulePodName("postfix1", "planner", "slug12345a")).To(Equal("postfix1-planner-slug12345a"))
}

func TestPlaceTickRespectsNodeCountAndPopsInOrder(t *testing.T) {
	g := NewWithT(t)

	m := &manifest.Manifest{RosModules: []manifest.RosModule{{Name: "planner", Image: "img", Entrypoint: []string{"ros2", "run", "pkg", "planner"}}}}

	pending := []batchsched.PendingJob{
		{Job: batchjob.KuberosJob{ID: uuid.New(), Slug: "slugaaaaaa"}, GroupPostfix: "pfx00000", Manifest: m, VolumeBase: "/data"},
		{Job: batchjob.KuberosJob{ID: uuid.New(), Slug: "slugbbbbbb"}, GroupPostfix: "pfx00000", Manifest: m, VolumeBase: "/data"},
		{Job: batchjob.KuberosJob{ID: uuid.New(), Slug: "slugcccccc"}, GroupPostfix: "pfx00000", Manifest: m, VolumeBase: "/data"},
	}
	nodes := []batchsched.NodeSnapshot{
		{Hostname: "n1", CPUAvailableCores: 2, CPUAllocatable: 2},
	}

	placements, remaining := batchsched.PlaceTick(pending, nodes, manifest.CPUQuantity(1), manifest.CPUQuantity(1), 0)
	g.Expect(placements).To(HaveLen(1))
	g.Expect(placements[0].JobID).To(Equal(pending[0].Job.ID.String()))
	g.Expect(placements[0].ModulePods).To(HaveLen(1))
	g.Expect(placements[0].DiscoveryServerPod.NodeSelector).To(HaveKeyWithValue("kubernetes.io/hostname", "n1"))
	g.Expect(remaining).To(HaveLen(2))
	g.Expect(remaining[0].Job.Slug).To(Equal("slugbbbbbb"))
}

func TestNewJobsGeneratesDistinctSlugs(t *testing.T) {
	g := NewWithT(t)

	jobs, err := batchsched.NewJobs(uuid.New(), 5, 60, 300, batchjob.VolumeSpec{Name: "data"})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(jobs).To(HaveLen(5))

	seen := map[string]struct{}{}
	for _, j := range jobs {
		g.Expect(j.Slug).To(HaveLen(10))
		g.Expect(j.Status).To(Equal(batchjob.JobPending))
		seen[j.Slug] = struct{}{}
	}
	g.Expect(seen).To(HaveLen(5))
}

func TestGroupConfigMapNames(t *testing.T) {
	g := NewWithT(t)
	names := batchsched.GroupConfigMapNames("pfx00000", []string{"eval-params", "static-config"})
	g.Expect(names).To(Equal([]string{"pfx00000-eval-params", "pfx00000-static-config"}))
}
