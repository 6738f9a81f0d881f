package batchctl_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock/v4"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kuberos-io/kuberos/internal/batchjob"
	"github.com/kuberos-io/kuberos/internal/controller/batchctl"
	"github.com/kuberos-io/kuberos/internal/deployment"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
	"github.com/kuberos-io/kuberos/internal/manifest"
	"github.com/kuberos-io/kuberos/internal/scheduler/batchsched"
)

func TestBatchctlSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "batchctl Suite")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sweepManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Metadata:   manifest.Metadata{Name: "eval-sweep", TargetFleet: "warehouse"},
		RosModules: []manifest.RosModule{{Name: "planner", Image: "planner:latest"}},
		RosParamMap: []manifest.RosParamMap{
			{Name: "planner-params", Type: manifest.ParamTypeKeyValue, Data: map[string]string{"speed": "1.0"}},
		},
		JobSpec: &manifest.JobSpec{
			LifecycleModule:       manifest.LifecycleModuleRef{Name: "planner", RepeatNum: 1},
			ResourceRequestCPU:    manifest.CPUQuantity(1),
			StartupTimeoutSeconds: 60,
			RunningTimeoutSeconds: 120,
		},
	}
}

var _ = Describe("batch job controller", func() {
	var (
		ctx      context.Context
		mock     pgxmock.PgxPoolIface
		repo     *batchjob.Repository
		clusterID uuid.UUID
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		mock, err = pgxmock.NewPool()
		Expect(err).NotTo(HaveOccurred())
		repo = batchjob.NewRepository(mock)
		clusterID = uuid.New()
	})

	AfterEach(func() {
		mock.Close()
	})

	It("expands a job spec into one group with config maps and jobs, then marks the deployment executing", func() {
		executor := k8sexec.NewFakeExecutor()
		ctrl := batchctl.NewController(map[uuid.UUID]*k8sexec.Executor{clusterID: executor}, repo, discardLogger())

		dep := batchjob.BatchJobDeployment{ID: uuid.New(), Name: "eval-sweep", StartupTimeoutSec: 60, RunningTimeoutSec: 120}

		groupRows := pgxmock.NewRows([]string{"id", "deployment_id", "exec_cluster_id", "group_postfix", "queue_number",
			"config_map_names", "repeat_num", "lifecycle_module_name", "rendered_manifest"}).
			AddRow(uuid.New(), dep.ID, clusterID, "abc1234567", 0, []string{"abc1234567-planner-params"}, 1, "planner", []byte(`{}`))
		mock.ExpectQuery(`INSERT INTO batch_job_groups`).WillReturnRows(groupRows)

		jobRows := pgxmock.NewRows([]string{"id", "group_id", "slug", "status", "running_timeout_sec", "startup_timeout_sec",
			"disc_server", "scheduled_modules", "pod_status", "service_status", "node_hostname", "volume", "module_pods",
			"last_check_at", "scheduled_at", "running_at", "success_completed"}).
			AddRow(uuid.New(), uuid.New(), "job0123456", "PENDING", 120, 60, nil, nil, nil, nil, "", nil, nil, nil, nil, nil, false)
		mock.ExpectQuery(`INSERT INTO batch_kuberos_jobs`).WillReturnRows(jobRows)

		depRows := pgxmock.NewRows([]string{"id", "name", "subname", "active", "status", "job_spec", "volume_spec",
			"exec_cluster_ids", "startup_timeout_sec", "running_timeout_sec", "started_at", "completed_at",
			"scheduling_done_at", "description", "created_at"}).
			AddRow(dep.ID, "eval-sweep", "", true, "executing", nil, nil, []uuid.UUID{clusterID}, 60, 120, nil, nil, nil, "", nil)
		mock.ExpectQuery(`UPDATE batch_job_deployments`).WillReturnRows(depRows)

		updated, groups, jobs, err := ctrl.Expand(ctx, dep, sweepManifest(), clusterID)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Status).To(Equal(batchjob.StatusExecuting))
		Expect(groups).To(HaveLen(1))
		Expect(jobs).To(HaveLen(1))
		Expect(jobs[0].Status).To(Equal(batchjob.JobPending))

		res := executor.ReadPod(ctx, "default", "")
		Expect(res.Status).To(Equal(k8sexec.StatusSuccess))
	})

	It("places a pending job onto an allocatable node and advances it to preparing", func() {
		executor := k8sexec.NewFakeExecutor()
		ctrl := batchctl.NewController(map[uuid.UUID]*k8sexec.Executor{clusterID: executor}, repo, discardLogger())

		renderedManifest, err := json.Marshal(sweepManifest())
		Expect(err).NotTo(HaveOccurred())

		group := batchjob.BatchJobGroup{
			ID: uuid.New(), ExecClusterID: clusterID, GroupPostfix: "abc1234567",
			LifecycleModuleName: "planner", RenderedManifestJSON: renderedManifest,
		}
		job := batchjob.KuberosJob{ID: uuid.New(), GroupID: group.ID, Slug: "job0123456", Status: batchjob.JobPending,
			StartupTimeoutSec: 60, RunningTimeoutSec: 120}

		jobRows := pgxmock.NewRows([]string{"id", "group_id", "slug", "status", "running_timeout_sec", "startup_timeout_sec",
			"disc_server", "scheduled_modules", "pod_status", "service_status", "node_hostname", "volume", "module_pods",
			"last_check_at", "scheduled_at", "running_at", "success_completed"}).
			AddRow(job.ID, group.ID, job.Slug, "PREPARING", 120, 60, nil, nil, nil, nil, "node-1", nil, nil, nil, nil, nil, false)
		mock.ExpectQuery(`UPDATE batch_kuberos_jobs`).WillReturnRows(jobRows)

		nodes := []batchsched.NodeSnapshot{{Hostname: "node-1", CPUAvailableCores: 4, CPUAllocatable: 4}}
		placed, err := ctrl.PlaceTick(ctx, group, []batchjob.KuberosJob{job}, nodes, batchjob.VolumeSpec{})
		Expect(err).NotTo(HaveOccurred())
		Expect(placed).To(HaveLen(1))
		Expect(placed[0].Status).To(Equal(batchjob.JobStatus("PREPARING")))

		res := executor.ReadPod(ctx, "default", "abc1234567-disc-job0123456")
		Expect(res.Status).To(Equal(k8sexec.StatusSuccess))
		Expect(res.Data.Phase).NotTo(Equal(k8sexec.PodNotFound))
	})

	It("advances preparing to prepared once the discovery server pod is running, creating module pods", func() {
		discPod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "abc1234567-disc-job0123456", Namespace: "default"},
			Status:     corev1.PodStatus{Phase: corev1.PodRunning},
		}
		executor := k8sexec.NewFakeExecutor(discPod)
		ctrl := batchctl.NewController(map[uuid.UUID]*k8sexec.Executor{clusterID: executor}, repo, discardLogger())

		job := batchjob.KuberosJob{
			Status: batchjob.JobPreparing,
			DiscServer: &deployment.ModuleRef{
				ModuleName: "discovery-server", PodName: "abc1234567-disc-job0123456", Namespace: "default",
			},
			ModulePods: []k8sexec.PodSpec{{Name: "abc1234567-planner-job0123456", Namespace: "default", Image: "planner:latest"}},
		}

		next, changed := ctrl.ReconcileJob(ctx, job, "planner", executor)
		Expect(changed).To(BeTrue())
		Expect(next.Status).To(Equal(batchjob.JobPrepared))

		res := executor.ReadPod(ctx, "default", "abc1234567-planner-job0123456")
		Expect(res.Data.Phase).NotTo(Equal(k8sexec.PodNotFound))
	})

	It("finishes a running job once its lifecycle module pod succeeds", func() {
		lifecyclePod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "abc1234567-planner-job0123456", Namespace: "default"},
			Status:     corev1.PodStatus{Phase: corev1.PodSucceeded},
		}
		executor := k8sexec.NewFakeExecutor(lifecyclePod)
		ctrl := batchctl.NewController(map[uuid.UUID]*k8sexec.Executor{clusterID: executor}, repo, discardLogger())

		job := batchjob.KuberosJob{
			Status: batchjob.JobRunning,
			ScheduledModules: []deployment.ModuleRef{
				{ModuleName: "planner", PodName: "abc1234567-planner-job0123456", Namespace: "default"},
			},
		}

		next, changed := ctrl.ReconcileJob(ctx, job, "planner", executor)
		Expect(changed).To(BeTrue())
		Expect(next.Status).To(Equal(batchjob.JobFinished))
		Expect(next.SuccessCompleted).To(BeTrue())
	})
})
