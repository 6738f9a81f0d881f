package deployctl_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock/v4"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kuberos-io/kuberos/internal/controller/deployctl"
	"github.com/kuberos-io/kuberos/internal/deployment"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
	"github.com/kuberos-io/kuberos/internal/scheduler/appsched"
)

func TestDeployctlSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "deployctl Suite")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func discoveryPlacement(robot string) appsched.RobotPlacement {
	return appsched.RobotPlacement{
		RobotName: robot,
		DiscoveryServerPod: k8sexec.PodSpec{
			Name: robot + "-primary-discovery-server", Namespace: "default", Image: "disc:latest",
		},
		DiscoveryService: k8sexec.ServiceSpec{
			Name: robot + "-primary-discovery-server", Namespace: "default",
		},
		OnboardModules: []k8sexec.PodSpec{{Name: robot + "-camera-driver", Namespace: "default", Image: "camera:latest"}},
	}
}

var _ = Describe("deployment controller", func() {
	var (
		ctx  context.Context
		mock pgxmock.PgxPoolIface
		repo *deployment.Repository
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		mock, err = pgxmock.NewPool()
		Expect(err).NotTo(HaveOccurred())
		repo = deployment.NewRepository(mock)
	})

	AfterEach(func() {
		mock.Close()
	})

	It("creates config maps, a deployment row, and one job per robot placement", func() {
		executor := k8sexec.NewFakeExecutor()
		ctrl := deployctl.NewController(executor, repo, discardLogger())

		fleetID := uuid.New()
		depRows := pgxmock.NewRows([]string{"id", "name", "fleet_id", "status", "active", "running_at",
			"description", "config_map_names", "config_maps_created", "created_at"}).
			AddRow(uuid.New(), "fleet-demo", fleetID, "deploying", true, nil, "", []string{"robot-params"}, true, nil)
		mock.ExpectQuery(`INSERT INTO deployments`).WillReturnRows(depRows)

		jobRows := pgxmock.NewRows([]string{"id", "deployment_id", "robot_name", "phase", "disc_server",
			"onboard_modules", "edge_modules", "cloud_modules", "config_map_names", "pod_status", "service_status", "running_at"}).
			AddRow(uuid.New(), uuid.New(), "robot-01", "disc_server_in_progress", nil, nil, nil, nil, nil, nil, nil, nil)
		mock.ExpectQuery(`INSERT INTO deployment_jobs`).WillReturnRows(jobRows)

		plan := &appsched.Plan{
			ConfigMaps: []appsched.ConfigMapSpec{{Name: "robot-params", Data: map[string]string{"a": "b"}}},
			Robots:     []appsched.RobotPlacement{discoveryPlacement("robot-01")},
		}

		_, jobs, err := ctrl.StartDeployment(ctx, fleetID, "fleet-demo", plan)
		Expect(err).NotTo(HaveOccurred())
		Expect(jobs).To(HaveLen(1))
		Expect(jobs[0].Phase).To(Equal(deployment.PhaseDiscServerInProgress))

		res := executor.ReadPod(ctx, "default", "robot-01-primary-discovery-server")
		Expect(res.Status).To(Equal(k8sexec.StatusSuccess))
		Expect(res.Data.Phase).NotTo(Equal(k8sexec.PodNotFound))
	})

	It("advances disc_server_in_progress to rosmodule_in_progress once the discovery pod is running, emitting module pods", func() {
		discPod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "robot-01-primary-discovery-server", Namespace: "default"},
			Status:     corev1.PodStatus{Phase: corev1.PodRunning},
		}
		executor := k8sexec.NewFakeExecutor(discPod)
		ctrl := deployctl.NewController(executor, repo, discardLogger())

		job := deployment.DeploymentJob{
			Phase: deployment.PhaseDiscServerInProgress,
			DiscServer: &deployment.ModuleRef{
				ModuleName: "discovery-server", PodName: "robot-01-primary-discovery-server", Namespace: "default",
			},
		}

		onboard := []k8sexec.PodSpec{{Name: "robot-01-camera-driver", Namespace: "default", Image: "camera:latest"}}
		next, changed, err := ctrl.ReconcileJob(ctx, job, onboard, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
		Expect(next.Phase).To(Equal(deployment.PhaseRosmoduleInProgress))

		res := executor.ReadPod(ctx, "default", "robot-01-camera-driver")
		Expect(res.Status).To(Equal(k8sexec.StatusSuccess))
		Expect(res.Data.Phase).NotTo(Equal(k8sexec.PodNotFound))
	})

	It("advances rosmodule_in_progress to deploy_success once every module pod is running", func() {
		modulePod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "robot-01-camera-driver", Namespace: "default"},
			Status:     corev1.PodStatus{Phase: corev1.PodRunning},
		}
		executor := k8sexec.NewFakeExecutor(modulePod)
		ctrl := deployctl.NewController(executor, repo, discardLogger())

		job := deployment.DeploymentJob{
			Phase:          deployment.PhaseRosmoduleInProgress,
			OnboardModules: []deployment.ModuleRef{{ModuleName: "camera-driver", PodName: "robot-01-camera-driver", Namespace: "default"}},
		}

		next, changed, err := ctrl.ReconcileJob(ctx, job, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
		Expect(next.Phase).To(Equal(deployment.PhaseDeploySuccess))
		Expect(next.RunningAt).NotTo(BeNil())
	})

	It("aggregates all-deploy_success jobs into a running deployment", func() {
		depID := uuid.New()
		dep := deployment.Deployment{ID: depID, Name: "fleet-demo"}
		jobs := []deployment.DeploymentJob{{Phase: deployment.PhaseDeploySuccess}, {Phase: deployment.PhaseDeploySuccess}}

		rows := pgxmock.NewRows([]string{"id", "name", "fleet_id", "status", "active", "running_at",
			"description", "config_map_names", "config_maps_created", "created_at"}).
			AddRow(depID, "fleet-demo", uuid.New(), "running", true, nil, "", nil, false, nil)
		mock.ExpectQuery(`UPDATE deployments`).WillReturnRows(rows)

		executor := k8sexec.NewFakeExecutor()
		ctrl := deployctl.NewController(executor, repo, discardLogger())

		updated, err := ctrl.ReconcileDeployment(ctx, dep, jobs)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Status).To(Equal(deployment.StatusRunning))
	})

	It("deletes every job's pods on a forced delete request", func() {
		discPod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "robot-01-primary-discovery-server", Namespace: "default"}}
		modPod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "robot-01-camera-driver", Namespace: "default"}}
		executor := k8sexec.NewFakeExecutor(discPod, modPod)
		ctrl := deployctl.NewController(executor, repo, discardLogger())

		jobs := []deployment.DeploymentJob{{
			Phase:          deployment.PhaseRosmoduleInProgress,
			DiscServer:     &deployment.ModuleRef{PodName: "robot-01-primary-discovery-server", Namespace: "default"},
			OnboardModules: []deployment.ModuleRef{{PodName: "robot-01-camera-driver", Namespace: "default"}},
		}}

		out, err := ctrl.RequestDelete(ctx, jobs)
		Expect(err).NotTo(HaveOccurred())
		Expect(out[0].Phase).To(Equal(deployment.PhaseDeleteInProgress))

		res := executor.ReadPod(ctx, "default", "robot-01-camera-driver")
		Expect(res.Data.Phase).To(Equal(k8sexec.PodNotFound))
	})
})
