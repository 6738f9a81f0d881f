package appsched_test

import (
	"testing"

	"github.com/google/uuid"
	. "github.com/onsi/gomega"

	"github.com/kuberos-io/kuberos/internal/fleet"
	"github.com/kuberos-io/kuberos/internal/manifest"
	"github.com/kuberos-io/kuberos/internal/scheduler/appsched"
)

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Metadata: manifest.Metadata{Name: "nav-stack", TargetFleet: "warehouse-a"},
		RosModules: []manifest.RosModule{
			{
				Name:              "lidar-driver",
				Image:             "registry.local/lidar-driver:1.0",
				Entrypoint:        []string{"ros2", "launch", "lidar_driver", "driver.launch.py"},
				Preference:        manifest.PreferenceOnboard,
				PeripheralDevices: []string{"sick-lidar"},
				LaunchParameters: []manifest.LaunchParamRef{
					{Param: "device_ip", Kind: manifest.LaunchParamDevice, Namespace: "sick_lidar", Key: "ip_address"},
				},
			},
			{
				Name:       "fleet-manager",
				Image:      "registry.local/fleet-manager:1.0",
				Entrypoint: []string{"ros2", "launch", "fleet_manager", "manager.launch.py"},
				Preference: manifest.PreferenceCloud,
				RosParameters: []manifest.RosParameterRef{
					{Name: "nav-params", Type: manifest.ParamTypeYAML, ValueFrom: "nav-params", MountPath: "/config"},
				},
			},
		},
		RosParamMap: []manifest.RosParamMap{
			{Name: "nav-params", Type: manifest.ParamTypeYAML, YAMLContent: "max_speed: 1.0\n"},
		},
	}
}

func testSnapshot() appsched.FleetSnapshot {
	clusterNodeID := uuid.New()
	node := fleet.FleetNode{
		ID:            uuid.New(),
		ClusterNodeID: clusterNodeID,
		Hostname:      "robot-01-onboard",
		RobotName:     "robot-01",
		RobotID:       "R-01",
		Status:        fleet.FleetNodeDeployable,
	}
	clusterNode := fleet.ClusterNode{
		ID: clusterNodeID,
		PeripheralDevices: []fleet.PeripheralDevice{
			{DeviceName: "sick-lidar", Parameter: map[string]string{"ip_address": "192.168.1.50"}},
		},
	}
	return appsched.NewFleetSnapshot([]fleet.FleetNode{node}, map[string]fleet.ClusterNode{
		clusterNodeID.String(): clusterNode,
	})
}

func TestScheduleProducesDiscoveryServerAndModulePods(t *testing.T) {
	g := NewWithT(t)

	plan, err := appsched.Schedule(testManifest(), testSnapshot())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(plan.Robots).To(HaveLen(1))

	robot := plan.Robots[0]
	g.Expect(robot.RobotName).To(Equal("robot-01"))
	g.Expect(robot.DiscoveryServerPod.Name).To(Equal("robot-01-primary-discovery-server"))
	g.Expect(robot.DiscoveryService.Name).To(Equal("robot-01-primary-discovery-server"))
	g.Expect(robot.OnboardModules).To(HaveLen(1))
	g.Expect(robot.EdgeModules).To(HaveLen(1))

	onboard := robot.OnboardModules[0]
	g.Expect(onboard.NodeSelector).To(HaveKeyWithValue("device.kuberos.io/hostname", "robot-01-onboard"))
	g.Expect(onboard.Args).To(HaveLen(2))
	g.Expect(onboard.Args[1]).To(ContainSubstring("--device_ip:=192.168.1.50"))
	g.Expect(onboard.Args[1]).To(ContainSubstring("ROS_DISCOVERY_SERVER"))

	edge := robot.EdgeModules[0]
	g.Expect(edge.NodeSelector).To(HaveKeyWithValue("kuberos.io/role", "cloud"))
	g.Expect(edge.Volumes).To(HaveLen(1))
	g.Expect(edge.VolumeMounts).To(HaveLen(1))
	g.Expect(edge.VolumeMounts[0].MountPath).To(Equal("/config"))

	g.Expect(plan.ConfigMaps).To(HaveLen(1))
	g.Expect(plan.ConfigMaps[0].Name).To(Equal("nav-params"))
	g.Expect(plan.ConfigMaps[0].Data).To(HaveKeyWithValue("params.yaml", "max_speed: 1.0\n"))
}

func TestScheduleFailsWhenFleetNotDeployable(t *testing.T) {
	g := NewWithT(t)

	snap := appsched.FleetSnapshot{Deployable: false}
	_, err := appsched.Schedule(testManifest(), snap)
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("not deployable"))
}

func TestScheduleFailsWhenTargetRobotMissing(t *testing.T) {
	g := NewWithT(t)

	m := testManifest()
	m.Metadata.TargetRobots = []string{"robot-99"}

	_, err := appsched.Schedule(m, testSnapshot())
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("robot-99"))
}

func TestScheduleFailsWhenRequiredPeripheralDeviceMissing(t *testing.T) {
	g := NewWithT(t)

	m := testManifest()
	m.RosModules[0].PeripheralDevices = []string{"missing-device"}

	_, err := appsched.Schedule(m, testSnapshot())
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("missing-device"))
}
