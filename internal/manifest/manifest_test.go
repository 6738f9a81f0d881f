package manifest

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/kuberos-io/kuberos/internal/typederrors"
)

const sampleManifest = `
metadata:
  name: warehouse-patrol
  targetFleet: warehouse-a
rosParamMap:
  - name: patrol-params
    type: key-value
    data:
      use_sim: false
      max_speed: "1.2"
rosModules:
  - name: patrol-node
    image: registry.example.com/patrol:1.0
    entrypoint: ["ros2", "launch", "patrol", "patrol.launch.py"]
    sourceWs: /workspace/install
    preference: [onboard]
    requirements:
      peripheral_devices: [lidar]
    resourceRequest:
      cpu: "500m"
    rosParameters:
      - name: patrol_config
        type: key-value
        valueFrom: patrol-params
    launchParameters:
      max_speed:
        patrol_params.max_speed: null
`

func TestParseValidManifest(t *testing.T) {
	g := NewWithT(t)

	m, err := Parse([]byte(sampleManifest))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(m.Metadata.Name).To(Equal("warehouse-patrol"))
	g.Expect(m.RosModules).To(HaveLen(1))

	module := m.RosModules[0]
	g.Expect(module.Preference).To(Equal(PreferenceOnboard))
	g.Expect(module.SourceWs).To(Equal("/workspace/install/"))
	g.Expect(module.ResourceRequestCPU.Cores()).To(BeNumerically("~", 0.5, 1e-9))
	g.Expect(module.PeripheralDevices).To(ConsistOf("lidar"))

	g.Expect(module.LaunchParameters).To(HaveLen(1))
	lp := module.LaunchParameters[0]
	g.Expect(lp.Kind).To(Equal(LaunchParamRosparam))
	g.Expect(lp.Namespace).To(Equal("patrol_params"))
	g.Expect(lp.Key).To(Equal("max_speed"))

	pm, ok := m.RosParamMapByName("patrol-params")
	g.Expect(ok).To(BeTrue())
	g.Expect(pm.Data).To(HaveKeyWithValue("use_sim", "False"))
	g.Expect(pm.Data).To(HaveKeyWithValue("max_speed", "1.2"))
}

func TestParseRejectsUnknownParamMapReference(t *testing.T) {
	g := NewWithT(t)

	broken := `
metadata:
  name: broken
  targetFleet: warehouse-a
rosModules:
  - name: patrol-node
    image: registry.example.com/patrol:1.0
    entrypoint: ["ros2", "launch", "patrol", "patrol.launch.py"]
    rosParameters:
      - name: patrol_config
        type: key-value
        valueFrom: does-not-exist
`
	_, err := Parse([]byte(broken))
	g.Expect(err).To(HaveOccurred())
	g.Expect(typederrors.ReasonOf(err)).To(Equal(typederrors.ReasonInvalidDeploymentManifest))
}

func TestCPUQuantityAcceptsCoresOrMillicores(t *testing.T) {
	g := NewWithT(t)

	cores, err := parseMillicoreString("250m")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cores).To(BeNumerically("~", 0.25, 1e-9))

	cores, err = parseMillicoreString("2")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cores).To(BeNumerically("~", 2.0, 1e-9))
}

func TestClassifyLaunchParam(t *testing.T) {
	g := NewWithT(t)

	g.Expect(classifyLaunchParam("SIM_ARM.ROBOT_IP")).To(Equal(LaunchParamDevice))
	g.Expect(classifyLaunchParam("launch_parameters.use_sim")).To(Equal(LaunchParamRosparam))
	g.Expect(classifyLaunchParam("Mixed.Case")).To(Equal(LaunchParamUnknown))
}
