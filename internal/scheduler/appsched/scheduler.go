package appsched

import (
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/kuberos-io/kuberos/internal/fleet"
	"github.com/kuberos-io/kuberos/internal/k8sexec"
	"github.com/kuberos-io/kuberos/internal/manifest"
	"github.com/kuberos-io/kuberos/internal/typederrors"
)

const (
	defaultROSVersion   = "humble"
	podNamespace        = "default"
	ddsImagePullPolicy  = corev1.PullAlways
	discoveryServerImage = "eclipse-cyclonedds/cyclonedds-discovery-server:latest"
)

// FleetSnapshot is the scheduler's view of a fleet: its computed deployability, the robots
// currently bound into it, and the ClusterNode state backing each robot's primary onboard
// node, keyed by robot name. Built by the caller from internal/fleet's repository, kept
// separate from it so this package stays independent of persistence.
type FleetSnapshot struct {
	Deployable   bool
	RobotsByName map[string]robotSource
	// OnboardCompGroups lists the fleet's computer group names sorted alphabetically, used
	// only to pick the first for the discovery-server placement warning.
	OnboardCompGroups []string
}

// NewFleetSnapshot builds a FleetSnapshot from a fleet's current nodes, following the
// original's FleetState: robot entities are constructed from the onboard comp-group nodes,
// one per robot, keyed by robot name.
func NewFleetSnapshot(nodes []fleet.FleetNode, clusterNodesByID map[string]fleet.ClusterNode) FleetSnapshot {
	snap := FleetSnapshot{RobotsByName: make(map[string]robotSource)}
	groups := fleet.ComputerGroups(nodes)
	groupNames := make([]string, 0, len(groups))
	for g := range groups {
		groupNames = append(groupNames, g)
	}
	sort.Strings(groupNames)
	snap.OnboardCompGroups = groupNames

	snap.Deployable = fleet.IsDeployable(nodes)

	for _, n := range nodes {
		if n.Status != fleet.FleetNodeDeployable && n.Status != fleet.FleetNodeActive {
			continue
		}
		cn, ok := clusterNodesByID[n.ClusterNodeID.String()]
		if !ok {
			continue
		}
		snap.RobotsByName[n.RobotName] = robotSource{
			RobotName:         n.RobotName,
			RobotID:           n.RobotID,
			Hostname:          n.Hostname,
			PeripheralDevices: cn.PeripheralDevices,
		}
	}
	return snap
}

// Schedule runs the application scheduler's placement algorithm (spec.md §4.3) for the given
// manifest against a fleet snapshot, returning one RobotPlacement per selected robot plus the
// deployment's global ConfigMaps.
func Schedule(m *manifest.Manifest, snap FleetSnapshot) (*Plan, error) {
	if !snap.Deployable {
		return nil, typederrors.NewFleetResourceCheckFailedError("fleet %q is not deployable", m.Metadata.TargetFleet)
	}

	robots, err := selectRobots(m, snap)
	if err != nil {
		return nil, err
	}

	plan := &Plan{ConfigMaps: globalConfigMaps(m)}
	if len(snap.OnboardCompGroups) > 1 {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"more than one computer group is available in the fleet; the discovery server will be deployed to group %q",
			snap.OnboardCompGroups[0]))
	}

	for _, robot := range robots {
		placement, err := scheduleRobot(m, robot)
		if err != nil {
			return nil, err
		}
		plan.Robots = append(plan.Robots, placement)
	}
	return plan, nil
}

// selectRobots resolves the manifest's target robot names against the fleet snapshot,
// failing with FleetResourceCheckFailed if any named robot is absent (spec.md §4.3 step 1).
func selectRobots(m *manifest.Manifest, snap FleetSnapshot) ([]robotSource, error) {
	names := m.TargetRobotNames()
	if len(names) == 0 {
		names = make([]string, 0, len(snap.RobotsByName))
		for name := range snap.RobotsByName {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	robots := make([]robotSource, 0, len(names))
	for _, name := range names {
		robot, ok := snap.RobotsByName[name]
		if !ok {
			return nil, typederrors.NewFleetResourceCheckFailedError("robot %q is not present in the target fleet", name)
		}
		robots = append(robots, robot)
	}
	return robots, nil
}

// scheduleRobot builds one robot's full placement: its discovery server, then every onboard
// and edge module bound to it (spec.md §4.3 steps 2-7).
func scheduleRobot(m *manifest.Manifest, robot robotSource) (RobotPlacement, error) {
	placement := RobotPlacement{RobotName: robot.RobotName}
	placement.DiscoveryServerPod, placement.DiscoveryService = discoveryServerPlacement(robot)

	for _, module := range m.RosModules {
		switch module.Preference {
		case manifest.PreferenceOnboard:
			if err := checkPeripheralDevices(module, robot); err != nil {
				return RobotPlacement{}, err
			}
			pod, err := materialiseModule(m, module, robot, &placement.DiscoveryService)
			if err != nil {
				return RobotPlacement{}, err
			}
			placement.OnboardModules = append(placement.OnboardModules, pod)

		case manifest.PreferenceEdge, manifest.PreferenceCloud:
			pod, err := materialiseModule(m, module, robot, &placement.DiscoveryService)
			if err != nil {
				return RobotPlacement{}, err
			}
			placement.EdgeModules = append(placement.EdgeModules, pod)
		}
	}
	return placement, nil
}

// discoveryServerPlacement emits the per-robot Fast-DDS discovery server pod and its
// ClusterIP service, pinned to the robot's primary onboard node (spec.md §4.3 step 4).
func discoveryServerPlacement(robot robotSource) (k8sexec.PodSpec, k8sexec.ServiceSpec) {
	name := fmt.Sprintf("%s-primary-discovery-server", robot.RobotName)

	pod := k8sexec.PodSpec{
		Name:      name,
		Namespace: podNamespace,
		Labels:    map[string]string{"kuberos-robot": robot.RobotName, "kuberos-role": "discovery-server"},
		NodeSelector: map[string]string{
			"device.kuberos.io/hostname": robot.Hostname,
		},
		Image:           discoveryServerImage,
		ImagePullPolicy: ddsImagePullPolicy,
		Command:         []string{"/bin/bash"},
		Args: []string{"-c",
			fmt.Sprintf("source /opt/ros/%s/setup.bash; fastdds discovery --server-id 0 --port %d -b", defaultROSVersion, discoveryServerPort)},
		Ports: []corev1.ContainerPort{{ContainerPort: discoveryServerPort, Protocol: corev1.ProtocolUDP}},
	}

	svc := k8sexec.ServiceSpec{
		Name:      name,
		Namespace: podNamespace,
		Selector:  map[string]string{"kuberos-robot": robot.RobotName, "kuberos-role": "discovery-server"},
		Ports: []corev1.ServicePort{{
			Port:       discoveryServiceSvcPort,
			TargetPort: intstr.FromInt32(discoveryServerPort),
			Protocol:   corev1.ProtocolUDP,
		}},
		Type: corev1.ServiceTypeClusterIP,
	}
	return pod, svc
}

// checkPeripheralDevices verifies every device an onboard module requires is present on its
// target robot's primary node (spec.md §4.3 step 3).
func checkPeripheralDevices(module manifest.RosModule, robot robotSource) error {
	available := make(map[string]struct{}, len(robot.PeripheralDevices))
	for _, d := range robot.PeripheralDevices {
		available[d.DeviceName] = struct{}{}
	}
	for _, required := range module.PeripheralDevices {
		if _, ok := available[required]; !ok {
			return typederrors.NewFleetResourceCheckFailedError(
				"required peripheral device %q is not available on node %q", required, robot.Hostname)
		}
	}
	return nil
}

// materialiseModule builds the pod for one module bound to one robot (spec.md §4.3 steps
// 5-7): node selector by preference, container image/pull-secret/policy from its registry
// entry, the ROS launch shell line, and parameter materialisation (ConfigMap volumes, env
// vars, and launch-argument substitution).
func materialiseModule(m *manifest.Manifest, module manifest.RosModule, robot robotSource, discSvc *k8sexec.ServiceSpec) (k8sexec.PodSpec, error) {
	podName := fmt.Sprintf("%s-%s", robot.RobotName, module.Name)
	registry := m.ContainerRegistryByName(module.ContainerRegistry)

	nodeSelector := map[string]string{"device.kuberos.io/hostname": robot.Hostname}
	if module.Preference != manifest.PreferenceOnboard {
		nodeSelector = map[string]string{"kuberos.io/role": string(module.Preference)}
	}

	pod := k8sexec.PodSpec{
		Name:            podName,
		Namespace:       podNamespace,
		NodeSelector:    nodeSelector,
		Image:           module.Image,
		ImagePullSecret: registry.ImagePullSecret,
		ImagePullPolicy: corev1.PullPolicy(registry.ImagePullPolicy),
		Command:         []string{"/bin/bash"},
	}

	launchArgs, err := resolveLaunchArgs(m, module, robot, &pod)
	if err != nil {
		return k8sexec.PodSpec{}, err
	}

	svcEnvHost, svcEnvPort := discoveryEnvNames(discSvc.Name)
	sourceWs := module.SourceWs
	if sourceWs == "" {
		sourceWs = "/workspace/install/"
	}
	shellLine := strings.Join([]string{
		fmt.Sprintf("source /opt/ros/%s/setup.bash", defaultROSVersion),
		fmt.Sprintf("source %ssetup.bash", sourceWs),
		fmt.Sprintf("export ROS_DISCOVERY_SERVER=$%s:$%s", svcEnvHost, svcEnvPort),
		strings.Join(append(module.Entrypoint, launchArgs...), " "),
	}, "; ")
	pod.Args = []string{"-c", shellLine}

	return pod, nil
}

// discoveryEnvNames mirrors the original's convert_string_to_linux_convention: a service
// name becomes the Kubernetes-injected <NAME>_SERVICE_HOST/_PORT environment variable pair.
func discoveryEnvNames(svcName string) (host, port string) {
	upper := strings.ToUpper(strings.ReplaceAll(svcName, "-", "_"))
	return upper + "_SERVICE_HOST", upper + "_SERVICE_PORT"
}

// resolveLaunchArgs attaches each required rosparam's ConfigMap (as a volume for yaml type,
// or as env vars for key-value type) and resolves UPPERCASE device launch parameters against
// the robot's peripheral devices, returning the ordered `--arg:=value` launch-argument list
// (spec.md §4.3 step 6).
func resolveLaunchArgs(m *manifest.Manifest, module manifest.RosModule, robot robotSource, pod *k8sexec.PodSpec) ([]string, error) {
	var args []string

	for _, rp := range module.RosParameters {
		pm, ok := m.RosParamMapByName(rp.ValueFrom)
		if !ok {
			return nil, typederrors.NewFleetResourceCheckFailedError(
				"module %q references unknown rosParamMap %q", module.Name, rp.ValueFrom)
		}

		switch rp.Type {
		case manifest.ParamTypeYAML:
			attachYAMLVolume(pod, pm.Name, rp.MountPath)
		case manifest.ParamTypeKeyValue:
			args = append(args, attachKeyValueEnv(pod, pm, module.LaunchParameters)...)
		}
	}

	for _, lp := range module.LaunchParameters {
		if lp.Kind != manifest.LaunchParamDevice {
			continue
		}
		value := findDeviceParam(lp.Namespace, lp.Key, robot.PeripheralDevices)
		args = append(args, fmt.Sprintf("--%s:=%s", lp.Param, value))
	}

	return args, nil
}

func attachYAMLVolume(pod *k8sexec.PodSpec, configMapName, mountPath string) {
	volumeName := strings.ReplaceAll(configMapName, ".", "-") + "-volume"
	pod.Volumes = append(pod.Volumes, corev1.Volume{
		Name: volumeName,
		VolumeSource: corev1.VolumeSource{
			ConfigMap: &corev1.ConfigMapVolumeSource{
				LocalObjectReference: corev1.LocalObjectReference{Name: configMapName},
			},
		},
	})
	pod.VolumeMounts = append(pod.VolumeMounts, corev1.VolumeMount{
		Name:      volumeName,
		MountPath: mountPath,
		ReadOnly:  true,
	})
}

// attachKeyValueEnv exposes every key of a key-value ConfigMap as an env var, and for keys
// also referenced by a rosparam launch parameter appends the corresponding launch argument
// substitution (spec.md §4.3 step 6, "either expose it as an env var ... or ... append
// --<launch-param>:=$(<ENV_NAME>)").
func attachKeyValueEnv(pod *k8sexec.PodSpec, pm manifest.RosParamMap, launchParams []manifest.LaunchParamRef) []string {
	var args []string

	rosparamLaunch := make(map[string]manifest.LaunchParamRef)
	for _, lp := range launchParams {
		if lp.Kind == manifest.LaunchParamRosparam && lp.Namespace == pm.Name {
			rosparamLaunch[lp.Key] = lp
		}
	}

	keys := make([]string, 0, len(pm.Data))
	for k := range pm.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		envName := fmt.Sprintf("%s_%s", strings.ToUpper(strings.ReplaceAll(pm.Name, "-", "_")), strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
		pod.Env = append(pod.Env, corev1.EnvVar{
			Name: envName,
			ValueFrom: &corev1.EnvVarSource{
				ConfigMapKeyRef: &corev1.ConfigMapKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: pm.Name},
					Key:                  key,
				},
			},
		})
		if lp, ok := rosparamLaunch[key]; ok {
			args = append(args, fmt.Sprintf("--%s:=$(%s)", lp.Param, envName))
		}
	}
	return args
}

// findDeviceParam mirrors the original's RosModule.find_device_params: device and key names
// are lowercased with underscores mapped to hyphens before lookup, matching the manifest's
// upper-snake-case launch-parameter convention against a peripheral device's parameter map.
func findDeviceParam(deviceNamespace, key string, devices []fleet.PeripheralDevice) string {
	devName := strings.ReplaceAll(strings.ToLower(deviceNamespace), "_", "-")
	valKey := strings.ToUpper(strings.ReplaceAll(strings.ToLower(key), "-", "_"))
	for _, d := range devices {
		if d.DeviceName != devName {
			continue
		}
		return d.UppercaseParameter()[valKey]
	}
	return ""
}

// globalConfigMaps materialises every rosParamMap in the manifest into a ConfigMapSpec,
// the global resources created once per deployment ahead of any pod (spec.md §4.3).
func globalConfigMaps(m *manifest.Manifest) []ConfigMapSpec {
	specs := make([]ConfigMapSpec, 0, len(m.RosParamMap))
	for _, pm := range m.RosParamMap {
		data := pm.Data
		if pm.Type == manifest.ParamTypeYAML {
			data = map[string]string{"params.yaml": pm.YAMLContent}
		}
		specs = append(specs, ConfigMapSpec{Name: pm.Name, Data: data})
	}
	return specs
}
