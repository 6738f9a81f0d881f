// Package manifest parses and validates a deployment manifest (spec.md §4.1), exposing
// typed views of its modules, parameter maps, job spec, and container-registry references.
//
// Grounded on the original implementation's scheduler.manifest/rosmodule/rosparameter
// modules (_examples/original_source/kuberos/pykuberos/scheduler/{manifest,rosmodule,
// rosparameter}.py), which parse the same manifest shape from a plain dict.
package manifest

import (
	"fmt"

	"sigs.k8s.io/yaml"
)

const defaultSourceWorkspace = "/workspace/install/"

// Preference is where a module prefers to run.
type Preference string

const (
	PreferenceOnboard Preference = "onboard"
	PreferenceEdge    Preference = "edge"
	PreferenceCloud   Preference = "cloud"
)

// ParamType is the kind of a required ROS parameter, or of a RosParamMap entry.
type ParamType string

const (
	ParamTypeYAML     ParamType = "yaml"
	ParamTypeKeyValue ParamType = "key-value"
)

// LaunchParamKind distinguishes a device-specific launch parameter from one sourced from an
// attached ros-param-map, per the UPPERCASE/lowercase convention of spec.md §4.1.
type LaunchParamKind string

const (
	LaunchParamDevice   LaunchParamKind = "device"
	LaunchParamRosparam LaunchParamKind = "rosparam"
	LaunchParamUnknown  LaunchParamKind = "unknown"
)

// Metadata is the manifest's `metadata` block.
type Metadata struct {
	Name             string   `json:"name"`
	SubName          string   `json:"subName,omitempty"`
	TargetFleet      string   `json:"targetFleet"`
	TargetRobots     []string `json:"targetRobots,omitempty"`
	ExecClusters     []string `json:"execClusters,omitempty"`
	UseRobotResource bool     `json:"useRobotResource,omitempty"`
}

// ContainerRegistry is one entry of the manifest's `containerRegistry` array.
type ContainerRegistry struct {
	Name            string `json:"name"`
	ImagePullSecret string `json:"imagePullSecret"`
	ImagePullPolicy string `json:"imagePullPolicy"`
}

// RosParameterRef is one item of a module's required rosparam list.
type RosParameterRef struct {
	Name      string    `json:"name"`
	Type      ParamType `json:"type"`
	ValueFrom string    `json:"valueFrom"`
	MountPath string    `json:"mountPath,omitempty"`
}

// LaunchParamRef is one resolved entry of a module's `launchParameters` map: the dotted
// `namespace.key` reference split and classified by case.
type LaunchParamRef struct {
	Param     string          `json:"param"`
	Kind      LaunchParamKind `json:"kind"`
	Namespace string          `json:"namespace"`
	Key       string          `json:"key"`
}

// RosModule is a single containerised process bound to a fleet robot (spec.md §4.1).
type RosModule struct {
	Name                string
	Image               string
	Entrypoint          []string
	SourceWs            string
	Preference          Preference
	PeripheralDevices   []string
	CPUArch             string
	ContainerRuntime    string
	ResourceRequestCPU  CPUQuantity
	ResourceOptimalCPU  CPUQuantity
	RosParameters       []RosParameterRef
	LaunchParameters    []LaunchParamRef
	ContainerRegistry   string
}

// JobSpec is the manifest's optional `jobSpec`, present only for batch-job deployments
// (spec.md §4.4).
type JobSpec struct {
	VaryingParameters     []VaryingParameter
	LifecycleModule       LifecycleModuleRef
	ResourceRequestCPU    CPUQuantity
	ResourceOptimalCPU    CPUQuantity
	NumProNode            int
	StartupTimeoutSeconds int
	RunningTimeoutSeconds int
}

// VaryingParameter is one dimension of a batch job's parameter sweep.
type VaryingParameter struct {
	ToRosParamMap string
	ParamName     string
	ValueList     []string
}

// LifecycleModuleRef names the module that drives a batch job's lifecycle and how many
// times it should be repeated per parameter combination.
type LifecycleModuleRef struct {
	Name      string
	RepeatNum int
}

// Manifest is a fully parsed KubeROS deployment manifest.
type Manifest struct {
	Metadata          Metadata
	RosModules        []RosModule
	RosParamMap       []RosParamMap
	StaticFileMap     []StaticFileEntry
	ContainerRegistry []ContainerRegistry
	JobSpec           *JobSpec
}

// StaticFileEntry is one entry of the manifest's optional `staticFileMap`: a file to be
// written verbatim into a module's container at a fixed path.
type StaticFileEntry struct {
	Name     string
	DestPath string
	Content  string
}

// TargetRobotNames returns the manifest's requested robot names, or nil when the deployment
// targets every robot in the fleet.
func (m *Manifest) TargetRobotNames() []string {
	return m.Metadata.TargetRobots
}

// DefaultContainerRegistry returns the registry entry tagged "default", or a zero-value
// entry with ImagePullPolicy "Always" if none is declared.
func (m *Manifest) DefaultContainerRegistry() ContainerRegistry {
	for _, r := range m.ContainerRegistry {
		if r.Name == "default" {
			return r
		}
	}
	return ContainerRegistry{ImagePullPolicy: "Always"}
}

// ContainerRegistryByName returns the manifest's registry entry matching name, falling back
// to DefaultContainerRegistry when name is empty or not found.
func (m *Manifest) ContainerRegistryByName(name string) ContainerRegistry {
	if name == "" {
		return m.DefaultContainerRegistry()
	}
	for _, r := range m.ContainerRegistry {
		if r.Name == name {
			return r
		}
	}
	return m.DefaultContainerRegistry()
}

// RosParamMapByName looks up one of the manifest's parsed parameter maps by name.
func (m *Manifest) RosParamMapByName(name string) (RosParamMap, bool) {
	for _, pm := range m.RosParamMap {
		if pm.Name == name {
			return pm, true
		}
	}
	return RosParamMap{}, false
}

// Parse decodes raw manifest bytes (YAML or JSON; sigs.k8s.io/yaml accepts both) into a
// Manifest, normalising CPU quantities and launch-parameter references as it goes, then
// validates the result.
func Parse(raw []byte) (*Manifest, error) {
	var doc manifestDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding deployment manifest: %w", err)
	}

	m, err := doc.toManifest()
	if err != nil {
		return nil, err
	}
	if err := Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}
