package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/kuberos-io/kuberos/internal/typederrors"
)

// RosParamMap is one parsed entry of the manifest's `rosParamMap` array: either an inline
// key-value map or a YAML document, always exposed as a name -> ConfigMap-ready content pair
// (spec.md §4.1).
type RosParamMap struct {
	Name string
	Type ParamType
	// Data holds the ConfigMap-ready key-value content for a "key-value" map.
	Data map[string]string
	// YAMLContent holds the raw YAML document content for a "yaml" map, keyed by the single
	// file name under which it is mounted.
	YAMLContent string
	YAMLPath    string
}

// manifestDocument is the raw wire shape of a deployment manifest, decoded once and then
// converted into the typed Manifest view the rest of the system consumes.
type manifestDocument struct {
	Metadata          Metadata                 `json:"metadata"`
	RosModules        []rosModuleDocument       `json:"rosModules"`
	RosParamMap       []rosParamMapDocument     `json:"rosParamMap"`
	StaticFileMap     []staticFileDocument      `json:"staticFileMap"`
	ContainerRegistry []ContainerRegistry       `json:"containerRegistry"`
	JobSpec           *jobSpecDocument          `json:"jobSpec"`
}

type rosModuleDocument struct {
	Name              string                            `json:"name"`
	Image             string                             `json:"image"`
	Entrypoint        []string                           `json:"entrypoint"`
	SourceWs          string                             `json:"sourceWs"`
	Preference        []Preference                       `json:"preference"`
	Requirements      requirementsDocument               `json:"requirements"`
	ResourceRequest   *resourceDocument                  `json:"resourceRequest"`
	ResourceOptimal   *resourceDocument                  `json:"resourceOptimal"`
	RosParameters     []RosParameterRef                  `json:"rosParameters"`
	LaunchParameters  map[string]map[string]json.RawMessage `json:"launchParameters"`
	ContainerRegistry string                             `json:"containerRegistry"`
}

type requirementsDocument struct {
	PeripheralDevices []string `json:"peripheral_devices"`
	CPUArch           string   `json:"cpuArch"`
	ContainerRuntime  string   `json:"containerRuntime"`
}

type resourceDocument struct {
	CPU CPUQuantity `json:"cpu"`
}

type rosParamMapDocument struct {
	Name string                     `json:"name"`
	Type ParamType                  `json:"type"`
	Data map[string]json.RawMessage `json:"data"`
	Path string                     `json:"path"`
}

type staticFileDocument struct {
	Name     string `json:"name"`
	DestPath string `json:"destPath"`
	Content  string `json:"content"`
}

type jobSpecDocument struct {
	VaryingParameters     []VaryingParameter  `json:"varyingParameters"`
	LifecycleModule       LifecycleModuleRef  `json:"lifecycleModule"`
	ResourceRequest       *resourceDocument   `json:"resourceRequest"`
	ResourceOptimal       *resourceDocument   `json:"resourceOptimal"`
	NumProNode            int                 `json:"numProNode"`
	StartupTimeoutSeconds int                 `json:"startupTimeoutSeconds"`
	RunningTimeoutSeconds int                 `json:"runningTimeoutSeconds"`
}

func (doc *manifestDocument) toManifest() (*Manifest, error) {
	m := &Manifest{
		Metadata:          doc.Metadata,
		ContainerRegistry: doc.ContainerRegistry,
	}

	for _, pm := range doc.RosParamMap {
		converted, err := pm.toRosParamMap()
		if err != nil {
			return nil, err
		}
		m.RosParamMap = append(m.RosParamMap, converted)
	}

	for _, sf := range doc.StaticFileMap {
		m.StaticFileMap = append(m.StaticFileMap, StaticFileEntry{
			Name:     sf.Name,
			DestPath: sf.DestPath,
			Content:  sf.Content,
		})
	}

	for _, rm := range doc.RosModules {
		converted, err := rm.toRosModule()
		if err != nil {
			return nil, err
		}
		m.RosModules = append(m.RosModules, converted)
	}

	if doc.JobSpec != nil {
		js, err := doc.JobSpec.toJobSpec()
		if err != nil {
			return nil, err
		}
		m.JobSpec = js
	}

	return m, nil
}

func (pm *rosParamMapDocument) toRosParamMap() (RosParamMap, error) {
	switch pm.Type {
	case ParamTypeYAML:
		return RosParamMap{Name: pm.Name, Type: ParamTypeYAML, YAMLPath: pm.Path}, nil
	case ParamTypeKeyValue:
		data, err := replaceBooleansForConfigMap(pm.Data)
		if err != nil {
			return RosParamMap{}, typederrors.NewInvalidDeploymentManifestError(err,
				"rosParamMap %q: %v", pm.Name, err)
		}
		return RosParamMap{Name: pm.Name, Type: ParamTypeKeyValue, Data: data}, nil
	default:
		return RosParamMap{}, typederrors.NewInvalidDeploymentManifestError(nil,
			"unsupported rosParamMap type %q for %q", pm.Type, pm.Name)
	}
}

func (rm *rosModuleDocument) toRosModule() (RosModule, error) {
	launchParams, err := parseLaunchParameters(rm.LaunchParameters)
	if err != nil {
		return RosModule{}, err
	}

	preference := PreferenceOnboard
	if len(rm.Preference) > 0 {
		preference = rm.Preference[0]
	}

	module := RosModule{
		Name:              rm.Name,
		Image:             rm.Image,
		Entrypoint:        rm.Entrypoint,
		SourceWs:          normalizeSourceWs(rm.SourceWs),
		Preference:        preference,
		PeripheralDevices: rm.Requirements.PeripheralDevices,
		CPUArch:           rm.Requirements.CPUArch,
		ContainerRuntime:  rm.Requirements.ContainerRuntime,
		RosParameters:     rm.RosParameters,
		LaunchParameters:  launchParams,
		ContainerRegistry: rm.ContainerRegistry,
	}
	if rm.ResourceRequest != nil {
		module.ResourceRequestCPU = rm.ResourceRequest.CPU
	}
	if rm.ResourceOptimal != nil {
		module.ResourceOptimalCPU = rm.ResourceOptimal.CPU
	}
	if module.ResourceOptimalCPU == 0 {
		module.ResourceOptimalCPU = module.ResourceRequestCPU
	}
	return module, nil
}

func (js *jobSpecDocument) toJobSpec() (*JobSpec, error) {
	spec := &JobSpec{
		VaryingParameters:     js.VaryingParameters,
		LifecycleModule:       js.LifecycleModule,
		NumProNode:            js.NumProNode,
		StartupTimeoutSeconds: js.StartupTimeoutSeconds,
		RunningTimeoutSeconds: js.RunningTimeoutSeconds,
	}
	if js.ResourceRequest != nil {
		spec.ResourceRequestCPU = js.ResourceRequest.CPU
	}
	if js.ResourceOptimal != nil {
		spec.ResourceOptimalCPU = js.ResourceOptimal.CPU
	}
	if spec.ResourceOptimalCPU == 0 {
		spec.ResourceOptimalCPU = spec.ResourceRequestCPU
	}
	if len(spec.VaryingParameters) == 0 {
		return nil, fmt.Errorf("jobSpec requires at least one varying parameter")
	}
	return spec, nil
}
