package manifest

import (
	"github.com/kuberos-io/kuberos/internal/typederrors"
)

// Validate checks the structural invariants spec.md §4.1 assumes a manifest satisfies before
// it ever reaches the scheduler: every module names an image and entrypoint, every required
// rosparam resolves to a declared parameter map, and preferences are one of the three known
// values.
func Validate(m *Manifest) error {
	if m.Metadata.Name == "" {
		return typederrors.NewInvalidDeploymentManifestError(nil, "metadata.name is required")
	}
	if m.Metadata.TargetFleet == "" {
		return typederrors.NewInvalidDeploymentManifestError(nil, "metadata.targetFleet is required")
	}
	if len(m.RosModules) == 0 {
		return typederrors.NewInvalidDeploymentManifestError(nil, "rosModules must contain at least one module")
	}

	for _, module := range m.RosModules {
		if err := validateModule(m, module); err != nil {
			return err
		}
	}
	return nil
}

func validateModule(m *Manifest, module RosModule) error {
	if module.Name == "" {
		return typederrors.NewInvalidDeploymentManifestError(nil, "every rosModule requires a name")
	}
	if module.Image == "" {
		return typederrors.NewInvalidDeploymentManifestError(nil, "rosModule %q requires an image", module.Name)
	}
	if len(module.Entrypoint) == 0 {
		return typederrors.NewInvalidDeploymentManifestError(nil, "rosModule %q requires an entrypoint", module.Name)
	}
	switch module.Preference {
	case PreferenceOnboard, PreferenceEdge, PreferenceCloud:
	default:
		return typederrors.NewInvalidDeploymentManifestError(nil,
			"rosModule %q has unknown preference %q", module.Name, module.Preference)
	}

	for _, param := range module.RosParameters {
		if param.Type != ParamTypeYAML && param.Type != ParamTypeKeyValue {
			return typederrors.NewInvalidDeploymentManifestError(nil,
				"rosModule %q rosParameter %q has unknown type %q", module.Name, param.Name, param.Type)
		}
		if _, ok := m.RosParamMapByName(param.ValueFrom); !ok {
			return typederrors.NewInvalidDeploymentManifestError(nil,
				"rosModule %q rosParameter %q references unknown rosParamMap %q", module.Name, param.Name, param.ValueFrom)
		}
	}

	for _, lp := range module.LaunchParameters {
		if lp.Kind == LaunchParamUnknown {
			return typederrors.NewInvalidDeploymentManifestError(nil,
				"rosModule %q launch parameter %q has a mixed-case reference, cannot classify as device or rosparam", module.Name, lp.Param)
		}
	}

	return nil
}
