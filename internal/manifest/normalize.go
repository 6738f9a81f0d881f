package manifest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kuberos-io/kuberos/internal/typederrors"
)

// CPUQuantity is a CPU amount normalised to fractional cores. The wire format accepts either
// a bare number of cores or a "<N>m" millicore string; normalisation to cores happens once,
// at decode time, per spec.md §4.1.
type CPUQuantity float64

// Cores returns the quantity as a number of cores.
func (q CPUQuantity) Cores() float64 {
	return float64(q)
}

func (q *CPUQuantity) UnmarshalJSON(data []byte) error {
	var asNumber float64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*q = CPUQuantity(asNumber)
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return fmt.Errorf("cpu quantity must be a number of cores or a millicore string: %w", err)
	}
	cores, err := parseMillicoreString(asString)
	if err != nil {
		return err
	}
	*q = CPUQuantity(cores)
	return nil
}

func parseMillicoreString(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasSuffix(trimmed, "m") {
		milli, err := strconv.ParseFloat(strings.TrimSuffix(trimmed, "m"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid millicore cpu quantity %q: %w", s, err)
		}
		return milli / 1000.0, nil
	}
	cores, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cpu quantity %q: %w", s, err)
	}
	return cores, nil
}

// parseLaunchParameters resolves the manifest's raw `launchParameters` map - name -> single
// key dotted reference - into typed LaunchParamRef values, splitting each dotted reference
// into namespace and key and classifying it by letter case (spec.md §4.1).
func parseLaunchParameters(raw map[string]map[string]json.RawMessage) ([]LaunchParamRef, error) {
	refs := make([]LaunchParamRef, 0, len(raw))
	for param, inner := range raw {
		if len(inner) != 1 {
			return nil, typederrors.NewInvalidDeploymentManifestError(nil,
				"launch parameter %q must reference exactly one namespace.key", param)
		}
		var dotted string
		for key := range inner {
			dotted = key
		}

		namespace, key, ok := strings.Cut(dotted, ".")
		if !ok {
			return nil, typederrors.NewInvalidDeploymentManifestError(nil,
				"launch parameter %q reference %q must be of the form namespace.key", param, dotted)
		}

		refs = append(refs, LaunchParamRef{
			Param:     param,
			Kind:      classifyLaunchParam(dotted),
			Namespace: strings.ToLower(namespace),
			Key:       strings.ToLower(key),
		})
	}
	return refs, nil
}

// classifyLaunchParam mirrors the original's check_launch_param_type: an all-uppercase
// dotted reference names a device parameter, all-lowercase names a ros-param, anything
// mixed-case is unknown.
func classifyLaunchParam(dotted string) LaunchParamKind {
	switch {
	case dotted == strings.ToUpper(dotted) && dotted != strings.ToLower(dotted):
		return LaunchParamDevice
	case dotted == strings.ToLower(dotted) && dotted != strings.ToUpper(dotted):
		return LaunchParamRosparam
	default:
		return LaunchParamUnknown
	}
}

// normalizeSourceWs applies the default workspace path and ensures a trailing slash, as the
// original's RosModuleManifest.source_ws property does.
func normalizeSourceWs(raw string) string {
	if raw == "" {
		raw = defaultSourceWorkspace
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return raw
}

// replaceBooleansForConfigMap stringifies boolean values to "True"/"False", the form
// Kubernetes ConfigMap data requires (values must be strings), matching the original's
// RosParamMap.replace_boolean_for_configmap.
func replaceBooleansForConfigMap(data map[string]json.RawMessage) (map[string]string, error) {
	out := make(map[string]string, len(data))
	for key, raw := range data {
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			if b {
				out[key] = "True"
			} else {
				out[key] = "False"
			}
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out[key] = s
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			out[key] = n.String()
			continue
		}
		return nil, fmt.Errorf("unsupported rosParamMap value for key %q", key)
	}
	return out, nil
}
