// Package batchsched implements the batch-job scheduler (spec.md §4.4): it expands a job
// spec's varying parameters into BatchJobGroups, materialises their per-group ConfigMaps, and
// places pending jobs onto allocatable cluster nodes per scheduling tick. Grounded on the
// original implementation's main.tasks.batch_job_controller and pykuberos.scheduler.job_scheduler
// (_examples/original_source/kuberos/main/tasks/batch_job_controller.py,
// _examples/original_source/kuberos/pykuberos/scheduler/job_scheduler.py).
package batchsched

import (
	"math/rand"

	"github.com/kuberos-io/kuberos/internal/manifest"
)

const slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomSlug mirrors the original's get_random_string(length, allowed_chars=lowercase+digits).
func randomSlug(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		out[i] = slugAlphabet[rand.Intn(len(slugAlphabet))]
	}
	return string(out), nil
}

// GroupPlan is one expanded combination of a job spec's varying parameters: the rendered
// manifest, a random postfix, and a monotone queue number (spec.md §4.4 Expansion).
type GroupPlan struct {
	GroupPostfix string
	QueueNumber  int
	Manifest     *manifest.Manifest
}

// Expand takes the Cartesian product of every varying parameter's valueList, substituting
// each combination's values into a cloned manifest, and assigns each combination a random
// lowercase-alphanumeric 10-character postfix and a monotone queue number.
func Expand(m *manifest.Manifest) ([]GroupPlan, error) {
	if m.JobSpec == nil || len(m.JobSpec.VaryingParameters) == 0 {
		postfix, err := randomSlug(10)
		if err != nil {
			return nil, err
		}
		return []GroupPlan{{GroupPostfix: postfix, QueueNumber: 0, Manifest: cloneManifest(m)}}, nil
	}

	combos := cartesianProduct(m.JobSpec.VaryingParameters)
	plans := make([]GroupPlan, 0, len(combos))
	for i, combo := range combos {
		rendered := cloneManifest(m)
		for paramIdx, value := range combo {
			vp := m.JobSpec.VaryingParameters[paramIdx]
			substituteRosParam(rendered, vp.ToRosParamMap, vp.ParamName, value)
		}
		postfix, err := randomSlug(10)
		if err != nil {
			return nil, err
		}
		plans = append(plans, GroupPlan{GroupPostfix: postfix, QueueNumber: i, Manifest: rendered})
	}
	return plans, nil
}

// cartesianProduct returns every combination of one value per VaryingParameter, in the same
// left-to-right nesting order as itertools.product.
func cartesianProduct(vary []manifest.VaryingParameter) [][]string {
	if len(vary) == 0 {
		return nil
	}
	combos := [][]string{{}}
	for _, vp := range vary {
		var next [][]string
		for _, existing := range combos {
			for _, v := range vp.ValueList {
				combo := make([]string, len(existing)+1)
				copy(combo, existing)
				combo[len(existing)] = v
				next = append(next, combo)
			}
		}
		combos = next
	}
	return combos
}

// substituteRosParam overwrites one key of a named rosParamMap entry with value, handling
// both key-value maps (Data) and yaml maps (a "key: value" line replaced in YAMLContent is
// out of scope here; varying parameters target key-value maps per spec.md §4.4).
func substituteRosParam(m *manifest.Manifest, mapName, paramName, value string) {
	for i := range m.RosParamMap {
		if m.RosParamMap[i].Name != mapName {
			continue
		}
		if m.RosParamMap[i].Data == nil {
			m.RosParamMap[i].Data = make(map[string]string)
		}
		m.RosParamMap[i].Data[paramName] = value
		return
	}
}

// cloneManifest performs a deep-enough copy for rosParamMap substitution: module slices are
// shared (never mutated by this package) while RosParamMap entries and their Data maps are
// copied so each group's substitutions stay isolated.
func cloneManifest(m *manifest.Manifest) *manifest.Manifest {
	clone := *m
	clone.RosParamMap = make([]manifest.RosParamMap, len(m.RosParamMap))
	for i, pm := range m.RosParamMap {
		pmCopy := pm
		if pm.Data != nil {
			pmCopy.Data = make(map[string]string, len(pm.Data))
			for k, v := range pm.Data {
				pmCopy.Data[k] = v
			}
		}
		clone.RosParamMap[i] = pmCopy
	}
	return &clone
}
