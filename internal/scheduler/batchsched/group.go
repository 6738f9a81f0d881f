package batchsched

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kuberos-io/kuberos/internal/batchjob"
)

// NewGroup builds one BatchJobGroup record for an expanded combination, bound to the
// deployment's first exec cluster (spec.md §4.4 Expansion: "create one BatchJobGroup bound
// to the first exec cluster").
func NewGroup(deploymentID uuid.UUID, execClusterID uuid.UUID, plan GroupPlan, repeatNum int, lifecycleModuleName string) batchjob.BatchJobGroup {
	return batchjob.BatchJobGroup{
		ID:                  uuid.New(),
		DeploymentID:        deploymentID,
		ExecClusterID:       execClusterID,
		GroupPostfix:        plan.GroupPostfix,
		QueueNumber:         plan.QueueNumber,
		RepeatNum:           repeatNum,
		LifecycleModuleName: lifecycleModuleName,
	}
}

// GroupConfigMapNames prefixes every ConfigMap name in the group's rendered manifest with
// its postfix, keeping groups disjoint in one Kubernetes namespace (spec.md §4.4 "Per-group
// config maps").
func GroupConfigMapNames(postfix string, names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = fmt.Sprintf("%s-%s", postfix, name)
	}
	return out
}

// NewJobs creates repeatNum KuberosJob records for a group, each with its own random
// 10-letter slug, inheriting the group's timeouts and volume spec (spec.md §4.4 "Job
// creation").
func NewJobs(groupID uuid.UUID, repeatNum int, startupTimeoutSec, runningTimeoutSec int, volume batchjob.VolumeSpec) ([]batchjob.KuberosJob, error) {
	jobs := make([]batchjob.KuberosJob, 0, repeatNum)
	for i := 0; i < repeatNum; i++ {
		slug, err := randomSlug(10)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, batchjob.KuberosJob{
			ID:                uuid.New(),
			GroupID:           groupID,
			Slug:              slug,
			Status:            batchjob.JobPending,
			StartupTimeoutSec: startupTimeoutSec,
			RunningTimeoutSec: runningTimeoutSec,
			Volume:            volume,
		})
	}
	return jobs, nil
}
