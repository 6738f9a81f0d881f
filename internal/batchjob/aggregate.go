package batchjob

import "time"

// GroupStatistics summarises one group's jobs by status, following the original's
// BatchJobGroup.job_statistics property.
type GroupStatistics struct {
	GroupPostfix string
	Completed    int
	Pending      int
	Failed       int
	Processing   int
}

func (s GroupStatistics) IsFinished() bool { return s.Processing == 0 }

// Statistics computes GroupStatistics from a group's current jobs.
func Statistics(groupPostfix string, jobs []KuberosJob) GroupStatistics {
	stats := GroupStatistics{GroupPostfix: groupPostfix}
	total := len(jobs)
	for _, j := range jobs {
		switch j.Status {
		case JobCompleted:
			stats.Completed++
			if !j.SuccessCompleted {
				stats.Failed++
			}
		case JobPending:
			stats.Pending++
		}
	}
	stats.Processing = total - stats.Completed - stats.Pending
	return stats
}

// PendingCount returns how many jobs in a group are still PENDING, the input to the batch
// scheduler's per-cluster placement pass (spec.md §4.4 step 1).
func PendingCount(jobs []KuberosJob) int {
	count := 0
	for _, j := range jobs {
		if j.Status == JobPending {
			count++
		}
	}
	return count
}

// InFlightCount returns how many jobs have not yet reached a terminal status, the input to
// the WAITING_FOR_FINISHING -> CLEANING transition (spec.md §4.6).
func InFlightCount(jobs []KuberosJob) int {
	count := 0
	for _, j := range jobs {
		if j.Status.InFlight() {
			count++
		}
	}
	return count
}

// WaitingForFinishingTimedOut reports whether the wall clock since scheduling finished has
// exceeded startupTimeout+runningTimeout, forcing a transition to CLEANING regardless of
// in-flight count (spec.md §4.6).
func WaitingForFinishingTimedOut(schedulingDoneAt time.Time, now time.Time, startupTimeoutSec, runningTimeoutSec int) bool {
	budget := time.Duration(startupTimeoutSec+runningTimeoutSec) * time.Second
	return now.Sub(schedulingDoneAt) > budget
}
