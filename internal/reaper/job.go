package reaper

import (
	"context"
	"time"
)

// Job is the part of a cluster Job the reaper looks at.
type Job struct {
	Name           string
	Namespace      string
	CompletionTime *time.Time
	Succeeded      int
}

// Completed reports whether the job finished successfully and may be deleted.
func (j Job) Completed() bool {
	return j.CompletionTime != nil && j.Succeeded == 1
}

// JobPage is one page of a listing. An empty Continue marks the last page.
type JobPage struct {
	Jobs     []Job
	Continue string
}

// JobClient is the orchestrator surface the reaper needs.
type JobClient interface {
	ListPage(ctx context.Context, namespace string, limit int64, cont string) (JobPage, error)
	Get(ctx context.Context, namespace, name string) (Job, error)
	Delete(ctx context.Context, namespace, name string) error
}

// Classify splits jobs into completed and pending. Every job lands in exactly one of the two.
func Classify(jobs []Job) (completed, pending []Job) {
	for _, j := range jobs {
		if j.Completed() {
			completed = append(completed, j)
		} else {
			pending = append(pending, j)
		}
	}
	return completed, pending
}
