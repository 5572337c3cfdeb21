package reaper

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var jobsResource = schema.GroupResource{Group: "batch", Resource: "jobs"}

// fakeJobs is an in-memory JobClient that honours limit and continue, unlike the client-go fake.
type fakeJobs struct {
	mu        sync.Mutex
	jobs      []Job
	listErrAt int // page number that fails, 0 for none
	deleteErr map[string]error
	// getSeq scripts successive Get results per job; the last entry repeats
	getSeq  map[string][]Job
	getErr  map[string]error
	gets    map[string]int
	deleted []string
	lists   []string
}

func newFakeJobs(jobs ...Job) *fakeJobs {
	return &fakeJobs{
		jobs:      jobs,
		deleteErr: map[string]error{},
		getSeq:    map[string][]Job{},
		getErr:    map[string]error{},
		gets:      map[string]int{},
	}
}

func (f *fakeJobs) ListPage(_ context.Context, _ string, limit int64, cont string) (JobPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, cont)
	if f.listErrAt > 0 && len(f.lists) == f.listErrAt {
		return JobPage{}, fmt.Errorf("etcd unavailable")
	}
	start := 0
	if cont != "" {
		start, _ = strconv.Atoi(cont)
	}
	end := start + int(limit)
	if end >= len(f.jobs) {
		return JobPage{Jobs: append([]Job(nil), f.jobs[start:]...)}, nil
	}
	return JobPage{Jobs: append([]Job(nil), f.jobs[start:end]...), Continue: strconv.Itoa(end)}, nil
}

func (f *fakeJobs) Get(_ context.Context, _ string, name string) (Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.getErr[name]; ok {
		return Job{}, err
	}
	seq, ok := f.getSeq[name]
	if !ok {
		return Job{}, apierrors.NewNotFound(jobsResource, name)
	}
	n := f.gets[name]
	f.gets[name]++
	if n >= len(seq) {
		n = len(seq) - 1
	}
	return seq[n], nil
}

func (f *fakeJobs) Delete(_ context.Context, _ string, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.deleteErr[name]; ok {
		return err
	}
	f.deleted = append(f.deleted, name)
	return nil
}

func completedJob(name string) Job {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return Job{Name: name, Namespace: "argo-events", CompletionTime: &t, Succeeded: 1}
}

func runningJob(name string) Job {
	return Job{Name: name, Namespace: "argo-events"}
}
