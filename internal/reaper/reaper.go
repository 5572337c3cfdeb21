// Package reaper deletes completed cluster Jobs so a long load run does not exhaust the cluster, and
// holds the producer back while too many Jobs are still running.
//
// A pass has three phases: list every Job page by page, delete the completed ones, then recheck the
// pending ones until at most PendingThreshold remain.
package reaper

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// DefaultPendingThreshold is the number of running Jobs a pass tolerates when none is configured.
const DefaultPendingThreshold = 5

type Config struct {
	Namespace string
	PageSize  int64
	// PendingThreshold is taken as given. Zero waits for every pending Job to finish.
	PendingThreshold int
	RetryInterval    time.Duration
	// MaxRetries bounds the backpressure rechecks. Negative is unbounded.
	MaxRetries int
	// MaxWait bounds the backpressure phase by time: no recheck is scheduled past it. Zero is unbounded.
	MaxWait time.Duration
}

func (c *Config) withDefaults() {
	if c.Namespace == "" {
		c.Namespace = "default"
	}
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 120
	}
}

// Report summarizes one pass.
type Report struct {
	Listed       int
	Deleted      int
	DeleteFailed int
	Pending      int
	Retries      int
	Duration     time.Duration
}

type Reaper struct {
	client JobClient
	cfg    Config
	log    log.FieldLogger
	// one pass at a time
	mu sync.Mutex
}

func New(client JobClient, cfg Config, logger log.FieldLogger) *Reaper {
	cfg.withDefaults()
	return &Reaper{
		client: client,
		cfg:    cfg,
		log:    logger.WithField("namespace", cfg.Namespace),
	}
}

// ListAll follows continuation tokens until the last page. Any page error discards what was read.
func (r *Reaper) ListAll(ctx context.Context) ([]Job, error) {
	var (
		jobs []Job
		cont string
	)
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := r.client.ListPage(ctx, r.cfg.Namespace, r.cfg.PageSize, cont)
		if err != nil {
			return nil, &ListingError{Page: page, Err: err}
		}
		jobs = append(jobs, p.Jobs...)
		if p.Continue == "" {
			return jobs, nil
		}
		cont = p.Continue
	}
}

// Reap runs one pass. It returns a *ListingError when the listing fails, a *ReclamationStall when the
// pending set does not shrink within the retry budget, and ctx.Err() on cancellation. The report
// is filled in as far as the pass got.
func (r *Reaper) Reap(ctx context.Context) (report Report, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	jobs, err := r.ListAll(ctx)
	if err != nil {
		return report, err
	}
	report.Listed = len(jobs)

	completed, pending := Classify(jobs)
	r.log.WithField("completed", len(completed)).WithField("pending", len(pending)).Debug("Classified jobs")

	for _, j := range completed {
		if err = ctx.Err(); err != nil {
			report.Pending = len(pending)
			return report, err
		}
		r.delete(ctx, j, &report)
	}

	pending, err = r.drainPending(ctx, pending, &report)
	report.Pending = len(pending)
	if err != nil {
		return report, err
	}

	r.log.WithField("deleted", report.Deleted).
		WithField("deleteFailed", report.DeleteFailed).
		WithField("pending", report.Pending).
		WithField("retries", report.Retries).
		Info("Reaped completed jobs")
	return report, nil
}

func (r *Reaper) delete(ctx context.Context, j Job, report *Report) {
	err := r.client.Delete(ctx, r.cfg.Namespace, j.Name)
	switch {
	case err == nil:
		report.Deleted++
		r.log.WithField("job", j.Name).Debug("Deleted job")
	case apierrors.IsNotFound(err):
		report.Deleted++
		r.log.WithField("job", j.Name).Debug("Job already gone")
	default:
		report.DeleteFailed++
		derr := &JobDeleteError{Name: j.Name, Reason: reason(err), Err: err}
		r.log.WithError(derr).WithField("job", j.Name).Warn("Failed to delete job")
	}
}

var errTooManyPending = errors.New("too many pending jobs")

// drainPending blocks while more than PendingThreshold jobs are pending, rechecking each one every
// RetryInterval. Jobs that have completed since are deleted and dropped. The first attempt judges
// the fresh listing, so MaxRetries rechecks take MaxRetries+1 attempts.
func (r *Reaper) drainPending(ctx context.Context, pending []Job, report *Report) ([]Job, error) {
	if len(pending) <= r.cfg.PendingThreshold {
		return pending, nil
	}

	start := time.Now()
	first := true
	check := func() ([]Job, error) {
		if !first {
			report.Retries++
			pending = r.recheck(ctx, pending, report)
		}
		first = false
		if len(pending) > r.cfg.PendingThreshold {
			return pending, errTooManyPending
		}
		return pending, nil
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(r.cfg.RetryInterval)),
		backoff.WithMaxElapsedTime(r.cfg.MaxWait),
		backoff.WithNotify(func(_ error, wait time.Duration) {
			r.log.WithField("pending", len(pending)).
				WithField("threshold", r.cfg.PendingThreshold).
				WithField("wait", wait).
				Info("Too many pending jobs, waiting")
		}),
	}
	if r.cfg.MaxRetries >= 0 {
		opts = append(opts, backoff.WithMaxTries(uint(r.cfg.MaxRetries)+1))
	}

	_, err := backoff.Retry(ctx, check, opts...)
	switch {
	case err == nil:
		return pending, nil
	case ctx.Err() != nil:
		return pending, ctx.Err()
	case errors.Is(err, errTooManyPending):
		stall := &ReclamationStall{Pending: len(pending), Attempts: report.Retries, Elapsed: time.Since(start)}
		r.log.WithError(stall).Error("Pending jobs did not drain")
		return pending, stall
	default:
		return pending, err
	}
}

func (r *Reaper) recheck(ctx context.Context, pending []Job, report *Report) []Job {
	still := pending[:0]
	for _, j := range pending {
		current, err := r.client.Get(ctx, r.cfg.Namespace, j.Name)
		switch {
		case apierrors.IsNotFound(err):
			continue
		case err != nil:
			r.log.WithError(err).WithField("job", j.Name).Warn("Failed to read job status")
			still = append(still, j)
		case current.Completed():
			r.delete(ctx, current, report)
		default:
			still = append(still, j)
		}
	}
	return still
}

func reason(err error) string {
	if rs := apierrors.ReasonForError(err); rs != "" {
		return string(rs)
	}
	return "Unknown"
}
