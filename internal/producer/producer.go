// Package producer drives a load run: it builds the shuffled corpus, sends every event on both
// channels, paces the sends and stops periodically to reap finished cluster jobs.
package producer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"eventflood/internal/core"
	"eventflood/internal/corpus"
	"eventflood/internal/metrics"
	"eventflood/internal/publish"
	"eventflood/internal/reaper"
)

// Reap cadence bases.
const (
	// CadenceSends reaps after every Nth completed send.
	CadenceSends = "sends"
	// CadenceIndex reaps whenever the shuffled event index is a multiple of N.
	CadenceIndex = "index"
)

// Sender delivers one event on both channels.
type Sender interface {
	Send(ctx context.Context, event corpus.Event) publish.SendResult
}

// Reaper runs one reclamation pass.
type Reaper interface {
	Reap(ctx context.Context) (reaper.Report, error)
}

// Waiter blocks for a pacing delay or a rate-limit token.
type Waiter interface {
	Wait(ctx context.Context) error
}

type Config struct {
	Messages      int
	IDs           []int
	Authors       []string
	CorpusOptions []corpus.Option

	// Workers above 1 send concurrently.
	Workers int
	// ReapEvery of zero or less disables reaping.
	ReapEvery    int
	CadenceBasis string
}

// Summary describes a finished or interrupted run. Failed counts channel deliveries, so one event
// can contribute up to two failures.
type Summary struct {
	RunID    string
	Sent     int
	Failed   int
	Reaps    int
	Deleted  int
	Duration time.Duration
}

type Producer struct {
	cfg      Config
	sender   Sender
	reaper   Reaper
	pacer    Waiter
	limiter  Waiter
	reporter core.Reporter
	metrics  metrics.Sink
	onReap   func(reaper.Report)
	clock    core.Clock
	log      log.FieldLogger

	// senders hold the read side, a reaping pass holds the write side
	gate sync.RWMutex

	sent    atomic.Int64
	failed  atomic.Int64
	reaps   atomic.Int64
	deleted atomic.Int64
}

type Option func(*Producer)

// WithReaper enables reaping. Without it the run never reaps.
func WithReaper(r Reaper) Option {
	return func(p *Producer) { p.reaper = r }
}

// WithPacer sets the delay applied after every send.
func WithPacer(w Waiter) Option {
	return func(p *Producer) { p.pacer = w }
}

// WithRateLimiter caps the overall send rate.
func WithRateLimiter(w Waiter) Option {
	return func(p *Producer) { p.limiter = w }
}

func WithReporter(r core.Reporter) Option {
	return func(p *Producer) { p.reporter = r }
}

func WithMetrics(s metrics.Sink) Option {
	return func(p *Producer) { p.metrics = s }
}

// WithReapObserver is called after every successful pass.
func WithReapObserver(fn func(reaper.Report)) Option {
	return func(p *Producer) { p.onReap = fn }
}

func WithClock(c core.Clock) Option {
	return func(p *Producer) { p.clock = c }
}

func New(cfg Config, sender Sender, logger log.FieldLogger, opts ...Option) *Producer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.CadenceBasis == "" {
		cfg.CadenceBasis = CadenceSends
	}
	p := &Producer{
		cfg:      cfg,
		sender:   sender,
		pacer:    noWait{},
		limiter:  noWait{},
		reporter: core.NullReporter,
		metrics:  metrics.NewNoopSink(),
		onReap:   func(reaper.Report) {},
		clock:    core.RealClock{},
		log:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run sends the whole corpus once. Send failures never stop the run. A *reaper.ReclamationStall
// stops it and is returned. Cancellation stops it between sends and returns ctx.Err().
// The summary covers whatever was sent.
func (p *Producer) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	logger := p.log.WithField("run", runID)
	start := p.clock.Now()

	c, err := corpus.Build(p.cfg.Messages, p.cfg.IDs, p.cfg.Authors, p.cfg.CorpusOptions...)
	if err != nil {
		return Summary{RunID: runID}, err
	}
	logger.WithField("messages", c.Len()).WithField("workers", p.cfg.Workers).Info("Starting run")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp := pool.New().WithMaxGoroutines(p.cfg.Workers).WithContext(runCtx).WithFirstError()
	for pos := 0; pos < c.Len(); pos++ {
		if runCtx.Err() != nil {
			break
		}
		if err := p.limiter.Wait(runCtx); err != nil {
			break
		}
		idx, event := c.At(pos)
		wp.Go(func(taskCtx context.Context) error {
			if err := p.deliver(taskCtx, logger, idx, event); err != nil {
				cancel()
				return err
			}
			return nil
		})
	}
	fatal := wp.Wait()

	summary := Summary{
		RunID:    runID,
		Sent:     int(p.sent.Load()),
		Failed:   int(p.failed.Load()),
		Reaps:    int(p.reaps.Load()),
		Deleted:  int(p.deleted.Load()),
		Duration: p.clock.Since(start),
	}

	switch {
	case fatal != nil:
		logger.WithError(fatal).Error("Run aborted")
		return summary, fatal
	case ctx.Err() != nil:
		logger.WithField("sent", summary.Sent).Warn("Run interrupted")
		return summary, ctx.Err()
	}
	logger.WithField("sent", summary.Sent).WithField("failed", summary.Failed).Info("Run complete")
	return summary, nil
}

// deliver sends one event, reaps when the cadence says so, then paces. Only a fatal reaping error
// is returned.
func (p *Producer) deliver(ctx context.Context, logger log.FieldLogger, idx int, event corpus.Event) error {
	if ctx.Err() != nil {
		return nil
	}

	p.gate.RLock()
	at := p.clock.Now()
	result := p.send(ctx, event)
	p.gate.RUnlock()

	p.record(idx, at, result)
	n := int(p.sent.Add(1))
	logger.WithField("index", idx).WithField("author", event.Author).Debug("Sent event")

	if p.shouldReap(idx, n) {
		if err := p.reap(ctx, logger); err != nil {
			return err
		}
	}

	_ = p.pacer.Wait(ctx)
	return nil
}

// send recovers a panicking channel and reports it as a failure of both deliveries.
func (p *Producer) send(ctx context.Context, event corpus.Event) (result publish.SendResult) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("panic: %v", r)
			result = publish.SendResult{
				Broadcast: publish.ChannelResult{Channel: core.ChannelBroadcast, Err: err},
				Queue:     publish.ChannelResult{Channel: core.ChannelQueue, Err: err},
			}
		}
	}()
	return p.sender.Send(ctx, event)
}

func (p *Producer) record(idx int, at time.Time, result publish.SendResult) {
	for _, d := range result.Deliveries(idx, at) {
		p.reporter.Report(d)
		p.metrics.SendCompleted(string(d.Channel), d.Success, d.Duration)
		if !d.Success {
			p.failed.Add(1)
		}
	}
}

func (p *Producer) shouldReap(idx, sent int) bool {
	if p.reaper == nil || p.cfg.ReapEvery <= 0 {
		return false
	}
	if p.cfg.CadenceBasis == CadenceIndex {
		return idx%p.cfg.ReapEvery == 0
	}
	return sent%p.cfg.ReapEvery == 0
}

// reap runs a pass with every sender held off. Listing failures and cancellation end only this pass.
func (p *Producer) reap(ctx context.Context, logger log.FieldLogger) error {
	p.gate.Lock()
	report, err := p.reaper.Reap(ctx)
	p.gate.Unlock()

	var (
		stall   *reaper.ReclamationStall
		listing *reaper.ListingError
	)
	switch {
	case err == nil:
		p.reaps.Add(1)
		p.deleted.Add(int64(report.Deleted))
		p.metrics.ReapCompleted(report)
		p.onReap(report)
		return nil
	case errors.As(err, &stall):
		p.deleted.Add(int64(report.Deleted))
		p.metrics.ReapStalled()
		p.metrics.PendingJobs(stall.Pending)
		return err
	case errors.As(err, &listing):
		logger.WithError(err).Warn("Skipping reaping pass")
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		logger.WithError(err).Warn("Reaping pass failed")
		return nil
	}
}

type noWait struct{}

func (noWait) Wait(ctx context.Context) error { return ctx.Err() }
