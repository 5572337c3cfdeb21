package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"eventflood/internal/reaper"
)

// PrometheusSink implements Sink. Registration errors are logged but never propagated.
type PrometheusSink struct {
	sendsTotal          *prometheus.CounterVec
	sendDuration        *prometheus.HistogramVec
	reapsTotal          prometheus.Counter
	jobsDeletedTotal    prometheus.Counter
	deleteFailuresTotal prometheus.Counter
	reapStallsTotal     prometheus.Counter
	reapDuration        prometheus.Histogram
	pendingJobs         prometheus.Gauge

	log log.FieldLogger
}

func NewPrometheusSink(reg prometheus.Registerer, logger log.FieldLogger) *PrometheusSink {
	s := &PrometheusSink{log: logger}
	s.initSendMetrics(reg)
	s.initReapMetrics(reg)
	return s
}

func (s *PrometheusSink) initSendMetrics(reg prometheus.Registerer) {
	s.sendsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventflood_sends_total",
		Help: "Total number of channel send attempts.",
	}, []string{"channel", "outcome"})
	s.sendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventflood_send_duration_seconds",
		Help:    "Time taken by one channel send in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"channel"})

	s.register(reg, s.sendsTotal, "eventflood_sends_total")
	s.register(reg, s.sendDuration, "eventflood_send_duration_seconds")
}

func (s *PrometheusSink) initReapMetrics(reg prometheus.Registerer) {
	s.reapsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventflood_reaps_total",
		Help: "Total number of completed reaping passes.",
	})
	s.jobsDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventflood_jobs_deleted_total",
		Help: "Total number of completed jobs deleted.",
	})
	s.deleteFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventflood_job_delete_failures_total",
		Help: "Total number of job deletions that failed.",
	})
	s.reapStallsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventflood_reap_stalls_total",
		Help: "Total number of reaping passes that gave up waiting for pending jobs.",
	})
	s.reapDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventflood_reap_duration_seconds",
		Help:    "Duration of a reaping pass including backpressure waits.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})
	s.pendingJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventflood_pending_jobs",
		Help: "Jobs not yet complete at the end of the last pass.",
	})

	s.register(reg, s.reapsTotal, "eventflood_reaps_total")
	s.register(reg, s.jobsDeletedTotal, "eventflood_jobs_deleted_total")
	s.register(reg, s.deleteFailuresTotal, "eventflood_job_delete_failures_total")
	s.register(reg, s.reapStallsTotal, "eventflood_reap_stalls_total")
	s.register(reg, s.reapDuration, "eventflood_reap_duration_seconds")
	s.register(reg, s.pendingJobs, "eventflood_pending_jobs")
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.log.WithError(err).WithField("metric", name).Warn("Failed to register metric")
	}
}

func (s *PrometheusSink) SendCompleted(channel string, success bool, duration time.Duration) {
	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeFailed
	}
	s.sendsTotal.WithLabelValues(channel, outcome).Inc()
	s.sendDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

func (s *PrometheusSink) ReapCompleted(report reaper.Report) {
	s.reapsTotal.Inc()
	s.jobsDeletedTotal.Add(float64(report.Deleted))
	s.deleteFailuresTotal.Add(float64(report.DeleteFailed))
	s.reapDuration.Observe(report.Duration.Seconds())
	s.pendingJobs.Set(float64(report.Pending))
}

func (s *PrometheusSink) PendingJobs(n int) {
	s.pendingJobs.Set(float64(n))
}

func (s *PrometheusSink) ReapStalled() {
	s.reapStallsTotal.Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger log.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("Metrics server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
