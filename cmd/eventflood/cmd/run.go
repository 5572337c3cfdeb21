package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"eventflood/internal/channel"
	"eventflood/internal/collector"
	"eventflood/internal/config"
	"eventflood/internal/corpus"
	"eventflood/internal/metrics"
	"eventflood/internal/pacing"
	"eventflood/internal/producer"
	"eventflood/internal/progress"
	"eventflood/internal/publish"
	"eventflood/internal/reaper"
)

var runViper = viper.New()

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.Int("messages", 0, "number of events to send")
	f.Int("workers", 0, "concurrent senders")
	f.Int64("seed", 0, "shuffle seed (0 draws a fresh one)")
	f.String("broadcast", "", "broadcast channel kind: sns, kafka, pulsar, nats, memory")
	f.String("queue", "", "point-to-point channel kind: sqs, rabbitmq, redis, memory")
	f.String("namespace", "", "namespace whose Jobs are reaped")
	f.Int("reap-every", 0, "reap after this many sends (negative disables)")
	f.String("cadence", "", "reap cadence basis: sends or index")
	f.Bool("no-reap", false, "never reap cluster jobs")
	f.Int64("page-size", 0, "jobs listed per page")
	f.Int("pending-threshold", reaper.DefaultPendingThreshold, "pending jobs allowed before sending resumes, 0 waits for a full drain")
	f.Duration("retry-interval", 0, "wait between pending-job rechecks")
	f.Int("max-retries", 0, "pending-job rechecks before the run stalls (negative is unbounded)")
	f.Duration("max-wait", 0, "total backpressure wait before the run stalls (0 is unbounded)")
	f.Duration("max-delay", 0, "upper bound of the random delay after each send")
	f.Float64("rate", 0, "maximum sends per second (0 is unlimited)")
	f.String("metrics-listen", "", "address serving Prometheus /metrics, e.g. :9090")
	f.String("output", "text", "report format: text, json")
	f.Bool("quiet", false, "suppress the live progress line")

	if err := runViper.BindPFlags(f); err != nil {
		panic(err)
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send the event corpus and reap finished jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output := runViper.GetString("output")
		if output != "text" && output != "json" {
			return withExitCode(ExitConfigError, errors.Errorf("--output must be 'text' or 'json', got %q", output))
		}
		cfg, err := loadConfig(func(cfg *config.Config) { applyRunFlags(cmd.Flags(), cfg) }, (*config.Config).Validate)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		return runLoad(cfg, logger, output, runViper.GetBool("quiet"))
	},
}

// applyRunFlags overrides config values with the flags given on the command line.
func applyRunFlags(flags *pflag.FlagSet, cfg *config.Config) {
	set := flags.Changed
	if set("messages") {
		cfg.Run.Messages = runViper.GetInt("messages")
	}
	if set("workers") {
		cfg.Run.Workers = runViper.GetInt("workers")
	}
	if set("seed") {
		cfg.Run.Seed = runViper.GetInt64("seed")
	}
	if set("broadcast") {
		cfg.Broadcast.Kind = runViper.GetString("broadcast")
	}
	if set("queue") {
		cfg.Queue.Kind = runViper.GetString("queue")
	}
	if set("namespace") {
		cfg.Reaper.Namespace = runViper.GetString("namespace")
	}
	if set("reap-every") {
		cfg.Reaper.Every = runViper.GetInt("reap-every")
	}
	if set("cadence") {
		cfg.Reaper.CadenceBasis = runViper.GetString("cadence")
	}
	if set("no-reap") {
		cfg.Reaper.Disabled = runViper.GetBool("no-reap")
	}
	if set("page-size") {
		cfg.Reaper.PageSize = runViper.GetInt64("page-size")
	}
	if set("pending-threshold") {
		threshold := runViper.GetInt("pending-threshold")
		cfg.Reaper.PendingThreshold = &threshold
	}
	if set("retry-interval") {
		cfg.Reaper.RetryInterval = runViper.GetDuration("retry-interval")
	}
	if set("max-retries") {
		cfg.Reaper.MaxRetries = runViper.GetInt("max-retries")
	}
	if set("max-wait") {
		cfg.Reaper.MaxWait = runViper.GetDuration("max-wait")
	}
	if set("max-delay") {
		cfg.Pacing.MaxDelay = runViper.GetDuration("max-delay")
	}
	if set("rate") {
		cfg.Pacing.MaxRate = runViper.GetFloat64("rate")
	}
	if set("metrics-listen") {
		cfg.Metrics.Listen = runViper.GetString("metrics-listen")
	}
}

func runLoad(cfg *config.Config, logger *log.Logger, output string, quiet bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("Received interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	broadcast, queue, err := channel.Open(ctx, cfg, logger)
	if err != nil {
		return withExitCode(ExitError, err)
	}
	pub := publish.NewPublisher(broadcast, queue, nil, logger)
	defer func() {
		if err := pub.Close(); err != nil {
			logger.WithError(err).Warn("Closing channels")
		}
	}()

	var sink metrics.Sink = metrics.NewNoopSink()
	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		sink = metrics.NewPrometheusSink(reg, logger)
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, reg, logger); err != nil {
				logger.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	coll := collector.NewCollector()
	prog := progress.NewProgress(coll, quiet)

	opts := []producer.Option{
		producer.WithReporter(coll),
		producer.WithMetrics(sink),
		producer.WithPacer(pacing.Chain{{Max: cfg.Pacing.MaxDelay}, {Max: cfg.Pacing.OuterMaxDelay}}),
		producer.WithRateLimiter(pacing.NewRateLimiter(cfg.Pacing.MaxRate)),
		producer.WithReapObserver(coll.ReapCompleted),
	}
	if cfg.Reaper.Enabled() {
		r, err := newReaper(cfg, logger)
		if err != nil {
			return withExitCode(ExitError, err)
		}
		opts = append(opts, producer.WithReaper(r))
	}

	corpusOpts := []corpus.Option{corpus.WithPlaceholders(cfg.Run.Greeting, cfg.Run.Message)}
	if cfg.Run.Seed != 0 {
		corpusOpts = append(corpusOpts, corpus.WithSeed(cfg.Run.Seed))
	}
	p := producer.New(producer.Config{
		Messages:      cfg.Run.Messages,
		IDs:           cfg.Run.IDs,
		Authors:       cfg.Run.Authors,
		CorpusOptions: corpusOpts,
		Workers:       cfg.Run.Workers,
		ReapEvery:     cfg.Reaper.Every,
		CadenceBasis:  cfg.Reaper.CadenceBasis,
	}, pub, logger, opts...)

	prog.Printf("eventflood starting: %d messages, %s -> %s, reaping every %d %s",
		cfg.Run.Messages, cfg.Broadcast.Kind, cfg.Queue.Kind, cfg.Reaper.Every, cfg.Reaper.CadenceBasis)

	prog.Start()
	summary, runErr := p.Run(ctx)
	prog.Stop()
	coll.Close()

	m := coll.Compute()
	var thresholdResults *collector.ThresholdResults
	if cfg.Thresholds != nil {
		thresholdResults = cfg.Thresholds.Check(m)
	}
	if output == "json" {
		collector.FormatJSON(os.Stdout, m, thresholdResults)
	} else {
		collector.FormatText(os.Stdout, m, thresholdResults)
	}
	logger.WithFields(log.Fields{
		"run":      summary.RunID,
		"sent":     summary.Sent,
		"failed":   summary.Failed,
		"reaps":    summary.Reaps,
		"deleted":  summary.Deleted,
		"duration": summary.Duration.Round(time.Millisecond),
	}).Info("Run summary")

	var stall *reaper.ReclamationStall
	switch {
	case errors.As(runErr, &stall):
		return withExitCode(ExitReclamation, runErr)
	case errors.Is(runErr, context.Canceled):
		return nil
	case runErr != nil:
		return withExitCode(ExitError, runErr)
	}

	if thresholdResults != nil && !thresholdResults.Passed {
		return withExitCode(ExitThresholdFailed, errors.New("threshold check failed"))
	}
	return nil
}

func newReaper(cfg *config.Config, logger log.FieldLogger) (*reaper.Reaper, error) {
	kube, err := reaper.NewKubeClient(cfg.Reaper.Kubeconfig, cfg.Reaper.QPS, cfg.Reaper.Burst, logger)
	if err != nil {
		return nil, err
	}
	return reaper.New(reaper.NewKubeJobClient(kube), reaper.Config{
		Namespace:        cfg.Reaper.Namespace,
		PageSize:         cfg.Reaper.PageSize,
		PendingThreshold: *cfg.Reaper.PendingThreshold,
		RetryInterval:    cfg.Reaper.RetryInterval,
		MaxRetries:       cfg.Reaper.MaxRetries,
		MaxWait:          cfg.Reaper.MaxWait,
	}, logger), nil
}
