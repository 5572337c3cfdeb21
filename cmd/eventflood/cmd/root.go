package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"eventflood/internal/config"
	"eventflood/internal/logging"
)

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitReclamation     = 2
	ExitError           = 3
	ExitThresholdFailed = 4
)

// exitError carries the process exit code for an error returned by a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

var (
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML run config (defaults apply when unset)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file with credentials and endpoints")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json, plain")
}

var rootCmd = &cobra.Command{
	Use:   "eventflood",
	Short: "Load generator for event-driven pipelines",
	Long: `
Load generator for event-driven pipelines.

eventflood sends a shuffled stream of synthetic events to a broadcast channel and a
point-to-point channel, paces the sends and reaps the Kubernetes Jobs the pipeline
spawns per message. It also records and analyzes the resulting end-to-end latency.

Example run config:

run:
  messages: 2400
  ids: [4, 5]
  authors: [Ankur, Brian, David]
broadcast:
  kind: sns
queue:
  kind: sqs
  name: argo-events-queue
reaper:
  namespace: argo-events
  every: 50
  pendingThreshold: 5
thresholds:
  queue: {failed: 1%}
  events: {lost: 0%}
  reaps: {longestWait: 30s}

Credentials and endpoints are read from load_test_config.env and the environment
(AWS_PROFILE_NAME, AWS_CFG_PATH, SNS_TOPIC_NAME, SQS_QUEUE_NAME, KAFKA_BROKERS, ...).
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitConfigError
}

// loadConfig reads the YAML file (or defaults), overlays the env file and the environment, then the
// command's flags through apply, and validates the result with validate.
func loadConfig(apply func(*config.Config), validate func(*config.Config) error) (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		loaded, err := config.LoadConfig(cfgFile)
		if err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
		cfg = loaded
	}

	env, err := config.LoadEnv(envFile)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	// flags run twice: channel kinds picked on the command line decide which env keys apply,
	// and flag values still win over env values
	apply(cfg)
	env.Apply(cfg)
	apply(cfg)

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	if err := validate(cfg); err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*log.Logger, error) {
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return logger, nil
}
