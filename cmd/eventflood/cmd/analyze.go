package cmd

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"eventflood/internal/analysis"
	"eventflood/internal/config"
)

var (
	analyzeOutput      string
	analyzeEventZone   string
	analyzeCreatedZone string
	analyzeBinWidths   map[string]string
)

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "text", "report format: text, json, yaml")
	analyzeCmd.Flags().StringVar(&analyzeEventZone, "event-zone", "", "zone of EventTs values without an offset")
	analyzeCmd.Flags().StringVar(&analyzeCreatedZone, "created-zone", "", "zone of CreatedAtTs values")
	analyzeCmd.Flags().StringToStringVar(&analyzeBinWidths, "bin-width", nil, "histogram bin width per event type, e.g. sns=10ms,sqs=30ms")
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze ./path/to/records.csv",
	Short: "Report end-to-end latency per event type from a record dataset",
	Long: `Report end-to-end latency per event type from a record dataset.

The dataset is the CSV written by "eventflood export" (Id, PayloadId, EventType,
CustomMessage, Author, EventTs, CreatedAtTs), with or without a header row, or a JSON
array of objects with those keys.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch analyzeOutput {
		case "text", "json", "yaml":
		default:
			return withExitCode(ExitConfigError, errors.Errorf("--output must be 'text', 'json' or 'yaml', got %q", analyzeOutput))
		}
		cfg, err := loadConfig(func(cfg *config.Config) {
			if analyzeEventZone != "" {
				cfg.Analysis.EventZone = analyzeEventZone
			}
			if analyzeCreatedZone != "" {
				cfg.Analysis.CreatedAtZone = analyzeCreatedZone
			}
		}, (*config.Config).ValidateOffline)
		if err != nil {
			return err
		}

		widths := make(map[string]time.Duration, len(cfg.Analysis.BinWidth)+len(analyzeBinWidths))
		for k, v := range cfg.Analysis.BinWidth {
			widths[k] = v
		}
		for k, v := range analyzeBinWidths {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return withExitCode(ExitConfigError, errors.Errorf("--bin-width %s=%s: must be a positive duration", k, v))
			}
			widths[k] = d
		}

		rows, err := analysis.LoadDataset(args[0])
		if err != nil {
			return withExitCode(ExitError, err)
		}
		report, err := analysis.Analyze(rows, analysis.Config{
			EventZone:     cfg.Analysis.EventZone,
			CreatedAtZone: cfg.Analysis.CreatedAtZone,
			BinWidth:      widths,
		})
		if err != nil {
			return withExitCode(ExitError, err)
		}

		switch analyzeOutput {
		case "json":
			err = analysis.FormatJSON(os.Stdout, report)
		case "yaml":
			err = analysis.FormatYAML(os.Stdout, report)
		default:
			analysis.FormatText(os.Stdout, report)
		}
		return withExitCode(ExitError, err)
	},
}
