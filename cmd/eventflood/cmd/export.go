package cmd

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"eventflood/internal/config"
	"eventflood/internal/sink"
)

var (
	exportDatabase string
	exportOut      string
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportDatabase, "database", "", "SQLite record database (defaults to sink.database)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "CSV destination, - for stdout")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the recorded events as a latency dataset CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(func(cfg *config.Config) {
			if exportDatabase != "" {
				cfg.Sink.Database = exportDatabase
			}
		}, (*config.Config).ValidateOffline)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		ctx := context.Background()
		store, err := sink.OpenStore(ctx, cfg.Sink.Database)
		if err != nil {
			return withExitCode(ExitError, err)
		}
		defer store.Close()

		var w io.Writer = os.Stdout
		if exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return withExitCode(ExitError, errors.Wrap(err, "creating export file"))
			}
			defer f.Close()
			w = f
		}

		n, err := store.ExportCSV(ctx, w)
		if err != nil {
			return withExitCode(ExitError, errors.Wrap(err, "exporting records"))
		}
		logger.WithField("rows", n).WithField("database", cfg.Sink.Database).Info("Export complete")
		return nil
	},
}
