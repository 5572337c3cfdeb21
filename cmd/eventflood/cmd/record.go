package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"eventflood/internal/config"
	"eventflood/internal/sink"
)

var (
	recordType     string
	recordMsg      string
	recordDatabase string
	recordZone     string
)

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVar(&recordType, "type", sink.EventTypeQueue, "envelope shape: sqs (job argument) or sns (trigger request body)")
	recordCmd.Flags().StringVar(&recordMsg, "msg", "-", "event envelope JSON, - reads stdin")
	recordCmd.Flags().StringVar(&recordDatabase, "database", "", "SQLite record database (defaults to sink.database)")
	recordCmd.Flags().StringVar(&recordZone, "zone", "", "zone records are written in (defaults to sink.zone)")
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Decode one delivered event envelope and store its latency record",
	Long: `Decode one delivered event envelope and store its latency record.

This is the work done by the downstream job for each message: it is meant to run as
the container command of the Job the pipeline triggers, e.g.

  eventflood record --type sqs --msg '{"context":{...},"data":"..."}'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(func(cfg *config.Config) {
			if recordDatabase != "" {
				cfg.Sink.Database = recordDatabase
			}
			if recordZone != "" {
				cfg.Sink.Zone = recordZone
			}
		}, (*config.Config).ValidateOffline)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		raw := []byte(recordMsg)
		if recordMsg == "-" {
			raw, err = io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return withExitCode(ExitError, errors.Wrap(err, "reading envelope"))
			}
		}

		var rec sink.Record
		switch recordType {
		case sink.EventTypeQueue:
			rec, err = sink.DecodeQueueEvent(raw)
		case sink.EventTypeBroadcast:
			rec, err = sink.DecodeBroadcastEvent(raw)
		default:
			return withExitCode(ExitConfigError, errors.Errorf("--type must be 'sqs' or 'sns', got %q", recordType))
		}
		if err != nil {
			return withExitCode(ExitError, err)
		}
		logger.WithField("payload", rec.PayloadID).WithField("author", rec.Author).Debug("Decoded envelope")

		ctx := context.Background()
		store, err := sink.OpenStore(ctx, cfg.Sink.Database)
		if err != nil {
			return withExitCode(ExitError, err)
		}
		defer store.Close()

		w, err := sink.NewWriter(store, cfg.Sink.Zone)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		rec, err = w.Write(ctx, rec)
		if err != nil {
			return withExitCode(ExitError, err)
		}
		logger.WithField("id", rec.ID).WithField("type", rec.EventType).Info("Record stored")
		fmt.Fprintln(os.Stdout, rec.ID)
		return nil
	},
}
