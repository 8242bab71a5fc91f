package cli

import (
	"context"
	"fmt"

	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/logging"

	"github.com/spf13/cobra"
)

// NewBackfillCmd re-derives incorrect-answer counts for submitted attempts.
func NewBackfillCmd(configPath *string) *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "backfill-scores",
		Short: "Recompute incorrect counts from total/correct for submitted attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackfill(cmd.Context(), *configPath, batchSize, cmd)
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "attempts read per page")
	return cmd
}

func runBackfill(ctx context.Context, configPath string, batchSize int, cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	log, err := logging.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	b, err := newBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	report, err := b.service(log).BackfillScores(ctx, batchSize)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d updated=%d skipped=%d\n", report.Scanned, report.Updated, report.Skipped)
	return nil
}
