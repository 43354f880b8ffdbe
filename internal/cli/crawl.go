package cmd

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fri-wier/besela/internal/config"
	"github.com/fri-wier/besela/internal/engine"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Start the worker pool and crawl to quiescence",
	Long: `crawl reads the environment configuration, seeds the frontier with
the configured seed URLs, and runs N_THREADS workers until the frontier
stays empty through a full idle probe cycle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger, err := zap.NewProduction()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		defer logger.Sync()

		ctx := cmd.Context()
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()

		crawler := engine.New(cfg, pool, logger)
		summary, err := crawler.Run(ctx, cfg.SeedURLs())
		if err != nil {
			return err
		}

		logger.Info("pool terminated",
			zap.Int("pages", summary.Pages),
			zap.Int("binaries", summary.Binaries),
			zap.Int("duplicates", summary.Duplicates),
			zap.Int("failures", summary.Failures),
			zap.Int("errors", summary.Errors),
			zap.Duration("duration", summary.Duration),
		)
		return nil
	},
}
