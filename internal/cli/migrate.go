package cmd

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/fri-wier/besela/internal/config"
	"github.com/fri-wier/besela/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the crawldb schema and seed the reference tables",
	Long: `migrate creates the site, page, link, image and page_data tables in
the crawldb schema, plus the page_type and data_type reference tables
seeded with their fixed code rows. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()

		if err := store.Migrate(ctx, pool); err != nil {
			return err
		}

		fmt.Println("migration complete")
		return nil
	},
}
