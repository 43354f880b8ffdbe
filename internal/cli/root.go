package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fri-wier/besela/internal/build"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "besela",
	Short: "A polite multi-worker .gov.si web crawler.",
	Long: `besela crawls and archives pages within the configured set of
allowed domains (.gov.si in the reference deployment), obeying
robots.txt, deduplicating by content hash, capturing embedded images
and downloadable documents, and recording a link graph for detected
duplicates.

All crawl state lives in Postgres; a single process runs N workers that
share the database as their coordinator. Configuration is read from
environment variables (optionally overlaid from a .env file):
POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_DB, N_THREADS.`,
	Version: build.Stamp(),
}

// Execute runs the root command; the subcommands are registered in init.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(crawlCmd)
}
