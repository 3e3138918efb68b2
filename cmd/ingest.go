package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smpapa/mentalmap-cli/internal/crawler"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Crawl the directory site and load centers into the store",
	Long:  "Walks the paginated center directory, geocodes addresses lacking coordinates, deduplicates by name, and inserts new centers in one batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		engine := crawler.NewEngine(st, initGeocoder(), cfg.Crawl, cfg.Ingest)
		report, err := engine.Ingest(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("ingestion finished",
			zap.Int("added", report.Added),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
