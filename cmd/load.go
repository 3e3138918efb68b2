package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smpapa/mentalmap-cli/internal/crawler"
)

var loadCmd = &cobra.Command{
	Use:   "load <centers.csv>",
	Short: "Load a CSV export into the store",
	Long:  "Reads a crawl CSV artifact and inserts new centers through the same dedupe and transaction path as a live ingest.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		rows, failed, err := crawler.ReadCSV(f)
		if err != nil {
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

		engine := crawler.NewEngine(st, nil, cfg.Crawl, cfg.Ingest)
		report, err := engine.IngestRows(ctx, rows, failed)
		if err != nil {
			return err
		}

		zap.L().Info("load finished",
			zap.String("file", args[0]),
			zap.Int("added", report.Added),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
