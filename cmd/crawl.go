package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smpapa/mentalmap-cli/internal/crawler"
)

var crawlOutput string

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Scrape the directory site to a CSV export",
	Long:  "Walks the paginated center directory, geocodes addresses, and writes the rows to a CSV artifact for inspection before loading.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		// The crawl command writes an artifact, not the store; a nil store
		// would only be touched by Ingest, which this path never calls.
		engine := crawler.NewEngine(nil, initGeocoder(), cfg.Crawl, cfg.Ingest)

		rows, failed, err := engine.Crawl(ctx)
		if err != nil {
			return err
		}

		out := crawlOutput
		if out == "" {
			out = fmt.Sprintf("centers_%s.csv", time.Now().Format("20060102_150405"))
		}

		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "create %s", out)
		}
		defer f.Close() //nolint:errcheck

		if err := crawler.WriteCSV(f, rows); err != nil {
			return err
		}

		zap.L().Info("crawl complete",
			zap.String("output", out),
			zap.Int("rows", len(rows)),
			zap.Int("failed", failed),
		)
		return nil
	},
}

func init() {
	crawlCmd.Flags().StringVarP(&crawlOutput, "output", "o", "", "output CSV path (default centers_<timestamp>.csv)")
	rootCmd.AddCommand(crawlCmd)
}
