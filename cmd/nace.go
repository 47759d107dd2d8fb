package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/mne-enrich/internal/config"
	"github.com/sells-group/mne-enrich/internal/nace"
)

var naceCmd = &cobra.Command{
	Use:   "nace",
	Short: "Manage the NACE document collection",
}

var naceBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Crawl the NACE Rev. 2 taxonomy and index one document per division",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(config.ModeNACE); err != nil {
			return err
		}

		index, closeIndex, err := initIndex(ctx)
		if err != nil {
			return err
		}
		defer closeIndex()

		crawler := nace.NewCrawler(newHTTPFetcher(cfg.HTTP), nace.IngestConfig{
			BaseURL:     cfg.NACE.IngestBaseURL,
			Lang:        cfg.NACE.IngestLang,
			Concurrency: cfg.NACE.IngestConcurrency,
		})

		start := time.Now()
		n, err := nace.Build(ctx, crawler, index)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d divisions into %s in %s\n",
			n, cfg.VectorStore.Collection, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	naceCmd.AddCommand(naceBuildCmd)
	rootCmd.AddCommand(naceCmd)
}
