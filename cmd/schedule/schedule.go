// Package schedule implements recurring crawl runs on a cron schedule.
package schedule

import (
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/regwatch/regcrawl/cmd/common"
	"github.com/regwatch/regcrawl/internal/checkpoint"
	"github.com/regwatch/regcrawl/internal/crawler"
	"github.com/regwatch/regcrawl/internal/extract"
	"github.com/regwatch/regcrawl/internal/fetch"
	"github.com/regwatch/regcrawl/internal/oracle"
	"github.com/regwatch/regcrawl/internal/sentiment"
)

// Command returns the schedule command.
func Command(cfgFile *string, debug *bool) *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run crawls on a recurring schedule",
		Long: `Schedule runs a crawl on a cron schedule until interrupted. Each run
resumes from the stored checkpoint, so overlapping work is skipped via
per-document completion records. Runs never overlap: a run still in
progress when the next tick fires causes that tick to be skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps(*cfgFile, *debug)
			if err != nil {
				return err
			}
			if err := deps.Config.Validate(); err != nil {
				return err
			}
			log := deps.Logger

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := deps.ConnectStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			cfg := deps.Config
			oracleClient := &http.Client{Timeout: cfg.Oracles.Timeout}
			fetcher := fetch.New(cfg.Fetch, log)
			extractor := extract.NewEntityExtractor(oracle.NewNERClient(cfg.Oracles.NERURL, oracleClient), log)
			tagger := sentiment.NewTagger(oracle.NewSentimentClient(cfg.Oracles.SentimentURL, oracleClient), log)

			var running sync.Mutex
			runOnce := func() {
				if !running.TryLock() {
					log.Warn("previous crawl still running, skipping tick")
					return
				}
				defer running.Unlock()

				driver, err := crawler.New(cfg.Crawl, fetcher,
					checkpoint.NewController(store, log), store, extractor, tagger, log)
				if err != nil {
					log.Error("failed to create crawler", "error", err)
					return
				}

				result, err := driver.Run(ctx)
				if err != nil {
					log.Error("scheduled crawl failed", "error", err)
					return
				}
				log.Info("scheduled crawl complete",
					"run_id", result.RunID,
					"processed", result.DocumentsProcessed,
					"failed", result.DocumentsFailed,
					"entities", result.EntitiesStored)
			}

			scheduler := cron.New()
			if _, err := scheduler.AddFunc(spec, runOnce); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", spec, err)
			}

			log.Info("scheduler started", "schedule", spec)
			scheduler.Start()
			defer scheduler.Stop()

			<-ctx.Done()
			log.Info("scheduler stopping")
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "0 2 * * *", "cron schedule (5-field, e.g. \"0 2 * * *\")")

	return cmd
}
