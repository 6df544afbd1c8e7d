// Package crawl implements the crawl command: one checkpointed pass over
// the configured listing page range.
package crawl

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/regwatch/regcrawl/cmd/common"
	"github.com/regwatch/regcrawl/internal/checkpoint"
	"github.com/regwatch/regcrawl/internal/config"
	"github.com/regwatch/regcrawl/internal/crawler"
	"github.com/regwatch/regcrawl/internal/extract"
	"github.com/regwatch/regcrawl/internal/fetch"
	"github.com/regwatch/regcrawl/internal/logger"
	"github.com/regwatch/regcrawl/internal/oracle"
	"github.com/regwatch/regcrawl/internal/sentiment"
	"github.com/regwatch/regcrawl/internal/storage"
)

// Command returns the crawl command.
func Command(cfgFile *string, debug *bool) *cobra.Command {
	var (
		startPage int
		endPage   int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the enforcement order listings",
		Long: `Crawl walks the configured listing page range, processes every
document not yet completed, and checkpoints progress after each page.
Interrupting the run is safe: the next run resumes from the stored
checkpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps(*cfgFile, *debug)
			if err != nil {
				return err
			}
			cfg := deps.Config
			if startPage > 0 {
				cfg.Crawl.StartPage = startPage
			}
			if endPage > 0 {
				cfg.Crawl.EndPage = endPage
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, deps.Logger)
		},
	}

	cmd.Flags().IntVar(&startPage, "start-page", 0, "override the configured start page")
	cmd.Flags().IntVar(&endPage, "end-page", 0, "override the configured end page")

	return cmd
}

func run(ctx context.Context, cfg config.Config, log logger.Interface) error {
	store, err := storage.Connect(ctx, cfg.Mongo, log)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(context.Background()); closeErr != nil {
			log.Error("failed to close store", "error", closeErr)
		}
	}()

	oracleClient := &http.Client{Timeout: cfg.Oracles.Timeout}
	ner := oracle.NewNERClient(cfg.Oracles.NERURL, oracleClient)
	analyzer := oracle.NewSentimentClient(cfg.Oracles.SentimentURL, oracleClient)

	driver, err := crawler.New(
		cfg.Crawl,
		fetch.New(cfg.Fetch, log),
		checkpoint.NewController(store, log),
		store,
		extract.NewEntityExtractor(ner, log),
		sentiment.NewTagger(analyzer, log),
		log,
	)
	if err != nil {
		return fmt.Errorf("create crawler: %w", err)
	}

	result, err := driver.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	log.Info("crawl run complete",
		"run_id", result.RunID,
		"pages", result.PagesScanned,
		"processed", result.DocumentsProcessed,
		"skipped", result.DocumentsSkipped,
		"failed", result.DocumentsFailed,
		"entities", result.EntitiesStored)

	return nil
}
