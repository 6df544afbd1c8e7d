// Package reset implements the operator reset command for crawl progress.
package reset

import (
	"github.com/spf13/cobra"

	"github.com/regwatch/regcrawl/cmd/common"
)

// Command returns the reset command.
func Command(cfgFile *string, debug *bool) *cobra.Command {
	var (
		page          int
		purgeEntities bool
		purgeStatuses bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the crawl checkpoint",
		Long: `Reset rewinds the page cursor so the next run starts from the given
page. Per-document completion records are kept unless --purge-statuses is
set, so already-completed documents are still skipped. --purge-entities
additionally deletes all stored entity records.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps(*cfgFile, *debug)
			if err != nil {
				return err
			}
			log := deps.Logger

			ctx := cmd.Context()
			store, err := deps.ConnectStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			if err := store.ResetCheckpoint(ctx, page); err != nil {
				return err
			}
			log.Info("checkpoint reset", "page", page)

			if purgeStatuses {
				removed, err := store.PurgeStatuses(ctx)
				if err != nil {
					return err
				}
				log.Info("document statuses purged", "removed", removed)
			}

			if purgeEntities {
				removed, err := store.PurgeEntities(ctx)
				if err != nil {
					return err
				}
				log.Info("entity records purged", "removed", removed)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page the next crawl starts from")
	cmd.Flags().BoolVar(&purgeEntities, "purge-entities", false, "also delete all stored entity records")
	cmd.Flags().BoolVar(&purgeStatuses, "purge-statuses", false, "also delete per-document completion records")

	return cmd
}
