// Package query implements read-only inspection of stored entity records.
package query

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/regwatch/regcrawl/cmd/common"
	"github.com/regwatch/regcrawl/internal/domain"
	"github.com/regwatch/regcrawl/internal/storage"
)

const (
	defaultLimit = 20

	nameColumnWidth     = 40
	documentColumnWidth = 60
)

// Command returns the query command.
func Command(cfgFile *string, debug *bool) *cobra.Command {
	var (
		negative  bool
		withTaxID bool
		limit     int64
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Inspect stored entity records",
		Long: `Query prints a summary of the stored entity records. With --negative
or --with-tax-id it lists the matching records instead, newest first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, *cfgFile, *debug, negative, withTaxID, limit)
		},
	}

	cmd.Flags().BoolVar(&negative, "negative", false, "list entities with negative sentiment")
	cmd.Flags().BoolVar(&withTaxID, "with-tax-id", false, "list entities that have a linked tax identifier")
	cmd.Flags().Int64Var(&limit, "limit", defaultLimit, "maximum records to list")

	return cmd
}

func run(cmd *cobra.Command, cfgFile string, debug, negative, withTaxID bool, limit int64) error {
	deps, err := common.NewCommandDeps(cfgFile, debug)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := deps.ConnectStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	switch {
	case negative:
		records, err := store.NegativeEntities(ctx, limit)
		if err != nil {
			return err
		}
		renderRecords(records)
	case withTaxID:
		records, err := store.EntitiesWithTaxID(ctx, limit)
		if err != nil {
			return err
		}
		renderRecords(records)
	default:
		summary, err := store.Summary(ctx)
		if err != nil {
			return err
		}
		renderSummary(summary)
	}

	return nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	return t
}

func renderSummary(summary storage.Summary) {
	t := newTable()
	t.AppendHeader(table.Row{"Metric", "Count"})
	t.AppendRows([]table.Row{
		{"Total entities", summary.TotalEntities},
		{"Persons", summary.Persons},
		{"Organizations", summary.Organizations},
		{"Negative sentiment", summary.NegativeSentiment},
		{"With tax ID", summary.WithTaxID},
		{"With registration ID", summary.WithRegistrationID},
		{"With address", summary.WithAddress},
	})
	t.Render()
}

func renderRecords(records []domain.EntityRecord) {
	t := newTable()
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: nameColumnWidth},
		{Number: 6, WidthMax: documentColumnWidth},
	})
	t.AppendHeader(table.Row{"#", "Name", "Type", "Sentiment", "Tax ID", "Document"})

	for i, record := range records {
		t.AppendRow(table.Row{
			i + 1,
			record.EntityName,
			record.EntityType,
			record.Sentiment,
			record.TaxID,
			record.SourceDocumentURL,
		})
	}
	t.Render()
}
