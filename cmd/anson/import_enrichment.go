package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/axgtan77/anson-catalog-automation/internal/cli"
	"github.com/axgtan77/anson-catalog-automation/internal/enrich"
)

func importEnrichmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-enrichment <file.csv>",
		Short: "Import descriptive product data from an enrichment spreadsheet",
		Long: `Apply names, brands, sizes and categories from a CSV exported from the
enrichment spreadsheet. Only existing products are updated; blank cells
never erase data, and unknown product keys are reported but skipped.

Examples:
  anson import-enrichment ~/Downloads/catalog-enrichment.csv`,
		Args: cobra.ExactArgs(1),
		RunE: runImportEnrichment,
	}
}

func runImportEnrichment(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer func() { _ = f.Close() }()

	rows, err := enrich.Read(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	if len(rows) == 0 {
		fmt.Println(cli.FormatWarning("No enrichment rows found in the file."))
		return nil
	}

	slog.Info("Importing enrichment data", "file", args[0], "rows", len(rows))

	stats, err := store.ApplyEnrichment(ctx, rows)
	if err != nil {
		return fmt.Errorf("failed to apply enrichment: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"Enrichment applied: %d updated, %d barcodes added", stats.Updated, stats.BarcodesAdded)))
	if stats.NotFound > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf(
			"%d rows referenced products not in the catalog", stats.NotFound)))
	}
	if stats.Skipped > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d rows skipped (no product key)", stats.Skipped)))
	}
	return nil
}
