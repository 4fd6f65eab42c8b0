package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/axgtan77/anson-catalog-automation/internal/cli"
	"github.com/axgtan77/anson-catalog-automation/internal/config"
	"github.com/axgtan77/anson-catalog-automation/internal/export"
	"github.com/axgtan77/anson-catalog-automation/internal/sheets"
)

func publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the active catalog to Google Sheets",
		Long: `Replace the configured spreadsheet tab with the current active catalog.
This is the sheet the enrichment workflow starts from.

Requires Google Sheets credentials; see the sheets.* configuration keys or
the GOOGLE_SHEETS_* environment variables.`,
		RunE: runPublish,
	}

	cmd.Flags().Bool("all", false, "Ignore the activity window and publish every active product")

	return cmd
}

func runPublish(cmd *cobra.Command, _ []string) error {
	all, _ := cmd.Flags().GetBool("all")

	ctx := cmd.Context()
	store, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sheetsCfg, err := config.LoadSheetsConfig()
	if err != nil {
		return fmt.Errorf("sheets configuration: %w", err)
	}

	window := cfg.Export.ActivityWindow
	if all {
		window = 0
	}

	rows, err := export.Build(ctx, store, window)
	if err != nil {
		return fmt.Errorf("failed to build export: %w", err)
	}
	if len(rows) == 0 {
		fmt.Println(cli.FormatWarning("Nothing to publish; the active catalog is empty."))
		return nil
	}

	slog.Info("Publishing catalog to Google Sheets",
		"spreadsheet_id", sheetsCfg.SpreadsheetID,
		"sheet", sheetsCfg.SheetName,
		"rows", len(rows))

	writer, err := sheets.NewWriter(ctx, *sheetsCfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create sheets client: %w", err)
	}

	if err := writer.Publish(ctx, rows); err != nil {
		return fmt.Errorf("failed to publish catalog: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Published %d products to %q", len(rows), sheetsCfg.SheetName)))
	return nil
}
