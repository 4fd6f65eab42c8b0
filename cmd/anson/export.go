package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/axgtan77/anson-catalog-automation/internal/cli"
	"github.com/axgtan77/anson-catalog-automation/internal/export"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the active catalog to CSV",
		Long: `Write the active catalog, with current prices and primary barcodes, as a
CSV file for the back office.

The activity window limits the export to recently touched products; set it
to 0 (or pass --all) to export everything active.`,
		RunE: runExport,
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default: configured export.output_path, or stdout)")
	cmd.Flags().Bool("all", false, "Ignore the activity window and export every active product")

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	all, _ := cmd.Flags().GetBool("all")

	ctx := cmd.Context()
	store, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	window := cfg.Export.ActivityWindow
	if all {
		window = 0
	}

	rows, err := export.Build(ctx, store, window)
	if err != nil {
		return fmt.Errorf("failed to build export: %w", err)
	}

	if output == "" {
		output = cfg.Export.OutputPath
	}
	if output == "" {
		return export.WriteCSV(os.Stdout, rows)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	defer func() { _ = f.Close() }()

	if err := export.WriteCSV(f, rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Exported %d products to %s", len(rows), output)))
	return nil
}
