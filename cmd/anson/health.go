package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/axgtan77/anson-catalog-automation/internal/cli"
	"github.com/axgtan77/anson-catalog-automation/internal/model"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check catalog health and data-quality counters",
		Long: `Print catalog counts, the last sync outcome, the data-quality breakdown
and the structural invariant probes. All invariant counters should read 0;
anything else means the database needs attention.`,
		RunE: runHealth,
	}
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect stats: %w", err)
	}

	fmt.Println(cli.FormatInfo(fmt.Sprintf("Catalog: %s", cfg.Database.Path)))
	fmt.Printf("  Products:        %d (%d active)\n", stats.Products, stats.ActiveProducts)
	fmt.Printf("  Price records:   %d (%d current)\n", stats.PriceRecords, stats.CurrentPrices)
	fmt.Printf("  Barcodes:        %d\n", stats.Barcodes)

	if stats.LastSyncAt.IsZero() {
		fmt.Println(cli.FormatWarning("  No finalized sync runs yet."))
	} else {
		line := fmt.Sprintf("  Last sync:       %s (%s)",
			stats.LastSyncAt.Format("2006-01-02 15:04:05"), stats.LastSyncStatus)
		if stats.LastSyncStatus == model.RunSuccess {
			fmt.Println(line)
		} else {
			fmt.Println(cli.FormatWarning(line))
		}
	}

	if len(stats.QualityBreakdown) > 0 {
		fmt.Println("\nData quality:")
		qualities := make([]string, 0, len(stats.QualityBreakdown))
		for q := range stats.QualityBreakdown {
			qualities = append(qualities, string(q))
		}
		sort.Strings(qualities)
		for _, q := range qualities {
			fmt.Printf("  %-18s %d\n", q, stats.QualityBreakdown[model.DataQuality(q)])
		}
	}

	fmt.Println("\nInvariants:")
	healthy := true
	for _, probe := range []struct {
		name  string
		count int
	}{
		{"duplicate current prices", stats.DuplicateCurrent},
		{"orphaned price records", stats.OrphanPriceRecords},
		{"orphaned barcodes", stats.OrphanBarcodes},
		{"active products without a price", stats.ProductsNoPrice},
	} {
		if probe.count == 0 {
			fmt.Printf("  %-32s 0\n", probe.name)
			continue
		}
		healthy = false
		fmt.Println(cli.FormatError(fmt.Sprintf("  %-32s %d", probe.name, probe.count)))
	}

	if !healthy {
		return fmt.Errorf("catalog invariants violated")
	}
	fmt.Println()
	fmt.Println(cli.FormatSuccess("Catalog is healthy."))
	return nil
}
