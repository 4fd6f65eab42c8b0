package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/axgtan77/anson-catalog-automation/internal/cli"
	"github.com/axgtan77/anson-catalog-automation/internal/common"
	"github.com/axgtan77/anson-catalog-automation/internal/engine"
	"github.com/axgtan77/anson-catalog-automation/internal/service"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [files...]",
		Short: "Synchronize the catalog from price-master export files",
		Long: `Decode one or more price-master DBF exports, compare them against the
local catalog and apply the resulting changes in a single transaction.

Files given on the command line override the configured source list. When
several files cover the same product, the newest modification date wins.

Examples:
  # Sync the configured sources
  anson sync

  # Preview a specific export without writing anything
  anson sync --dry-run ~/exports/MPMER.DBF

  # Nightly cron invocation, skipping the run when nothing changed
  anson sync --if-changed`,
		RunE: runSync,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Evaluate changes without committing them")
	cmd.Flags().Bool("if-changed", false, "Skip the run when the source files are unchanged since the last sync")
	cmd.Flags().String("report-file", "", "Write a tab-separated change log to this file")
	cmd.Flags().Bool("no-progress", false, "Disable the progress bar")

	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	ifChanged, _ := cmd.Flags().GetBool("if-changed")
	reportFile, _ := cmd.Flags().GetString("report-file")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	ctx := cmd.Context()
	store, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sources, err := expandSources(args, cfg.Sync.SourceFiles)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return common.NewUserError(
			"No source files configured; pass them as arguments or set sync.source_files",
			errors.New("no source files"))
	}

	cursor, err := engine.Cursor(sources)
	if err != nil {
		return err
	}
	if ifChanged {
		previous, loadErr := loadCursor(cfg.Sync.CursorPath)
		if loadErr != nil {
			slog.Warn("Failed to read sync cursor, running anyway", "error", loadErr)
		} else if cursor.Equal(previous) {
			fmt.Println(cli.FormatInfo("Source files unchanged since last sync, nothing to do."))
			return nil
		}
	}

	mode := service.Commit
	if dryRun {
		mode = service.DryRun
	}

	progress := newStageProgress(noProgress)
	eng, err := engine.New(engine.Config{
		Store:    store,
		Logger:   slog.Default(),
		Progress: progress.update,
	})
	if err != nil {
		return err
	}

	result, err := eng.Sync(ctx, sources, mode)
	progress.finish()
	if err != nil {
		if errors.Is(err, common.ErrSyncInProgress) {
			return common.NewUserError(
				"Another sync is already running against this catalog", err)
		}
		return err
	}

	fmt.Println(engine.Report(result))

	if reportFile == "" && cfg.Sync.ReportDir != "" {
		name := fmt.Sprintf("sync-%s.tsv", time.Now().Format("20060102-150405"))
		reportFile = filepath.Join(cfg.Sync.ReportDir, name)
	}
	if reportFile != "" {
		if err := writeDetailReport(reportFile, result); err != nil {
			return err
		}
		fmt.Println(cli.FormatInfo(fmt.Sprintf("Change log written to %s", reportFile)))
	}

	// The cursor only advances on a committed run; a dry run must not
	// make --if-changed skip the real one.
	if !dryRun {
		if err := saveCursor(cfg.Sync.CursorPath, cursor); err != nil {
			slog.Warn("Failed to save sync cursor", "error", err)
		}
	}

	return nil
}

func writeDetailReport(path string, result *engine.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return engine.WriteDetailLog(f, result)
}

func loadCursor(path string) (engine.SyncCursor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return engine.SyncCursor{}, nil
		}
		return nil, err
	}
	var cursor engine.SyncCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("failed to parse cursor file: %w", err)
	}
	return cursor, nil
}

func saveCursor(path string, cursor engine.SyncCursor) error {
	data, err := json.MarshalIndent(cursor, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// stageProgress renders one progress bar per pipeline stage on stderr.
type stageProgress struct {
	bar      *progressbar.ProgressBar
	stage    string
	disabled bool
}

var stageDescriptions = map[string]string{
	"decode": "[cyan][bold]Decoding records...[reset]",
	"detect": "[cyan][bold]Detecting changes...[reset]",
	"apply":  "[cyan][bold]Applying changes...[reset]",
}

func newStageProgress(disabled bool) *stageProgress {
	return &stageProgress{disabled: disabled}
}

func (p *stageProgress) update(stage string, done, total int) {
	if p.disabled {
		return
	}
	if stage != p.stage {
		p.finish()
		p.stage = stage
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription(stageDescriptions[stage]),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	if err := p.bar.Set(done); err != nil {
		slog.Debug("Failed to update progress bar", "error", err)
	}
}

func (p *stageProgress) finish() {
	if p.bar == nil {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Debug("Failed to finish progress bar", "error", err)
	}
	fmt.Fprintln(os.Stderr)
	p.bar = nil
}
