// Package engine orchestrates a price-master synchronization run: decode,
// map, detect, apply, audit.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/google/uuid"

	"github.com/axgtan77/anson-catalog-automation/internal/common"
	"github.com/axgtan77/anson-catalog-automation/internal/dbf"
	"github.com/axgtan77/anson-catalog-automation/internal/detect"
	"github.com/axgtan77/anson-catalog-automation/internal/mapper"
	"github.com/axgtan77/anson-catalog-automation/internal/model"
	"github.com/axgtan77/anson-catalog-automation/internal/service"
)

// SyncType identifies price-master runs in the audit log.
const SyncType = "price-master"

// Config wires an engine together.
type Config struct {
	Store    service.CatalogStore
	Logger   *slog.Logger
	Progress func(stage string, done, total int)
}

// Engine runs the synchronization pipeline. It is stateless between runs
// except through the store.
type Engine struct {
	store    service.CatalogStore
	detector *detect.Detector
	logger   *slog.Logger
	progress func(stage string, done, total int)
}

// New creates an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("engine requires a store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := cfg.Progress
	if progress == nil {
		progress = func(string, int, int) {}
	}
	return &Engine{
		store:    cfg.Store,
		detector: detect.New(logger),
		logger:   logger,
		progress: progress,
	}, nil
}

// Result is everything one run produced: the audit entry as persisted, the
// changeset that drove (or would drive) the mutations, and the decode-side
// counters.
type Result struct {
	Audit      model.SyncAuditEntry
	Changeset  *model.Changeset
	Candidates int
	Decoded    int
	Deleted    int
	Warnings   int
}

// Sync runs the full pipeline over one or more source files in order. Any
// failure before the apply stage leaves the store untouched; every run,
// failed ones included, gets a finalized audit entry.
func (e *Engine) Sync(ctx context.Context, sources []string, mode service.ApplyMode) (*Result, error) {
	if len(sources) == 0 {
		return nil, common.NewUserError(
			"No source files were given to synchronize",
			errors.New("no source files"))
	}

	entry := model.SyncAuditEntry{
		RunID:      uuid.New().String(),
		SyncType:   SyncType,
		SourceFile: sources[len(sources)-1],
		DryRun:     mode == service.DryRun,
	}

	// Audit writes must land even when the run's context is cancelled; a
	// cancelled run still gets a finalized Failed entry.
	auditCtx := context.WithoutCancel(ctx)
	if err := e.store.BeginAudit(auditCtx, &entry); err != nil {
		return nil, fmt.Errorf("failed to begin audit entry: %w", err)
	}

	result, err := e.run(ctx, sources, mode, &entry)
	if err != nil {
		entry.Status = model.RunFailed
		entry.ErrorMessage = err.Error()
		if finalizeErr := e.store.FinalizeAudit(auditCtx, &entry); finalizeErr != nil {
			e.logger.Error("failed to finalize audit entry",
				slog.String("run_id", entry.RunID),
				slog.Any("error", finalizeErr))
		}
		return nil, err
	}

	entry.Status = model.RunSuccess
	if err := e.store.FinalizeAudit(auditCtx, &entry); err != nil {
		return nil, fmt.Errorf("failed to finalize audit entry: %w", err)
	}
	result.Audit = entry
	return result, nil
}

func (e *Engine) run(ctx context.Context, sources []string, mode service.ApplyMode, entry *model.SyncAuditEntry) (*Result, error) {
	result := &Result{}
	m := mapper.New(e.logger)

	merged := make(map[string]*model.ProductCandidate)
	for _, path := range sources {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrSyncCancelled, err)
		}
		if err := e.decodeFile(ctx, path, m, merged, result); err != nil {
			return nil, err
		}
	}

	candidates := make([]*model.ProductCandidate, 0, len(merged))
	for _, c := range merged {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Key < candidates[j].Key })
	result.Candidates = len(candidates)
	result.Warnings = m.DecodeWarnings()

	e.logger.Info("decoded source files",
		slog.Int("files", len(sources)),
		slog.Int("records", result.Decoded),
		slog.Int("deleted", result.Deleted),
		slog.Int("candidates", len(candidates)),
		slog.Int("dropped", m.DroppedTotal()))

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSyncCancelled, err)
	}

	snapshot, err := e.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot catalog: %w", err)
	}

	e.progress("detect", 0, len(candidates))
	changeset := e.detector.Decide(candidates, snapshot)
	result.Changeset = changeset

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSyncCancelled, err)
	}

	e.progress("apply", 0, len(changeset.Decisions))
	summary, err := e.store.Apply(ctx, changeset, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to apply changeset: %w", err)
	}

	summary.SkippedInvalid = m.DroppedTotal()
	for reason, n := range m.Dropped() {
		summary.SkipReasons[reason] = n
	}
	entry.Summary = summary
	return result, nil
}

// decodeFile streams one source file through the mapper. Candidates merge
// across files by modification date, with the later file winning ties, so
// a stack of daily extracts replays in the right order.
func (e *Engine) decodeFile(ctx context.Context, path string, m *mapper.Mapper, merged map[string]*model.ProductCandidate, result *Result) error {
	f, err := os.Open(path)
	if err != nil {
		return common.NewUserError(
			fmt.Sprintf("Could not open %s, check the path and permissions", path),
			fmt.Errorf("failed to open source file: %w", err))
	}
	defer func() { _ = f.Close() }()

	reader, err := dbf.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	// Within one file the later record wins outright, matching the source
	// database's last-write-wins behavior on duplicate keys.
	fileCandidates := make(map[string]*model.ProductCandidate)
	total := reader.RecordCount()
	done := 0
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", common.ErrSyncCancelled, err)
		}

		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
		done++
		result.Decoded++
		e.progress("decode", done, total)

		if c := m.Map(rec); c != nil {
			fileCandidates[c.Key] = c
		}
	}

	for key, c := range fileCandidates {
		existing, ok := merged[key]
		if !ok || !c.LastModified.Before(existing.LastModified) {
			merged[key] = c
		}
	}

	result.Deleted += reader.DeletedCount()
	return nil
}
