package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/axgtan77/anson-catalog-automation/internal/common"
	"github.com/axgtan77/anson-catalog-automation/internal/model"
)

// BeginAudit persists a new IN_PROGRESS audit entry and fills in its ID.
func (s *SQLiteStorage) BeginAudit(ctx context.Context, entry *model.SyncAuditEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAuditEntry(entry); err != nil {
		return err
	}

	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	}
	entry.Status = model.RunInProgress

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_log (run_id, sync_type, source_file, dry_run, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.SyncType, nullString(entry.SourceFile),
		entry.DryRun, string(entry.Status), entry.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read audit entry id: %w", err)
	}
	entry.ID = id
	return nil
}

// FinalizeAudit writes the terminal status and summary counts. An entry can
// only be finalized once; finalized entries are immutable.
func (s *SQLiteStorage) FinalizeAudit(ctx context.Context, entry *model.SyncAuditEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAuditEntry(entry); err != nil {
		return err
	}
	if entry.Status == model.RunInProgress {
		return fmt.Errorf("%w: cannot finalize to IN_PROGRESS", ErrInvalidEntry)
	}

	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now().UTC()
	}

	skipReasons, err := json.Marshal(entry.Summary.SkipReasons)
	if err != nil {
		return fmt.Errorf("failed to encode skip reasons: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_log
		SET status = ?, completed_at = ?, error_message = ?,
		    processed = ?, added = ?, price_changed = ?, description_flagged = ?,
		    reactivated = ?, deactivated = ?, unchanged = ?, skipped_invalid = ?,
		    barcodes_added = ?, skip_reasons = ?
		WHERE id = ? AND status = ?`,
		string(entry.Status), entry.CompletedAt, nullString(entry.ErrorMessage),
		entry.Summary.Processed, entry.Summary.Added, entry.Summary.PriceChanged,
		entry.Summary.DescriptionFlagged, entry.Summary.Reactivated,
		entry.Summary.Deactivated, entry.Summary.Unchanged,
		entry.Summary.SkippedInvalid, entry.Summary.BarcodesAdded,
		string(skipReasons), entry.ID, string(model.RunInProgress))
	if err != nil {
		return fmt.Errorf("failed to finalize audit entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finalize audit entry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: entry %d", ErrEntryFinalized, entry.ID)
	}
	return nil
}

// LastAudit returns the most recently started audit entry for a sync type,
// or common.ErrNotFound when none exists.
func (s *SQLiteStorage) LastAudit(ctx context.Context, syncType string) (*model.SyncAuditEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(syncType, "syncType"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, sync_type, COALESCE(source_file, ''), dry_run, status,
		       started_at, completed_at, COALESCE(error_message, ''),
		       processed, added, price_changed, description_flagged, reactivated,
		       deactivated, unchanged, skipped_invalid, barcodes_added,
		       COALESCE(skip_reasons, '{}')
		FROM sync_log
		WHERE sync_type = ?
		ORDER BY started_at DESC, id DESC
		LIMIT 1`, syncType)

	var entry model.SyncAuditEntry
	var status, skipReasons string
	var completed sql.NullTime
	err := row.Scan(&entry.ID, &entry.RunID, &entry.SyncType, &entry.SourceFile,
		&entry.DryRun, &status, &entry.StartedAt, &completed, &entry.ErrorMessage,
		&entry.Summary.Processed, &entry.Summary.Added, &entry.Summary.PriceChanged,
		&entry.Summary.DescriptionFlagged, &entry.Summary.Reactivated,
		&entry.Summary.Deactivated, &entry.Summary.Unchanged,
		&entry.Summary.SkippedInvalid, &entry.Summary.BarcodesAdded, &skipReasons)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no %s audit entries", common.ErrNotFound, syncType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audit entry: %w", err)
	}

	entry.Status = model.RunStatus(status)
	entry.CompletedAt = completed.Time
	if err := json.Unmarshal([]byte(skipReasons), &entry.Summary.SkipReasons); err != nil {
		return nil, fmt.Errorf("failed to decode skip reasons: %w", err)
	}
	return &entry, nil
}
