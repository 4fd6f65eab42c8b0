package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/axgtan77/anson-catalog-automation/internal/common"
	"github.com/axgtan77/anson-catalog-automation/internal/model"
	"github.com/axgtan77/anson-catalog-automation/internal/service"
)

// Apply executes a changeset in a single all-or-nothing transaction. Both
// modes run the identical mutation path; DryRun rolls the transaction back
// at the end, which is what guarantees the returned counts match a commit
// byte for byte. The apply lease excludes concurrent runs in either mode.
func (s *SQLiteStorage) Apply(ctx context.Context, changeset *model.Changeset, mode service.ApplyMode) (model.RunSummary, error) {
	summary := model.RunSummary{SkipReasons: make(map[string]int)}

	if err := validateContext(ctx); err != nil {
		return summary, err
	}
	if err := validateChangeset(changeset); err != nil {
		return summary, err
	}
	if err := validateMode(mode); err != nil {
		return summary, err
	}

	leaseID := uuid.New().String()
	if err := s.acquireLease(ctx, leaseID); err != nil {
		return summary, err
	}
	defer func() { _ = s.releaseLease(leaseID) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, d := range changeset.Decisions {
		if err := s.applyDecision(ctx, tx, &d, now, &summary); err != nil {
			return model.RunSummary{SkipReasons: make(map[string]int)},
				fmt.Errorf("failed to apply decision for %s: %w", d.Key, err)
		}
	}

	for _, key := range changeset.Deactivate {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET active = 0, updated_at = ? WHERE key = ? AND active = 1`,
			now, key)
		if err != nil {
			return model.RunSummary{SkipReasons: make(map[string]int)},
				fmt.Errorf("failed to deactivate %s: %w", key, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			summary.Deactivated++
		}
	}

	summary.Processed = len(changeset.Decisions)

	if mode == service.DryRun {
		if err := tx.Rollback(); err != nil {
			return summary, fmt.Errorf("failed to roll back dry run: %w", err)
		}
		return summary, nil
	}

	if err := tx.Commit(); err != nil {
		return model.RunSummary{SkipReasons: make(map[string]int)},
			fmt.Errorf("failed to commit changeset: %w", err)
	}
	return summary, nil
}

func (s *SQLiteStorage) applyDecision(ctx context.Context, tx *sql.Tx, d *model.Decision, now time.Time, summary *model.RunSummary) error {
	switch {
	case d.New:
		if err := s.insertProduct(ctx, tx, d.Candidate, now); err != nil {
			return err
		}
		summary.Added++
		if hasAnyPrice(d.Candidate) {
			if err := s.insertCurrentPrice(ctx, tx, d.Candidate, now, false); err != nil {
				return err
			}
		}

	default:
		if d.Reactivated {
			_, err := tx.ExecContext(ctx,
				`UPDATE products SET active = 1, updated_at = ? WHERE key = ?`,
				now, d.Key)
			if err != nil {
				return fmt.Errorf("failed to reactivate: %w", err)
			}
			summary.Reactivated++
		}

		if d.PriceChanged {
			if err := s.insertCurrentPrice(ctx, tx, d.Candidate, now, true); err != nil {
				return err
			}
			summary.PriceChanged++
		}

		if d.DescriptionChanged {
			_, err := tx.ExecContext(ctx, `
				UPDATE products
				SET description = ?, data_quality = ?, needs_enrichment = 1, updated_at = ?
				WHERE key = ?`,
				d.Candidate.Description, string(model.QualityNeedsReview), now, d.Key)
			if err != nil {
				return fmt.Errorf("failed to update description: %w", err)
			}
			summary.DescriptionFlagged++
		}

		if d.Unchanged() {
			summary.Unchanged++
		}
	}

	if len(d.NewBarcodes) > 0 {
		added, err := s.insertBarcodes(ctx, tx, d.Key, d.NewBarcodes, d.Candidate.PrimaryBarcode(), now)
		if err != nil {
			return err
		}
		summary.BarcodesAdded += added
	}
	return nil
}

func (s *SQLiteStorage) insertProduct(ctx context.Context, tx *sql.Tx, c *model.ProductCandidate, now time.Time) error {
	quality := model.QualityNeedsName
	if c.Description == "" {
		quality = model.QualityNeedsDescription
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO products (key, description, supplier_code, active,
			needs_enrichment, data_quality, created_at, updated_at)
		VALUES (?, ?, ?, 1, 1, ?, ?, ?)`,
		c.Key, c.Description, nullString(c.SupplierCode), string(quality), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// insertCurrentPrice writes a new current price record, first flipping any
// existing current record off. The flip and the insert share the caller's
// transaction, which is what keeps the one-current-per-product index happy.
func (s *SQLiteStorage) insertCurrentPrice(ctx context.Context, tx *sql.Tx, c *model.ProductCandidate, now time.Time, flipPrevious bool) error {
	if flipPrevious {
		_, err := tx.ExecContext(ctx,
			`UPDATE prices SET is_current = 0 WHERE product_key = ? AND is_current = 1`,
			c.Key)
		if err != nil {
			return fmt.Errorf("failed to retire current price: %w", err)
		}
	}

	effective := c.LastModified
	if effective.IsZero() {
		effective = now
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO prices (product_key, price_case, price_pack, price_retail,
			cost, effective_date, is_current, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		c.Key, nullFloat(c.PriceCase), nullFloat(c.PricePack),
		nullFloat(c.PriceRetail), nullFloat(c.Cost), effective, now)
	if err != nil {
		return fmt.Errorf("failed to insert price record: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) insertBarcodes(ctx context.Context, tx *sql.Tx, key string, codes []string, primary string, now time.Time) (int, error) {
	var hasPrimary bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM barcodes WHERE product_key = ? AND is_primary = 1)`,
		key).Scan(&hasPrimary)
	if err != nil {
		return 0, fmt.Errorf("failed to check primary barcode: %w", err)
	}

	added := 0
	for _, code := range codes {
		isPrimary := 0
		if !hasPrimary && code == primary {
			isPrimary = 1
			hasPrimary = true
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO barcodes (product_key, code, is_primary, created_at)
			VALUES (?, ?, ?, ?)`,
			key, code, isPrimary, now)
		if err != nil {
			return added, fmt.Errorf("failed to insert barcode: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, nil
}

func hasAnyPrice(c *model.ProductCandidate) bool {
	return c.PriceCase != nil || c.PricePack != nil || c.PriceRetail != nil || c.Cost != nil
}

// acquireLease takes the exclusive apply lease, stealing it only from a
// holder older than staleLockTimeout.
func (s *SQLiteStorage) acquireLease(ctx context.Context, leaseID string) error {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_lock (id, run_id, acquired_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET run_id = excluded.run_id, acquired_at = excluded.acquired_at
		WHERE sync_lock.acquired_at < ?`,
		leaseID, now, now.Add(-staleLockTimeout))
	if err != nil {
		return fmt.Errorf("failed to acquire apply lease: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to acquire apply lease: %w", err)
	}
	if n == 0 {
		return common.ErrSyncInProgress
	}
	return nil
}

// releaseLease deletes the lease only when this run still holds it, so a
// stale-steal by a later run is never clobbered.
func (s *SQLiteStorage) releaseLease(leaseID string) error {
	_, err := s.db.Exec(`DELETE FROM sync_lock WHERE id = 1 AND run_id = ?`, leaseID)
	if err != nil {
		return fmt.Errorf("failed to release apply lease: %w", err)
	}
	return nil
}
