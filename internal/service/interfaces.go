// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/axgtan77/anson-catalog-automation/internal/model"
)

// ApplyMode selects whether a changeset is committed or only evaluated.
type ApplyMode string

// Apply modes. DryRun drives the identical mutation path as Commit and
// rolls the transaction back, so both modes report the same counts.
const (
	DryRun ApplyMode = "dry-run"
	Commit ApplyMode = "commit"
)

// SnapshotEntry is the point-in-time state of one product: the product row,
// its current price record (nil when the product has never had a valid
// price), and the set of persisted barcodes.
type SnapshotEntry struct {
	CurrentPrice *model.PriceRecord
	Barcodes     map[string]bool
	Product      model.Product
}

// CatalogSnapshot is a read-only view of the store keyed by product key.
// It is taken once per sync run and is not invalidated mid-run; external
// writers are excluded by the apply lease for the duration of the run.
type CatalogSnapshot struct {
	TakenAt  time.Time
	Products map[string]SnapshotEntry
}

// CatalogStore is the contract for the persisted catalog state.
type CatalogStore interface {
	// Migrate brings the schema up to the expected version.
	Migrate(ctx context.Context) error

	// Snapshot returns a point-in-time read of all products.
	Snapshot(ctx context.Context) (*CatalogSnapshot, error)

	// Apply applies a changeset in a single all-or-nothing transaction.
	// In DryRun mode the same mutations are executed and rolled back;
	// the returned summary counts are identical in both modes. A second
	// concurrent Apply fails fast with common.ErrSyncInProgress.
	Apply(ctx context.Context, changeset *model.Changeset, mode ApplyMode) (model.RunSummary, error)

	// Audit log. BeginAudit persists an IN_PROGRESS entry and fills in
	// its ID; FinalizeAudit writes the terminal status exactly once.
	BeginAudit(ctx context.Context, entry *model.SyncAuditEntry) error
	FinalizeAudit(ctx context.Context, entry *model.SyncAuditEntry) error
	LastAudit(ctx context.Context, syncType string) (*model.SyncAuditEntry, error)

	// Read operations used by reports, health checks and tests.
	GetProduct(ctx context.Context, key string) (*model.Product, error)
	GetPriceHistory(ctx context.Context, key string) ([]model.PriceRecord, error)
	GetBarcodes(ctx context.Context, key string) ([]model.Barcode, error)
	ActiveCatalog(ctx context.Context, cutoff time.Time) ([]model.CatalogRow, error)
	Stats(ctx context.Context) (*model.CatalogStats, error)

	// ApplyEnrichment upserts descriptive data from an enrichment
	// spreadsheet export.
	ApplyEnrichment(ctx context.Context, rows []model.EnrichmentRow) (model.EnrichmentStats, error)

	Close() error
}

// CatalogPublisher writes an exported catalog to an external destination.
type CatalogPublisher interface {
	Publish(ctx context.Context, rows []model.CatalogRow) error
}

// RetryOptions configures retry behavior for transient failures.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
