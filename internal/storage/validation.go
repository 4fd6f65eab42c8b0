// Package storage provides the SQLite persistence layer for the catalog.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/axgtan77/anson-catalog-automation/internal/model"
	"github.com/axgtan77/anson-catalog-automation/internal/service"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidMode    = errors.New("invalid apply mode")
	ErrInvalidEntry   = errors.New("invalid audit entry")
	ErrEntryFinalized = errors.New("audit entry already finalized")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateMode(mode service.ApplyMode) error {
	switch mode {
	case service.DryRun, service.Commit:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
}

func validateChangeset(changeset *model.Changeset) error {
	if changeset == nil || changeset.Decisions == nil {
		return fmt.Errorf("%w: changeset", ErrNilParameter)
	}
	for key, d := range changeset.Decisions {
		if d.Key == "" || d.Key != key {
			return fmt.Errorf("%w: decision keyed %q carries key %q", ErrNilParameter, key, d.Key)
		}
		if !d.New && d.Candidate == nil && (d.PriceChanged || d.DescriptionChanged || len(d.NewBarcodes) > 0) {
			return fmt.Errorf("%w: decision %q has mutations but no candidate", ErrNilParameter, key)
		}
		if d.New && d.Candidate == nil {
			return fmt.Errorf("%w: new decision %q has no candidate", ErrNilParameter, key)
		}
	}
	return nil
}

func validateAuditEntry(entry *model.SyncAuditEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if entry.RunID == "" {
		return fmt.Errorf("%w: missing run ID", ErrInvalidEntry)
	}
	if entry.SyncType == "" {
		return fmt.Errorf("%w: missing sync type", ErrInvalidEntry)
	}
	return nil
}
