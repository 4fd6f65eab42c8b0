package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/axgtan77/anson-catalog-automation/internal/config"
	"github.com/axgtan77/anson-catalog-automation/internal/storage"
)

// openStore loads the validated configuration, opens the catalog database
// and brings its schema up to date.
func openStore(ctx context.Context) (*storage.SQLiteStorage, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, cfg, nil
}

// expandSources resolves the files to synchronize: explicit arguments win,
// otherwise the configured source list is used. Glob patterns expand, and
// a non-matching argument is treated as a literal path so the resulting
// stat error names the file the operator typed.
func expandSources(args []string, configured []string) ([]string, error) {
	patterns := args
	if len(patterns) == 0 {
		patterns = configured
	}

	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			files = append(files, pattern)
			continue
		}
		files = append(files, matches...)
	}
	return files, nil
}

// writeFileAtomic writes data next to path and renames it into place, so a
// crash mid-write never leaves a half-written file behind.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
