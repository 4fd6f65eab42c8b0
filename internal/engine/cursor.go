package engine

import (
	"fmt"
	"os"
	"time"
)

// FileState is the change-detection fingerprint of one source file.
type FileState struct {
	ModTime time.Time `json:"mtime"`
	Size    int64     `json:"size"`
}

// SyncCursor records the last-seen state of the source files, keyed by
// path. The engine computes it; persisting it between runs is the
// caller's job.
type SyncCursor map[string]FileState

// Cursor stats every path and returns the current cursor.
func Cursor(paths []string) (SyncCursor, error) {
	cursor := make(SyncCursor, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source file: %w", err)
		}
		cursor[path] = FileState{ModTime: info.ModTime().UTC(), Size: info.Size()}
	}
	return cursor, nil
}

// Equal reports whether two cursors describe the same file states.
func (c SyncCursor) Equal(other SyncCursor) bool {
	if len(c) != len(other) {
		return false
	}
	for path, state := range c {
		got, ok := other[path]
		if !ok || got.Size != state.Size || !got.ModTime.Equal(state.ModTime) {
			return false
		}
	}
	return true
}
