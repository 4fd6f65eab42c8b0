package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.NotEmpty(t, cfg.Database.Path)
	assert.NotContains(t, cfg.Database.Path, "~", "paths are expanded")
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	resetViper(t)
	viper.Set("logging.level", "loud")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoadExpandsSourcePaths(t *testing.T) {
	resetViper(t)
	viper.Set("sync.source_files", []string{"~/exports/MPMER.DBF"})

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Sync.SourceFiles, 1)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "exports", "MPMER.DBF"), cfg.Sync.SourceFiles[0])
}

func TestExpandPathEnvVars(t *testing.T) {
	t.Setenv("ANSON_TEST_DIR", "/srv/data")
	assert.Equal(t, "/srv/data/MPMER.DBF", ExpandPath("$ANSON_TEST_DIR/MPMER.DBF"))
	assert.Empty(t, ExpandPath(""))
}
