package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the application configuration, loaded from the config file and
// ANSON_ environment variables.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Export   ExportConfig   `mapstructure:"export"`
}

// DatabaseConfig locates the catalog database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// SyncConfig controls price-master synchronization runs.
type SyncConfig struct {
	SourceFiles []string `mapstructure:"source_files"`
	CursorPath  string   `mapstructure:"cursor_path"`
	ReportDir   string   `mapstructure:"report_dir"`
}

// ExportConfig controls the active-catalog extract.
type ExportConfig struct {
	OutputPath     string        `mapstructure:"output_path"`
	ActivityWindow time.Duration `mapstructure:"activity_window"`
}

// Load unmarshals and validates the configuration viper has accumulated.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Sync.CursorPath = ExpandPath(cfg.Sync.CursorPath)
	cfg.Sync.ReportDir = ExpandPath(cfg.Sync.ReportDir)
	cfg.Export.OutputPath = ExpandPath(cfg.Export.OutputPath)
	for i, path := range cfg.Sync.SourceFiles {
		cfg.Sync.SourceFiles[i] = ExpandPath(path)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults registers the default configuration values on viper. Called
// once from the root command before any config is read.
func SetDefaults() {
	viper.SetDefault("database.path", "~/.local/share/anson/catalog.db")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("sync.cursor_path", "~/.local/share/anson/cursor.json")
	viper.SetDefault("export.activity_window", 365*24*time.Hour)
}
