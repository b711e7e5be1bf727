package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/eventfilter/internal/store"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := store.DialectForDriver(c.Database.Driver); err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.MaxSearchReleases <= 0 {
		return fmt.Errorf("max_search_releases must be positive, got %d", c.MaxSearchReleases)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
