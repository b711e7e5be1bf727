// Package config provides layered configuration for the eventfilter CLI.
//
// Values are resolved with the precedence flags > environment > config
// file > defaults. Environment variables use the EVENTFILTER_ prefix:
// EVENTFILTER_DATABASE_DSN sets database.dsn.
package config

// Default values.
const (
	DefaultConfigFile        = "eventfilter.yaml"
	DefaultDriver            = "sqlite3"
	DefaultDSN               = "eventfilter.db"
	DefaultMaxSearchReleases = 1000
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

// Config is the resolved CLI configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`

	// Registry is a CUE file overriding the embedded field registry.
	// Empty uses the embedded default.
	Registry string `koanf:"registry"`

	// MaxSearchReleases bounds every release lookup.
	MaxSearchReleases int `koanf:"max_search_releases"`

	Log LogConfig `koanf:"log"`
}

// DatabaseConfig selects the release store.
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaults() map[string]any {
	return map[string]any{
		"database.driver":     DefaultDriver,
		"database.dsn":        DefaultDSN,
		"registry":            "",
		"max_search_releases": DefaultMaxSearchReleases,
		"log.level":           DefaultLogLevel,
		"log.format":          DefaultLogFormat,
	}
}
