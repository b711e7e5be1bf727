package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into a fresh directory so no eventfilter.yaml is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("driver", DefaultDriver, "")
	flags.String("dsn", DefaultDSN, "")
	flags.String("registry", "", "")
	flags.Int("max-search-releases", DefaultMaxSearchReleases, "")
	flags.String("log-level", DefaultLogLevel, "")
	flags.String("log-format", DefaultLogFormat, "")
	flags.Bool("verbose", false, "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)

	cfg, used, err := Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, &Config{
		Database:          DatabaseConfig{Driver: "sqlite3", DSN: "eventfilter.db"},
		MaxSearchReleases: 1000,
		Log:               LogConfig{Level: "info", Format: "text"},
	}, cfg)
}

func TestLoad_Precedence(t *testing.T) {
	dir := chdir(t)
	content := `
database:
  driver: pgx
  dsn: postgres://file
registry: fields.cue
max_search_releases: 50
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0644))

	t.Run("file over defaults", func(t *testing.T) {
		cfg, used, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfigFile, used)
		assert.Equal(t, "pgx", cfg.Database.Driver)
		assert.Equal(t, "postgres://file", cfg.Database.DSN)
		assert.Equal(t, "fields.cue", cfg.Registry)
		assert.Equal(t, 50, cfg.MaxSearchReleases)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "text", cfg.Log.Format)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("EVENTFILTER_DATABASE_DSN", "postgres://env")
		t.Setenv("EVENTFILTER_MAX_SEARCH_RELEASES", "20")
		t.Setenv("EVENTFILTER_LOG_FORMAT", "json")

		cfg, _, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, "postgres://env", cfg.Database.DSN)
		assert.Equal(t, 20, cfg.MaxSearchReleases)
		assert.Equal(t, "json", cfg.Log.Format)
		assert.Equal(t, "pgx", cfg.Database.Driver)
	})

	t.Run("set flags over env", func(t *testing.T) {
		t.Setenv("EVENTFILTER_DATABASE_DSN", "postgres://env")
		flags := newFlags(t, "--dsn", "postgres://flag", "--max-search-releases", "5", "--verbose")

		cfg, _, err := Load("", flags)
		require.NoError(t, err)
		assert.Equal(t, "postgres://flag", cfg.Database.DSN)
		assert.Equal(t, 5, cfg.MaxSearchReleases)
		// Unset flags keep the file value.
		assert.Equal(t, "debug", cfg.Log.Level)
	})
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0644))

	cfg, used, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "warn", cfg.Log.Level)

	_, _, err = Load(filepath.Join(dir, "missing.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown driver", map[string]string{"EVENTFILTER_DATABASE_DRIVER": "mysql"}, `unsupported driver "mysql"`},
		{"zero max releases", map[string]string{"EVENTFILTER_MAX_SEARCH_RELEASES": "0"}, "max_search_releases must be positive"},
		{"bad level", map[string]string{"EVENTFILTER_LOG_LEVEL": "loud"}, "log.level"},
		{"bad format", map[string]string{"EVENTFILTER_LOG_FORMAT": "xml"}, "log.format must be text or json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, _, err := Load("", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "database.driver", envKey("EVENTFILTER_DATABASE_DRIVER"))
	assert.Equal(t, "log.level", envKey("EVENTFILTER_LOG_LEVEL"))
	assert.Equal(t, "max_search_releases", envKey("EVENTFILTER_MAX_SEARCH_RELEASES"))
	assert.Equal(t, "registry", envKey("EVENTFILTER_REGISTRY"))
}

func TestLogConfig_SlogLevel(t *testing.T) {
	level, err := LogConfig{Level: "debug"}.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = LogConfig{Level: "WARN"}.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}
