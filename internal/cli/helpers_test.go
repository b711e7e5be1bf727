package cli

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/eventfilter/internal/config"
)

// testRootOptions returns options as the root command would set them,
// with a SQLite store in a temp directory.
func testRootOptions(t *testing.T, format string) *RootOptions {
	t.Helper()
	return &RootOptions{
		Format: format,
		Config: &config.Config{
			Database:          config.DatabaseConfig{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "releases.db")},
			MaxSearchReleases: config.DefaultMaxSearchReleases,
			Log:               config.LogConfig{Level: "info", Format: "text"},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// executeRoot runs the root command with args in a directory without a
// config file.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeFile writes content to name in dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
