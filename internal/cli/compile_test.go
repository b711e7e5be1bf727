package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileText(t *testing.T) {
	dir := t.TempDir()
	terms := writeFile(t, dir, "terms.yaml", "- term: {key: environment, value: production}\n")

	out, err := executeRoot(t, "compile", terms, "--org", "1", "--dsn", filepath.Join(dir, "releases.db"))
	require.NoError(t, err)

	assert.Contains(t, out, "where:  environment = ?\n")
	assert.Contains(t, out, "        args [production]\n")
	assert.Contains(t, out, "having: 1 = 1\n")
	assert.Contains(t, out, "fingerprint: ")
}

func TestCompileJSON(t *testing.T) {
	dir := t.TempDir()
	terms := writeFile(t, dir, "terms.yaml", `
- term: {key: message, value: timeout}
- aggregate: {key: count(), op: ">", value: 10}
`)

	out, err := executeRoot(t, "compile", terms, "--org", "1", "--format", "json", "--dsn", filepath.Join(dir, "releases.db"))
	require.NoError(t, err)

	var response struct {
		Status string        `json:"status"`
		Data   CompileOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "positionCaseInsensitive(message, ?) != ?", response.Data.Where.SQL)
	assert.Equal(t, "count > ?", response.Data.Having.SQL)
	assert.Equal(t, []any{float64(10)}, response.Data.Having.Args)
	assert.Empty(t, response.Data.ProjectIDs)
	assert.NotEmpty(t, response.Data.Fingerprint)
}

func TestCompileLatestRelease(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "releases.db")

	for _, version := range []string{"a", "b"} {
		_, err := executeRoot(t, "releases", "add", "--org", "1", "--project", "backend", "--version", version, "--dsn", dsn)
		require.NoError(t, err)
	}

	terms := writeFile(t, dir, "terms.yaml", "- term: {key: release, value: latest}\n")
	out, err := executeRoot(t, "compile", terms, "--org", "1", "--project", "1", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "where:  release IN (?)\n")
	assert.Contains(t, out, "        args [b]\n")
}

func TestCompileQueryError(t *testing.T) {
	dir := t.TempDir()
	terms := writeFile(t, dir, "terms.yaml", `
- term: {key: environment, value: production}
- OR
- aggregate: {key: count(), op: ">", value: 10}
`)

	out, err := executeRoot(t, "compile", terms, "--org", "1", "--format", "json", "--dsn", filepath.Join(dir, "releases.db"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrCodeMixedTree, response.Error.Code)
	assert.Equal(t, &ErrorDetails{QueryCode: "MIXED_TREE"}, response.Error.Details)
}

func TestCompileQueryErrorField(t *testing.T) {
	dir := t.TempDir()
	terms := writeFile(t, dir, "terms.yaml", `- term: {key: error.handled, value: "2"}`+"\n")
	dsn := filepath.Join(dir, "releases.db")

	out, err := executeRoot(t, "compile", terms, "--org", "1", "--dsn", dsn)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeInvalidLiteral+"]: Invalid value for error.handled condition. Accepted values are 1, 0\n")
	assert.Contains(t, out, "  field: error.handled\n")

	out, err = executeRoot(t, "compile", terms, "--org", "1", "--dsn", dsn, "--format", "json")
	require.Error(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	require.NotNil(t, response.Error)
	assert.Equal(t, &ErrorDetails{QueryCode: "INVALID_LITERAL", Field: "error.handled"}, response.Error.Details)
}

func TestCompileParseErrorLocation(t *testing.T) {
	dir := t.TempDir()
	terms := writeFile(t, dir, "terms.yaml", "- XOR\n")

	out, err := executeRoot(t, "compile", terms, "--org", "1", "--dsn", filepath.Join(dir, "releases.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, terms+": Error ["+ErrCodeLoadFailed+"]: parsing terms file: line 1: unknown connective \"XOR\"")
}

func TestCompileCommandErrors(t *testing.T) {
	dir := t.TempDir()
	badTerms := writeFile(t, dir, "bad.yaml", "term: {key: a, value: b}\n")

	tests := []struct {
		name     string
		file     string
		wantCode string
	}{
		{"missing file", filepath.Join(dir, "missing.yaml"), ErrCodeNotFound},
		{"not a sequence", badTerms, ErrCodeLoadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			opts := testRootOptions(t, "json")
			cmd := NewCompileCommand(opts)
			cmd.SetOut(buf)
			cmd.SetArgs([]string{tt.file})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var response CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
			require.NotNil(t, response.Error)
			assert.Equal(t, tt.wantCode, response.Error.Code)
		})
	}
}

func TestCompileRequiresFile(t *testing.T) {
	cmd := NewCompileCommand(testRootOptions(t, "text"))
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}
