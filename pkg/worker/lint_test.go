package worker

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLinter writes an executable shell script named name onto a fresh
// directory and points PATH at it, so exec.LookPath resolves it without
// depending on whatever linters happen to be installed on the test host.
func stubLinter(t *testing.T, name, output string, exitCode int) {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, name)
	content := "#!/bin/sh\nprintf '%s' \"" + output + "\"\nexit " + strconv.Itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(script, []byte(content), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestRunLinters_SkipsWhenNoExtensionMatches(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	out := runLinters(context.Background(), t.TempDir(), []string{"README.md"})
	assert.Empty(t, out)
}

func TestRunLinters_SkipsMissingBinarySilently(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	out := runLinters(context.Background(), t.TempDir(), []string{"main.go"})
	assert.Empty(t, out)
}

func TestRunLinters_RunsMatchingLinterAndCapturesOutput(t *testing.T) {
	stubLinter(t, "golangci-lint", "main.go:3:2: unused import", 1)

	out := runLinters(context.Background(), t.TempDir(), []string{"main.go"})
	assert.Contains(t, out, "golangci-lint:")
	assert.Contains(t, out, "unused import")
}

func TestRunLinters_DedupesSameLinterAcrossExtensions(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "eslint")
	// Appends a marker to a counter file every time it runs, so a second
	// invocation would be visible as more than one line in that file.
	counter := filepath.Join(dir, "calls")
	content := "#!/bin/sh\necho run >> " + counter + "\nprintf 'ok'\n"
	require.NoError(t, os.WriteFile(script, []byte(content), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	runLinters(context.Background(), t.TempDir(), []string{"a.js", "b.ts", "c.tsx"})

	data, err := os.ReadFile(counter)
	require.NoError(t, err)
	assert.Equal(t, "run\n", string(data), "eslint should run exactly once across js/ts/tsx files")
}

func TestRunLinters_OnlyInvokesLintersForExtensionsPresent(t *testing.T) {
	stubLinter(t, "ruff", "would run", 0)

	out := runLinters(context.Background(), t.TempDir(), []string{"main.go"})
	assert.Empty(t, out, "ruff lints python, it should not run for a go-only changeset")
}
