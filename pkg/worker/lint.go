package worker

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
)

// linter pairs a file extension with the command that lints it. Absence
// from PATH is a silent skip (exec.LookPath failure), not an error — a
// lint_fix job only needs to run whichever linters happen to be baked
// into the worker image for the languages actually present in the diff.
type linter struct {
	ext  string
	name string
	args []string
}

var linters = []linter{
	{ext: ".php", name: "phpstan", args: []string{"analyse", "--no-progress"}},
	{ext: ".php", name: "mago", args: []string{"lint"}},
	{ext: ".rs", name: "cargo", args: []string{"clippy", "--", "-D", "warnings"}},
	{ext: ".js", name: "eslint", args: []string{"."}},
	{ext: ".ts", name: "eslint", args: []string{"."}},
	{ext: ".tsx", name: "eslint", args: []string{"."}},
	{ext: ".jsx", name: "eslint", args: []string{"."}},
	{ext: ".py", name: "ruff", args: []string{"check", "."}},
	{ext: ".go", name: "golangci-lint", args: []string{"run"}},
}

// runLinters runs every linter whose extension matches a changed file,
// concatenating stdout+stderr across all of them. A linter's non-zero
// exit is expected (it found issues), not treated as a failure.
func runLinters(ctx context.Context, workDir string, files []string) string {
	exts := make(map[string]bool)
	for _, f := range files {
		exts[strings.ToLower(filepath.Ext(f))] = true
	}

	seen := make(map[string]bool)
	var combined strings.Builder
	for _, l := range linters {
		if !exts[l.ext] || seen[l.name] {
			continue
		}
		if _, err := exec.LookPath(l.name); err != nil {
			continue
		}
		seen[l.name] = true

		cmd := exec.CommandContext(ctx, l.name, l.args...)
		cmd.Dir = workDir
		out, _ := cmd.CombinedOutput()
		if len(out) == 0 {
			continue
		}
		if combined.Len() > 0 {
			combined.WriteString("\n")
		}
		combined.WriteString(l.name)
		combined.WriteString(":\n")
		combined.Write(out)
	}
	return combined.String()
}
