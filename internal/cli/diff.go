package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/yaml2lua/yaml2lua"
	"github.com/yaml2lua/yaml2lua/internal/config"
)

var (
	diffFileColor = color.New(color.Bold)
	diffHunkColor = color.New(color.FgCyan)
	diffDelColor  = color.New(color.FgRed)
	diffAddColor  = color.New(color.FgGreen)
)

func newDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <path>",
		Short: "Show what convert would change",
		Long: `Diff converts a YAML file (or every YAML file under a directory) in
memory and compares the result against the Lua file currently on disk.
The generated-file banner is ignored, only the table content counts.

Exit codes:
  0  No differences
  1  Error
  2  Invalid arguments
  3  Differences found`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.Context(), cmd, args[0])
		},
	}

	return cmd
}

func runDiff(ctx context.Context, cmd *cobra.Command, path string) error {
	cfg := config.FromContext(ctx)
	opts := yaml2lua.Options{StrictKeys: cfg.StrictKeys}

	info, err := os.Stat(path)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("accessing %q: %w", path, err)}
	}

	var files []string
	if info.IsDir() {
		files, err = findYAMLFiles(path)
		if err != nil {
			return &ExitError{Code: 1, Err: err}
		}
	} else {
		if !yaml2lua.IsYAMLSource(path) {
			return &ExitError{Code: 2, Err: fmt.Errorf("%q is not a .yaml or .yml file", path)}
		}

		files = []string{path}
	}

	w := cmd.OutOrStdout()

	changed := 0
	for _, file := range files {
		unified, diffErr := diffFile(file, opts)
		if diffErr != nil {
			return &ExitError{Code: 1, Err: fmt.Errorf("diffing %s: %w", file, diffErr)}
		}

		if unified == "" {
			continue
		}

		changed++
		writeDiff(w, unified)
	}

	if changed > 0 {
		return &ExitError{Code: 3, Err: fmt.Errorf("differences found in %d file(s)", changed)}
	}

	fmt.Fprintln(w, "No differences found.")

	return nil
}

// diffFile converts one YAML source in memory and returns the unified diff
// against its output file on disk, or "" when they match.
func diffFile(path string, opts yaml2lua.Options) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}

	doc, err := yaml2lua.NewParser().ParseYAMLDoc(bytes.NewReader(content), yaml2lua.MetaData{AbsSource: abs})
	if err != nil {
		return "", err
	}

	literal, err := yaml2lua.Render(doc.Root, opts)
	if err != nil {
		return "", err
	}

	proposed := "return " + literal + "\n"
	outPath := yaml2lua.ResolveOutputPath(abs, doc.Pragmas)

	var existing string

	raw, err := os.ReadFile(outPath)
	switch {
	case err == nil:
		existing = stripBanner(string(raw))
	case os.IsNotExist(err):
		// No output yet, everything shows as added.
	default:
		return "", fmt.Errorf("reading output file: %w", err)
	}

	diff := difflib.UnifiedDiff{
		A:        splitLines(existing),
		B:        splitLines(proposed),
		FromFile: display(outPath),
		ToFile:   display(abs) + " (converted)",
		Context:  3,
	}

	unified, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("computing diff: %w", err)
	}

	return unified, nil
}

// stripBanner removes the leading comment banner and the blank line that
// follows it, leaving only the chunk content.
func stripBanner(content string) string {
	lines := strings.SplitAfter(content, "\n")

	i := 0
	for i < len(lines) && strings.HasPrefix(lines[i], "--") {
		i++
	}
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}

	return strings.Join(lines[i:], "")
}

// writeDiff writes a unified diff with per-line coloring. fatih/color
// suppresses the escape codes itself when color is disabled.
func writeDiff(w io.Writer, unified string) {
	for _, line := range strings.Split(strings.TrimSuffix(unified, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			diffFileColor.Fprintln(w, line)
		case strings.HasPrefix(line, "@@"):
			diffHunkColor.Fprintln(w, line)
		case strings.HasPrefix(line, "-"):
			diffDelColor.Fprintln(w, line)
		case strings.HasPrefix(line, "+"):
			diffAddColor.Fprintln(w, line)
		default:
			fmt.Fprintln(w, line)
		}
	}
}

// splitLines splits for diff processing, each element keeping its trailing
// newline. A trailing newline does not produce a phantom empty element.
func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}

	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}

// display shortens a path to be relative to the working directory when that
// produces something inside it.
func display(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}

	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}

	return rel
}
