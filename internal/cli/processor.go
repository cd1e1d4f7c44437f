package cli

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/yaml2lua/yaml2lua"
	"github.com/yaml2lua/yaml2lua/internal/transformer"
)

const (
	maxFiles   = 100
	maxDepth   = 5
	maxWorkers = 4
)

type ConvertResult struct {
	Path     string
	OutPath  string
	Duration time.Duration
}

type ProcessResult struct {
	Path     string
	OutPath  string
	Duration time.Duration
	Error    error
}

type Processor struct {
	transformer *transformer.Transformer
	opts        transformer.TransformOptions
}

func NewProcessor(opts transformer.TransformOptions) *Processor {
	return &Processor{
		transformer: transformer.NewTransformer(opts),
		opts:        opts,
	}
}

func (p *Processor) ProcessPath(path string) ([]ConvertResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing path: %w", err)
	}

	if info.IsDir() {
		return p.processDirectory(path)
	}

	single := p.processFile(path)
	if single.Error != nil {
		return nil, single.Error
	}

	return []ConvertResult{{
		Path:     single.Path,
		OutPath:  single.OutPath,
		Duration: single.Duration,
	}}, nil
}

// loadIgnorePatterns returns the gitignore patterns for root, or nil when
// root is not a git checkout. The .git directory itself is always ignored.
func loadIgnorePatterns(root string) []gitignore.Pattern {
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return nil
	}

	patterns := []gitignore.Pattern{gitignore.ParsePattern(".git/", nil)}

	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return patterns
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	return patterns
}

// findYAMLFiles walks the tree under root collecting the YAML sources to
// convert. Gitignore patterns apply when root is a git checkout, and
// directories nested deeper than maxDepth below root are not entered.
func findYAMLFiles(root string) ([]string, error) {
	patterns := loadIgnorePatterns(root)
	matcher := gitignore.NewMatcher(patterns)

	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		components := strings.Split(rel, string(os.PathSeparator))

		if d.IsDir() {
			if rel != "." && len(components) > maxDepth {
				return filepath.SkipDir
			}
			if len(patterns) > 0 && matcher.Match(components, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if len(patterns) > 0 && matcher.Match(components, false) {
			return nil
		}
		if !yaml2lua.IsYAMLSource(path) {
			return nil
		}
		if len(files) >= maxFiles {
			return fmt.Errorf("max files limit reached (%d)", maxFiles)
		}
		files = append(files, path)
		return nil
	})

	if walkErr != nil {
		return nil, walkErr
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .yaml or .yml files found")
	}

	return files, nil
}

func (p *Processor) processDirectory(root string) ([]ConvertResult, error) {
	started := time.Now()
	slog.Debug("starting directory processing", "path", root)

	files, err := findYAMLFiles(root)
	if err != nil {
		return nil, err
	}
	slog.Debug("found files to process", "count", len(files), "duration", time.Since(started))

	jobs := make(chan string, len(files))
	results := make(chan ProcessResult, len(files))

	var wg sync.WaitGroup
	wg.Add(maxWorkers)
	for i := 0; i < maxWorkers; i++ {
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- p.processFile(path)
			}
		}()
	}

	for _, f := range files {
		jobs <- f
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	absRoot, _ := filepath.Abs(root)

	var converted []ConvertResult
	var failed int
	for res := range results {
		if res.Error != nil {
			failed++
			slog.Debug("failed to process file", "path", res.Path, "error", res.Error)
			continue
		}

		// Report paths relative to the converted root.
		relSource, _ := filepath.Rel(absRoot, res.Path)
		relOut, _ := filepath.Rel(absRoot, res.OutPath)
		converted = append(converted, ConvertResult{
			Path:     relSource,
			OutPath:  relOut,
			Duration: res.Duration,
		})
		slog.Debug("file converted", "source", relSource, "output", relOut)
	}

	if failed > 0 {
		return nil, fmt.Errorf("encountered %d errors during conversion. Rerun with --log-level debug to see the trace", failed)
	}

	slog.Debug("conversion completed", "duration", time.Since(started), "processed", len(converted))
	return converted, nil
}

func (p *Processor) processFile(path string) ProcessResult {
	started := time.Now()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return ProcessResult{Error: fmt.Errorf("failed to resolve absolute path: %w", err)}
	}

	result := ProcessResult{Path: absPath}
	slog.Debug("processing file", "path", absPath)

	if !yaml2lua.IsYAMLSource(absPath) {
		result.Error = fmt.Errorf("invalid file extension, expected .yaml or .yml")
		return result
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		result.Error = fmt.Errorf("error reading file: %w", err)
		return result
	}

	outPath, err := p.transformer.Transform(transformer.Source{
		Content:  bytes.NewReader(content),
		Metadata: yaml2lua.MetaData{AbsSource: absPath},
	})
	if err != nil {
		result.Error = err
		return result
	}

	result.OutPath = outPath
	result.Duration = time.Since(started)
	slog.Debug("file processed", "path", absPath, "duration", result.Duration)

	return result
}
