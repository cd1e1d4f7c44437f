// Package watch reconverts YAML sources whenever they change on disk.
package watch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yaml2lua/yaml2lua"
)

// ConvertFunc converts a single YAML source and returns the path of the
// generated Lua file.
type ConvertFunc func(ctx context.Context, path string) (string, error)

// Options configures the watch behaviour.
type Options struct {
	// Root is the YAML file or directory of YAML files to watch.
	Root string

	// Debounce is the quiet period before a changed file is reconverted.
	Debounce time.Duration

	// Out is the writer for user-facing status lines.
	Out io.Writer
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		Debounce: 500 * time.Millisecond,
		Out:      os.Stderr,
	}
}

// Run converts everything under opts.Root once, then blocks watching for
// changes until the context is cancelled or a SIGINT/SIGTERM signal is
// received. Each changed YAML source is reconverted after the debounce
// interval.
func Run(ctx context.Context, opts Options, convert ConvertFunc) error {
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return fmt.Errorf("resolving watch root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watching %q: %w", opts.Root, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// For a single file, watch its parent directory instead of the file
	// itself. Editors that save via rename would otherwise detach the watch
	// on the first write.
	var only string

	if info.IsDir() {
		if err := addRecursive(watcher, root); err != nil {
			return fmt.Errorf("watching directory: %w", err)
		}
	} else {
		only = root
		if err := watcher.Add(filepath.Dir(root)); err != nil {
			return fmt.Errorf("watching directory: %w", err)
		}
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(opts.Out, "watching %s (debounce=%s)\n", opts.Root, opts.Debounce)

	// Initial conversion pass.
	if info.IsDir() {
		if err := convertTree(sigCtx, opts, convert, root); err != nil {
			return fmt.Errorf("initial conversion: %w", err)
		}
	} else {
		doConvert(sigCtx, opts, convert, root)
	}

	debouncer := NewDebouncer(opts.Debounce, func(path string) {
		doConvert(sigCtx, opts, convert, path)
	})
	defer debouncer.Stop()

	for {
		select {
		case <-sigCtx.Done():
			fmt.Fprintln(opts.Out, "\nshutting down watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !isRelevant(event) {
				continue
			}

			// Newly created directories get watched too.
			if event.Has(fsnotify.Create) {
				if fi, statErr := os.Stat(event.Name); statErr == nil && fi.IsDir() {
					if only == "" {
						_ = addRecursive(watcher, event.Name)
					}

					continue
				}
			}

			if !yaml2lua.IsYAMLSource(event.Name) {
				continue
			}

			if only != "" && filepath.Clean(event.Name) != only {
				continue
			}

			debouncer.Trigger(event.Name)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.Error("watcher error", "error", watchErr)
		}
	}
}

// convertTree walks root and converts every YAML source under it.
func convertTree(ctx context.Context, opts Options, convert ConvertFunc, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}

			return nil
		}

		if yaml2lua.IsYAMLSource(path) {
			doConvert(ctx, opts, convert, path)
		}

		return nil
	})
}

// doConvert runs a single conversion and prints the status line.
func doConvert(ctx context.Context, opts Options, convert ConvertFunc, path string) {
	now := time.Now().Format("15:04:05")
	start := time.Now()

	outPath, err := convert(ctx, path)
	if err != nil {
		fmt.Fprintf(opts.Out, "[%s] %s → ERROR: %v\n", now, display(path), err)
		return
	}

	fmt.Fprintf(opts.Out, "[%s] %s → %s OK (%s)\n",
		now, display(path), display(outPath), time.Since(start).Round(time.Millisecond))
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

// addRecursive walks root and adds all non-hidden directories to the watcher.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}

			return watcher.Add(path)
		}

		return nil
	})
}

// isRelevant filters out events that should not trigger a conversion.
// Removes and renames are ignored, a vanished source has nothing to convert.
func isRelevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}

	name := filepath.Base(event.Name)

	// Editor temp and hidden files.
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return false
	}

	return true
}
