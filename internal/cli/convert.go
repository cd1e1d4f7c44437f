package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yaml2lua/yaml2lua"
	"github.com/yaml2lua/yaml2lua/internal/config"
	"github.com/yaml2lua/yaml2lua/internal/transformer"
)

type convertOptions struct {
	out      string
	toStdout bool
	shadow   bool
}

func newConvertCommand() *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <path>",
		Short: "Convert a YAML file or directory tree to Lua",
		Long: `Convert a YAML file into a Lua file that returns the equivalent
table constructor.

When <path> is a directory, every .yaml and .yml file under it is
converted. A .gitignore in the directory root is honored when a .git
directory exists. Each output lands next to its source, or at the path
named by a "# @pragma output: <path>" comment in the document head.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.out, "out", "o", "", "output file path (single file only, overrides the output pragma)")
	f.BoolVar(&opts.toStdout, "stdout", false, "write the Lua chunk to stdout instead of a file")
	f.BoolVar(&opts.shadow, "shadow", false, "omit the generated-file banner")
	f.Bool("strict-keys", false, "fail on mapping keys that cannot be table keys")
	f.Bool("verify", false, "compile-check generated chunks before writing")
	f.Bool("no-backup", false, "do not back up existing output files")

	return cmd
}

func runConvert(ctx context.Context, cmd *cobra.Command, path string, opts *convertOptions) error {
	cfg := config.FromContext(ctx)

	topts := transformer.TransformOptions{
		WriterMode: yaml2lua.ModePretty,
		NoBackup:   cfg.NoBackup,
		StrictKeys: cfg.StrictKeys,
		Verify:     cfg.Verify,
	}
	if opts.shadow {
		topts.WriterMode = yaml2lua.ModeShadow
	}

	if opts.out != "" && opts.toStdout {
		return &ExitError{Code: 2, Err: fmt.Errorf("--out and --stdout are mutually exclusive")}
	}

	info, err := os.Stat(path)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("accessing %q: %w", path, err)}
	}

	if info.IsDir() && (opts.out != "" || opts.toStdout) {
		return &ExitError{Code: 2, Err: fmt.Errorf("--out and --stdout require a single file, %q is a directory", path)}
	}

	slog.Debug("starting conversion", "path", path, "options", topts.Pretty())

	if opts.toStdout {
		src, err := readSource(path)
		if err != nil {
			return &ExitError{Code: 1, Err: err}
		}

		if err := transformer.NewTransformer(topts).TransformToWriter(src, cmd.OutOrStdout()); err != nil {
			return &ExitError{Code: 1, Err: err}
		}

		return nil
	}

	if opts.out != "" {
		src, err := readSource(path)
		if err != nil {
			return &ExitError{Code: 1, Err: err}
		}

		absOut, err := filepath.Abs(opts.out)
		if err != nil {
			return &ExitError{Code: 1, Err: fmt.Errorf("resolving output path: %w", err)}
		}

		outPath, err := transformer.NewTransformer(topts).TransformToPath(src, absOut)
		if err != nil {
			return &ExitError{Code: 1, Err: err}
		}

		printResult(cmd, cfg, ConvertResult{Path: path, OutPath: outPath})

		return nil
	}

	results, err := NewProcessor(topts).ProcessPath(path)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	for _, res := range results {
		printResult(cmd, cfg, res)
	}

	return nil
}

// readSource loads a YAML file into a transformer Source with its absolute
// path as metadata.
func readSource(path string) (transformer.Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return transformer.Source{}, fmt.Errorf("resolving path: %w", err)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return transformer.Source{}, fmt.Errorf("reading file: %w", err)
	}

	return transformer.Source{
		Content:  bytes.NewReader(content),
		Metadata: yaml2lua.MetaData{AbsSource: abs},
	}, nil
}

func printResult(cmd *cobra.Command, cfg *config.Config, res ConvertResult) {
	if cfg.Quiet {
		return
	}

	if res.Duration > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "converted %s → %s (%s)\n", res.Path, res.OutPath, res.Duration)
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "converted %s → %s\n", res.Path, res.OutPath)
}
