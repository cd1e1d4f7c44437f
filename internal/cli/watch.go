package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/yaml2lua/yaml2lua"
	"github.com/yaml2lua/yaml2lua/internal/config"
	"github.com/yaml2lua/yaml2lua/internal/transformer"
	"github.com/yaml2lua/yaml2lua/internal/watch"
)

type watchOptions struct {
	debounce time.Duration
}

func newWatchCommand() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Watch YAML sources and reconvert on change",
		Long: `Watch monitors a YAML file or directory tree and reconverts a source
whenever it changes. Everything is converted once at startup. File
changes are debounced to ride out editors that write in bursts.

Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "debounce interval for file changes")
	f.Bool("strict-keys", false, "fail on mapping keys that cannot be table keys")
	f.Bool("verify", false, "compile-check generated chunks before writing")
	f.Bool("no-backup", false, "do not back up existing output files")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, path string, opts *watchOptions) error {
	cfg := config.FromContext(ctx)

	tr := transformer.NewTransformer(transformer.TransformOptions{
		WriterMode: yaml2lua.ModePretty,
		NoBackup:   cfg.NoBackup,
		StrictKeys: cfg.StrictKeys,
		Verify:     cfg.Verify,
	})

	convert := func(_ context.Context, srcPath string) (string, error) {
		src, err := readSource(srcPath)
		if err != nil {
			return "", err
		}

		return tr.Transform(src)
	}

	watchOpts := watch.Options{
		Root:     path,
		Debounce: opts.debounce,
		Out:      cmd.ErrOrStderr(),
	}

	if err := watch.Run(ctx, watchOpts, convert); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	return nil
}
