package transformer

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yaml2lua/yaml2lua"
)

type TransformOptions struct {
	// WriterMode selects bannered or bare output.
	WriterMode yaml2lua.WriteMode
	// NoBackup skips the timestamped copy of an existing output file.
	NoBackup bool
	// StrictKeys fails the conversion on mapping entries whose key has
	// no Lua table key form instead of dropping them.
	StrictKeys bool
	// Verify compile-checks the rendered chunk before writing.
	Verify bool
}

// Pretty summarizes the options for log output.
func (t *TransformOptions) Pretty() string {
	return fmt.Sprintf("mode=%s backup=%s strict_keys=%s verify=%s",
		modeLabel(t.WriterMode), yesNo(!t.NoBackup), yesNo(t.StrictKeys), yesNo(t.Verify))
}

func modeLabel(mode yaml2lua.WriteMode) string {
	switch mode {
	case yaml2lua.ModePretty:
		return "Pretty"
	case yaml2lua.ModeShadow:
		return "Shadow"
	}
	return fmt.Sprintf("Mode(%d)", mode)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Transformer drives one conversion end to end: parse, optional verify,
// output path resolution, optional backup, write.
type Transformer struct {
	parser *yaml2lua.Parser
	writer *yaml2lua.Writer
	backup *yaml2lua.BackupManager

	opts TransformOptions
}

func NewTransformer(opts TransformOptions) *Transformer {
	return &Transformer{
		parser: yaml2lua.NewParser(),
		writer: yaml2lua.NewWriter(opts.WriterMode, yaml2lua.Options{StrictKeys: opts.StrictKeys}),
		backup: yaml2lua.NewBackupManager(),
		opts:   opts,
	}
}

// Source is one YAML document to convert. Metadata.AbsSource anchors
// output path resolution and the provenance banner.
type Source struct {
	Content  io.Reader
	Metadata yaml2lua.MetaData
}

// Transform converts input to its resolved output path, honoring an
// output pragma and defaulting to a sibling .lua file.
func (t *Transformer) Transform(input Source) (string, error) {
	return t.transform(input, "")
}

// TransformToPath converts input to exactly outputPath, ignoring pragma
// and extension based resolution. Used for --out and shadow previews.
func (t *Transformer) TransformToPath(input Source, outputPath string) (string, error) {
	if outputPath == "" {
		return "", fmt.Errorf("output path is required")
	}

	return t.transform(input, outputPath)
}

// TransformToWriter converts input and writes the bare chunk to out,
// skipping path resolution, backups and the pretty banner.
func (t *Transformer) TransformToWriter(input Source, out io.Writer) error {
	doc, err := t.parser.ParseYAMLDoc(input.Content, input.Metadata)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}

	if err := t.verify(doc); err != nil {
		return err
	}

	writer := yaml2lua.NewWriter(yaml2lua.ModeShadow, yaml2lua.Options{StrictKeys: t.opts.StrictKeys})
	if err := writer.WriteContent(doc, out); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return nil
}

func (t *Transformer) transform(input Source, forcedPath string) (string, error) {
	slog.Debug("transforming document", "path", input.Metadata.AbsSource)
	if input.Metadata.AbsSource == "" {
		return "", fmt.Errorf("abs source metadata is required for transformation")
	}

	doc, err := t.parser.ParseYAMLDoc(input.Content, input.Metadata)
	if err != nil {
		return "", fmt.Errorf("parse error: %w", err)
	}

	if err := t.verify(doc); err != nil {
		return "", err
	}

	outPath := forcedPath
	if outPath == "" {
		outPath = yaml2lua.ResolveOutputPath(input.Metadata.AbsSource, doc.Pragmas)
	}

	// Shadow output is disposable, only pretty output earns a backup.
	if !t.opts.NoBackup && t.opts.WriterMode == yaml2lua.ModePretty {
		bkPath, err := t.backup.CreateBackupOf(outPath)
		if err != nil {
			return "", fmt.Errorf("backup error: %w", err)
		}
		if bkPath != "" {
			slog.Info("backed up existing output", "backup", bkPath, "original", input.Metadata.AbsSource)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	if err := t.writer.Write(doc, out, yaml2lua.VERSION, time.Now()); err != nil {
		return "", fmt.Errorf("write error: %w", err)
	}

	return outPath, nil
}

// verify compile-checks the rendered chunk before anything touches disk
func (t *Transformer) verify(doc *yaml2lua.Document) error {
	if !t.opts.Verify {
		return nil
	}

	literal, err := yaml2lua.Render(doc.Root, yaml2lua.Options{StrictKeys: t.opts.StrictKeys})
	if err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	if err := yaml2lua.Verify(literal); err != nil {
		return fmt.Errorf("verify error: %w", err)
	}
	return nil
}
