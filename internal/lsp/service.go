package lsp

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sourcegraph/go-lsp"

	"github.com/yaml2lua/yaml2lua"
	"github.com/yaml2lua/yaml2lua/internal/transformer"
)

type DocumentServiceOptions struct {
	// ShadowRoot is the directory the shadow previews are written under.
	ShadowRoot string

	ShadowTransformerOpts transformer.TransformOptions
	FinalTransformerOpts  transformer.TransformOptions
}

// DefaultDocumentServiceOptions places shadows in a temp workspace and
// writes bare chunks there, while saves produce bannered output.
var DefaultDocumentServiceOptions = DocumentServiceOptions{
	ShadowRoot: filepath.Join(os.TempDir(), "yaml2lua-workspace"),
	ShadowTransformerOpts: transformer.TransformOptions{
		WriterMode: yaml2lua.ModeShadow,
		NoBackup:   true,
	},
	FinalTransformerOpts: transformer.TransformOptions{
		WriterMode: yaml2lua.ModePretty,
	},
}

func (o DocumentServiceOptions) Validate() error {
	if o.ShadowRoot == "" {
		return errors.New("shadow root directory is required")
	}
	return nil
}

// DocumentService converts open YAML buffers into Lua previews and, on
// save, into final output beside the source.
//
// A shadow preview mirrors its source path under the shadow root with a
// .lua extension:
//
//	source  /home/x/dotfiles/plugins.yaml
//	shadow  /tmp/yaml2lua-workspace/home/x/dotfiles/plugins.lua
type DocumentService struct {
	shadowRoot string

	// shadow URI -> original document URI
	shadowMap map[string]string

	shadowTransformer *transformer.Transformer
	finalTransformer  *transformer.Transformer
}

func NewDocumentService(opts DocumentServiceOptions) (*DocumentService, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document service options: %w", err)
	}

	svc := &DocumentService{
		shadowRoot:        opts.ShadowRoot,
		shadowMap:         make(map[string]string),
		shadowTransformer: transformer.NewTransformer(opts.ShadowTransformerOpts),
		finalTransformer:  transformer.NewTransformer(opts.FinalTransformerOpts),
	}
	runtime.SetFinalizer(svc, finalizeService)

	return svc, nil
}

func finalizeService(svc *DocumentService) {
	if err := svc.CleanupShadowFiles(); err != nil {
		slog.Error("failed to cleanup shadow files", "error", err)
	}
}

// TransformShadowDoc renders text into the document's shadow preview and
// returns the shadow URI.
func (s *DocumentService) TransformShadowDoc(text string, documentURI lsp.DocumentURI) (string, error) {
	fsPath, err := s.URIToPath(documentURI)
	if err != nil {
		return "", fmt.Errorf("invalid document URI: %w", err)
	}

	shadowPath := s.shadowPathFor(fsPath)
	if err := os.MkdirAll(filepath.Dir(shadowPath), 0755); err != nil {
		return "", err
	}

	written, err := s.shadowTransformer.TransformToPath(transformer.Source{
		Content:  strings.NewReader(text),
		Metadata: yaml2lua.MetaData{AbsSource: fsPath},
	}, shadowPath)
	if err != nil {
		return "", fmt.Errorf("transform error: %w", err)
	}

	shadowURI := s.PathToURI(written)
	s.shadowMap[shadowURI] = string(documentURI)
	slog.Debug("converted document", "original", documentURI, "shadow", shadowURI)

	return shadowURI, nil
}

// TransformFinalDoc converts text for output next to the source file and
// returns the absolute path written.
func (s *DocumentService) TransformFinalDoc(text string, sourcePath string) (string, error) {
	written, err := s.finalTransformer.Transform(transformer.Source{
		Content:  strings.NewReader(text),
		Metadata: yaml2lua.MetaData{AbsSource: sourcePath},
	})
	if err != nil {
		return "", fmt.Errorf("transform error: %w", err)
	}

	return written, nil
}

// shadowPathFor mirrors an absolute source path under the shadow root.
// Join flattens the leading separator of fsPath, so the full source
// directory structure is reproduced inside the root.
func (s *DocumentService) shadowPathFor(fsPath string) string {
	return filepath.Join(s.shadowRoot, filepath.Dir(fsPath), shadowName(filepath.Base(fsPath)))
}

// shadowName swaps the source extension for .lua, config.yaml -> config.lua
func shadowName(base string) string {
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".lua"
}

func (s *DocumentService) ShadowRoot() string {
	return s.shadowRoot
}

// OriginalURI maps a shadow URI back to the document it previews.
func (s *DocumentService) OriginalURI(shadowURI string) (string, bool) {
	uri, ok := s.shadowMap[shadowURI]
	return uri, ok
}

// ShadowURI finds the preview for an original document URI, if one has
// been rendered.
func (s *DocumentService) ShadowURI(originalURI string) (string, bool) {
	for shadow, original := range s.shadowMap {
		if original == originalURI {
			return shadow, true
		}
	}
	return "", false
}

// URIToPath converts an LSP URI to a filesystem path.
func (s *DocumentService) URIToPath(uri lsp.DocumentURI) (string, error) {
	u, err := url.Parse(string(uri))
	if err != nil {
		return "", err
	}
	return u.Path, nil
}

// PathToURI converts a filesystem path to an LSP URI.
func (s *DocumentService) PathToURI(path string) string {
	return "file://" + path
}

// CleanupShadowFiles deletes the previews under the default shadow root.
// A user supplied root is never touched.
func (s *DocumentService) CleanupShadowFiles() error {
	if s.shadowRoot != DefaultDocumentServiceOptions.ShadowRoot {
		slog.Info("skipping shadow file cleanup due to user specified root", "path", s.shadowRoot)
		return nil
	}
	if _, err := os.Stat(s.shadowRoot); os.IsNotExist(err) {
		return nil
	}

	return filepath.WalkDir(s.shadowRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("error accessing path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".lua") {
			return nil
		}

		if err := os.Remove(path); err != nil {
			slog.Warn("failed to remove shadow file", "path", path, "error", err)
			return nil
		}
		slog.Debug("removed shadow file", "path", path)
		return nil
	})
}
