package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/yaml2lua/yaml2lua"
	ilsp "github.com/yaml2lua/yaml2lua/internal/lsp"
)

// Server is a standalone language server for YAML sources that are
// converted to Lua. It publishes parse errors as diagnostics and keeps a
// shadow Lua preview of every open document under the shadow root.
type Server struct {
	conn *jsonrpc2.Conn

	// request IDs the client has asked to cancel
	canceled sync.Map

	// per-method request tallies, reported at shutdown
	requestTally sync.Map

	// last known content of open documents, by original URI
	docs map[lsp.DocumentURI]string

	// abstraction for conversion operations
	docService *ilsp.DocumentService
}

type Options struct {
	// ShadowRoot overrides the default shadow workspace directory
	ShadowRoot string
}

func (o Options) Validate() error {
	if o.ShadowRoot == "" {
		return nil
	}

	info, err := os.Stat(o.ShadowRoot)
	if err != nil {
		return fmt.Errorf("invalid shadow root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("shadow root %s is not a directory", o.ShadowRoot)
	}
	return nil
}

// OverrideDocOpts applies the server options on top of the document
// service defaults
func (o Options) OverrideDocOpts(docOpts *ilsp.DocumentServiceOptions) {
	if o.ShadowRoot != "" {
		docOpts.ShadowRoot = o.ShadowRoot
	}
}

func NewServer(options Options) (*Server, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}

	docOpts := ilsp.DefaultDocumentServiceOptions
	options.OverrideDocOpts(&docOpts)

	dService, err := ilsp.NewDocumentService(docOpts)
	if err != nil {
		return nil, err
	}

	return &Server{
		docService: dService,
		docs:       make(map[lsp.DocumentURI]string),
	}, nil
}

func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (result interface{}, err error) {
	if s.conn == nil {
		s.conn = conn
	}
	slog.Info("handling request", "method", req.Method, "id", req.ID)
	tally, _ := s.requestTally.LoadOrStore(req.Method, 0)
	s.requestTally.Store(req.Method, tally.(int)+1)

	if _, ok := s.canceled.Load(req.ID.String()); ok {
		slog.Debug("dropping canceled request", "id", req.ID)
		s.canceled.Delete(req.ID.String())
		return nil, nil
	}

	switch req.Method {
	case "initialize":
		var initParams lsp.InitializeParams
		if err := json.Unmarshal(*req.Params, &initParams); err != nil {
			return nil, err
		}
		slog.Info("initializing", "root", initParams.RootURI)

		return lsp.InitializeResult{
			Capabilities: lsp.ServerCapabilities{
				TextDocumentSync: &lsp.TextDocumentSyncOptionsOrKind{
					Options: &lsp.TextDocumentSyncOptions{
						OpenClose: true,
						Change:    lsp.TDSKFull,
						Save:      &lsp.SaveOptions{IncludeText: false},
					},
				},
			},
		}, nil

	case "initialized":
		slog.Info("client initialized")
		return nil, nil

	case "shutdown":
		slog.Info("shutdown requested")

		if err := s.docService.CleanupShadowFiles(); err != nil {
			slog.Error("shadow cleanup failed", "error", err)
		}

		s.logRequestTallies()

		return nil, nil

	case "exit":
		slog.Info("exit received")

		os.Exit(0)
		return nil, nil

	case "textDocument/didOpen":
		// The file is converted on open, so diagnostics are shown initially
		var params lsp.DidOpenTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}

		s.docs[params.TextDocument.URI] = params.TextDocument.Text

		return nil, s.convertAndPublish(ctx, params.TextDocument.URI, params.TextDocument.Text)

	case "textDocument/didChange":
		var params lsp.DidChangeTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}

		if len(params.ContentChanges) == 0 {
			return nil, nil
		}

		// Full sync, the last change event carries the whole document
		text := params.ContentChanges[len(params.ContentChanges)-1].Text
		s.docs[params.TextDocument.URI] = text

		return nil, s.convertAndPublish(ctx, params.TextDocument.URI, text)

	case "textDocument/didSave":
		var params lsp.DidSaveTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}

		fsPath, err := s.docService.URIToPath(params.TextDocument.URI)
		if err != nil {
			return nil, err
		}

		text, ok := s.docs[params.TextDocument.URI]
		if !ok {
			content, err := os.ReadFile(fsPath)
			if err != nil {
				return nil, err
			}
			text = string(content)
		}

		outPath, err := s.docService.TransformFinalDoc(text, fsPath)
		if err != nil {
			slog.Warn("conversion on save failed", "path", fsPath, "error", err)
			return nil, nil
		}

		slog.Info("converted document on save", "source", fsPath, "output", outPath)
		return nil, nil

	case "textDocument/didClose":
		var params lsp.DidCloseTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}

		delete(s.docs, params.TextDocument.URI)

		// Clear any remaining diagnostics for the closed document
		return nil, s.SendDiagnostics(ctx, lsp.PublishDiagnosticsParams{
			URI:         params.TextDocument.URI,
			Diagnostics: []lsp.Diagnostic{},
		})

	case "$/cancelRequest":
		var params lsp.CancelParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		slog.Debug("marking request canceled", "id", params.ID)
		s.canceled.Store(params.ID.String(), struct{}{})
		return nil, nil

	default:
		if req.Notif {
			slog.Debug("ignoring notification", "method", req.Method)
			return nil, nil
		}
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method not supported: %s", req.Method),
		}
	}
}

// convertAndPublish refreshes the shadow file for uri and publishes the
// resulting diagnostics. A parse error becomes a single diagnostic at the
// error position, a clean conversion publishes an empty set to clear any
// previous ones.
func (s *Server) convertAndPublish(ctx context.Context, uri lsp.DocumentURI, text string) error {
	shadowURI, err := s.docService.TransformShadowDoc(text, uri)
	if err != nil {
		var parseErr *yaml2lua.ParseError
		if errors.As(err, &parseErr) {
			return s.SendDiagnostics(ctx, lsp.PublishDiagnosticsParams{
				URI:         uri,
				Diagnostics: []lsp.Diagnostic{diagnosticForParseError(parseErr)},
			})
		}
		return err
	}

	slog.Debug("refreshed shadow file", "uri", uri, "shadow", shadowURI)

	return s.SendDiagnostics(ctx, lsp.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []lsp.Diagnostic{},
	})
}

// diagnosticForParseError maps a 1-based parse position to a 0-based LSP
// range. Unknown positions land on the first character of the document.
func diagnosticForParseError(parseErr *yaml2lua.ParseError) lsp.Diagnostic {
	line := parseErr.Line - 1
	if line < 0 {
		line = 0
	}
	character := parseErr.Column - 1
	if character < 0 {
		character = 0
	}

	pos := lsp.Position{Line: line, Character: character}
	return lsp.Diagnostic{
		Range:    lsp.Range{Start: pos, End: pos},
		Severity: lsp.Error,
		Source:   "yaml2lua",
		Message:  parseErr.Error(),
	}
}

func (s *Server) SendDiagnostics(ctx context.Context, params lsp.PublishDiagnosticsParams) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Notify(ctx, "textDocument/publishDiagnostics", params)
}

func (s *Server) logRequestTallies() {
	s.requestTally.Range(func(method, count any) bool {
		slog.Debug("request tally", "method", method, "count", count)
		return true
	})
}
