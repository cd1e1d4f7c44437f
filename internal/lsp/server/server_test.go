package server

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaml2lua/yaml2lua"
	ilsp "github.com/yaml2lua/yaml2lua/internal/lsp"
)

func TestOptionsValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	for _, tt := range []struct {
		name    string
		root    string
		wantErr string
	}{
		{"empty root defers to defaults", "", ""},
		{"existing directory", dir, ""},
		{"missing path", "/nonexistent/shadow", "invalid shadow root"},
		{"regular file", file, "is not a directory"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := Options{ShadowRoot: tt.root}.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewServerShadowRoot(t *testing.T) {
	root := t.TempDir()

	server, err := NewServer(Options{ShadowRoot: root})
	require.NoError(t, err)
	assert.Equal(t, root, server.docService.ShadowRoot())

	server, err = NewServer(Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, server.docService.ShadowRoot())
}

func TestOverrideDocOpts(t *testing.T) {
	docOpts := ilsp.DefaultDocumentServiceOptions
	Options{ShadowRoot: "/tmp/elsewhere"}.OverrideDocOpts(&docOpts)

	assert.Equal(t, "/tmp/elsewhere", docOpts.ShadowRoot)
	assert.Equal(t, ilsp.DefaultDocumentServiceOptions.ShadowTransformerOpts, docOpts.ShadowTransformerOpts)
	assert.Equal(t, ilsp.DefaultDocumentServiceOptions.FinalTransformerOpts, docOpts.FinalTransformerOpts)

	docOpts = ilsp.DefaultDocumentServiceOptions
	Options{}.OverrideDocOpts(&docOpts)
	assert.Equal(t, ilsp.DefaultDocumentServiceOptions.ShadowRoot, docOpts.ShadowRoot)
}

// startTestServer wires s and a client together over in memory pipes using
// the same codec as the stdio transport, and returns the client side plus
// a channel of published diagnostics.
func startTestServer(t *testing.T, s *Server) (*jsonrpc2.Conn, chan lsp.PublishDiagnosticsParams) {
	t.Helper()

	serverIn, clientOut := io.Pipe()
	clientIn, serverOut := io.Pipe()

	ctx := context.Background()

	serverConn := jsonrpc2.NewConn(
		ctx,
		jsonrpc2.NewBufferedStream(NewRWC(serverIn, serverOut), jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(s.Handle),
	)

	diagnostics := make(chan lsp.PublishDiagnosticsParams, 16)
	clientHandler := jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
		if req.Method == "textDocument/publishDiagnostics" {
			var params lsp.PublishDiagnosticsParams
			if err := json.Unmarshal(*req.Params, &params); err != nil {
				return nil, err
			}
			diagnostics <- params
		}
		return nil, nil
	})

	clientConn := jsonrpc2.NewConn(
		ctx,
		jsonrpc2.NewBufferedStream(NewRWC(clientIn, clientOut), jsonrpc2.VSCodeObjectCodec{}),
		clientHandler,
	)

	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})

	return clientConn, diagnostics
}

func waitForDiagnostics(t *testing.T, diagnostics chan lsp.PublishDiagnosticsParams) lsp.PublishDiagnosticsParams {
	t.Helper()

	select {
	case params := <-diagnostics:
		return params
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for diagnostics")
		return lsp.PublishDiagnosticsParams{}
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	s, err := NewServer(Options{ShadowRoot: t.TempDir()})
	require.NoError(t, err)
	return s
}

func initialize(t *testing.T, client *jsonrpc2.Conn) lsp.InitializeResult {
	t.Helper()

	var result lsp.InitializeResult
	err := client.Call(context.Background(), "initialize", lsp.InitializeParams{}, &result)
	require.NoError(t, err)
	return result
}

func TestInitializeAdvertisesFullSync(t *testing.T) {
	s := newTestServer(t)
	client, _ := startTestServer(t, s)

	result := initialize(t, client)

	require.NotNil(t, result.Capabilities.TextDocumentSync)
	require.NotNil(t, result.Capabilities.TextDocumentSync.Options)
	assert.Equal(t, lsp.TDSKFull, result.Capabilities.TextDocumentSync.Options.Change)
	assert.True(t, result.Capabilities.TextDocumentSync.Options.OpenClose)
}

func TestDidOpenPublishesParseDiagnostics(t *testing.T) {
	s := newTestServer(t)
	client, diagnostics := startTestServer(t, s)
	initialize(t, client)

	srcPath := filepath.Join(t.TempDir(), "broken.yaml")
	uri := lsp.DocumentURI("file://" + srcPath)

	err := client.Notify(context.Background(), "textDocument/didOpen", lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{
			URI:        uri,
			LanguageID: "yaml",
			Version:    1,
			Text:       "key: value\nbad: [unclosed\n",
		},
	})
	require.NoError(t, err)

	params := waitForDiagnostics(t, diagnostics)
	assert.Equal(t, uri, params.URI)
	require.Len(t, params.Diagnostics, 1)

	diag := params.Diagnostics[0]
	assert.Equal(t, lsp.Error, diag.Severity)
	assert.Equal(t, "yaml2lua", diag.Source)
	assert.NotEmpty(t, diag.Message)
}

func TestDidOpenRefreshesShadowFile(t *testing.T) {
	shadowRoot := t.TempDir()
	s, err := NewServer(Options{ShadowRoot: shadowRoot})
	require.NoError(t, err)

	client, diagnostics := startTestServer(t, s)
	initialize(t, client)

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "plugins.yaml")
	uri := lsp.DocumentURI("file://" + srcPath)

	err = client.Notify(context.Background(), "textDocument/didOpen", lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{
			URI:        uri,
			LanguageID: "yaml",
			Version:    1,
			Text:       "a: 1\n",
		},
	})
	require.NoError(t, err)

	// a clean conversion publishes an empty diagnostic set
	params := waitForDiagnostics(t, diagnostics)
	assert.Equal(t, uri, params.URI)
	assert.Empty(t, params.Diagnostics)

	shadowPath := filepath.Join(shadowRoot, srcDir, "plugins.lua")
	content, err := os.ReadFile(shadowPath)
	require.NoError(t, err)
	assert.Equal(t, "return {\n\t[\"a\"] = 1,\n}\n", string(content))
}

func TestDidChangeClearsDiagnosticsOnceFixed(t *testing.T) {
	s := newTestServer(t)
	client, diagnostics := startTestServer(t, s)
	initialize(t, client)

	uri := lsp.DocumentURI("file://" + filepath.Join(t.TempDir(), "conf.yaml"))

	err := client.Notify(context.Background(), "textDocument/didOpen", lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{URI: uri, LanguageID: "yaml", Version: 1, Text: "a: [1\n"},
	})
	require.NoError(t, err)

	params := waitForDiagnostics(t, diagnostics)
	require.Len(t, params.Diagnostics, 1)

	err = client.Notify(context.Background(), "textDocument/didChange", lsp.DidChangeTextDocumentParams{
		TextDocument: lsp.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: lsp.TextDocumentIdentifier{URI: uri},
			Version:                2,
		},
		ContentChanges: []lsp.TextDocumentContentChangeEvent{
			{Text: "a: [1]\n"},
		},
	})
	require.NoError(t, err)

	params = waitForDiagnostics(t, diagnostics)
	assert.Equal(t, uri, params.URI)
	assert.Empty(t, params.Diagnostics)
}

func TestDidSaveWritesOutputBesideSource(t *testing.T) {
	s := newTestServer(t)
	client, diagnostics := startTestServer(t, s)
	initialize(t, client)

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "config.yaml")
	uri := lsp.DocumentURI("file://" + srcPath)

	err := client.Notify(context.Background(), "textDocument/didOpen", lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{URI: uri, LanguageID: "yaml", Version: 1, Text: "a: 1\n"},
	})
	require.NoError(t, err)
	waitForDiagnostics(t, diagnostics)

	err = client.Notify(context.Background(), "textDocument/didSave", lsp.DidSaveTextDocumentParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: uri},
	})
	require.NoError(t, err)

	outPath := filepath.Join(srcDir, "config.lua")
	require.Eventually(t, func() bool {
		_, err := os.Stat(outPath)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	content, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "-- Generated by yaml2lua")
	assert.Contains(t, string(content), "[\"a\"] = 1,")
}

func TestDidCloseClearsDiagnostics(t *testing.T) {
	s := newTestServer(t)
	client, diagnostics := startTestServer(t, s)
	initialize(t, client)

	uri := lsp.DocumentURI("file://" + filepath.Join(t.TempDir(), "conf.yaml"))

	err := client.Notify(context.Background(), "textDocument/didOpen", lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{URI: uri, LanguageID: "yaml", Version: 1, Text: "a: [1\n"},
	})
	require.NoError(t, err)
	params := waitForDiagnostics(t, diagnostics)
	require.Len(t, params.Diagnostics, 1)

	err = client.Notify(context.Background(), "textDocument/didClose", lsp.DidCloseTextDocumentParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: uri},
	})
	require.NoError(t, err)

	params = waitForDiagnostics(t, diagnostics)
	assert.Equal(t, uri, params.URI)
	assert.Empty(t, params.Diagnostics)
}

func TestUnknownRequestReturnsMethodNotFound(t *testing.T) {
	s := newTestServer(t)
	client, _ := startTestServer(t, s)
	initialize(t, client)

	var result interface{}
	err := client.Call(context.Background(), "textDocument/hover", lsp.TextDocumentPositionParams{}, &result)
	require.Error(t, err)

	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), rpcErr.Code)
}

func TestDiagnosticForParseError(t *testing.T) {
	// positions are converted from 1-based to 0-based
	diag := diagnosticForParseError(&yaml2lua.ParseError{
		Msg:    "mapping values are not allowed in this context",
		Line:   3,
		Column: 5,
	})

	assert.Equal(t, 2, diag.Range.Start.Line)
	assert.Equal(t, 4, diag.Range.Start.Character)
	assert.Equal(t, diag.Range.Start, diag.Range.End)
	assert.Contains(t, diag.Message, "mapping values are not allowed")

	// unknown positions clamp to the start of the document
	diag = diagnosticForParseError(&yaml2lua.ParseError{Msg: "unexpected end of stream"})
	assert.Equal(t, 0, diag.Range.Start.Line)
	assert.Equal(t, 0, diag.Range.Start.Character)
}
