package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/yaml2lua/yaml2lua/internal/lsp/server"
)

// getLogFile returns a log file for the lsp server to write to.
//
// During development (-debug flag) uses a persistent log for easy access.
func getLogFile(debug bool) (*os.File, error) {
	if debug {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		logDir := filepath.Join(homeDir, ".yaml2lua")
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, err
		}
		return os.OpenFile(filepath.Join(logDir, "yaml2lua-ls.log"),
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	}

	return os.CreateTemp("", "yaml2lua-ls-*.log")
}

func main() {
	var debug bool
	var shadowRoot string
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&shadowRoot, "shadow-root", "", "Directory for shadow Lua files (default: a temp workspace)")
	flag.Parse()

	logFile, err := getLogFile(debug)
	if err != nil {
		slog.Error("failed to setup logging", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	var handler slog.Handler
	if debug {
		handler = slog.NewTextHandler(io.MultiWriter(os.Stderr, logFile), &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: true,
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("starting yaml2lua-ls", "logfile", logFile.Name())

	ctx := context.Background()

	s, err := server.NewServer(server.Options{ShadowRoot: shadowRoot})
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	<-jsonrpc2.NewConn(
		ctx,
		jsonrpc2.NewBufferedStream(server.NewStdRWC(), jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(s.Handle),
	).DisconnectNotify()
}
