package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/corymhall/editorbridge/bridge"
	"github.com/corymhall/editorbridge/extension"
	"github.com/corymhall/editorbridge/lsp"
	"github.com/corymhall/editorbridge/parser"
	"github.com/pulumi/pulumi/sdk/v3/go/common/util/contract"
)

// Options configures the language server.
type Options struct {
	// BridgeAddr is the address the HTTP bridge binds on initialized.
	BridgeAddr string
	// Version is reported to the client in the initialize result.
	Version string
	// Exit is called by the exit notification. Defaults to os.Exit.
	Exit func(code int)
}

// Server is the editor host: it tracks the client's open documents,
// diagnoses them, and provides the capabilities the bridge consumes.
type Server interface {
	lsp.Server
	extension.Host
}

// New creates an LSP server that reports to client.
func New(logger *slog.Logger, client lsp.Client, opts Options) Server {
	checker, err := parser.NewSyntaxChecker()
	contract.AssertNoErrorf(err, "failed to create syntax checker: %v", err)
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}
	if opts.Version == "" {
		opts.Version = "devel"
	}
	s := &server{
		logger:      logger,
		client:      client,
		opts:        opts,
		checker:     checker,
		documents:   make(map[lsp.DocumentURI]*overlay),
		diagnostics: make(map[lsp.DocumentURI][]lsp.Diagnostic),
		commands:    make(map[string]extension.CommandFunc),
		progress:    NewTracker(client, logger),
		ext: extension.New(bridge.Options{
			Addr:   opts.BridgeAddr,
			Logger: logger.With("component", "bridge"),
		}),
	}
	s.watcher = newWatcher(logger, s.didChangeOnDisk)
	return s
}

type serverState int

const (
	serverCreated      = serverState(iota)
	serverInitializing // set once the server has received "initialize" request
	serverInitialized  // set once the server has received "initialized" request
	serverShutDown
)

func (s serverState) String() string {
	switch s {
	case serverCreated:
		return "created"
	case serverInitializing:
		return "initializing"
	case serverInitialized:
		return "initialized"
	case serverShutDown:
		return "shutDown"
	}
	return fmt.Sprintf("(unknown state: %d)", int(s))
}

type server struct {
	logger *slog.Logger
	client lsp.Client
	opts   Options

	stateMu sync.Mutex
	state   serverState
	rootURI lsp.DocumentURI

	// ext owns the HTTP bridge.
	ext *extension.Extension

	// checker parses documents for syntax diagnostics.
	checker *parser.SyntaxChecker

	// progress is the progress tracker used to report progress
	// to the client.
	progress *Tracker

	// watcher reports on-disk changes to open documents.
	watcher *watcher

	documentsMu sync.Mutex // guards map and its values
	documents   map[lsp.DocumentURI]*overlay

	diagnosticsMu sync.Mutex // guards map and its values
	diagnostics   map[lsp.DocumentURI][]lsp.Diagnostic

	commandsMu sync.Mutex
	commands   map[string]extension.CommandFunc

	subscriptionsMu sync.Mutex
	subscriptions   []extension.Disposable
}

func (s *server) Logger() *slog.Logger {
	return s.logger
}

// Shutdown implements the 'shutdown' LSP handler. It disposes the
// extension's subscriptions and closes the bridge.
func (s *server) Shutdown(ctx context.Context) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state == serverShutDown {
		return nil
	}
	s.state = serverShutDown

	s.subscriptionsMu.Lock()
	subs := s.subscriptions
	s.subscriptions = nil
	s.subscriptionsMu.Unlock()

	var firstErr error
	for i := len(subs) - 1; i >= 0; i-- {
		if err := subs[i].Dispose(); err != nil {
			s.logger.Error("error disposing subscription", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := s.ext.Deactivate(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.watcher.Close(); err != nil {
		s.logger.Warn("error closing watcher", "error", err)
	}
	s.checker.Close()
	return firstErr
}

func (s *server) Exit(ctx context.Context) error {
	s.stateMu.Lock()
	state := s.state
	s.stateMu.Unlock()
	if state != serverShutDown {
		// the client went away without a shutdown; still release the port
		_ = s.ext.Deactivate()
		s.opts.Exit(1)
		return nil
	}
	s.opts.Exit(0)
	return nil
}
