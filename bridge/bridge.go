// Package bridge exposes two editor operations, saving every open document
// and reading the current diagnostics, on a loopback HTTP listener so that an
// automation process can drive an editor session.
//
// The bridge owns nothing but the listener. Saving and diagnostics are
// supplied by the host through [Saver] and [DiagnosticsProvider].
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/corymhall/editorbridge/lsp"
	"github.com/google/uuid"
)

// DefaultAddr is the loopback address the bridge listens on.
const DefaultAddr = "127.0.0.1:48100"

const (
	saveAllPath     = "/saveAll"
	diagnosticsPath = "/diagnostics"
)

// Saver persists all modified open documents.
type Saver interface {
	SaveAll(ctx context.Context) error
}

// DiagnosticsProvider returns a synchronous snapshot of the diagnostics of
// every open document.
type DiagnosticsProvider interface {
	AllDiagnostics() []FileDiagnostics
}

// FileDiagnostics is the host's view of the diagnostics of one document.
type FileDiagnostics struct {
	URI         lsp.DocumentURI
	Diagnostics []lsp.Diagnostic
}

// Options configures a Server.
type Options struct {
	// Addr is the TCP address to listen on. Defaults to DefaultAddr.
	Addr string
	// Logger receives lifecycle and per-request logs. Defaults to slog.Default.
	Logger *slog.Logger
}

type state int

const (
	stateNew = state(iota)
	stateBound
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateNew:
		return "new"
	case stateBound:
		return "bound"
	case stateClosed:
		return "closed"
	}
	return fmt.Sprintf("(unknown state: %d)", int(s))
}

// Server is the HTTP bridge. It is safe to call Close from several places;
// only the first call closes the listener.
type Server struct {
	addr        string
	saver       Saver
	diagnostics DiagnosticsProvider
	logger      *slog.Logger

	mu       sync.Mutex
	state    state
	listener net.Listener
	http     *http.Server
	done     chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New returns an unstarted Server.
func New(saver Saver, diagnostics DiagnosticsProvider, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		addr:        opts.Addr,
		saver:       saver,
		diagnostics: diagnostics,
		logger:      opts.Logger,
		done:        make(chan struct{}),
	}
}

// Start binds the listener and serves requests in the background. It returns
// once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateNew {
		return fmt.Errorf("bridge: cannot start in %v state", s.state)
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bridge: failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.http = &http.Server{
		Handler:  s,
		ErrorLog: slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.state = stateBound

	go func() {
		defer close(s.done)
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("bridge stopped serving", "error", err)
		}
	}()

	s.logger.Info(fmt.Sprintf("Desktop Operator bridge on http://%s", listener.Addr()), "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or nil if the server is not bound.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener. Calls after the first return the first
// call's result.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		prev := s.state
		s.state = stateClosed
		srv := s.http
		s.mu.Unlock()

		if prev != stateBound {
			return
		}
		s.closeErr = srv.Close()
		<-s.done
		s.logger.Info("bridge closed", "addr", s.listener.Addr().String())
	})
	return s.closeErr
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := s.logger.With("request_id", uuid.NewString(), "method", r.Method)
	rw := &statusWriter{ResponseWriter: w}
	defer func() {
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler {
				panic(p)
			}
			logger.Error("panic handling request", "panic", p)
			writeError(rw, panicError(p))
		}
		logger.Debug("request handled", "status", rw.status, slog.Duration("elapsed", time.Since(start)))
	}()

	if r.URL == nil {
		writeText(rw, http.StatusBadRequest, "", "No URL")
		return
	}
	target := r.URL.RequestURI()
	logger = logger.With("target", target)

	switch {
	case r.Method == http.MethodPost && target == saveAllPath:
		s.handleSaveAll(rw, r, logger)
	case r.Method == http.MethodGet && target == diagnosticsPath:
		s.handleDiagnostics(rw, logger)
	default:
		writeText(rw, http.StatusNotFound, "", "Not found")
	}
}

func (s *Server) handleSaveAll(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	if err := s.saver.SaveAll(r.Context()); err != nil {
		logger.Debug("save all failed", "error", err)
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "text/plain", "ok")
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, logger *slog.Logger) {
	out := ToResponse(s.diagnostics.AllDiagnostics())
	data, err := json.Marshal(out)
	if err != nil {
		logger.Debug("encoding diagnostics failed", "error", err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, err error) {
	writeText(w, http.StatusInternalServerError, "", err.Error())
}

func writeText(w http.ResponseWriter, status int, contentType, body string) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return fmt.Errorf("%v", p)
}

// statusWriter records the status code for request logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status != 0 {
		return
	}
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
