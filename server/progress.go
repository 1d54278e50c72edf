package server

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/corymhall/editorbridge/lsp"
	"github.com/corymhall/editorbridge/xcontext"
	"golang.org/x/exp/rand"
)

// A Tracker reports the progress of a long-running operation to an LSP client.
type Tracker struct {
	client lsp.Client
	logger *slog.Logger

	mu                       sync.Mutex
	supportsWorkDoneProgress bool
	inProgress               map[lsp.ProgressToken]*WorkDone
}

// NewTracker returns a new Tracker that reports progress to the
// specified client.
func NewTracker(client lsp.Client, logger *slog.Logger) *Tracker {
	return &Tracker{
		client:     client,
		logger:     logger,
		inProgress: make(map[lsp.ProgressToken]*WorkDone),
	}
}

// SetSupportsWorkDoneProgress sets whether the client supports "work done"
// progress reporting. It must be set before using the tracker.
func (t *Tracker) SetSupportsWorkDoneProgress(b bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.supportsWorkDoneProgress = b
}

func (t *Tracker) supported() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.supportsWorkDoneProgress
}

// InProgress returns the number of operations currently being reported.
func (t *Tracker) InProgress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inProgress)
}

// WorkDone represents a unit of work that is reported to the client via the
// progress API.
type WorkDone struct {
	client lsp.Client
	// If token is nil, this workDone object uses the ShowMessage API, rather
	// than $/progress.
	token lsp.ProgressToken
	// err is set if progress reporting is broken for some reason (for example,
	// if there was an initial error creating a token).
	err error

	logger *slog.Logger

	cleanup func()
}

// Start begins reporting an operation. When the client does not support
// work done progress, message is logged to the client instead.
func (t *Tracker) Start(ctx context.Context, title, message string) *WorkDone {
	ctx = xcontext.Detach(ctx)
	wd := &WorkDone{
		client: t.client,
		logger: t.logger,
	}
	if !t.supported() {
		if err := wd.client.ShowMessage(ctx, &lsp.ShowMessageParams{
			Type:    lsp.MessageTypeLog,
			Message: message,
		}); err != nil {
			t.logger.Error("error showing message", "error", err)
		}
		return wd
	}

	token := strconv.FormatInt(rand.Int63(), 10)
	t.logger.Debug("creating progress token", "token", token)
	if err := wd.client.WorkDoneProgressCreate(ctx, &lsp.WorkDoneProgressCreateParams{
		Token: token,
	}); err != nil {
		t.logger.Error("error creating progress token", "error", err)
		wd.err = err
		return wd
	}
	wd.token = token

	t.mu.Lock()
	t.inProgress[token] = wd
	t.mu.Unlock()
	wd.cleanup = func() {
		t.mu.Lock()
		delete(t.inProgress, token)
		t.mu.Unlock()
	}
	err := wd.client.ProgressBegin(ctx, &lsp.WorkDoneProgressBeginParams{
		Token: token,
		Value: &lsp.WorkDoneProgressBeginValue{
			Kind:    lsp.Begin,
			Title:   title,
			Message: message,
		},
	})
	if err != nil {
		t.logger.Error("error starting progress", "error", err)
	}
	return wd
}

// End reports a workdone completion back to the client.
func (wd *WorkDone) End(ctx context.Context, message string) {
	if wd == nil {
		return
	}
	ctx = xcontext.Detach(ctx) // progress messages should not be cancelled
	var err error
	switch {
	case wd.err != nil:
		// There is a prior error.
	case wd.token == nil:
		// We're falling back to message-based reporting.
		err = wd.client.ShowMessage(ctx, &lsp.ShowMessageParams{
			Type:    lsp.MessageTypeLog,
			Message: message,
		})
	default:
		wd.logger.Debug("ending progress", "token", wd.token)
		err = wd.client.ProgressEnd(ctx, &lsp.WorkDoneProgressEndParams{
			Token: wd.token,
			Value: &lsp.WorkDoneProgressEndValue{
				Kind:    lsp.End,
				Message: message,
			},
		})
	}
	if err != nil {
		wd.logger.Error("error ending progress", "error", err)
	}
	if wd.cleanup != nil {
		wd.cleanup()
	}
}
