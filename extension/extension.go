// Package extension wires the bridge into a host: it binds the listener on
// activation, registers the save-all command, and ties the listener's
// lifetime to the host's disposables.
package extension

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/corymhall/editorbridge/bridge"
)

const (
	// SaveAllCommand is the host command that saves every open document.
	SaveAllCommand = "desktopOperator.saveAll"

	savedAllMessage = "Saved all files."
)

// Disposable is a resource released by the host when the extension is
// deactivated.
type Disposable interface {
	Dispose() error
}

// DisposableFunc adapts a function to Disposable.
type DisposableFunc func() error

func (f DisposableFunc) Dispose() error { return f() }

// CommandFunc handles an invocation of a registered command.
type CommandFunc func(ctx context.Context) error

// Host is the set of capabilities the hosting editor provides.
type Host interface {
	bridge.Saver
	bridge.DiagnosticsProvider

	// RegisterCommand makes fn invokable by name through the host.
	RegisterCommand(name string, fn CommandFunc) (Disposable, error)
	// ShowInformationMessage shows a user-visible notification.
	ShowInformationMessage(ctx context.Context, message string) error
	// Subscribe registers d to be disposed when the host deactivates the
	// extension.
	Subscribe(d Disposable)
}

// Extension is the bridge's activation state.
type Extension struct {
	opts bridge.Options

	mu     sync.Mutex
	server *bridge.Server
}

func New(opts bridge.Options) *Extension {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Extension{opts: opts}
}

// Activate binds the bridge and registers the save-all command with host.
func (e *Extension) Activate(ctx context.Context, host Host) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server != nil {
		return fmt.Errorf("extension already activated")
	}

	server := bridge.New(host, host, e.opts)
	if err := server.Start(ctx); err != nil {
		return err
	}

	cmd, err := host.RegisterCommand(SaveAllCommand, func(ctx context.Context) error {
		if err := host.SaveAll(ctx); err != nil {
			return err
		}
		return host.ShowInformationMessage(ctx, savedAllMessage)
	})
	if err != nil {
		_ = server.Close()
		return fmt.Errorf("registering %s: %w", SaveAllCommand, err)
	}
	host.Subscribe(cmd)
	host.Subscribe(DisposableFunc(server.Close))

	e.server = server
	return nil
}

// Deactivate closes the bridge. It is safe to call whether or not the host
// has already disposed the extension's subscriptions.
func (e *Extension) Deactivate() error {
	e.mu.Lock()
	server := e.server
	e.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Close()
}

// Server returns the bridge, or nil before activation.
func (e *Extension) Server() *bridge.Server {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.server
}
