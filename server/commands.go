package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/corymhall/editorbridge/debug"
	"github.com/corymhall/editorbridge/extension"
	"github.com/corymhall/editorbridge/lsp"
	"github.com/corymhall/editorbridge/rpc"
)

// RegisterCommand makes fn invokable through workspace/executeCommand.
// Disposing the result unregisters it.
func (s *server) RegisterCommand(name string, fn extension.CommandFunc) (extension.Disposable, error) {
	s.commandsMu.Lock()
	defer s.commandsMu.Unlock()
	if _, ok := s.commands[name]; ok {
		return nil, fmt.Errorf("command %q already registered", name)
	}
	s.commands[name] = fn
	return extension.DisposableFunc(func() error {
		s.commandsMu.Lock()
		defer s.commandsMu.Unlock()
		delete(s.commands, name)
		return nil
	}), nil
}

func (s *server) ExecuteCommand(ctx context.Context, params *lsp.ExecuteCommandParams) (any, error) {
	ctx, done := debug.Start(ctx, "ExecuteCommand", slog.String("command", params.Command))
	defer done()

	s.commandsMu.Lock()
	fn, ok := s.commands[params.Command]
	s.commandsMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", rpc.ErrInvalidParams, params.Command)
	}
	if err := fn(ctx); err != nil {
		debug.LogError(ctx, "command failed", err)
		return nil, err
	}
	return nil, nil
}

func (s *server) ShowInformationMessage(ctx context.Context, message string) error {
	return s.client.ShowMessage(ctx, &lsp.ShowMessageParams{
		Type:    lsp.MessageTypeInfo,
		Message: message,
	})
}

// Subscribe registers d to be disposed on shutdown. Subscriptions are
// disposed in reverse order of registration.
func (s *server) Subscribe(d extension.Disposable) {
	s.subscriptionsMu.Lock()
	defer s.subscriptionsMu.Unlock()
	s.subscriptions = append(s.subscriptions, d)
}
