package server

import (
	"context"
	"fmt"

	"github.com/corymhall/editorbridge/extension"
	"github.com/corymhall/editorbridge/lsp"
	"github.com/corymhall/editorbridge/rpc"
)

func (s *server) Initialize(ctx context.Context, params *lsp.InitializeRequestParams) (*lsp.InitializeResult, error) {
	s.stateMu.Lock()
	if s.state >= serverInitializing {
		defer s.stateMu.Unlock()
		return nil, fmt.Errorf("%w: initialize called while server in %v state", rpc.ErrInvalidRequest, s.state)
	}
	s.progress.SetSupportsWorkDoneProgress(params.Capabilities.Window.WorkDoneProgress)
	s.state = serverInitializing
	s.rootURI = params.RootURI
	s.stateMu.Unlock()
	if params.ClientInfo != nil {
		s.logger.Info("initializing", "client", params.ClientInfo.Name, "clientVersion", params.ClientInfo.Version, "root", params.RootURI)
	}
	return &lsp.InitializeResult{
		Capabilities: lsp.ServerCapabilities{
			TextDocumentSync: lsp.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    lsp.TextDocumentSyncFull,
				Save:      &lsp.SaveOptions{IncludeText: true},
			},
			ExecuteCommandProvider: &lsp.ExecuteCommandOptions{
				Commands: []string{extension.SaveAllCommand},
			},
		},
		ServerInfo: lsp.ServerInfo{
			Name:    "editorbridge",
			Version: s.opts.Version,
		},
	}, nil
}

func (s *server) Initialized(ctx context.Context, params *lsp.InitializedParams) error {
	s.stateMu.Lock()
	if s.state >= serverInitialized {
		defer s.stateMu.Unlock()
		return fmt.Errorf("%w: initialized called while server in %v state", rpc.ErrInvalidRequest, s.state)
	}
	s.state = serverInitialized
	s.stateMu.Unlock()

	// the bridge is optional for the editor; failing to bind must not take
	// the language server down with it
	if err := s.ext.Activate(ctx, s); err != nil {
		s.logger.Error("error activating bridge", "error", err)
		if err := s.client.ShowMessage(ctx, &lsp.ShowMessageParams{
			Type:    lsp.MessageTypeError,
			Message: fmt.Sprintf("Desktop Operator bridge unavailable: %v", err),
		}); err != nil {
			s.logger.Error("error showing message", "error", err)
		}
		return nil
	}
	addr := s.ext.Server().Addr()
	s.logger.Info("bridge activated", "addr", addr.String())
	return nil
}
