package server

import (
	"context"

	"github.com/corymhall/editorbridge/file"
	"github.com/corymhall/editorbridge/lsp"
)

func (s *server) DidOpen(ctx context.Context, params *lsp.DidOpenTextDocumentParams) error {
	return s.didModifyFiles(ctx, []file.Modification{{
		URI:        params.TextDocument.URI,
		Action:     file.Open,
		Version:    params.TextDocument.Version,
		Text:       []byte(params.TextDocument.Text),
		LanguageID: params.TextDocument.LanguageID,
	}}, FromDidOpen)
}

func (s *server) DidClose(ctx context.Context, params *lsp.DidCloseTextDocumentParams) error {
	return s.didModifyFiles(ctx, []file.Modification{{
		URI:     params.TextDocument.URI,
		Action:  file.Close,
		Version: -1,
	}}, FromDidClose)
}
