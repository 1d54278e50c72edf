package server

import (
	"context"
	"fmt"

	"github.com/corymhall/editorbridge/file"
	"github.com/corymhall/editorbridge/lsp"
	"github.com/corymhall/editorbridge/rpc"
)

func (s *server) DidChange(ctx context.Context, params *lsp.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	// full sync: the last change holds the whole document
	last := params.ContentChanges[len(params.ContentChanges)-1]
	if last.Range != nil {
		return fmt.Errorf("%w: incremental change for %s, only full sync is supported", rpc.ErrInvalidParams, params.TextDocument.URI)
	}
	return s.didModifyFiles(ctx, []file.Modification{{
		URI:     params.TextDocument.URI,
		Action:  file.Change,
		Version: params.TextDocument.Version,
		Text:    []byte(last.Text),
	}}, FromDidChange)
}
