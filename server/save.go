package server

import (
	"context"
	"fmt"

	"github.com/corymhall/editorbridge/debug"
	"github.com/corymhall/editorbridge/file"
	"github.com/corymhall/editorbridge/lsp"
	"github.com/corymhall/editorbridge/xcontext"
	"golang.org/x/sync/errgroup"
)

type pendingWrite struct {
	uri     lsp.DocumentURI
	content []byte
	hash    file.Hash
}

// SaveAll writes every modified open document to disk. Once started it runs
// to completion regardless of the caller's cancellation. The first write
// error is returned; documents written before it stay saved.
func (s *server) SaveAll(ctx context.Context) error {
	ctx = xcontext.Detach(ctx)
	ctx, done := debug.Start(ctx, "SaveAll")
	defer done()

	writes := s.modifiedDocuments()
	if len(writes) == 0 {
		debug.Debug.Log(ctx, "no modified documents")
		return nil
	}

	work := s.progress.Start(ctx, "Desktop Operator", fmt.Sprintf("Saving %d files...", len(writes)))
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range writes {
		g.Go(func() error {
			if err := writeFile(gctx, w.uri, w.content); err != nil {
				return fmt.Errorf("saving %s: %w", w.uri.Path(), err)
			}
			s.markSaved(w.uri, w.hash)
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		work.End(ctx, "Save failed.")
		return err
	}
	work.End(ctx, "Done.")
	return nil
}

func (s *server) modifiedDocuments() []pendingWrite {
	s.documentsMu.Lock()
	defer s.documentsMu.Unlock()
	writes := []pendingWrite{}
	for uri, o := range s.documents {
		if !o.Modified() {
			continue
		}
		if !uri.IsFile() {
			// untitled and virtual documents have nowhere to go
			continue
		}
		writes = append(writes, pendingWrite{uri: uri, content: o.content, hash: o.hash})
	}
	return writes
}

func (s *server) markSaved(uri lsp.DocumentURI, hash file.Hash) {
	s.documentsMu.Lock()
	defer s.documentsMu.Unlock()
	if o, ok := s.documents[uri]; ok {
		o.saved = hash
	}
}
