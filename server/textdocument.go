package server

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/corymhall/editorbridge/debug"
	"github.com/corymhall/editorbridge/file"
	"github.com/corymhall/editorbridge/lsp"
)

// ModificationSource identifies the origin of a change.
type ModificationSource int

const (
	// FromDidOpen is from a didOpen notification.
	FromDidOpen = ModificationSource(iota)

	// FromDidChange is from a didChange notification.
	FromDidChange

	// FromDiskChange is from the file watcher.
	FromDiskChange

	// FromDidSave is from a didSave notification.
	FromDidSave

	// FromDidClose is from a didClose notification.
	FromDidClose
)

func (m ModificationSource) String() string {
	switch m {
	case FromDidOpen:
		return "didOpen"
	case FromDidChange:
		return "didChange"
	case FromDiskChange:
		return "diskChange"
	case FromDidSave:
		return "didSave"
	case FromDidClose:
		return "didClose"
	}
	return fmt.Sprintf("(unknown source: %d)", int(m))
}

func (s *server) didModifyFiles(ctx context.Context, modifications []file.Modification, cause ModificationSource) error {
	ctx, done := debug.Start(ctx, "textdocument.didModifyFiles", "cause", cause.String())
	defer done()

	changed := make([]*overlay, 0, len(modifications))
	closed := []lsp.DocumentURI{}
	for _, mod := range modifications {
		o, err := s.applyModification(ctx, mod)
		if err != nil {
			return err
		}
		if o == nil {
			closed = append(closed, mod.URI)
			continue
		}
		changed = append(changed, o)
	}

	for _, uri := range closed {
		s.clearDiagnostics(ctx, uri)
	}
	for _, o := range changed {
		s.diagnoseDocument(ctx, o)
	}
	return nil
}

// applyModification updates the overlay store and returns a copy of the
// resulting overlay, or nil if the document was closed.
func (s *server) applyModification(ctx context.Context, mod file.Modification) (*overlay, error) {
	var watch, unwatch string
	defer func() {
		if watch != "" {
			s.watcher.Add(watch)
		}
		if unwatch != "" {
			s.watcher.Remove(unwatch)
		}
	}()

	s.documentsMu.Lock()
	defer s.documentsMu.Unlock()

	o, open := s.documents[mod.URI]
	switch mod.Action {
	case file.Open:
		kind := file.KindForLang(mod.LanguageID)
		if kind == file.UnknownKind && mod.URI.IsFile() {
			kind = file.KindForPath(mod.URI.Path())
		}
		o = &overlay{
			uri:     mod.URI,
			kind:    kind,
			version: mod.Version,
			saved:   diskHash(mustReadFile(ctx, mod.URI)),
		}
		o.setContent(mod.Text)
		if !open && mod.URI.IsFile() {
			watch = filepath.Clean(mod.URI.Path())
		}
		s.documents[mod.URI] = o
	case file.Change:
		if !open {
			return nil, fmt.Errorf("change for %s which is not open", mod.URI)
		}
		o.version = mod.Version
		o.setContent(mod.Text)
	case file.Save:
		if !open {
			return nil, fmt.Errorf("save for %s which is not open", mod.URI)
		}
		if mod.Text != nil {
			o.setContent(mod.Text)
		}
		o.saved = o.hash
	case file.Close:
		if !open {
			return nil, fmt.Errorf("close for %s which is not open", mod.URI)
		}
		delete(s.documents, mod.URI)
		if mod.URI.IsFile() {
			unwatch = filepath.Clean(mod.URI.Path())
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported modification %v for %s", mod.Action, mod.URI)
	}
	cp := *o
	return &cp, nil
}

// didChangeOnDisk reloads an unmodified document whose file changed on
// disk. A modified document keeps the editor's content; only its saved hash
// moves so that the next save-all writes it again.
func (s *server) didChangeOnDisk(ctx context.Context, path string) {
	s.documentsMu.Lock()
	var o *overlay
	for uri, doc := range s.documents {
		if uri.IsFile() && filepath.Clean(uri.Path()) == path {
			o = doc
			break
		}
	}
	s.documentsMu.Unlock()
	if o == nil {
		return
	}

	disk := mustReadFile(ctx, o.uri)
	content, err := disk.Content()

	s.documentsMu.Lock()
	if cur, ok := s.documents[o.uri]; !ok || cur != o {
		// closed or reopened while we were reading
		s.documentsMu.Unlock()
		return
	}
	if err != nil {
		o.saved = file.Hash{}
		s.documentsMu.Unlock()
		return
	}
	h := file.HashOf(content)
	if h == o.saved {
		// our own write, or a touch without a content change
		s.documentsMu.Unlock()
		return
	}
	reload := !o.Modified()
	if reload {
		o.setContent(content)
	}
	o.saved = h
	cp := *o
	s.documentsMu.Unlock()

	debug.Debug.Log(ctx, "document changed on disk", "uri", o.uri, "reloaded", reload)
	if reload {
		s.diagnoseDocument(ctx, &cp)
	}
}

// document returns a copy of the overlay for uri.
func (s *server) document(uri lsp.DocumentURI) (*overlay, bool) {
	s.documentsMu.Lock()
	defer s.documentsMu.Unlock()
	o, ok := s.documents[uri]
	if !ok {
		return nil, false
	}
	cp := *o
	return &cp, true
}
