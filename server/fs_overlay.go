package server

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/corymhall/editorbridge/file"
	"github.com/corymhall/editorbridge/lsp"
	"github.com/corymhall/editorbridge/xcontext"
)

// An overlay is an open document as the editor sees it. It implements
// file.Handle.
type overlay struct {
	uri     lsp.DocumentURI
	kind    file.Kind
	version int32
	content []byte
	hash    file.Hash

	// saved is the hash of the content last known to be on disk. The zero
	// hash means the document has never been written.
	saved file.Hash
}

func (o *overlay) URI() lsp.DocumentURI      { return o.uri }
func (o *overlay) Version() int32            { return o.version }
func (o *overlay) Content() ([]byte, error)  { return o.content, nil }
func (o *overlay) Kind() file.Kind           { return o.kind }
func (o *overlay) Modified() bool            { return o.hash != o.saved }
func (o *overlay) setContent(content []byte) { o.content, o.hash = content, file.HashOf(content) }

func mustReadFile(ctx context.Context, uri lsp.DocumentURI) file.Handle {
	ctx = xcontext.Detach(ctx)
	fh, err := ReadFile(ctx, uri)
	if err != nil {
		// ReadFile cannot fail with an uncancellable context.
		return brokenFile{uri, err}
	}
	return fh
}

// A brokenFile represents an unexpected failure to read a file.
type brokenFile struct {
	uri lsp.DocumentURI
	err error
}

func (b brokenFile) URI() lsp.DocumentURI     { return b.uri }
func (b brokenFile) Version() int32           { return 0 }
func (b brokenFile) Content() ([]byte, error) { return nil, b.err }

// A diskFile is a file in the filesystem, or a failure to read one.
type diskFile struct {
	uri     lsp.DocumentURI
	content []byte
	hash    file.Hash
	err     error
}

func (h *diskFile) URI() lsp.DocumentURI     { return h.uri }
func (h *diskFile) Version() int32           { return -1 }
func (h *diskFile) Content() ([]byte, error) { return h.content, h.err }

// ReadFile reads the on-disk content of uri. Read failures are reported
// through the handle's Content; the returned error is only for
// cancellation.
func ReadFile(ctx context.Context, uri lsp.DocumentURI) (file.Handle, error) {
	fh, err := readFile(ctx, uri) // ~25us
	if err != nil {
		return nil, err // e.g. cancelled (not: read failed)
	}

	return fh, nil
}

// ioLimit limits the number of parallel file reads and writes per process.
var ioLimit = make(chan struct{}, 128)

func acquireIO(ctx context.Context) (func(), error) {
	select {
	case ioLimit <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return func() { <-ioLimit }, nil
}

func readFile(ctx context.Context, uri lsp.DocumentURI) (*diskFile, error) {
	release, err := acquireIO(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if !uri.IsFile() {
		return &diskFile{uri: uri, err: fs.ErrNotExist}, nil
	}
	// It is possible that a race causes us to read a file that changes right
	// after. In that case we expect a subsequent change notification from the
	// watcher, and the content should be eventually consistent.
	content, err := os.ReadFile(uri.Path()) // ~20us
	if err != nil {
		content = nil // just in case
	}
	return &diskFile{
		uri:     uri,
		content: content,
		hash:    file.HashOf(content),
		err:     err,
	}, nil
}

// writeFile replaces the on-disk content of uri, keeping the permissions of
// an existing file.
func writeFile(ctx context.Context, uri lsp.DocumentURI, content []byte) error {
	release, err := acquireIO(ctx)
	if err != nil {
		return err
	}
	defer release()

	path := uri.Path()
	perm := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, content, perm)
}

// diskHash returns the hash of fh's content, or the zero hash if it could
// not be read.
func diskHash(fh file.Handle) file.Hash {
	content, err := fh.Content()
	if err != nil {
		return file.Hash{}
	}
	return file.HashOf(content)
}
