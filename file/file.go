package file

import (
	"crypto/sha256"
	"fmt"

	"github.com/corymhall/editorbridge/lsp"
)

// Handle is a snapshot of a document's content, either an editor overlay or
// the file on disk.
type Handle interface {
	URI() lsp.DocumentURI
	Version() int32
	Content() ([]byte, error)
}

type Hash [sha256.Size]byte

func HashOf(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:8])
}

// Modification represents a modification to a file.
type Modification struct {
	URI    lsp.DocumentURI
	Action Action

	// Version will be -1 and Text will be nil when they are not supplied,
	// specifically on textDocument/didClose.
	Version int32
	Text    []byte

	// LanguageID is only sent from the language client on textDocument/didOpen.
	LanguageID lsp.LanguageKind
}

// An Action is a type of file state change.
type Action int

const (
	UnknownAction = Action(iota)
	Open
	Change
	Close
	Save
)

func (a Action) String() string {
	switch a {
	case Open:
		return "Open"
	case Change:
		return "Change"
	case Close:
		return "Close"
	case Save:
		return "Save"
	default:
		return "Unknown"
	}
}
