package file

import (
	"fmt"
	"path/filepath"

	"github.com/corymhall/editorbridge/lsp"
)

// Kind describes the kind of the file in question.
// Only kinds with a syntax analyzer are listed; every other document is
// UnknownKind and only gets the text checks.
type Kind int

const (
	// UnknownKind is a file type we don't know about.
	UnknownKind = Kind(iota)

	// TypeScript is a TypeScript source file.
	TypeScript

	// TSX is a TypeScript source file with JSX.
	TSX
)

func (k Kind) String() string {
	switch k {
	case UnknownKind:
		return "unknown"
	case TypeScript:
		return "typescript"
	case TSX:
		return "typescriptreact"
	default:
		return fmt.Sprintf("internal error: unknown file kind %d", k)
	}
}

// KindForLang returns the [Kind] associated with the given LSP
// LanguageKind string from the LanguageID field of [lsp.TextDocumentItem],
// or UnknownKind if the language is not recognized.
func KindForLang(langID lsp.LanguageKind) Kind {
	switch langID {
	case "typescript":
		return TypeScript
	case "typescriptreact":
		return TSX
	default:
		return UnknownKind
	}
}

// KindForPath guesses the [Kind] of a file from its extension. It is used
// when no language ID was supplied by the client.
func KindForPath(path string) Kind {
	switch filepath.Ext(path) {
	case ".ts", ".mts", ".cts":
		return TypeScript
	case ".tsx":
		return TSX
	default:
		return UnknownKind
	}
}
