package lsp

import (
	"context"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/corymhall/editorbridge/rpc"
	"github.com/pulumi/pulumi/sdk/v3/go/common/util/contract"
)

type DocumentURI string

type LanguageKind string

const fileScheme = "file://"

// IsFile reports whether the URI names a document on the local filesystem.
func (uri DocumentURI) IsFile() bool {
	return strings.HasPrefix(string(uri), fileScheme)
}

func (uri DocumentURI) Path() string {
	contract.Assertf(uri.IsFile(), "URI must start with file://")
	p := string(uri)[len(fileScheme):]
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return filepath.FromSlash(p)
}

func URIFromPath(path string) DocumentURI {
	if path == "" {
		return ""
	}
	return DocumentURI(fileScheme + filepath.ToSlash(path))
}

type Server interface {
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#exit
	Exit(context.Context) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#initialize
	Initialize(context.Context, *InitializeRequestParams) (*InitializeResult, error)
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#initialized
	Initialized(context.Context, *InitializedParams) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#shutdown
	Shutdown(context.Context) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#textDocument_didChange
	DidChange(context.Context, *DidChangeTextDocumentParams) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#textDocument_didClose
	DidClose(context.Context, *DidCloseTextDocumentParams) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#textDocument_didOpen
	DidOpen(context.Context, *DidOpenTextDocumentParams) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#textDocument_didSave
	DidSave(context.Context, *DidSaveTextDocumentParams) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#workspace_executeCommand
	ExecuteCommand(context.Context, *ExecuteCommandParams) (any, error)
	Logger() *slog.Logger
}

func serverDispatch(ctx context.Context, server Server, reply rpc.Replier, r rpc.Request) (bool, error) {
	switch r.Method() {
	case "exit":
		err := server.Exit(ctx)
		return true, reply(ctx, nil, err)
	case "shutdown":
		err := server.Shutdown(ctx)
		return true, reply(ctx, nil, err)
	case "initialize":
		server.Logger().Debug("received initialize request", "params", string(r.Params()))
		var params InitializeRequestParams
		if err := UnmarshalJSON(r.Params(), &params); err != nil {
			return true, sendParseError(ctx, reply, err)
		}
		resp, err := server.Initialize(ctx, &params)
		if err != nil {
			server.Logger().Error("initialize failed", "error", err)
		}
		return true, reply(ctx, resp, err)
	case "initialized":
		var params InitializedParams
		if err := UnmarshalJSON(r.Params(), &params); err != nil {
			return true, sendParseError(ctx, reply, err)
		}
		err := server.Initialized(ctx, &params)
		if err != nil {
			server.Logger().Error("initialized failed", "error", err)
		}
		return true, reply(ctx, nil, err)
	case "textDocument/didOpen":
		var params DidOpenTextDocumentParams
		if err := UnmarshalJSON(r.Params(), &params); err != nil {
			return true, sendParseError(ctx, reply, err)
		}
		err := server.DidOpen(ctx, &params)
		if err != nil {
			server.Logger().Error("didOpen failed", "error", err)
		}
		return true, reply(ctx, nil, err)
	case "textDocument/didChange":
		var params DidChangeTextDocumentParams
		if err := UnmarshalJSON(r.Params(), &params); err != nil {
			return true, sendParseError(ctx, reply, err)
		}
		err := server.DidChange(ctx, &params)
		if err != nil {
			server.Logger().Error("didChange failed", "error", err)
		}
		return true, reply(ctx, nil, err)
	case "textDocument/didClose":
		var params DidCloseTextDocumentParams
		if err := UnmarshalJSON(r.Params(), &params); err != nil {
			return true, sendParseError(ctx, reply, err)
		}
		err := server.DidClose(ctx, &params)
		if err != nil {
			server.Logger().Error("didClose failed", "error", err)
		}
		return true, reply(ctx, nil, err)
	case "textDocument/didSave":
		var params DidSaveTextDocumentParams
		if err := UnmarshalJSON(r.Params(), &params); err != nil {
			return true, sendParseError(ctx, reply, err)
		}
		err := server.DidSave(ctx, &params)
		if err != nil {
			server.Logger().Error("didSave failed", "error", err)
		}
		return true, reply(ctx, nil, err)
	case "workspace/executeCommand":
		var params ExecuteCommandParams
		if err := UnmarshalJSON(r.Params(), &params); err != nil {
			return true, sendParseError(ctx, reply, err)
		}
		resp, err := server.ExecuteCommand(ctx, &params)
		if err != nil {
			return true, reply(ctx, nil, err)
		}
		return true, reply(ctx, resp, nil)
	default:
		return false, nil
	}
}
