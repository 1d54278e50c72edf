package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/corymhall/editorbridge/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingServer struct {
	calls  []string
	opened *DidOpenTextDocumentParams
	err    error
}

func (s *recordingServer) record(name string) { s.calls = append(s.calls, name) }

func (s *recordingServer) Exit(context.Context) error     { s.record("exit"); return nil }
func (s *recordingServer) Shutdown(context.Context) error { s.record("shutdown"); return s.err }
func (s *recordingServer) Initialize(_ context.Context, p *InitializeRequestParams) (*InitializeResult, error) {
	s.record("initialize")
	return &InitializeResult{ServerInfo: ServerInfo{Name: "test"}}, nil
}
func (s *recordingServer) Initialized(context.Context, *InitializedParams) error {
	s.record("initialized")
	return nil
}
func (s *recordingServer) DidChange(context.Context, *DidChangeTextDocumentParams) error {
	s.record("didChange")
	return nil
}
func (s *recordingServer) DidClose(context.Context, *DidCloseTextDocumentParams) error {
	s.record("didClose")
	return nil
}
func (s *recordingServer) DidOpen(_ context.Context, p *DidOpenTextDocumentParams) error {
	s.record("didOpen")
	s.opened = p
	return nil
}
func (s *recordingServer) DidSave(context.Context, *DidSaveTextDocumentParams) error {
	s.record("didSave")
	return nil
}
func (s *recordingServer) ExecuteCommand(_ context.Context, p *ExecuteCommandParams) (any, error) {
	s.record("executeCommand:" + p.Command)
	return nil, s.err
}
func (s *recordingServer) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type captured struct {
	result any
	err    error
}

func dispatch(t *testing.T, srv Server, msg string) captured {
	t.Helper()
	req, err := rpc.DecodeMessage([]byte(msg))
	require.NoError(t, err)
	var got captured
	reply := func(_ context.Context, result any, err error) error {
		got = captured{result, err}
		return nil
	}
	require.NoError(t, ServerHandler(srv, rpc.MethodNotFound)(context.Background(), reply, req.(rpc.Request)))
	return got
}

func TestServerHandlerDispatch(t *testing.T) {
	srv := &recordingServer{}
	got := dispatch(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"rootUri":"file:///project"}}`)
	require.NoError(t, got.err)
	assert.Equal(t, "test", got.result.(*InitializeResult).ServerInfo.Name)

	dispatch(t, srv, `{"jsonrpc":"2.0","method":"initialized","params":{}}`)
	dispatch(t, srv, `{"jsonrpc":"2.0","method":"textDocument/didOpen","params":{"textDocument":{"uri":"file:///project/a.ts","languageId":"typescript","version":1,"text":"let a;"}}}`)
	dispatch(t, srv, `{"jsonrpc":"2.0","method":"textDocument/didChange","params":{"textDocument":{"uri":"file:///project/a.ts","version":2},"contentChanges":[{"text":"let b;"}]}}`)
	dispatch(t, srv, `{"jsonrpc":"2.0","method":"textDocument/didSave","params":{"textDocument":{"uri":"file:///project/a.ts"}}}`)
	dispatch(t, srv, `{"jsonrpc":"2.0","id":2,"method":"workspace/executeCommand","params":{"command":"desktopOperator.saveAll"}}`)
	dispatch(t, srv, `{"jsonrpc":"2.0","method":"textDocument/didClose","params":{"textDocument":{"uri":"file:///project/a.ts"}}}`)
	dispatch(t, srv, `{"jsonrpc":"2.0","id":3,"method":"shutdown"}`)
	dispatch(t, srv, `{"jsonrpc":"2.0","method":"exit"}`)

	assert.Equal(t, []string{
		"initialize", "initialized", "didOpen", "didChange", "didSave",
		"executeCommand:desktopOperator.saveAll", "didClose", "shutdown", "exit",
	}, srv.calls)
	assert.Equal(t, &DidOpenTextDocumentParams{TextDocument: TextDocumentItem{
		URI:        "file:///project/a.ts",
		LanguageID: "typescript",
		Version:    1,
		Text:       "let a;",
	}}, srv.opened)
}

func TestServerHandlerErrors(t *testing.T) {
	srv := &recordingServer{err: errors.New("boom")}
	got := dispatch(t, srv, `{"jsonrpc":"2.0","id":1,"method":"workspace/executeCommand","params":{"command":"x"}}`)
	assert.EqualError(t, got.err, "boom")

	got = dispatch(t, srv, `{"jsonrpc":"2.0","id":2,"method":"textDocument/hover","params":{}}`)
	assert.ErrorIs(t, got.err, rpc.ErrMethodNotFound)

	got = dispatch(t, srv, `{"jsonrpc":"2.0","id":3,"method":"textDocument/didOpen","params":[1,2]}`)
	assert.ErrorIs(t, got.err, rpc.ErrParse)
}

func TestServerHandlerCancelled(t *testing.T) {
	req, err := rpc.DecodeMessage([]byte(`{"jsonrpc":"2.0","id":1,"method":"shutdown"}`))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	srv := &recordingServer{}
	var replied error
	err = ServerHandler(srv, rpc.MethodNotFound)(ctx, func(_ context.Context, _ any, err error) error {
		replied = err
		return nil
	}, req.(rpc.Request))
	require.NoError(t, err)
	assert.Equal(t, RequestCancelledError, replied)
	assert.Empty(t, srv.calls)
}

func TestDocumentURI(t *testing.T) {
	uri := URIFromPath("/home/me/my project/a.ts")
	assert.True(t, uri.IsFile())
	assert.Equal(t, "/home/me/my project/a.ts", uri.Path())
	assert.Equal(t, "/home/me/my project/a.ts", DocumentURI("file:///home/me/my%20project/a.ts").Path())
	assert.False(t, DocumentURI("untitled:Untitled-1").IsFile())
	assert.Equal(t, DocumentURI(""), URIFromPath(""))
}

func TestDiagnosticJSON(t *testing.T) {
	data, err := json.Marshal(Diagnostic{
		Range:    Range{Start: Position{Line: 1, Character: 2}, End: Position{Line: 1, Character: 3}},
		Severity: SeverityHint,
		Message:  "m",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"range":{"start":{"line":1,"character":2},"end":{"line":1,"character":3}},"severity":4,"message":"m"}`, string(data))
	assert.Equal(t, "hint", SeverityHint.String())
	assert.Equal(t, "unknown", DiagnosticSeverity(9).String())
}
