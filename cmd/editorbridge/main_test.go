package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/corymhall/editorbridge/bridge"
	"github.com/corymhall/editorbridge/lsp"
	"github.com/hexops/autogold/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type host struct {
	saveErr error
	diags   []bridge.FileDiagnostics
}

func (h *host) SaveAll(context.Context) error             { return h.saveErr }
func (h *host) AllDiagnostics() []bridge.FileDiagnostics { return h.diags }

func startBridge(t *testing.T, h *host) string {
	t.Helper()
	srv := bridge.New(h, h, bridge.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

var sample = []bridge.FileDiagnostics{
	{
		URI: "file:///project/a.ts",
		Diagnostics: []lsp.Diagnostic{
			{
				Range:    lsp.Range{Start: lsp.Position{Line: 2, Character: 4}, End: lsp.Position{Line: 2, Character: 9}},
				Severity: lsp.SeverityError,
				Source:   "tree-sitter",
				Message:  "syntax error",
			},
			{
				Range:    lsp.Range{Start: lsp.Position{Line: 7}, End: lsp.Position{Line: 7, Character: 1}},
				Severity: lsp.SeverityWarning,
				Message:  "trailing whitespace",
			},
		},
	},
}

func TestSaveAllCommand(t *testing.T) {
	url := startBridge(t, &host{})
	out, err := run(t, "save-all", "--url", url)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestSaveAllCommandFailure(t *testing.T) {
	url := startBridge(t, &host{saveErr: errors.New("disk full")})
	_, err := run(t, "save-all", "--url", url)
	assert.ErrorContains(t, err, "bridge returned 500: disk full")
}

func TestDiagnosticsCommand(t *testing.T) {
	url := startBridge(t, &host{diags: sample})
	out, err := run(t, "diagnostics", "--url", url, "--no-color")
	require.NoError(t, err)
	autogold.Expect(`file:///project/a.ts
  3:5 error syntax error [tree-sitter]
  8:1 warning trailing whitespace
`).Equal(t, out)
}

func TestDiagnosticsCommandEmpty(t *testing.T) {
	url := startBridge(t, &host{})
	out, err := run(t, "diagnostics", "--url", url, "--no-color")
	require.NoError(t, err)
	assert.Equal(t, "No diagnostics.\n", out)
}

func TestDiagnosticsCommandJSON(t *testing.T) {
	url := startBridge(t, &host{diags: sample[:1]})
	out, err := run(t, "diagnostics", "--url", url, "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"uri":"file:///project/a.ts","diagnostics":[
		{"message":"syntax error","severity":1,"source":"tree-sitter","range":{"start":{"line":2,"character":4},"end":{"line":2,"character":9}}},
		{"message":"trailing whitespace","severity":2,"range":{"start":{"line":7,"character":0},"end":{"line":7,"character":1}}}
	]}]`, out)
}

func TestLogsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "editorbridge.log")
	require.NoError(t, os.WriteFile(path, []byte("level=INFO msg=hello\n"), 0o600))
	out, err := run(t, "logs", "--log-file", path)
	require.NoError(t, err)
	assert.Equal(t, "level=INFO msg=hello\n", out)
}

func TestLogsCommandMissingFile(t *testing.T) {
	_, err := run(t, "logs", "--log-file", filepath.Join(t.TempDir(), "nope.log"))
	assert.ErrorContains(t, err, "opening log")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version()+"\n", out)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "save-all", "--log-level", "loud")
	assert.ErrorContains(t, err, "invalid log level")
}
