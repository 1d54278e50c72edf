package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/corymhall/editorbridge/lsp"
	"github.com/hexops/autogold/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSaver struct {
	calls atomic.Int32
	err   error
	panic any
}

func (f *fakeSaver) SaveAll(ctx context.Context) error {
	f.calls.Add(1)
	if f.panic != nil {
		panic(f.panic)
	}
	return f.err
}

type fakeDiagnostics []FileDiagnostics

func (f fakeDiagnostics) AllDiagnostics() []FileDiagnostics { return f }

func newTestServer(saver Saver, diags DiagnosticsProvider) *Server {
	return New(saver, diags, Options{
		Addr:   "127.0.0.1:0",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func serve(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestNotFound(t *testing.T) {
	srv := newTestServer(&fakeSaver{}, fakeDiagnostics{})
	cases := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/saveAll"},
		{http.MethodPut, "/saveAll"},
		{http.MethodPost, "/diagnostics"},
		{http.MethodDelete, "/diagnostics"},
		{http.MethodGet, "/"},
		{http.MethodPost, "/saveall"},
		{http.MethodPost, "/saveAll?force=1"},
		{http.MethodGet, "/diagnostics/"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			rec := serve(t, srv, tc.method, tc.target)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "Not found", rec.Body.String())
		})
	}
}

func TestNoURL(t *testing.T) {
	saver := &fakeSaver{}
	srv := newTestServer(saver, fakeDiagnostics{})
	req := httptest.NewRequest(http.MethodPost, "/saveAll", nil)
	req.URL = nil
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No URL", rec.Body.String())
	assert.Zero(t, saver.calls.Load())
}

func TestSaveAll(t *testing.T) {
	saver := &fakeSaver{}
	srv := newTestServer(saver, fakeDiagnostics{})
	req := httptest.NewRequest(http.MethodPost, "/saveAll", strings.NewReader("ignored body"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, int32(1), saver.calls.Load())
}

func TestSaveAllError(t *testing.T) {
	srv := newTestServer(&fakeSaver{err: errors.New("disk full")}, fakeDiagnostics{})
	rec := serve(t, srv, http.MethodPost, "/saveAll")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "disk full", rec.Body.String())
}

func TestSaveAllPanic(t *testing.T) {
	srv := newTestServer(&fakeSaver{panic: "boom"}, fakeDiagnostics{})
	rec := serve(t, srv, http.MethodPost, "/saveAll")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "boom", rec.Body.String())

	srv = newTestServer(&fakeSaver{panic: errors.New("permission denied")}, fakeDiagnostics{})
	rec = serve(t, srv, http.MethodPost, "/saveAll")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "permission denied", rec.Body.String())
}

func TestDiagnosticsEmpty(t *testing.T) {
	srv := newTestServer(&fakeSaver{}, fakeDiagnostics{})
	rec := serve(t, srv, http.MethodGet, "/diagnostics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "[]", rec.Body.String())
}

func TestDiagnosticsDropsCleanDocuments(t *testing.T) {
	srv := newTestServer(&fakeSaver{}, fakeDiagnostics{
		{URI: "file:///tmp/clean.ts"},
		{URI: "file:///tmp/empty.ts", Diagnostics: []lsp.Diagnostic{}},
	})
	rec := serve(t, srv, http.MethodGet, "/diagnostics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestDiagnosticsSingle(t *testing.T) {
	srv := newTestServer(&fakeSaver{}, fakeDiagnostics{
		{
			URI: "file:///tmp/project/index.ts",
			Diagnostics: []lsp.Diagnostic{{
				Message:  "unused var",
				Severity: lsp.SeverityError,
				Range: lsp.Range{
					Start: lsp.Position{Line: 0, Character: 0},
					End:   lsp.Position{Line: 0, Character: 5},
				},
				Source: "linter",
			}},
		},
	})
	rec := serve(t, srv, http.MethodGet, "/diagnostics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "file:///tmp/project/index.ts", out[0]["uri"])
	diags, ok := out[0]["diagnostics"].([]any)
	require.True(t, ok)
	require.Len(t, diags, 1)
	assert.Equal(t, map[string]any{
		"message":  "unused var",
		"severity": float64(1),
		"range": map[string]any{
			"start": map[string]any{"line": float64(0), "character": float64(0)},
			"end":   map[string]any{"line": float64(0), "character": float64(5)},
		},
		"source": "linter",
	}, diags[0])
}

func TestDiagnosticsOmitsEmptySource(t *testing.T) {
	srv := newTestServer(&fakeSaver{}, fakeDiagnostics{
		{
			URI: "file:///tmp/a.ts",
			Diagnostics: []lsp.Diagnostic{{
				Message:  "no source",
				Severity: lsp.SeverityWarning,
				Range: lsp.Range{
					Start: lsp.Position{Line: 2, Character: 4},
					End:   lsp.Position{Line: 2, Character: 9},
				},
			}},
		},
		{
			URI: "file:///tmp/b.ts",
			Diagnostics: []lsp.Diagnostic{{
				Message:  "second file",
				Severity: lsp.SeverityHint,
				Source:   "whitespace",
			}},
		},
	})
	rec := serve(t, srv, http.MethodGet, "/diagnostics")
	require.Equal(t, http.StatusOK, rec.Code)
	autogold.Expect(`[{"uri":"file:///tmp/a.ts","diagnostics":[{"message":"no source","severity":2,"range":{"start":{"line":2,"character":4},"end":{"line":2,"character":9}}}]},{"uri":"file:///tmp/b.ts","diagnostics":[{"message":"second file","severity":4,"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":0}},"source":"whitespace"}]}]`).Equal(t, rec.Body.String())
}

func TestToResponse(t *testing.T) {
	got := ToResponse([]FileDiagnostics{
		{URI: "file:///a.ts", Diagnostics: []lsp.Diagnostic{{Message: "m", Severity: lsp.SeverityInformation, Source: "s"}}},
		{URI: "file:///b.ts"},
	})
	autogold.Expect([]DocumentDiagnostics{{
		URI: "file:///a.ts",
		Diagnostics: []DiagnosticRecord{{
			Message:  "m",
			Severity: 3,
			Source:   "s",
		}},
	}}).Equal(t, got)
}

func TestStartAndClose(t *testing.T) {
	srv := newTestServer(&fakeSaver{}, fakeDiagnostics{})
	require.Nil(t, srv.Addr())
	require.NoError(t, srv.Start(context.Background()))
	addr := srv.Addr().String()

	resp, err := http.Post("http://"+addr+"/saveAll", "text/plain", nil)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get("http://" + addr + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close())

	_, err = net.Dial("tcp", addr)
	assert.Error(t, err)
}

func TestListenerSurvivesFailures(t *testing.T) {
	saver := &fakeSaver{err: errors.New("disk full")}
	srv := newTestServer(saver, fakeDiagnostics{})
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Close()
	url := "http://" + srv.Addr().String() + "/saveAll"

	for i := 0; i < 3; i++ {
		resp, err := http.Post(url, "text/plain", nil)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "disk full", string(body))
	}
	assert.Equal(t, int32(3), saver.calls.Load())
}

func TestConcurrentClose(t *testing.T) {
	srv := newTestServer(&fakeSaver{}, fakeDiagnostics{})
	require.NoError(t, srv.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, srv.Close())
		}()
	}
	wg.Wait()
}

func TestStartAfterClose(t *testing.T) {
	srv := newTestServer(&fakeSaver{}, fakeDiagnostics{})
	require.NoError(t, srv.Close())
	assert.Error(t, srv.Start(context.Background()))
	assert.Nil(t, srv.Addr())
}

func TestStartTwice(t *testing.T) {
	srv := newTestServer(&fakeSaver{}, fakeDiagnostics{})
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Close()
	assert.Error(t, srv.Start(context.Background()))
}

func TestStartAddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := New(&fakeSaver{}, fakeDiagnostics{}, Options{
		Addr:   ln.Addr().String(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	assert.Error(t, srv.Start(context.Background()))
	assert.NoError(t, srv.Close())
}
