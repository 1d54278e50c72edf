package server

import (
	"bytes"
	"context"
	"maps"
	"slices"
	"unicode/utf8"

	"github.com/corymhall/editorbridge/bridge"
	"github.com/corymhall/editorbridge/debug"
	"github.com/corymhall/editorbridge/lsp"
	"github.com/corymhall/editorbridge/parser"
)

// DiagnosticSource names the analyzer that produced a diagnostic.
type DiagnosticSource string

const (
	SyntaxSource     DiagnosticSource = "tree-sitter"
	WhitespaceSource DiagnosticSource = "whitespace"
)

// diagnoseDocument analyzes o, stores the result, and publishes it to the
// client.
func (s *server) diagnoseDocument(ctx context.Context, o *overlay) {
	diags := s.diagnose(ctx, o)
	if cur, ok := s.document(o.uri); !ok || cur.hash != o.hash {
		// closed or changed again while we were analyzing
		return
	}

	s.diagnosticsMu.Lock()
	s.diagnostics[o.uri] = diags
	s.diagnosticsMu.Unlock()

	s.publishDiagnostics(ctx, o.uri, o.version, diags)
}

// clearDiagnostics forgets the diagnostics of a closed document and tells
// the client to drop them.
func (s *server) clearDiagnostics(ctx context.Context, uri lsp.DocumentURI) {
	s.diagnosticsMu.Lock()
	_, had := s.diagnostics[uri]
	delete(s.diagnostics, uri)
	s.diagnosticsMu.Unlock()
	if had {
		s.publishDiagnostics(ctx, uri, 0, nil)
	}
}

func (s *server) publishDiagnostics(ctx context.Context, uri lsp.DocumentURI, version int32, diags []lsp.Diagnostic) {
	if diags == nil {
		diags = []lsp.Diagnostic{}
	}
	if err := s.client.PublishDiagnostics(ctx, &lsp.PublishDiagnosticsParams{
		URI:         uri,
		Version:     version,
		Diagnostics: diags,
	}); err != nil {
		debug.LogError(ctx, "error publishing diagnostics", err)
	}
}

func (s *server) diagnose(ctx context.Context, o *overlay) []lsp.Diagnostic {
	diags := []lsp.Diagnostic{}
	if s.checker.Supports(o.kind) {
		issues, err := s.checker.Check(o.kind, o.content)
		if err != nil {
			debug.LogError(ctx, "error checking syntax", err)
		}
		for _, issue := range issues {
			diags = append(diags, syntaxDiagnostic(o.content, issue))
		}
	}
	diags = append(diags, whitespaceDiagnostics(o.content)...)
	slices.SortStableFunc(diags, func(a, b lsp.Diagnostic) int {
		return comparePosition(a.Range.Start, b.Range.Start)
	})
	return diags
}

func syntaxDiagnostic(content []byte, issue parser.Issue) lsp.Diagnostic {
	return lsp.Diagnostic{
		Range: lsp.Range{
			Start: toPosition(content, issue.StartPoint.Row, issue.StartPoint.Column),
			End:   toPosition(content, issue.EndPoint.Row, issue.EndPoint.Column),
		},
		Severity: lsp.SeverityError,
		Source:   string(SyntaxSource),
		Message:  issue.Message,
	}
}

func whitespaceDiagnostics(content []byte) []lsp.Diagnostic {
	diags := []lsp.Diagnostic{}
	for i, line := range bytes.Split(content, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		trimmed := bytes.TrimRight(line, " \t")
		if len(trimmed) == len(line) {
			continue
		}
		row := int32(i)
		diags = append(diags, lsp.Diagnostic{
			Range: lsp.Range{
				Start: lsp.Position{Line: row, Character: utf16Len(trimmed)},
				End:   lsp.Position{Line: row, Character: utf16Len(line)},
			},
			Severity: lsp.SeverityWarning,
			Source:   string(WhitespaceSource),
			Message:  "trailing whitespace",
		})
	}
	return diags
}

// toPosition converts a tree-sitter point, whose column counts bytes, to an
// LSP position, whose character counts UTF-16 code units.
func toPosition(content []byte, row, byteColumn uint) lsp.Position {
	line := content
	for r := uint(0); r < row; r++ {
		i := bytes.IndexByte(line, '\n')
		if i < 0 {
			line = nil
			break
		}
		line = line[i+1:]
	}
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if byteColumn < uint(len(line)) {
		line = line[:byteColumn]
	}
	return lsp.Position{Line: int32(row), Character: utf16Len(line)}
}

func utf16Len(b []byte) int32 {
	var n int32
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
		b = b[size:]
	}
	return n
}

func comparePosition(a, b lsp.Position) int {
	if a.Line != b.Line {
		return int(a.Line - b.Line)
	}
	return int(a.Character - b.Character)
}

// AllDiagnostics returns the stored diagnostics of every open document that
// has at least one, ordered by URI.
func (s *server) AllDiagnostics() []bridge.FileDiagnostics {
	s.diagnosticsMu.Lock()
	defer s.diagnosticsMu.Unlock()

	out := []bridge.FileDiagnostics{}
	for _, uri := range slices.Sorted(maps.Keys(s.diagnostics)) {
		diags := s.diagnostics[uri]
		if len(diags) == 0 {
			continue
		}
		out = append(out, bridge.FileDiagnostics{
			URI:         uri,
			Diagnostics: slices.Clone(diags),
		})
	}
	return out
}
