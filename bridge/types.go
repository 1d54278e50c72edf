package bridge

import "github.com/corymhall/editorbridge/lsp"

// DiagnosticRecord is the wire form of one diagnostic.
type DiagnosticRecord struct {
	Message  string                 `json:"message"`
	Severity lsp.DiagnosticSeverity `json:"severity"`
	Range    lsp.Range              `json:"range"`
	Source   string                 `json:"source,omitempty"`
}

// DocumentDiagnostics is one element of the GET /diagnostics response.
type DocumentDiagnostics struct {
	URI         string             `json:"uri"`
	Diagnostics []DiagnosticRecord `json:"diagnostics"`
}

// ToResponse maps a host snapshot to the response body. Documents without
// diagnostics are dropped and the host's ordering is kept. The result is
// never nil so that an empty snapshot encodes as [].
func ToResponse(files []FileDiagnostics) []DocumentDiagnostics {
	out := make([]DocumentDiagnostics, 0, len(files))
	for _, f := range files {
		if len(f.Diagnostics) == 0 {
			continue
		}
		records := make([]DiagnosticRecord, 0, len(f.Diagnostics))
		for _, d := range f.Diagnostics {
			records = append(records, DiagnosticRecord{
				Message:  d.Message,
				Severity: d.Severity,
				Range:    d.Range,
				Source:   d.Source,
			})
		}
		out = append(out, DocumentDiagnostics{
			URI:         string(f.URI),
			Diagnostics: records,
		})
	}
	return out
}
