package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/corymhall/editorbridge/bridge"
	"github.com/corymhall/editorbridge/lsp"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// styles holds the formatters for human diagnostics output.
type styles struct {
	uri      *color.Color
	severity map[lsp.DiagnosticSeverity]*color.Color
	source   *color.Color
}

func newStyles(enabled bool) *styles {
	s := &styles{
		uri: color.New(color.Bold),
		severity: map[lsp.DiagnosticSeverity]*color.Color{
			lsp.SeverityError:       color.New(color.FgRed, color.Bold),
			lsp.SeverityWarning:     color.New(color.FgYellow),
			lsp.SeverityInformation: color.New(color.FgHiBlue),
			lsp.SeverityHint:        color.New(color.FgHiBlack),
		},
		source: color.New(color.FgHiBlack),
	}
	if !enabled {
		s.uri.DisableColor()
		s.source.DisableColor()
		for _, c := range s.severity {
			c.DisableColor()
		}
	}
	return s
}

func (s *styles) forSeverity(sev lsp.DiagnosticSeverity) *color.Color {
	if c, ok := s.severity[sev]; ok {
		return c
	}
	return s.source
}

func newDiagnosticsCmd(a *app) *cobra.Command {
	var (
		asJSON  bool
		noColor bool
	)
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Print the running editor's current diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := a.client().Diagnostics(cmd.Context())
			if err != nil {
				return fmt.Errorf("diagnostics: %w", err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(docs)
			}
			return printDiagnostics(cmd.OutOrStdout(), docs, newStyles(!noColor && !color.NoColor))
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

// printDiagnostics writes one line per diagnostic, grouped by document.
// Lines and columns are printed 1-based.
func printDiagnostics(w io.Writer, docs []bridge.DocumentDiagnostics, s *styles) error {
	if len(docs) == 0 {
		_, err := fmt.Fprintln(w, "No diagnostics.")
		return err
	}
	for _, doc := range docs {
		if _, err := s.uri.Fprintln(w, doc.URI); err != nil {
			return err
		}
		for _, d := range doc.Diagnostics {
			source := ""
			if d.Source != "" {
				source = " " + s.source.Sprintf("[%s]", d.Source)
			}
			if _, err := fmt.Fprintf(w, "  %d:%d %s %s%s\n",
				d.Range.Start.Line+1,
				d.Range.Start.Character+1,
				s.forSeverity(d.Severity).Sprint(d.Severity.String()),
				d.Message,
				source,
			); err != nil {
				return err
			}
		}
	}
	return nil
}
