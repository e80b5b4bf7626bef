package lsp

import (
	"go.lsp.dev/protocol"
)

// getDiagnostics translates a Document's cached parse/analysis result
// into the LSP diagnostics list published for it. Syntax errors and
// the semantic error are reported; a document with neither is clean.
func (s *Server) getDiagnostics(doc *Document) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic

	if doc.TooLarge {
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    wholeLineRange(0, 0),
			Severity: protocol.DiagnosticSeverityError,
			Source:   "languageo",
			Message:  "document too large to analyze",
		})
		return diagnostics
	}

	for _, err := range doc.ParseErrs {
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    wholeLineRange(err.Pos.Line-1, err.Pos.Column-1),
			Severity: protocol.DiagnosticSeverityError,
			Source:   "languageo",
			Message:  err.Message,
		})
	}

	if doc.SemaErr != nil {
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    wholeLineRange(doc.SemaErr.Pos.Line-1, doc.SemaErr.Pos.Column-1),
			Severity: protocol.DiagnosticSeverityError,
			Code:     doc.SemaErr.Kind.String(),
			Source:   "languageo",
			Message:  doc.SemaErr.Message,
		})
	}

	return diagnostics
}

// wholeLineRange approximates an error's extent as ten characters from
// its reported column — the analyzer records a point, not a span.
func wholeLineRange(line, column int) protocol.Range {
	if line < 0 {
		line = 0
	}
	if column < 0 {
		column = 0
	}
	return protocol.Range{
		Start: protocol.Position{Line: uint32(line), Character: uint32(column)},
		End:   protocol.Position{Line: uint32(line), Character: uint32(column + 10)},
	}
}
