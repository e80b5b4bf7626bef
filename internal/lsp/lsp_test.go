package lsp

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"go.lsp.dev/protocol"
)

func TestDocumentManagerOpenGetClose(t *testing.T) {
	dm := NewDocumentManager()

	doc := dm.Open("file:///test.lo", "class Main is end", 1)
	if doc == nil {
		t.Fatal("expected document to be created")
	}
	if doc.URI != "file:///test.lo" || doc.Version != 1 {
		t.Errorf("unexpected URI/version: %+v", doc)
	}

	if got := dm.Get("file:///test.lo"); got == nil {
		t.Fatal("expected Get to find the opened document")
	}
	if got := dm.Get("file:///missing.lo"); got != nil {
		t.Error("expected Get to return nil for an unopened document")
	}

	dm.Close("file:///test.lo")
	if got := dm.Get("file:///test.lo"); got != nil {
		t.Error("expected document to be gone after Close")
	}
}

func TestDocumentParseCleanProgram(t *testing.T) {
	dm := NewDocumentManager()
	doc := dm.Open("file:///clean.lo", "class Main is var result : Integer(42) end", 1)

	if doc.AST == nil {
		t.Fatal("expected a clean program to parse to a non-nil AST")
	}
	if len(doc.ParseErrs) != 0 {
		t.Errorf("expected no parse errors, got %v", doc.ParseErrs)
	}
	if doc.SemaErr != nil {
		t.Errorf("expected no semantic error, got %v", doc.SemaErr)
	}
}

func TestDocumentParseSyntaxError(t *testing.T) {
	dm := NewDocumentManager()
	doc := dm.Open("file:///broken.lo", "class Main is var", 1)

	if len(doc.ParseErrs) == 0 {
		t.Fatal("expected parse errors on malformed input")
	}
	if doc.AST != nil {
		t.Error("expected no AST when parsing failed")
	}
}

func TestDocumentParseSemanticError(t *testing.T) {
	dm := NewDocumentManager()
	doc := dm.Open("file:///cycle.lo", "class A extends B is end\nclass B extends A is end", 1)

	if len(doc.ParseErrs) != 0 {
		t.Fatalf("expected clean parse, got %v", doc.ParseErrs)
	}
	if doc.SemaErr == nil {
		t.Fatal("expected an inheritance-cycle semantic error")
	}
}

func TestDocumentUpdateContentReparses(t *testing.T) {
	dm := NewDocumentManager()
	dm.Open("file:///x.lo", "class Main is var", 1)

	dm.UpdateContent("file:///x.lo", "class Main is var result : Integer(1) end")
	doc := dm.Get("file:///x.lo")
	if doc.Version != 2 {
		t.Errorf("expected version to advance to 2, got %d", doc.Version)
	}
	if len(doc.ParseErrs) != 0 {
		t.Errorf("expected the corrected content to parse cleanly, got %v", doc.ParseErrs)
	}
}

// getDiagnostics round trip: a clean document publishes no diagnostics,
// a broken one publishes exactly one carrying the failure's message.
func TestGetDiagnosticsRoundTrip(t *testing.T) {
	s := &Server{documents: NewDocumentManager()}

	clean := s.documents.Open("file:///clean.lo", "class Main is var result : Integer(42) end", 1)
	if diags := s.getDiagnostics(clean); len(diags) != 0 {
		t.Errorf("expected no diagnostics for a clean document, got %v", diags)
	}

	broken := s.documents.Open("file:///broken.lo", "class Main is var", 1)
	diags := s.getDiagnostics(broken)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic for a syntax error, got %d: %v", len(diags), diags)
	}
	if diags[0].Severity != protocol.DiagnosticSeverityError {
		t.Errorf("expected severity Error, got %v", diags[0].Severity)
	}

	cycle := s.documents.Open("file:///cycle.lo", "class A extends B is end\nclass B extends A is end", 1)
	diags = s.getDiagnostics(cycle)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic for a semantic error, got %d: %v", len(diags), diags)
	}
	if diags[0].Code == "" {
		t.Error("expected a semantic diagnostic to carry its Kind as Code")
	}
}

func TestGetDiagnosticsTooLarge(t *testing.T) {
	s := &Server{documents: NewDocumentManager()}
	huge := strings.Repeat("x", maxDocumentSize+1)
	doc := s.documents.Open("file:///huge.lo", huge, 1)

	diags := s.getDiagnostics(doc)
	if len(diags) != 1 || diags[0].Message == "" {
		t.Fatalf("expected a single too-large diagnostic, got %v", diags)
	}
}

func TestApplyTextEditReplace(t *testing.T) {
	content := "line1\nline2\nline3"
	rang := protocol.Range{
		Start: protocol.Position{Line: 1, Character: 0},
		End:   protocol.Position{Line: 1, Character: 5},
	}
	if got := applyTextEdit(content, rang, "modified"); got != "line1\nmodified\nline3" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestApplyTextEditInsert(t *testing.T) {
	content := "line1\nline2"
	rang := protocol.Range{
		Start: protocol.Position{Line: 1, Character: 0},
		End:   protocol.Position{Line: 1, Character: 0},
	}
	if got := applyTextEdit(content, rang, "NEW: "); got != "line1\nNEW: line2" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		content string
		want    []string
	}{
		{"a\nb", []string{"a", "b"}},
		{"a\r\nb", []string{"a", "b"}},
		{"a\rb", []string{"a", "b"}},
		{"single", []string{"single"}},
	}
	for _, tt := range tests {
		got := splitLines(tt.content)
		if len(got) != len(tt.want) {
			t.Fatalf("splitLines(%q) = %v, want %v", tt.content, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitLines(%q)[%d] = %q, want %q", tt.content, i, got[i], tt.want[i])
			}
		}
	}
}

func TestUriToPath(t *testing.T) {
	path := uriToPath("file:///home/user/test.lo")
	if strings.HasPrefix(path, "file://") {
		t.Errorf("expected the file:// scheme stripped, got %q", path)
	}
	if !strings.Contains(path, "test.lo") {
		t.Errorf("expected the filename preserved, got %q", path)
	}

	// A non-file URI parses without an error and falls back to itself.
	if got := uriToPath("not a uri at all"); got == "" {
		t.Error("expected a non-empty fallback for an unparseable URI")
	}
}

// Content-Length framing round trip: a message written via sendMessage
// is exactly what readMessage reads back off the same bytes.
func TestContentLengthFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	s := &Server{documents: NewDocumentManager(), writer: &buf}

	if err := s.sendMessage(map[string]interface{}{"jsonrpc": "2.0", "method": "initialized"}); err != nil {
		t.Fatalf("sendMessage: %v", err)
	}

	reader := &Server{reader: bufio.NewReader(bytes.NewReader(buf.Bytes()))}
	msg, err := reader.readMessage()
	if err != nil {
		t.Fatalf("readMessage: %v", err)
	}
	if !strings.Contains(string(msg), `"method":"initialized"`) {
		t.Errorf("expected the round-tripped message to contain the method, got %s", msg)
	}
}

func TestReadMessageMissingContentLength(t *testing.T) {
	s := &Server{reader: bufio.NewReader(strings.NewReader("\r\n"))}
	if _, err := s.readMessage(); err == nil {
		t.Error("expected an error when Content-Length is missing")
	}
}

func TestHandleMessageDispatchesDidOpen(t *testing.T) {
	var buf bytes.Buffer
	s := &Server{documents: NewDocumentManager(), writer: &buf}

	params := fmt.Sprintf(`{"textDocument":{"uri":"file:///t.lo","languageId":"languageo","version":1,"text":%q}}`,
		"class Main is var result : Integer(42) end")
	msg := fmt.Sprintf(`{"jsonrpc":"2.0","method":"textDocument/didOpen","params":%s}`, params)

	s.handleMessage([]byte(msg))

	if doc := s.documents.Get("file:///t.lo"); doc == nil {
		t.Fatal("expected didOpen to register the document")
	}
	if !strings.Contains(buf.String(), "publishDiagnostics") {
		t.Errorf("expected a publishDiagnostics notification to be sent, got %s", buf.String())
	}
}
