package lsp

import (
	"strings"
	"sync"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/tangzhangming/nova/internal/ast"
	"github.com/tangzhangming/nova/internal/errors"
	"github.com/tangzhangming/nova/internal/parser"
	"github.com/tangzhangming/nova/internal/sema"
)

// maxDocumentSize bounds how large a buffer gets reparsed on every
// keystroke; beyond it the document is reported unparseable rather
// than re-running the full pipeline on every edit.
const maxDocumentSize = 500 * 1024

// Document is one open editor buffer: its text, and the cached result
// of running it through the lexer/parser/analyzer pipeline the CLI
// itself uses.
type Document struct {
	URI     string
	Content string
	Version int
	Lines   []string

	AST        *ast.Program
	ParseErrs  []parser.Error
	SemaErr    *errors.CompileError
	TooLarge   bool

	dirty bool
}

// DocumentManager tracks every buffer the client has opened.
type DocumentManager struct {
	documents map[string]*Document
	mu        sync.RWMutex
}

func NewDocumentManager() *DocumentManager {
	return &DocumentManager{documents: make(map[string]*Document)}
}

func (dm *DocumentManager) Open(uri, content string, version int) *Document {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	doc := &Document{URI: uri, Content: content, Version: version, Lines: splitLines(content), dirty: true}
	doc.parse()
	dm.documents[uri] = doc
	return doc
}

func (dm *DocumentManager) Close(uri string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	delete(dm.documents, uri)
}

func (dm *DocumentManager) Get(uri string) *Document {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.documents[uri]
}

func (dm *DocumentManager) UpdateContent(uri, content string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	doc, ok := dm.documents[uri]
	if !ok {
		return
	}
	doc.Content = content
	doc.Lines = splitLines(content)
	doc.Version++
	doc.dirty = true
	doc.parse()
}

func (dm *DocumentManager) ApplyChange(uri string, change protocol.TextDocumentContentChangeEvent, version int) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	doc, ok := dm.documents[uri]
	if !ok {
		return
	}

	isFullReplace := change.Range.Start.Line == 0 &&
		change.Range.Start.Character == 0 &&
		change.Range.End.Line == 0 &&
		change.Range.End.Character == 0 &&
		change.RangeLength == 0

	if isFullReplace {
		doc.Content = change.Text
	} else {
		doc.Content = applyTextEdit(doc.Content, change.Range, change.Text)
	}
	doc.Lines = splitLines(doc.Content)
	doc.Version = version
	doc.dirty = true
	doc.parse()
}

// parse reruns the compiler's own lexer/parser/analyzer over the
// buffer and caches whatever it finds — a syntax error list, a single
// semantic CompileError, or a clean program — for getDiagnostics to
// translate into LSP diagnostics.
func (doc *Document) parse() {
	if !doc.dirty {
		return
	}
	defer func() { doc.dirty = false }()

	doc.AST, doc.ParseErrs, doc.SemaErr, doc.TooLarge = nil, nil, nil, false

	if len(doc.Content) > maxDocumentSize {
		doc.TooLarge = true
		return
	}

	filename := uriToPath(doc.URI)
	p := parser.New(doc.Content, filename)
	prog := p.Parse()
	doc.ParseErrs = p.Errors()
	if p.HasErrors() {
		return
	}
	doc.AST = prog

	analyzer := sema.New(nil)
	_, semaErr := analyzer.Analyze(prog)
	doc.SemaErr = semaErr
}

func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.Split(content, "\n")
}

// applyTextEdit patches content with one LSP content-change range.
func applyTextEdit(content string, rang protocol.Range, newText string) string {
	lines := splitLines(content)

	startLine := clampLine(int(rang.Start.Line), len(lines))
	endLine := clampLine(int(rang.End.Line), len(lines))

	startLineText := lineOrEmpty(lines, startLine)
	endLineText := lineOrEmpty(lines, endLine)

	startChar := clampChar(int(rang.Start.Character), len(startLineText))
	endChar := clampChar(int(rang.End.Character), len(endLineText))

	var result strings.Builder
	for i := 0; i < startLine; i++ {
		result.WriteString(lines[i])
		result.WriteString("\n")
	}
	result.WriteString(startLineText[:startChar])
	result.WriteString(newText)
	result.WriteString(endLineText[endChar:])
	for i := endLine + 1; i < len(lines); i++ {
		result.WriteString("\n")
		result.WriteString(lines[i])
	}
	return result.String()
}

func clampLine(line, count int) int {
	if line >= count {
		return count - 1
	}
	if line < 0 {
		return 0
	}
	return line
}

func lineOrEmpty(lines []string, i int) string {
	if i < 0 || i >= len(lines) {
		return ""
	}
	return lines[i]
}

func clampChar(ch, lineLen int) int {
	if ch > lineLen {
		return lineLen
	}
	if ch < 0 {
		return 0
	}
	return ch
}

// uriToPath extracts a filesystem path from a file:// document URI for
// the diagnostics the analyzer attaches to CompileError.Pos.Filename;
// a bare token.Position has no URI concept of its own.
func uriToPath(docURI string) string {
	u, err := uri.Parse(docURI)
	if err != nil {
		return docURI
	}
	return u.Filename()
}
