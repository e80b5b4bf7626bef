// Package lsp implements the minimal diagnostics-only language server
// of SPEC_FULL.md §13: LSP-over-stdio with Content-Length framing,
// republishing the compiler's own parse/semantic errors as
// textDocument/publishDiagnostics notifications on open/change/save.
// Grounded on the teacher's internal/lsp/server.go transport and
// message-dispatch shape; every non-diagnostic provider (hover,
// completion, rename, workspace symbols, semantic tokens, call/type
// hierarchy, ...) is dropped — see DESIGN.md for the justification.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.lsp.dev/protocol"
)

// Server is one LSP-over-stdio session.
type Server struct {
	documents *DocumentManager

	logFile *os.File
	logMu   sync.Mutex

	reader *bufio.Reader
	writer io.Writer
	mu     sync.Mutex

	shutdown bool
}

// NewServer creates a server reading requests from stdin and writing
// responses to stdout. logPath, if non-empty, receives a plain-text
// trace of every message exchanged.
func NewServer(logPath string) *Server {
	s := &Server{
		documents: NewDocumentManager(),
		reader:    bufio.NewReader(os.Stdin),
		writer:    os.Stdout,
	}
	if logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			s.logFile = f
		}
	}
	return s
}

// Run drives the read-dispatch loop until the client disconnects, the
// context is canceled, or an `exit` notification arrives.
func (s *Server) Run(ctx context.Context) error {
	s.log("languageols started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := s.readMessage()
		if err != nil {
			if err == io.EOF {
				s.log("client disconnected")
				return nil
			}
			s.log("error reading message: %v", err)
			continue
		}

		s.handleMessage(msg)

		if s.shutdown {
			s.log("server shutdown")
			return nil
		}
	}
}

func (s *Server) readMessage() ([]byte, error) {
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			lengthStr := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			contentLength, err = strconv.Atoi(lengthStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %s", lengthStr)
			}
		}
	}
	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	content := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, content); err != nil {
		return nil, err
	}
	s.log("recv: %s", string(content))
	return content, nil
}

func (s *Server) sendMessage(msg interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(content))
	s.log("send: %s", string(content))
	if _, err := s.writer.Write([]byte(header)); err != nil {
		return err
	}
	_, err = s.writer.Write(content)
	return err
}

func (s *Server) handleMessage(msg []byte) {
	var base struct {
		ID     json.RawMessage `json:"id,omitempty"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params,omitempty"`
	}
	if err := json.Unmarshal(msg, &base); err != nil {
		s.log("error parsing message: %v", err)
		return
	}

	switch base.Method {
	case "initialize":
		s.handleInitialize(base.ID)
	case "initialized":
		// no workspace indexing to kick off
	case "shutdown":
		s.sendResult(base.ID, nil)
	case "exit":
		s.shutdown = true
	case "textDocument/didOpen":
		s.handleDidOpen(base.Params)
	case "textDocument/didChange":
		s.handleDidChange(base.Params)
	case "textDocument/didClose":
		s.handleDidClose(base.Params)
	case "textDocument/didSave":
		s.handleDidSave(base.Params)
	case "$/cancelRequest":
		// no long-running requests to cancel
	default:
		s.log("unhandled method: %s", base.Method)
		if base.ID != nil {
			s.sendError(base.ID, -32601, "Method not found: "+base.Method)
		}
	}
}

func (s *Server) handleInitialize(id json.RawMessage) {
	result := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"textDocumentSync": map[string]interface{}{
				"openClose": true,
				"change":    1, // TextDocumentSyncKindFull
				"save":      map[string]interface{}{"includeText": true},
			},
		},
		"serverInfo": map[string]interface{}{
			"name":    "languageols",
			"version": "0.1.0",
		},
	}
	s.sendResult(id, result)
}

func (s *Server) handleDidOpen(params json.RawMessage) {
	var p protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.log("didOpen: %v", err)
		return
	}
	docURI := string(p.TextDocument.URI)
	s.documents.Open(docURI, p.TextDocument.Text, int(p.TextDocument.Version))
	s.publishDiagnostics(docURI)
}

func (s *Server) handleDidChange(params json.RawMessage) {
	var p protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.log("didChange: %v", err)
		return
	}
	docURI := string(p.TextDocument.URI)
	for _, change := range p.ContentChanges {
		s.documents.ApplyChange(docURI, change, int(p.TextDocument.Version))
	}
	s.publishDiagnostics(docURI)
}

func (s *Server) handleDidClose(params json.RawMessage) {
	var p protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.log("didClose: %v", err)
		return
	}
	docURI := string(p.TextDocument.URI)
	s.documents.Close(docURI)
	s.sendNotification("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         p.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
}

func (s *Server) handleDidSave(params json.RawMessage) {
	var p protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.log("didSave: %v", err)
		return
	}
	docURI := string(p.TextDocument.URI)
	if p.Text != "" {
		s.documents.UpdateContent(docURI, p.Text)
	}
	s.publishDiagnostics(docURI)
}

func (s *Server) publishDiagnostics(docURI string) {
	doc := s.documents.Get(docURI)
	if doc == nil {
		return
	}
	s.sendNotification("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(docURI),
		Version:     uint32(doc.Version),
		Diagnostics: s.getDiagnostics(doc),
	})
}

func (s *Server) sendResult(id json.RawMessage, result interface{}) {
	s.sendMessage(map[string]interface{}{"jsonrpc": "2.0", "id": id, "result": result})
}

func (s *Server) sendError(id json.RawMessage, code int, message string) {
	s.sendMessage(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]interface{}{"code": code, "message": message},
	})
}

func (s *Server) sendNotification(method string, params interface{}) {
	s.sendMessage(map[string]interface{}{"jsonrpc": "2.0", "method": method, "params": params})
}

func (s *Server) log(format string, args ...interface{}) {
	if s.logFile == nil {
		return
	}
	s.logMu.Lock()
	defer s.logMu.Unlock()
	fmt.Fprintf(s.logFile, "[languageols] %s\n", fmt.Sprintf(format, args...))
}
