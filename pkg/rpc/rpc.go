// Package rpc implements C12: a line-delimited JSON-RPC 2.0 transport
// over stdio. One JSON object per line, UTF-8, read loop on stdin,
// responses and notifications interleaved on stdout (§4.1, §6).
package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bluekornchips/gandalf/pkg/logger"
	"github.com/bluekornchips/gandalf/pkg/sessionlog"
)

var rpcLog = logger.New("rpc")

// Standard JSON-RPC 2.0 error codes (§7).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is an inbound JSON-RPC request or notification (ID is nil for
// a notification from the client, which this server does not expect on
// method calls but tolerates).
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outbound JSON-RPC response: exactly one of Result or
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC protocol-level error (§7 kind 1). Tool-call errors
// are never represented this way; they are successful responses whose
// result carries isError:true.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Notification is an outbound server-initiated message with no ID, used
// here exclusively for notifications/message (§6).
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// LogNotificationParams is the params payload for notifications/message.
type LogNotificationParams struct {
	Level     string          `json:"level"`
	Logger    string          `json:"logger"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Handler processes one parsed request and returns its result payload
// (already JSON-marshalable) or a protocol-level error. Tool-call-level
// failures are encoded by the caller inside the result, not here.
type Handler func(method string, params json.RawMessage) (result any, rpcErr *Error)

// Server reads one JSON object per line from r, dispatches each to
// handle, and writes responses to w. Writes are serialized so a
// notification emitted mid-handler never interleaves with a response's
// bytes (§4.1).
type Server struct {
	r          io.Reader
	w          io.Writer
	handle     Handler
	writeMu    sync.Mutex
	sessionLog *sessionlog.Writer
}

// New builds a Server reading requests from r and writing responses/
// notifications to w.
func New(r io.Reader, w io.Writer, handle Handler) *Server {
	return &Server{r: r, w: w, handle: handle}
}

// SetSessionLog attaches a session log that mirrors every subsequent Log
// call to disk (§3 SessionLog, §6). Passing nil disables mirroring.
func (s *Server) SetSessionLog(w *sessionlog.Writer) {
	s.sessionLog = w
}

// Serve runs the read loop until r is exhausted (EOF) or returns a
// non-EOF error. Malformed lines produce a parse-error response and do
// not stop the loop (§7: protocol errors are non-fatal).
func (s *Server) Serve() error {
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// Copy: scanner.Bytes() is only valid until the next Scan call, and
		// the request is fully read before we act on it (§8 invariant).
		buf := make([]byte, len(line))
		copy(buf, line)
		s.handleLine(buf)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading request stream: %w", err)
	}
	return nil
}

func (s *Server) handleLine(line []byte) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.writeResponse(Response{
			JSONRPC: "2.0",
			ID:      json.RawMessage("null"),
			Error:   &Error{Code: CodeParseError, Message: "invalid JSON: " + err.Error()},
		})
		return
	}

	if req.Method == "" {
		s.writeResponse(Response{
			JSONRPC: "2.0",
			ID:      idOrNull(req.ID),
			Error:   &Error{Code: CodeInvalidRequest, Message: "missing method"},
		})
		return
	}

	result, rpcErr := s.handle(req.Method, req.Params)

	// A notification carries no ID; the server sends no reply, MCP-style.
	if len(req.ID) == 0 {
		if rpcErr != nil {
			rpcLog.Printf("notification %s failed: %s", req.Method, rpcErr.Message)
		}
		return
	}

	if rpcErr != nil {
		s.writeResponse(Response{JSONRPC: "2.0", ID: idOrNull(req.ID), Error: rpcErr})
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		s.writeResponse(Response{
			JSONRPC: "2.0",
			ID:      idOrNull(req.ID),
			Error:   &Error{Code: CodeInternalError, Message: "marshaling result: " + err.Error()},
		})
		return
	}

	s.writeResponse(Response{JSONRPC: "2.0", ID: idOrNull(req.ID), Result: payload})
}

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

func (s *Server) writeResponse(resp Response) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	blob, err := json.Marshal(resp)
	if err != nil {
		rpcLog.Printf("failed to marshal response: %v", err)
		return
	}
	if _, err := s.w.Write(append(blob, '\n')); err != nil {
		rpcLog.Printf("failed to write response: %v", err)
	}
}

// Notify emits a server-initiated notification (only notifications/message
// in this server, §6). Interleaves safely with response writes.
func (s *Server) Notify(method string, params any) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling notification params: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	blob, err := json.Marshal(Notification{JSONRPC: "2.0", Method: method, Params: payload})
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}
	_, err = s.w.Write(append(blob, '\n'))
	return err
}

// Log emits a notifications/message log event at level for the named
// logger (§6).
func (s *Server) Log(level, loggerName, message string) {
	params := LogNotificationParams{
		Level:     level,
		Logger:    loggerName,
		Message:   message,
		Timestamp: time.Now(),
	}
	if err := s.Notify("notifications/message", params); err != nil {
		rpcLog.Printf("failed to emit log notification: %v", err)
	}
	s.sessionLog.Write(params)
}
