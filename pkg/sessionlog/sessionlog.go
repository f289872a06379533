// Package sessionlog implements the SessionLog entity (§3): an on-disk
// mirror of every notifications/message event emitted during one gandalf
// process's lifetime, written under GANDALF_HOME/logs (§6), gated on
// MCP_DEBUG so a normal run pays no per-notification write cost.
package sessionlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bluekornchips/gandalf/pkg/constants"
)

// Enabled reports whether session logging was requested for this process.
func Enabled() bool {
	return os.Getenv(constants.EnvMCPDebug) != ""
}

// Writer appends JSON-encoded records to one session's log file. A nil
// *Writer is a valid no-op, so callers never need to branch on Enabled.
type Writer struct {
	mu sync.Mutex
	f  *os.File
}

// Open creates GANDALF_HOME/logs/gandalf_session_<sessionID>_<unixNano>.log
// and returns a Writer appending to it. Callers should only call Open when
// Enabled reports true.
func Open(home, sessionID string, startedAt time.Time) (*Writer, error) {
	dir := filepath.Join(home, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session log directory: %w", err)
	}

	name := fmt.Sprintf("gandalf_session_%s_%d.log", sessionID, startedAt.UnixNano())
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening session log: %w", err)
	}
	return &Writer{f: f}, nil
}

// Write appends record as one JSON line. A malformed record is logged to
// the file as a best-effort error string rather than dropped silently.
func (w *Writer) Write(record any) {
	if w == nil {
		return
	}

	blob, err := json.Marshal(record)
	if err != nil {
		blob, _ = json.Marshal(map[string]string{"sessionlog_marshal_error": err.Error()})
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.f.Write(append(blob, '\n'))
}

// Close closes the underlying file. A nil *Writer is a no-op.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	return w.f.Close()
}
