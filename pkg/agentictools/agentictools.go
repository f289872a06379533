// Package agentictools implements C8: detecting which AI coding
// assistants are installed on this machine by probing their known
// per-platform state directories.
package agentictools

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/bluekornchips/gandalf/pkg/logger"
)

var toolsLog = logger.New("agentictools")

// Name identifies a supported agentic tool.
type Name string

const (
	Cursor      Name = "cursor"
	ClaudeCode  Name = "claude-code"
	Windsurf    Name = "windsurf"
	fallbackTool     = Cursor
)

// Tool is a detected assistant with its resolved state directory.
type Tool struct {
	Name      Name
	StateDir  string
	HasVSCDB  bool // Cursor/Windsurf: a *.vscdb database was found under StateDir
}

// Registry memoizes detection for the process lifetime (§4.9); a single
// Registry should be constructed once at server startup.
type Registry struct {
	once  sync.Once
	tools []Tool
}

// New returns an unprimed Registry; the first call to Detect performs
// the actual filesystem probing.
func New() *Registry {
	return &Registry{}
}

// Detect returns every assistant found on this machine. When none is
// found, it returns a single fallback entry (Cursor) with no resolved
// state directory, so downstream code always has a target tool (§4.9).
func (r *Registry) Detect() []Tool {
	r.once.Do(func() {
		r.tools = probeAll()
		if len(r.tools) == 0 {
			toolsLog.Printf("no agentic tool detected, falling back to %s", fallbackTool)
			r.tools = []Tool{{Name: fallbackTool}}
		}
	})
	return r.tools
}

func probeAll() []Tool {
	home, err := os.UserHomeDir()
	if err != nil {
		toolsLog.Printf("could not resolve home directory: %v", err)
		return nil
	}

	var found []Tool
	if t, ok := probeCursor(home); ok {
		found = append(found, t)
	}
	if t, ok := probeClaudeCode(home); ok {
		found = append(found, t)
	}
	if t, ok := probeWindsurf(home); ok {
		found = append(found, t)
	}
	return found
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func probeCursor(home string) (Tool, bool) {
	candidates := []string{filepath.Join(home, ".cursor")}
	switch runtime.GOOS {
	case "darwin":
		candidates = append(candidates, filepath.Join(home, "Library", "Application Support", "Cursor", "workspaceStorage"))
	case "linux":
		candidates = append(candidates, filepath.Join(home, ".config", "Cursor", "User"))
	}

	for _, dir := range candidates {
		if !isDir(dir) {
			continue
		}
		return Tool{Name: Cursor, StateDir: dir, HasVSCDB: containsVSCDB(dir)}, true
	}
	return Tool{}, false
}

func probeClaudeCode(home string) (Tool, bool) {
	candidates := []string{
		filepath.Join(home, ".claude"),
		filepath.Join(home, ".config", "claude"),
	}
	for _, dir := range candidates {
		if isDir(dir) {
			return Tool{Name: ClaudeCode, StateDir: dir}, true
		}
	}
	return Tool{}, false
}

func probeWindsurf(home string) (Tool, bool) {
	dir := filepath.Join(home, ".codeium", "windsurf")
	if !isDir(dir) {
		return Tool{}, false
	}
	return Tool{Name: Windsurf, StateDir: dir, HasVSCDB: containsVSCDB(dir)}, true
}

// containsVSCDB does a shallow, bounded-depth scan for *.vscdb files,
// which is a strong signal the directory is an active workspace store
// (§4.9). It never descends more than two levels to keep detection fast.
func containsVSCDB(root string) bool {
	return scanForVSCDB(root, 2)
}

func scanForVSCDB(dir string, depth int) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".vscdb" {
			return true
		}
		if e.IsDir() && depth > 0 {
			if scanForVSCDB(filepath.Join(dir, e.Name()), depth-1) {
				return true
			}
		}
	}
	return false
}
