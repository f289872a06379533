// Package serverapp wires together every component (C1-C12) into the
// single *dispatch.Context and *rpc.Server a running gandalf process
// needs, and implements the "initialize" and "tools/list" MCP methods
// that sit outside the tool-dispatch boundary (§6).
package serverapp

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bluekornchips/gandalf/pkg/agentictools"
	"github.com/bluekornchips/gandalf/pkg/aggregator"
	"github.com/bluekornchips/gandalf/pkg/cache"
	"github.com/bluekornchips/gandalf/pkg/config"
	"github.com/bluekornchips/gandalf/pkg/constants"
	"github.com/bluekornchips/gandalf/pkg/conversation"
	"github.com/bluekornchips/gandalf/pkg/dispatch"
	"github.com/bluekornchips/gandalf/pkg/gitactivity"
	"github.com/bluekornchips/gandalf/pkg/logger"
	"github.com/bluekornchips/gandalf/pkg/project"
	"github.com/bluekornchips/gandalf/pkg/rpc"
	"github.com/bluekornchips/gandalf/pkg/sessionlog"
)

var appLog = logger.New("serverapp")

// App bundles every constructed component for one gandalf process.
type App struct {
	Home     string
	Context  *dispatch.Context
	Registry *dispatch.Registry
	Weights  *config.Watcher
}

// ResolveHome returns $GANDALF_HOME if set, else "~/.gandalf" (§9: the
// home directory name is fixed regardless of MCP_SERVER_NAME).
func ResolveHome() (string, error) {
	if h := os.Getenv(constants.EnvGandalfHome); h != "" {
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving user home directory: %w", err)
	}
	return filepath.Join(home, constants.GandalfHomeDirName), nil
}

// EnsureLayout creates the fixed subdirectory tree under home that
// every component expects to already exist (§4.12).
func EnsureLayout(home string) error {
	dirs := []string{
		home,
		filepath.Join(home, "cache"),
		filepath.Join(home, "cache", "backups"),
		filepath.Join(home, "config"),
		filepath.Join(home, "exports"),
		filepath.Join(home, "logs"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return nil
}

// New resolves the project root, loads configuration, detects agentic
// tools, and wires every component into a single dispatch.Context. It
// is the only place in the codebase that constructs these components.
func New(home string) (*App, error) {
	if err := EnsureLayout(home); err != nil {
		return nil, err
	}

	proj, err := project.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	weights := config.NewWatcher(config.ResolvePath(home))

	tools := agentictools.New()
	detected := tools.Detect()

	limits := conversation.DefaultLimits()
	drivers := []conversation.Driver{
		conversation.NewCursorDriver(stateDirsFor(detected, agentictools.Cursor), limits),
		conversation.NewClaudeCodeDriver(stateDirsFor(detected, agentictools.ClaudeCode), limits),
		conversation.NewWindsurfDriver(stateDirsFor(detected, agentictools.Windsurf), limits),
	}

	c := cache.New(
		filepath.Join(home, "cache"),
		filepath.Join(home, "cache", "backups"),
		constants.DefaultCacheTTL,
		constants.DefaultCacheNamespaceSize,
	)

	scoring := weights.Current().Scoring
	git := gitactivity.New(scoring.GitTimeout, scoring.GitCacheTTL, scoring.GitLookbackDays)
	agg := aggregator.New(drivers, c)

	registry, err := dispatch.NewRegistry(dispatch.Descriptors(), dispatch.Handlers())
	if err != nil {
		return nil, fmt.Errorf("compiling tool schemas: %w", err)
	}

	ctx := &dispatch.Context{
		Project:     proj,
		Weights:     weights,
		Cache:       c,
		Tools:       tools,
		Git:         git,
		Aggregator:  agg,
		GandalfHome: home,
	}

	return &App{Home: home, Context: ctx, Registry: registry, Weights: weights}, nil
}

func stateDirsFor(tools []agentictools.Tool, name agentictools.Name) []string {
	var dirs []string
	for _, t := range tools {
		if t.Name == name && t.StateDir != "" {
			dirs = append(dirs, t.StateDir)
		}
	}
	return dirs
}

// initializeResult is the payload returned for the "initialize" method.
type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// toolListEntry mirrors one tools/list array entry.
type toolListEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Handler builds the rpc.Handler that answers "initialize" and
// "tools/list" directly and delegates "tools/call" to the dispatch
// registry (§6). Any other method is a JSON-RPC method-not-found error.
func (a *App) Handler() rpc.Handler {
	return func(method string, params json.RawMessage) (any, *rpc.Error) {
		switch method {
		case "initialize":
			return initializeResult{
				ProtocolVersion: constants.ProtocolVersion,
				Capabilities:    map[string]any{"tools": map[string]any{}},
				ServerInfo:      serverInfo{Name: constants.ServerName, Version: constants.ServerVersion},
			}, nil

		case "tools/list":
			descriptors := a.Registry.Descriptors()
			entries := make([]toolListEntry, 0, len(descriptors))
			for _, d := range descriptors {
				entries = append(entries, toolListEntry{
					Name:        d.Name,
					Description: d.Description,
					InputSchema: json.RawMessage(d.Schema),
				})
			}
			return map[string]any{"tools": entries}, nil

		case "tools/call":
			var call struct {
				Name      string          `json:"name"`
				Arguments json.RawMessage `json:"arguments"`
			}
			if err := json.Unmarshal(params, &call); err != nil {
				return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "invalid tools/call params: " + err.Error()}
			}
			result := a.Registry.Call(a.Context, call.Name, call.Arguments)
			return result, nil

		case "notifications/initialized":
			return map[string]any{}, nil

		default:
			return nil, &rpc.Error{Code: rpc.CodeMethodNotFound, Message: "unknown method: " + method}
		}
	}
}

// Serve runs the JSON-RPC read loop over r/w until EOF. When MCP_DEBUG is
// set, every notifications/message event is additionally mirrored to
// GANDALF_HOME/logs/gandalf_session_<id>_<ts>.log (§3 SessionLog, §6).
func (a *App) Serve(r io.Reader, w io.Writer) error {
	server := rpc.New(r, w, a.Handler())

	if sessionlog.Enabled() {
		startedAt := time.Now()
		sessionID := uuid.NewString()
		sl, err := sessionlog.Open(a.Home, sessionID, startedAt)
		if err != nil {
			appLog.Printf("could not open session log, continuing without it: %v", err)
		} else {
			server.SetSessionLog(sl)
			defer sl.Close()
		}
	}

	appLog.Printf("serving from project root %s", a.Context.Project.Root)
	return server.Serve()
}

// Close releases background resources (the config file watcher).
func (a *App) Close() error {
	return a.Weights.Close()
}
