package conversation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bluekornchips/gandalf/pkg/logger"
)

var claudeLog = logger.New("conversation:claudecode")

// ClaudeCodeDriver reads the per-session JSON transcript files Claude
// Code writes under its state directory (one JSON file per session,
// grouped by project-path-derived subdirectory). Unlike the SQLite
// drivers, a "workspace" here is a project subdirectory under
// <state_dir>/projects (§4.10).
type ClaudeCodeDriver struct {
	stateDirs []string
	limits    Limits
}

func NewClaudeCodeDriver(stateDirs []string, limits Limits) *ClaudeCodeDriver {
	return &ClaudeCodeDriver{stateDirs: stateDirs, limits: limits}
}

func (d *ClaudeCodeDriver) SourceTool() string { return "claude-code" }

func (d *ClaudeCodeDriver) ListWorkspaces() ([]WorkspaceRef, error) {
	var refs []WorkspaceRef
	for _, stateDir := range d.stateDirs {
		projectsDir := filepath.Join(stateDir, "projects")
		entries, err := os.ReadDir(projectsDir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			full := filepath.Join(projectsDir, e.Name())
			size, modTime := dirSizeAndLatestMod(full)
			refs = append(refs, WorkspaceRef{
				Hash:         workspaceHash(full),
				Path:         full,
				SizeBytes:    size,
				LastModified: modTime,
			})
		}
	}
	return refs, nil
}

func (d *ClaudeCodeDriver) Summarize(ws WorkspaceRef) (Summary, error) {
	convs, err := d.readConversations(ws, true)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Count: len(convs)}
	for _, c := range convs {
		summary.Prompts += len(c.Prompts)
		summary.Generations += len(c.Generations)
		if c.UpdatedAt.After(summary.LastUpdated) {
			summary.LastUpdated = c.UpdatedAt
		}
	}
	return summary, nil
}

func (d *ClaudeCodeDriver) Recall(ws WorkspaceRef, opts RecallOptions) ([]Conversation, error) {
	convs, err := d.readConversations(ws, opts.FastMode)
	if err != nil {
		return nil, err
	}
	if opts.DaysLookback > 0 {
		cutoff := time.Now().AddDate(0, 0, -opts.DaysLookback)
		filtered := convs[:0]
		for _, c := range convs {
			if c.UpdatedAt.After(cutoff) {
				filtered = append(filtered, c)
			}
		}
		convs = filtered
	}
	if opts.Limit > 0 && len(convs) > opts.Limit {
		convs = convs[:opts.Limit]
	}
	return convs, nil
}

func (d *ClaudeCodeDriver) Query(ws WorkspaceRef, opts QueryOptions) ([]QueryMatch, error) {
	convs, err := d.readConversations(ws, false)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(opts.Query)
	var matches []QueryMatch
	for _, c := range convs {
		titleHit := strings.Contains(strings.ToLower(c.Title), needle)
		contentHit := false
		if opts.IncludeContent {
			contentHit = containsAny(c.Prompts, needle) || containsAny(c.Generations, needle)
		}
		if titleHit || contentHit {
			matches = append(matches, QueryMatch{Conversation: c, MatchedInTitle: titleHit, MatchedInContent: contentHit})
		}
		if opts.Limit > 0 && len(matches) >= opts.Limit {
			break
		}
	}
	return matches, nil
}

func (d *ClaudeCodeDriver) Export(ws WorkspaceRef, filter ExportFilter) ([]Conversation, error) {
	convs, err := d.readConversations(ws, false)
	if err != nil {
		return nil, err
	}
	return ApplyExportFilter(convs, filter), nil
}

// claudeSessionLine is one JSON-lines entry in a Claude Code transcript
// file: either a user turn or an assistant turn.
type claudeSessionLine struct {
	Type      string `json:"type"` // "user" or "assistant"
	Timestamp string `json:"timestamp"`
	Message   struct {
		Content string `json:"content"`
	} `json:"message"`
}

func (d *ClaudeCodeDriver) readConversations(ws WorkspaceRef, fastMode bool) ([]Conversation, error) {
	if ws.Path == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(ws.Path)
	if err != nil {
		return nil, &DriverError{Source: "claude-code", Op: "readdir", Message: err.Error()}
	}

	var convs []Conversation
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		full := filepath.Join(ws.Path, e.Name())
		info, err := e.Info()
		if err != nil || info.Size() > d.limits.MaxFileSizeBytes {
			continue
		}

		conv, ok := parseClaudeSessionFile(full, fastMode)
		if !ok {
			continue
		}
		conv.SourceTool = d.SourceTool()
		conv.WorkspaceHash = ws.Hash
		convs = append(convs, conv)
	}
	return convs, nil
}

func parseClaudeSessionFile(path string, fastMode bool) (Conversation, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		claudeLog.Printf("skipping unreadable session %s: %v", path, err)
		return Conversation{}, false
	}
	if fastMode && len(raw) > 256<<10 {
		raw = raw[:256<<10]
	}

	sessionID := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	conv := Conversation{NativeID: sessionID, Title: sessionID}

	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry claudeSessionLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			claudeLog.Printf("%s: skipping malformed transcript line: %v", path, err)
			continue
		}

		ts, _ := time.Parse(time.RFC3339, entry.Timestamp)
		if conv.CreatedAt.IsZero() || (!ts.IsZero() && ts.Before(conv.CreatedAt)) {
			if !ts.IsZero() {
				conv.CreatedAt = ts
			}
		}
		if !ts.IsZero() && ts.After(conv.UpdatedAt) {
			conv.UpdatedAt = ts
		}

		switch entry.Type {
		case "user":
			conv.Prompts = append(conv.Prompts, entry.Message.Content)
		case "assistant":
			conv.Generations = append(conv.Generations, entry.Message.Content)
		}
	}

	if len(conv.Prompts) == 0 && len(conv.Generations) == 0 {
		return Conversation{}, false
	}
	conv.MessageCount = len(conv.Prompts) + len(conv.Generations)
	return conv, true
}

func dirSizeAndLatestMod(dir string) (int64, time.Time) {
	var size int64
	var latest time.Time
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, time.Time{}
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		size += info.Size()
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return size, latest
}
