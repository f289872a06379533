package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bluekornchips/gandalf/pkg/logger"
)

var windsurfLog = logger.New("conversation:windsurf")

// WindsurfDriver mirrors CursorDriver's shape against Windsurf's own
// workspace-scoped SQLite stores under ${HOME}/.codeium/windsurf (§4.9,
// §4.10). Windsurf stores its chat history under a differently named
// ItemTable key prefix, everything else about the access pattern (read
// only, parameterized query, schema-drift try/skip) is identical.
type WindsurfDriver struct {
	stateDirs []string
	limits    Limits
}

func NewWindsurfDriver(stateDirs []string, limits Limits) *WindsurfDriver {
	return &WindsurfDriver{stateDirs: stateDirs, limits: limits}
}

func (d *WindsurfDriver) SourceTool() string { return "windsurf" }

func (d *WindsurfDriver) ListWorkspaces() ([]WorkspaceRef, error) {
	var refs []WorkspaceRef
	for _, root := range d.stateDirs {
		found, err := findVSCDBFiles(root)
		if err != nil {
			windsurfLog.Printf("scanning %s: %v", root, err)
			continue
		}
		for _, path := range found {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			refs = append(refs, WorkspaceRef{
				Hash:         workspaceHash(path),
				DatabasePath: path,
				SizeBytes:    info.Size(),
				LastModified: info.ModTime(),
			})
		}
	}
	return refs, nil
}

func (d *WindsurfDriver) Summarize(ws WorkspaceRef) (Summary, error) {
	convs, err := d.readConversations(ws, RecallOptions{FastMode: true})
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

func (d *WindsurfDriver) Recall(ws WorkspaceRef, opts RecallOptions) ([]Conversation, error) {
	convs, err := d.readConversations(ws, opts)
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

func (d *WindsurfDriver) Query(ws WorkspaceRef, opts QueryOptions) ([]QueryMatch, error) {
	convs, err := d.readConversations(ws, RecallOptions{})
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

func (d *WindsurfDriver) Export(ws WorkspaceRef, filter ExportFilter) ([]Conversation, error) {
	convs, err := d.readConversations(ws, RecallOptions{})
	if err != nil {
		return nil, err
	}
	return ApplyExportFilter(convs, filter), nil
}

func (d *WindsurfDriver) readConversations(ws WorkspaceRef, opts RecallOptions) ([]Conversation, error) {
	if ws.DatabasePath == "" {
		return nil, nil
	}
	if info, err := os.Stat(ws.DatabasePath); err != nil || info.Size() > d.limits.MaxFileSizeBytes {
		return nil, &DriverError{Source: "windsurf", Op: "read", Message: "database missing or exceeds size cap"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.limits.OperationTimeout)
	defer cancel()

	db, err := sql.Open("sqlite", "file:"+ws.DatabasePath+"?mode=ro&immutable=1")
	if err != nil {
		return nil, &DriverError{Source: "windsurf", Op: "open", Message: err.Error()}
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT key, value FROM ItemTable WHERE key LIKE 'windsurf.chat%' OR key LIKE 'codeium.conversations%'`)
	if err != nil {
		windsurfLog.Printf("%s: ItemTable query failed (schema drift?): %v", ws.DatabasePath, err)
		return nil, nil
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			windsurfLog.Printf("%s: skipping unreadable row: %v", ws.DatabasePath, err)
			continue
		}

		parsed, ok := parseWindsurfBlob(key, value, opts.FastMode)
		if !ok {
			continue
		}
		parsed.SourceTool = d.SourceTool()
		parsed.WorkspaceHash = ws.Hash
		convs = append(convs, parsed)
	}
	return convs, rows.Err()
}

type windsurfBlobShape struct {
	Messages []struct {
		Role      string `json:"role"` // "human" or "ai"
		Content   string `json:"content"`
		Timestamp int64  `json:"timestamp"`
	} `json:"messages"`
	ConversationID string `json:"conversationId"`
}

func parseWindsurfBlob(key string, raw []byte, fastMode bool) (Conversation, bool) {
	if fastMode && len(raw) > 64<<10 {
		raw = raw[:64<<10]
	}
	var shape windsurfBlobShape
	if err := json.Unmarshal(raw, &shape); err != nil || len(shape.Messages) == 0 {
		return Conversation{}, false
	}

	conv := Conversation{
		NativeID: shape.ConversationID,
		Title:    fmt.Sprintf("windsurf:%s", key),
	}
	if conv.NativeID == "" {
		conv.NativeID = workspaceHash(key + string(raw[:min(32, len(raw))]))
	}

	var latest int64
	for _, m := range shape.Messages {
		switch m.Role {
		case "human":
			conv.Prompts = append(conv.Prompts, m.Content)
		case "ai":
			conv.Generations = append(conv.Generations, m.Content)
		}
		if m.Timestamp > latest {
			latest = m.Timestamp
		}
	}
	conv.UpdatedAt = time.UnixMilli(latest)
	conv.CreatedAt = conv.UpdatedAt
	conv.MessageCount = len(conv.Prompts) + len(conv.Generations)
	return conv, true
}
