package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bluekornchips/gandalf/pkg/logger"
	"github.com/bluekornchips/gandalf/pkg/sliceutil"
	"github.com/bluekornchips/gandalf/pkg/stringutil"
)

var cursorLog = logger.New("conversation:cursor")

// CursorDriver reads Cursor's workspaceStorage SQLite databases
// (one `state.vscdb` per workspace, holding a single ItemTable key-value
// table under the `ItemTable` name `aiService.prompts` and similar) read
// only, via parameterized SELECTs (§4.10).
type CursorDriver struct {
	stateDirs []string
	limits    Limits
}

// NewCursorDriver builds a driver scanning stateDirs (typically Cursor's
// workspaceStorage root) for *.vscdb databases, one per workspace.
func NewCursorDriver(stateDirs []string, limits Limits) *CursorDriver {
	return &CursorDriver{stateDirs: stateDirs, limits: limits}
}

func (d *CursorDriver) SourceTool() string { return "cursor" }

func (d *CursorDriver) ListWorkspaces() ([]WorkspaceRef, error) {
	var refs []WorkspaceRef
	for _, root := range d.stateDirs {
		found, err := findVSCDBFiles(root)
		if err != nil {
			cursorLog.Printf("scanning %s: %v", root, err)
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

func (d *CursorDriver) Summarize(ws WorkspaceRef) (Summary, error) {
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

func (d *CursorDriver) Recall(ws WorkspaceRef, opts RecallOptions) ([]Conversation, error) {
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

func (d *CursorDriver) Query(ws WorkspaceRef, opts QueryOptions) ([]QueryMatch, error) {
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

func (d *CursorDriver) Export(ws WorkspaceRef, filter ExportFilter) ([]Conversation, error) {
	convs, err := d.readConversations(ws, RecallOptions{})
	if err != nil {
		return nil, err
	}
	return ApplyExportFilter(convs, filter), nil
}

// readConversations opens ws.DatabasePath read-only and extracts prompt/
// generation pairs from Cursor's ItemTable. Schema drift (missing table,
// unexpected column shape) is handled by skipping the offending row or
// table with a logged warning, never by failing the whole call (§4.10).
func (d *CursorDriver) readConversations(ws WorkspaceRef, opts RecallOptions) ([]Conversation, error) {
	if ws.DatabasePath == "" {
		return nil, nil
	}
	if info, err := os.Stat(ws.DatabasePath); err != nil || info.Size() > d.limits.MaxFileSizeBytes {
		return nil, &DriverError{Source: "cursor", Op: "read", Message: "database missing or exceeds size cap"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.limits.OperationTimeout)
	defer cancel()

	db, err := sql.Open("sqlite", "file:"+ws.DatabasePath+"?mode=ro&immutable=1")
	if err != nil {
		return nil, &DriverError{Source: "cursor", Op: "open", Message: err.Error()}
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT key, value FROM ItemTable WHERE key LIKE 'aiService.%' OR key LIKE 'workbench.panel.aichat%'`)
	if err != nil {
		cursorLog.Printf("%s: ItemTable query failed (schema drift?): %v", ws.DatabasePath, err)
		return nil, nil
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			cursorLog.Printf("%s: skipping unreadable row: %v", ws.DatabasePath, err)
			continue
		}

		parsed, ok := parseCursorBlob(key, value, opts.FastMode)
		if !ok {
			continue
		}
		parsed.SourceTool = d.SourceTool()
		parsed.WorkspaceHash = ws.Hash
		convs = append(convs, parsed)
	}
	return convs, rows.Err()
}

// cursorBlobShape is the minimal subset of Cursor's ItemTable JSON values
// this driver understands; unrecognized fields are ignored.
type cursorBlobShape struct {
	Tabs []struct {
		TabID      string `json:"tabId"`
		LastSendAt int64  `json:"lastSendTime"`
		Bubbles    []struct {
			Type string `json:"type"` // "user" or "ai"
			Text string `json:"text"`
		} `json:"bubbles"`
	} `json:"tabs"`
}

func parseCursorBlob(key string, raw []byte, fastMode bool) (Conversation, bool) {
	if fastMode && len(raw) > 64<<10 {
		raw = raw[:64<<10]
	}
	var shape cursorBlobShape
	if err := json.Unmarshal(raw, &shape); err != nil || len(shape.Tabs) == 0 {
		return Conversation{}, false
	}

	tab := shape.Tabs[0]
	conv := Conversation{
		NativeID:  tab.TabID,
		Title:     fmt.Sprintf("cursor:%s", key),
		UpdatedAt: time.UnixMilli(tab.LastSendAt),
	}
	if conv.NativeID == "" {
		conv.NativeID = workspaceHash(key + string(raw[:min(32, len(raw))]))
	}

	for _, b := range tab.Bubbles {
		switch b.Type {
		case "user":
			conv.Prompts = append(conv.Prompts, b.Text)
		case "ai":
			conv.Generations = append(conv.Generations, b.Text)
		}
	}
	conv.MessageCount = len(conv.Prompts) + len(conv.Generations)
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}
	if len(conv.Prompts) > 0 {
		conv.Title = stringutil.Truncate(conv.Prompts[0], 80)
	}
	return conv, true
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func findVSCDBFiles(root string) ([]string, error) {
	var found []string
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		full := filepath.Join(root, e.Name())
		if e.IsDir() {
			nested, _ := findVSCDBFiles(full)
			found = append(found, nested...)
			continue
		}
		if strings.HasSuffix(e.Name(), ".vscdb") {
			found = append(found, full)
		}
	}
	return found, nil
}

func containsAny(items []string, needle string) bool {
	for _, item := range items {
		if sliceutil.ContainsIgnoreCase(item, needle) {
			return true
		}
	}
	return false
}

