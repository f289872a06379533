// Package conversation implements C9: per-tool drivers that read each
// assistant's on-disk conversation state and normalize it into a common
// shape, behind a single capability-set interface (§9, "heterogeneous
// conversation sources with a uniform interface").
package conversation

import "time"

// WorkspaceRef is a lightweight handle returned by ListWorkspaces: enough
// to identify and size a workspace without reading its contents.
type WorkspaceRef struct {
	Hash         string    `json:"workspace_hash"`
	DatabasePath string    `json:"database_path,omitempty"`
	Path         string    `json:"path,omitempty"`
	SizeBytes    int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Summary is the result of Summarize: read-only aggregate counts for one
// workspace.
type Summary struct {
	Count       int       `json:"count"`
	LastUpdated time.Time `json:"last_updated"`
	Prompts     int       `json:"prompts"`
	Generations int       `json:"generations"`
}

// Conversation is the normalized record shared by every source tool
// (§3). ID is (SourceTool, NativeID); dedup keys on that pair.
type Conversation struct {
	NativeID      string            `json:"native_id"`
	SourceTool    string            `json:"source_tool"`
	WorkspaceHash string            `json:"workspace_hash,omitempty"`
	Title         string            `json:"title"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	MessageCount  int               `json:"message_count"`
	Prompts       []string          `json:"prompts,omitempty"`
	Generations   []string          `json:"generations,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Snippet       string            `json:"snippet,omitempty"`
}

// Key returns the (source_tool, native_id) dedup identity.
func (c Conversation) Key() string { return c.SourceTool + "\x00" + c.NativeID }

// RecallOptions parameterizes Recall.
type RecallOptions struct {
	Limit        int
	DaysLookback int
	FastMode     bool // forbids parsing large message bodies
}

// QueryOptions parameterizes Query.
type QueryOptions struct {
	Query          string
	Limit          int
	IncludeContent bool
}

// QueryMatch is one hit from Query: the conversation plus where the match
// was found.
type QueryMatch struct {
	Conversation
	MatchedInTitle   bool `json:"matched_in_title"`
	MatchedInContent bool `json:"matched_in_content"`
}

// ExportFilter narrows which conversations Export writes out.
type ExportFilter struct {
	ConversationIDs []string // empty means "all"
	Limit           int
}

// ExportResult is one conversation written to disk by Export.
type ExportResult struct {
	ConversationID string
	Path           string
}

// DriverError is a structured, non-fatal failure from a single driver
// operation; per §4.10/§9 drivers never panic or abort the request, they
// report this instead.
type DriverError struct {
	Source  string
	Op      string
	Message string
}

func (e *DriverError) Error() string {
	return e.Source + " " + e.Op + ": " + e.Message
}

// Driver is the capability set every source-tool implementation
// satisfies (§9). The aggregator operates only on this interface, never
// on the concrete source-tool identity.
type Driver interface {
	// SourceTool is the stable identifier used in Conversation.SourceTool
	// and in the exports/<source_tool>/ directory layout.
	SourceTool() string

	ListWorkspaces() ([]WorkspaceRef, error)
	Summarize(workspace WorkspaceRef) (Summary, error)
	Recall(workspace WorkspaceRef, opts RecallOptions) ([]Conversation, error)
	Query(workspace WorkspaceRef, opts QueryOptions) ([]QueryMatch, error)
	Export(workspace WorkspaceRef, filter ExportFilter) ([]Conversation, error)
}

// Limits bound every driver's I/O, regardless of source (§4.10).
type Limits struct {
	MaxFileSizeBytes int64
	OperationTimeout time.Duration
}

// ApplyExportFilter narrows convs to the IDs named in filter (all of them
// if none are named) and caps the result at filter.Limit. Shared by every
// driver's Export and by pkg/aggregator, which applies it against a
// cached, already-merged conversation list instead of calling a driver's
// Export per workspace.
func ApplyExportFilter(convs []Conversation, filter ExportFilter) []Conversation {
	var filtered []Conversation
	want := make(map[string]bool, len(filter.ConversationIDs))
	for _, id := range filter.ConversationIDs {
		want[id] = true
	}
	for _, c := range convs {
		if len(want) > 0 && !want[c.NativeID] {
			continue
		}
		filtered = append(filtered, c)
		if filter.Limit > 0 && len(filtered) >= filter.Limit {
			break
		}
	}
	return filtered
}

// DefaultLimits matches the defaults implied by §4.10/constants.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSizeBytes: 200 << 20, // 200 MiB: generous bound for a conversation DB/JSON tree
		OperationTimeout: 10 * time.Second,
	}
}
