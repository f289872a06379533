package aggregator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluekornchips/gandalf/pkg/conversation"
)

type fakeDriver struct {
	name       string
	workspaces []conversation.WorkspaceRef
	convs      map[string][]conversation.Conversation
	listErr    error
}

func (f *fakeDriver) SourceTool() string { return f.name }

func (f *fakeDriver) ListWorkspaces() ([]conversation.WorkspaceRef, error) {
	return f.workspaces, f.listErr
}

func (f *fakeDriver) Summarize(ws conversation.WorkspaceRef) (conversation.Summary, error) {
	return conversation.Summary{}, nil
}

func (f *fakeDriver) Recall(ws conversation.WorkspaceRef, opts conversation.RecallOptions) ([]conversation.Conversation, error) {
	return f.convs[ws.Hash], nil
}

func (f *fakeDriver) Query(ws conversation.WorkspaceRef, opts conversation.QueryOptions) ([]conversation.QueryMatch, error) {
	var matches []conversation.QueryMatch
	for _, c := range f.convs[ws.Hash] {
		matches = append(matches, conversation.QueryMatch{Conversation: c, MatchedInTitle: true})
	}
	return matches, nil
}

func (f *fakeDriver) Export(ws conversation.WorkspaceRef, filter conversation.ExportFilter) ([]conversation.Conversation, error) {
	return f.convs[ws.Hash], nil
}

func TestRecallMergesAndSortsByUpdatedAtDescending(t *testing.T) {
	now := time.Now()
	d1 := &fakeDriver{
		name:       "cursor",
		workspaces: []conversation.WorkspaceRef{{Hash: "ws1"}},
		convs: map[string][]conversation.Conversation{
			"ws1": {{NativeID: "old", SourceTool: "cursor", UpdatedAt: now.Add(-time.Hour)}},
		},
	}
	d2 := &fakeDriver{
		name:       "windsurf",
		workspaces: []conversation.WorkspaceRef{{Hash: "ws2"}},
		convs: map[string][]conversation.Conversation{
			"ws2": {{NativeID: "new", SourceTool: "windsurf", UpdatedAt: now}},
		},
	}

	agg := New([]conversation.Driver{d1, d2}, nil)
	result := agg.Recall(conversation.RecallOptions{})

	require.Len(t, result.Conversations, 2)
	assert.Equal(t, "new", result.Conversations[0].NativeID)
	assert.Equal(t, "old", result.Conversations[1].NativeID)
	assert.Empty(t, result.Errors)
}

func TestRecallDedupesBySourceToolAndNativeID(t *testing.T) {
	now := time.Now()
	d := &fakeDriver{
		name:       "cursor",
		workspaces: []conversation.WorkspaceRef{{Hash: "ws1"}, {Hash: "ws2"}},
		convs: map[string][]conversation.Conversation{
			"ws1": {{NativeID: "dup", SourceTool: "cursor", UpdatedAt: now}},
			"ws2": {{NativeID: "dup", SourceTool: "cursor", UpdatedAt: now.Add(time.Minute)}},
		},
	}

	agg := New([]conversation.Driver{d}, nil)
	result := agg.Recall(conversation.RecallOptions{})

	require.Len(t, result.Conversations, 1, "duplicate (source_tool, native_id) pairs should collapse to one entry")
}

func TestRecallReportsDegradedSourceWithoutMaskingOthers(t *testing.T) {
	now := time.Now()
	broken := &fakeDriver{name: "windsurf", listErr: errors.New("no such directory")}
	healthy := &fakeDriver{
		name:       "cursor",
		workspaces: []conversation.WorkspaceRef{{Hash: "ws1"}},
		convs: map[string][]conversation.Conversation{
			"ws1": {{NativeID: "ok", SourceTool: "cursor", UpdatedAt: now}},
		},
	}

	agg := New([]conversation.Driver{broken, healthy}, nil)
	result := agg.Recall(conversation.RecallOptions{})

	require.Len(t, result.Conversations, 1)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "windsurf", result.Errors[0].Source)
}

func TestFingerprintIsOrderIndependent(t *testing.T) {
	a := Fingerprint([][3]string{{"a", "1", "100"}, {"b", "2", "200"}})
	b := Fingerprint([][3]string{{"b", "2", "200"}, {"a", "1", "100"}})
	assert.Equal(t, a, b)
}
