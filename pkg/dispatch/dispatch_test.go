package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, handlers map[string]HandlerFunc) *Registry {
	t.Helper()
	reg, err := NewRegistry(Descriptors(), handlers)
	require.NoError(t, err)
	return reg
}

func TestCallRejectsUnknownTool(t *testing.T) {
	reg := newTestRegistry(t, Handlers())
	result := reg.Call(&Context{}, "nonexistent_tool", json.RawMessage(`{}`))
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "unknown tool")
}

func TestCallRejectsSchemaViolation(t *testing.T) {
	reg := newTestRegistry(t, Handlers())
	result := reg.Call(&Context{}, "search_conversations", json.RawMessage(`{}`))
	assert.True(t, result.IsError, "query is required by the schema")
}

func TestCallRejectsUnknownField(t *testing.T) {
	reg := newTestRegistry(t, Handlers())
	result := reg.Call(&Context{}, "get_project_info", json.RawMessage(`{"bogus_field": true}`))
	assert.True(t, result.IsError)
}

func TestCallResolvesAliasToCanonicalSchema(t *testing.T) {
	called := false
	handlers := Handlers()
	handlers["recall_conversations"] = func(ctx *Context, args map[string]any) (any, *ToolError) {
		called = true
		return map[string]any{"ok": true}, nil
	}
	reg := newTestRegistry(t, handlers)

	result := reg.Call(&Context{}, "recall_cursor_conversations", json.RawMessage(`{"limit": 5}`))
	assert.False(t, result.IsError)
	assert.True(t, called)
}

func TestCallRejectsDangerousFileTypeBeforeFilesystemAccess(t *testing.T) {
	reg := newTestRegistry(t, Handlers())
	result := reg.Call(&Context{}, "list_project_files", json.RawMessage(`{"file_types":["../../../etc/passwd"]}`))
	assert.True(t, result.IsError)
	assert.NotContains(t, result.Content[0].Text, "root:x:")
}

func TestCallSurfacesToolErrorAsIsError(t *testing.T) {
	handlers := map[string]HandlerFunc{
		"get_project_info": func(ctx *Context, args map[string]any) (any, *ToolError) {
			return nil, &ToolError{Message: "boom"}
		},
	}
	reg := newTestRegistry(t, handlers)
	result := reg.Call(&Context{}, "get_project_info", json.RawMessage(`{}`))
	require.True(t, result.IsError)
	assert.Equal(t, "boom", result.Content[0].Text)
}
