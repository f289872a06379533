package agentictools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFallsBackWhenNothingFound(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	r := New()
	tools := r.Detect()
	require.Len(t, tools, 1)
	assert.Equal(t, Cursor, tools[0].Name)
	assert.Empty(t, tools[0].StateDir)
}

func TestDetectFindsClaudeCode(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".claude"), 0o755))
	t.Setenv("HOME", home)

	r := New()
	tools := r.Detect()

	var names []Name
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, ClaudeCode)
}

func TestDetectIsMemoized(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	r := New()
	first := r.Detect()

	require.NoError(t, os.MkdirAll(filepath.Join(home, ".claude"), 0o755))
	second := r.Detect()

	assert.Equal(t, first, second, "detection should be memoized for the registry's lifetime")
}

func TestContainsVSCDBFindsNestedDatabase(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "workspaceStorage", "abc123")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "state.vscdb"), []byte{}, 0o644))

	assert.True(t, containsVSCDB(root))
}

func TestContainsVSCDBFalseWhenAbsent(t *testing.T) {
	root := t.TempDir()
	assert.False(t, containsVSCDB(root))
}
