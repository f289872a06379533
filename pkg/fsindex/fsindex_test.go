package fsindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalkFindsFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "package main")
	writeFile(t, filepath.Join(root, "src", "lib.go"), "package src")

	result, err := Walk(root, Options{})
	require.NoError(t, err)

	paths := make([]string, len(result.Entries))
	for i, e := range result.Entries {
		paths[i] = e.RelativePath
	}
	assert.Contains(t, paths, "main.go")
	assert.Contains(t, paths, "src/lib.go")
	assert.False(t, result.Truncated)
}

func TestWalkSkipsBuiltinIgnoreDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), "x")
	writeFile(t, filepath.Join(root, ".git", "config"), "x")
	writeFile(t, filepath.Join(root, "app.js"), "x")

	result, err := Walk(root, Options{})
	require.NoError(t, err)

	var paths []string
	for _, e := range result.Entries {
		paths = append(paths, e.RelativePath)
	}
	assert.Contains(t, paths, "app.js")
	assert.NotContains(t, paths, "node_modules/pkg/index.js")
	assert.NotContains(t, paths, ".git/config")
}

func TestWalkHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "*.log\nbuild/\n")
	writeFile(t, filepath.Join(root, "debug.log"), "x")
	writeFile(t, filepath.Join(root, "build", "out.bin"), "x")
	writeFile(t, filepath.Join(root, "keep.txt"), "x")

	result, err := Walk(root, Options{})
	require.NoError(t, err)

	var paths []string
	for _, e := range result.Entries {
		paths = append(paths, e.RelativePath)
	}
	assert.Contains(t, paths, "keep.txt")
	assert.NotContains(t, paths, "debug.log")
	assert.NotContains(t, paths, "build/out.bin")
}

func TestWalkRespectsExtensionAllowList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.go"), "x")
	writeFile(t, filepath.Join(root, "b.py"), "x")

	result, err := Walk(root, Options{ExtensionAllowList: []string{".go"}})
	require.NoError(t, err)

	require.Len(t, result.Entries, 1)
	assert.Equal(t, "a.go", result.Entries[0].RelativePath)
}

func TestWalkDoesNotRejectBlockedExtensions(t *testing.T) {
	// The baseline walk lists everything under root; constants.BlockedExtensions
	// is only enforced against a caller-supplied file_types filter, in
	// pkg/security.ValidateExtension (§4.5 names no blanket exclusion here).
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "installer.exe"), "x")
	writeFile(t, filepath.Join(root, "run.sh"), "x")

	result, err := Walk(root, Options{})
	require.NoError(t, err)
	assert.Len(t, result.Entries, 2)
}

func TestWalkTruncatesAtMaxFiles(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(root, string(rune('a'+i))+".txt"), "x")
	}

	result, err := Walk(root, Options{MaxFiles: 2})
	require.NoError(t, err)
	assert.Len(t, result.Entries, 2)
	assert.True(t, result.Truncated)
}

func TestWalkRespectsMaxDepth(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "b", "c", "deep.txt"), "x")

	result, err := Walk(root, Options{MaxDepth: 1})
	require.NoError(t, err)

	var paths []string
	for _, e := range result.Entries {
		paths = append(paths, e.RelativePath)
	}
	assert.NotContains(t, paths, "a/b/c/deep.txt")
}

func TestWalkExcludesHiddenWhenRequested(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".hidden"), "x")
	writeFile(t, filepath.Join(root, "visible.txt"), "x")

	result, err := Walk(root, Options{IncludeHidden: false})
	require.NoError(t, err)

	var paths []string
	for _, e := range result.Entries {
		paths = append(paths, e.RelativePath)
	}
	assert.NotContains(t, paths, ".hidden")
	assert.Contains(t, paths, "visible.txt")
}

func TestWalkFailsOnMissingRoot(t *testing.T) {
	_, err := Walk(filepath.Join(t.TempDir(), "does-not-exist"), Options{})
	assert.Error(t, err)
}
