package gitactivity

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hasGit(t *testing.T) bool {
	t.Helper()
	_, err := exec.LookPath("git")
	return err == nil
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		require.NoError(t, cmd.Run())
	}
	run("init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	run("add", "a.txt")
	run("commit", "-q", "-m", "initial")
	return dir
}

func TestIsRepoTrueForGitRoot(t *testing.T) {
	if !hasGit(t) {
		t.Skip("git not available")
	}
	dir := initRepo(t)
	tr := New(5*time.Second, time.Minute, 30)
	assert.True(t, tr.IsRepo(dir))
	assert.NotEmpty(t, tr.TopLevel(dir))
}

func TestIsRepoFalseForNonRepo(t *testing.T) {
	if !hasGit(t) {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	tr := New(5*time.Second, time.Minute, 30)
	assert.False(t, tr.IsRepo(dir))
	assert.Empty(t, tr.TopLevel(dir))
	assert.Empty(t, tr.RecentFiles(dir))
}

func TestStatusSummaryReportsUntracked(t *testing.T) {
	if !hasGit(t) {
		t.Skip("git not available")
	}
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644))

	tr := New(5*time.Second, time.Minute, 30)
	sum := tr.StatusSummary(dir)
	assert.Contains(t, sum.Untracked, "new.txt")
}

func TestResultsAreCachedWithinTTL(t *testing.T) {
	if !hasGit(t) {
		t.Skip("git not available")
	}
	dir := initRepo(t)
	tr := New(5*time.Second, time.Hour, 30)

	first := tr.IsRepo(dir)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, ".git")))
	second := tr.IsRepo(dir)

	assert.Equal(t, first, second, "cached result should not re-probe within ttl")
}
