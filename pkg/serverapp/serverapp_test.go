package serverapp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hasGit(t *testing.T) bool {
	t.Helper()
	_, err := exec.LookPath("git")
	return err == nil
}

// newTestApp builds an App rooted at a temp GANDALF_HOME, with the
// current working directory switched to a real throwaway git repo so
// project.Resolve succeeds (§4.4's git-discovery step, resolveFromGit).
func newTestApp(t *testing.T) *App {
	t.Helper()
	if !hasGit(t) {
		t.Skip("git not available")
	}

	repo := t.TempDir()
	runGit(t, repo, "init")
	runGit(t, repo, "config", "user.email", "test@example.com")
	runGit(t, repo, "config", "user.name", "test")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "main.go"), []byte("package main\n"), 0o644))
	runGit(t, repo, "add", ".")
	runGit(t, repo, "commit", "-m", "initial")

	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(repo))
	t.Cleanup(func() { _ = os.Chdir(oldwd) })

	home := t.TempDir()
	app, err := New(home)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func sendAndRead(t *testing.T, app *App, requests []string) []map[string]any {
	t.Helper()
	in := strings.NewReader(strings.Join(requests, "\n") + "\n")
	var out bytes.Buffer

	err := app.Serve(in, &out)
	require.NoError(t, err)

	var responses []map[string]any
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		responses = append(responses, m)
	}
	return responses
}

func TestInitializeReturnsProtocolVersionAndServerInfo(t *testing.T) {
	app := newTestApp(t)
	responses := sendAndRead(t, app, []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
	})

	require.Len(t, responses, 1)
	result := responses[0]["result"].(map[string]any)
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
	serverInfo := result["serverInfo"].(map[string]any)
	assert.Equal(t, "gandalf", serverInfo["name"])
}

func TestToolsListReturnsEveryDescriptor(t *testing.T) {
	app := newTestApp(t)
	responses := sendAndRead(t, app, []string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`,
	})

	require.Len(t, responses, 1)
	result := responses[0]["result"].(map[string]any)
	tools := result["tools"].([]any)
	assert.Len(t, tools, 6)
}

func TestGetProjectInfoReportsGitRepoInRealRepo(t *testing.T) {
	app := newTestApp(t)
	responses := sendAndRead(t, app, []string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_project_info","arguments":{}}}`,
	})

	require.Len(t, responses, 1)
	result := responses[0]["result"].(map[string]any)
	assert.False(t, result["isError"].(bool))

	content := result["content"].([]any)[0].(map[string]any)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(content["text"].(string)), &payload))
	assert.True(t, payload["is_git_repo"].(bool))
}

func TestListProjectFilesHonorsFileTypeFilter(t *testing.T) {
	app := newTestApp(t)
	responses := sendAndRead(t, app, []string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_project_files","arguments":{"file_types":[".go"],"use_relevance_scoring":false}}}`,
	})

	require.Len(t, responses, 1)
	result := responses[0]["result"].(map[string]any)
	content := result["content"].([]any)[0].(map[string]any)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(content["text"].(string)), &payload))
	files := payload["files"].([]any)
	require.Len(t, files, 1)
	assert.Equal(t, "main.go", files[0])
}

func TestCallingNonexistentToolIsErrorNotCrash(t *testing.T) {
	app := newTestApp(t)
	responses := sendAndRead(t, app, []string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"not_a_real_tool","arguments":{}}}`,
	})

	require.Len(t, responses, 1)
	result := responses[0]["result"].(map[string]any)
	assert.True(t, result["isError"].(bool))
}

func TestDangerousFileTypeNeverReachesFilesystem(t *testing.T) {
	app := newTestApp(t)
	responses := sendAndRead(t, app, []string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_project_files","arguments":{"file_types":["../../../etc/passwd"]}}}`,
	})

	require.Len(t, responses, 1)
	result := responses[0]["result"].(map[string]any)
	assert.True(t, result["isError"].(bool))
	content := result["content"].([]any)[0].(map[string]any)
	assert.NotContains(t, content["text"].(string), "root:x:")
}

func TestUnknownMethodIsProtocolError(t *testing.T) {
	app := newTestApp(t)
	responses := sendAndRead(t, app, []string{
		`{"jsonrpc":"2.0","id":1,"method":"bogus/method","params":{}}`,
	})

	require.Len(t, responses, 1)
	errObj, ok := responses[0]["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(-32601), errObj["code"])
}
