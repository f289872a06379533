// Package project implements C3: resolving the active ProjectRoot via the
// ordered strategy chain in §4.4, and deriving a sanitized project name
// from it.
package project

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bluekornchips/gandalf/pkg/constants"
	"github.com/bluekornchips/gandalf/pkg/logger"
	"github.com/bluekornchips/gandalf/pkg/security"
)

var projLog = logger.New("project")

// Info is the resolved ProjectRoot together with the project-name
// sanitization result reported to get_project_info.
type Info struct {
	Root         string
	Name         string
	WasSanitized bool
}

// Resolve runs the four-step chain from §4.4, first success wins. Each
// candidate is required to exist as a directory and pass security
// validation before it is accepted; symlinks are always resolved.
func Resolve() (*Info, error) {
	candidates := []func() (string, bool){
		resolveFromWorkspaceFolders,
		resolveFromGit,
		resolveFromPWD,
		resolveFromCwd,
	}

	for _, candidate := range candidates {
		path, ok := candidate()
		if !ok {
			continue
		}
		resolved, err := validateCandidate(path)
		if err != nil {
			projLog.Printf("candidate %s rejected: %v", path, err)
			continue
		}
		return toInfo(resolved), nil
	}

	return nil, errNoProjectRoot
}

var errNoProjectRoot = &resolveError{"no candidate project root could be resolved"}

type resolveError struct{ msg string }

func (e *resolveError) Error() string { return e.msg }

func validateCandidate(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return "", &resolveError{"not a directory"}
	}
	// Security validation treats the candidate as its own root, so only its
	// null-byte and traversal checks can reject a candidate here; a root
	// under a blocked system prefix is accepted. The depth bound is applied
	// separately to the resolved root's absolute depth.
	if _, verr := security.ValidatePath(resolved, "."); verr != nil {
		return "", verr
	}
	if strings.Count(resolved, string(filepath.Separator)) > constants.MaxPathDepth {
		return "", &resolveError{"path depth exceeds maximum"}
	}
	return resolved, nil
}

// resolveFromWorkspaceFolders is step 1: the colon-separated
// WORKSPACE_FOLDER_PATHS list, first entry that resolves to a real
// directory.
func resolveFromWorkspaceFolders() (string, bool) {
	raw := os.Getenv("WORKSPACE_FOLDER_PATHS")
	if raw == "" {
		return "", false
	}
	for _, entry := range strings.Split(raw, ":") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if info, err := os.Stat(entry); err == nil && info.IsDir() {
			return entry, true
		}
	}
	return "", false
}

// resolveFromGit is step 2: the top level of the git repository
// containing the current directory, if any.
func resolveFromGit() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	cmd := exec.Command("git", "-C", cwd, "rev-parse", "--show-toplevel")
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	top := strings.TrimSpace(string(out))
	if top == "" {
		return "", false
	}
	return top, true
}

// resolveFromPWD is step 3: the PWD environment variable.
func resolveFromPWD() (string, bool) {
	pwd := os.Getenv("PWD")
	if pwd == "" {
		return "", false
	}
	return pwd, true
}

// resolveFromCwd is step 4: the process working directory.
func resolveFromCwd() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	return cwd, true
}

var nameSanitizePattern = regexp.MustCompile(`[^A-Za-z0-9._\- ]`)

func toInfo(root string) *Info {
	raw := filepath.Base(root)
	sanitized := nameSanitizePattern.ReplaceAllString(raw, "_")
	return &Info{
		Root:         root,
		Name:         sanitized,
		WasSanitized: sanitized != raw,
	}
}
