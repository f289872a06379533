// Package fsindex implements C5: a breadth-first walk of ProjectRoot that
// collects FileEntry values into a slice, honoring ignore rules and the
// size, count, and depth limits from §4.5. Entries are not streamed: Walk
// returns them all together once the walk has finished.
package fsindex

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bluekornchips/gandalf/pkg/constants"
	"github.com/bluekornchips/gandalf/pkg/logger"
)

var indexLog = logger.New("fsindex")

// builtinIgnoreDirs never descends, regardless of .gitignore contents.
var builtinIgnoreDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
	"node_modules": true, "vendor": true, ".venv": true, "venv": true,
	"__pycache__": true, ".tox": true, ".mypy_cache": true, ".pytest_cache": true,
	"dist": true, "build": true, ".next": true, "target": true,
	".gradle": true, ".idea": true, ".vscode": true,
	"bin": true, "obj": true,
}

// FileEntry mirrors the data-model record in §3. RelativePath is always
// slash-separated and never escapes ProjectRoot.
type FileEntry struct {
	RelativePath      string
	SizeBytes         int64
	ModTime           time.Time
	Extension         string
	DirectorySegments []string
}

// Options configures a single Walk call (§4.5).
type Options struct {
	// MaxFiles bounds the number of entries emitted; 0 means
	// constants.DefaultMaxFilesPerListing.
	MaxFiles int
	// MaxFileSize excludes files larger than this many bytes from
	// content-touching operations (listing still reports them); 0 means
	// constants.DefaultMaxFileSizeBytes.
	MaxFileSize int64
	// MaxDepth bounds directory nesting below root; 0 means constants.MaxPathDepth.
	MaxDepth int
	// ExtensionAllowList, when non-empty, restricts emitted entries to
	// these extensions (each like "go" or ".go"; a leading dot is stripped
	// and the entry is lowercased before matching).
	ExtensionAllowList []string
	// IncludeHidden controls whether dotfiles/dotdirs (other than the
	// built-in ignore set) are walked. The zero value (false) skips them;
	// callers that want them set it to true.
	IncludeHidden bool
}

func (o Options) maxFiles() int {
	if o.MaxFiles > 0 {
		return o.MaxFiles
	}
	return constants.DefaultMaxFilesPerListing
}

func (o Options) maxFileSize() int64 {
	if o.MaxFileSize > 0 {
		return o.MaxFileSize
	}
	return constants.DefaultMaxFileSizeBytes
}

func (o Options) maxDepth() int {
	if o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return constants.MaxPathDepth
}

// Result is the outcome of a completed Walk: the entries actually
// emitted, and bookkeeping about what was skipped or truncated.
type Result struct {
	Entries   []FileEntry
	Truncated bool // MaxFiles was reached before the walk finished
	// SkippedPaths holds individual entries the walker could not stat
	// (permission errors, broken symlinks, etc); the walk itself did not
	// fail because of them (§4.5).
	SkippedPaths []string
}

type walkDirent struct {
	path  string
	depth int
}

// Walk enumerates root breadth-first and returns every FileEntry that
// survives the ignore rules and limits in opts. Per §4.5, an I/O error
// reading the root itself fails the call; per-entry errors are recorded
// and skipped.
func Walk(root string, opts Options) (*Result, error) {
	rootInfo, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !rootInfo.IsDir() {
		return nil, &os.PathError{Op: "walk", Path: root, Err: os.ErrInvalid}
	}

	ignores := loadGitignore(root)
	allow := extensionSet(opts.ExtensionAllowList)

	result := &Result{}
	queue := []walkDirent{{path: root, depth: 0}}

	for len(queue) > 0 {
		if len(result.Entries) >= opts.maxFiles() {
			result.Truncated = true
			break
		}

		dir := queue[0]
		queue = queue[1:]

		dirEntries, err := os.ReadDir(dir.path)
		if err != nil {
			indexLog.Printf("skipping unreadable directory %s: %v", dir.path, err)
			result.SkippedPaths = append(result.SkippedPaths, dir.path)
			continue
		}

		sort.Slice(dirEntries, func(i, j int) bool { return dirEntries[i].Name() < dirEntries[j].Name() })

		for _, de := range dirEntries {
			if len(result.Entries) >= opts.maxFiles() {
				result.Truncated = true
				break
			}

			name := de.Name()
			full := filepath.Join(dir.path, name)
			rel, err := filepath.Rel(root, full)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
				continue
			}
			if matchesIgnore(ignores, rel, de.IsDir()) {
				continue
			}

			if de.IsDir() {
				if builtinIgnoreDirs[name] {
					continue
				}
				if dir.depth+1 > opts.maxDepth() {
					continue
				}
				queue = append(queue, walkDirent{path: full, depth: dir.depth + 1})
				continue
			}

			info, err := de.Info()
			if err != nil {
				indexLog.Printf("skipping unstatable entry %s: %v", full, err)
				result.SkippedPaths = append(result.SkippedPaths, rel)
				continue
			}

			ext := strings.TrimPrefix(filepath.Ext(name), ".")
			if len(allow) > 0 && !allow[ext] {
				continue
			}

			result.Entries = append(result.Entries, FileEntry{
				RelativePath:      rel,
				SizeBytes:         info.Size(),
				ModTime:           info.ModTime(),
				Extension:         ext,
				DirectorySegments: strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/"),
			})
		}
	}

	return result, nil
}

func extensionSet(exts []string) map[string]bool {
	if len(exts) == 0 {
		return nil
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[strings.TrimPrefix(strings.ToLower(e), ".")] = true
	}
	return set
}

// gitignoreRule is a minimal subset of gitignore pattern semantics:
// literal/glob path match via filepath.Match, optional trailing-slash
// directory-only rules, and "!" negation. It does not implement
// double-star recursive globs.
type gitignoreRule struct {
	pattern  string
	dirOnly  bool
	negate   bool
	anchored bool
}

func loadGitignore(root string) []gitignoreRule {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var rules []gitignoreRule
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule := gitignoreRule{}
		if strings.HasPrefix(line, "!") {
			rule.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			rule.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		if strings.HasPrefix(line, "/") {
			rule.anchored = true
			line = strings.TrimPrefix(line, "/")
		}
		rule.pattern = line
		rules = append(rules, rule)
	}
	return rules
}

func matchesIgnore(rules []gitignoreRule, relPath string, isDir bool) bool {
	ignored := false
	base := filepath.Base(relPath)
	for _, r := range rules {
		if r.dirOnly && !isDir {
			continue
		}
		var matched bool
		if r.anchored {
			matched, _ = filepath.Match(r.pattern, relPath)
		} else {
			matched, _ = filepath.Match(r.pattern, base)
			if !matched {
				matched, _ = filepath.Match(r.pattern, relPath)
			}
		}
		if matched {
			ignored = !r.negate
		}
	}
	return ignored
}
