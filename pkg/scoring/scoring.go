// Package scoring implements C7: combining independent relevance
// signals into a single score per FileEntry, then bucketing and
// display-capping the result per §4.7.
package scoring

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bluekornchips/gandalf/pkg/config"
	"github.com/bluekornchips/gandalf/pkg/fsindex"
)

// Priority is the three-way bucket a ScoredFile falls into.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ScoredFile is FileEntry plus the scorer's verdict (§3).
type ScoredFile struct {
	fsindex.FileEntry
	Score               float64
	Priority            Priority
	ContributingSignals map[string]float64
}

// Inputs bundles the optional, request-scoped signal sources a caller
// may supply; all are optional and degrade to a zero contribution when
// absent.
type Inputs struct {
	Now              time.Time
	RecentGitFiles   map[string]time.Time
	ConversationText []string // cached conversation bodies to search for mentions
	// ImportersOf maps a path to the number of other high-scoring paths
	// that import it, for the optional import-relationship signal (§4.7). The
	// caller computes this with a single pass over already-scored files;
	// Score does not attempt transitive closure.
	ImportersOf map[string]int
}

// Score computes a ScoredFile for every entry, applying cfg's weights,
// ties broken by mtime (more recent first) then shorter path, and
// finally applies the display caps from cfg.Display.
func Score(entries []fsindex.FileEntry, cfg *config.WeightsConfig, in Inputs) []ScoredFile {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	scored := make([]ScoredFile, 0, len(entries))
	for _, e := range entries {
		signals := map[string]float64{}

		signals["recency"] = recencyScore(cfg, now.Sub(e.ModTime))
		signals["size_fit"] = sizeFitScore(cfg, e.SizeBytes)
		signals["extension"] = extensionScore(cfg, e.Extension)
		signals["directory"] = directoryScore(cfg, e.DirectorySegments)
		signals["git_activity"] = gitActivityScore(cfg, now, e.RelativePath, in.RecentGitFiles)
		signals["conversation_mention"] = conversationMentionScore(cfg, e.RelativePath, in.ConversationText)
		signals["import_relationship"] = importRelationshipScore(cfg, e.RelativePath, in.ImportersOf)

		total := 0.0
		for _, v := range signals {
			total += v
		}
		if total < cfg.Scoring.MinScore {
			total = cfg.Scoring.MinScore
		}

		scored = append(scored, ScoredFile{
			FileEntry:           e,
			Score:               total,
			ContributingSignals: signals,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].ModTime.Equal(scored[j].ModTime) {
			return scored[i].ModTime.After(scored[j].ModTime)
		}
		return len(scored[i].RelativePath) < len(scored[j].RelativePath)
	})

	for i := range scored {
		scored[i].Priority = bucketFor(cfg, scored[i].Score)
	}

	return applyDisplayCaps(scored, cfg)
}

func recencyScore(cfg *config.WeightsConfig, age time.Duration) float64 {
	return cfg.Weights.RecentModification * recencyMultiplier(cfg, age)
}

func recencyMultiplier(cfg *config.WeightsConfig, age time.Duration) float64 {
	r := cfg.Recency
	switch {
	case age <= r.HourThreshold:
		return r.HourMultiplier
	case age <= r.DayThreshold:
		return r.DayMultiplier
	case age <= r.WeekThreshold:
		return r.WeekMultiplier
	default:
		return 0
	}
}

func sizeFitScore(cfg *config.WeightsConfig, size int64) float64 {
	s := cfg.Size
	w := cfg.Weights.FileSizeOptimal

	switch {
	case size >= s.OptimalMin && size <= s.OptimalMax:
		return w
	case size < s.OptimalMin:
		return w * 0.1
	case size <= s.AcceptableMax:
		return w * s.AcceptableMultiplier
	default:
		return w * s.LargeMultiplier
	}
}

func extensionScore(cfg *config.WeightsConfig, ext string) float64 {
	if ext == "" {
		return 0
	}
	key := "." + strings.ToLower(strings.TrimPrefix(ext, "."))
	if w, ok := cfg.Extensions[key]; ok {
		return cfg.Weights.FileTypePriority * w
	}
	return 0
}

func directoryScore(cfg *config.WeightsConfig, segments []string) float64 {
	total := 0.0
	for _, seg := range segments {
		name := seg
		if name == "." || name == "" {
			name = "root"
		}
		if w, ok := cfg.Directories[strings.ToLower(name)]; ok {
			total += cfg.Weights.DirectoryImportance * w
		}
	}
	return total
}

func gitActivityScore(cfg *config.WeightsConfig, now time.Time, relPath string, recent map[string]time.Time) float64 {
	if recent == nil {
		return 0
	}
	touched, ok := recent[relPath]
	if !ok {
		return 0
	}
	return cfg.Weights.GitActivity * recencyMultiplier(cfg, now.Sub(touched))
}

func conversationMentionScore(cfg *config.WeightsConfig, relPath string, bodies []string) float64 {
	if len(bodies) == 0 {
		return 0
	}
	base := filepath.Base(relPath)
	basePattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(base) + `\b`)
	pathPattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(relPath) + `\b`)
	for _, body := range bodies {
		if basePattern.MatchString(body) || pathPattern.MatchString(body) {
			return cfg.Weights.ConversationMention
		}
	}
	return 0
}

func importRelationshipScore(cfg *config.WeightsConfig, relPath string, importersOf map[string]int) float64 {
	if importersOf == nil {
		return 0
	}
	if count, ok := importersOf[relPath]; ok && count > 0 {
		return cfg.Weights.ImportRelationship
	}
	return 0
}

func bucketFor(cfg *config.WeightsConfig, score float64) Priority {
	switch {
	case score >= cfg.Display.HighPriority:
		return PriorityHigh
	case score >= cfg.Display.MediumPriority:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func applyDisplayCaps(scored []ScoredFile, cfg *config.WeightsConfig) []ScoredFile {
	var high, medium, low []ScoredFile
	for _, s := range scored {
		switch s.Priority {
		case PriorityHigh:
			high = append(high, s)
		case PriorityMedium:
			medium = append(medium, s)
		default:
			low = append(low, s)
		}
	}

	high = capSlice(high, cfg.Display.MaxHighPriority)
	medium = capSlice(medium, cfg.Display.MaxMediumPriority)

	out := append(high, medium...)
	out = append(out, low...)
	return capSlice(out, cfg.Display.MaxTopFiles)
}

func capSlice(s []ScoredFile, max int) []ScoredFile {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
