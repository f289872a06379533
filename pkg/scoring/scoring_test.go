package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluekornchips/gandalf/pkg/config"
	"github.com/bluekornchips/gandalf/pkg/fsindex"
)

func TestScoreRanksRecentGoFileOverStaleTxtFile(t *testing.T) {
	cfg := config.Default()
	now := time.Now()

	entries := []fsindex.FileEntry{
		{RelativePath: "src/main.go", SizeBytes: 2000, ModTime: now.Add(-10 * time.Minute), Extension: "go", DirectorySegments: []string{"src"}},
		{RelativePath: "notes.txt", SizeBytes: 2000, ModTime: now.Add(-365 * 24 * time.Hour), Extension: "txt", DirectorySegments: []string{"."}},
	}

	scored := Score(entries, cfg, Inputs{Now: now})
	require.Len(t, scored, 2)
	assert.Equal(t, "src/main.go", scored[0].RelativePath)
	assert.Greater(t, scored[0].Score, scored[1].Score)
}

func TestScoreClampsToMinScore(t *testing.T) {
	cfg := config.Default()
	cfg.Scoring.MinScore = 0.1
	now := time.Now()

	entries := []fsindex.FileEntry{
		{RelativePath: "ancient.bin", SizeBytes: 999999999, ModTime: now.Add(-10000 * time.Hour), Extension: "bin", DirectorySegments: []string{"."}},
	}

	scored := Score(entries, cfg, Inputs{Now: now})
	require.Len(t, scored, 1)
	assert.GreaterOrEqual(t, scored[0].Score, cfg.Scoring.MinScore)
}

func TestBucketingRespectsThresholds(t *testing.T) {
	cfg := config.Default()
	cfg.Display.HighPriority = 5
	cfg.Display.MediumPriority = 2

	assert.Equal(t, PriorityHigh, bucketFor(cfg, 5))
	assert.Equal(t, PriorityMedium, bucketFor(cfg, 2))
	assert.Equal(t, PriorityLow, bucketFor(cfg, 1.9))
}

func TestConversationMentionBoostsScore(t *testing.T) {
	cfg := config.Default()
	now := time.Now()

	entries := []fsindex.FileEntry{
		{RelativePath: "auth/login.go", SizeBytes: 2000, ModTime: now.Add(-48 * time.Hour), Extension: "go", DirectorySegments: []string{"auth"}},
	}

	without := Score(entries, cfg, Inputs{Now: now})
	with := Score(entries, cfg, Inputs{Now: now, ConversationText: []string{"can you fix the bug in login.go please"}})

	require.Len(t, without, 1)
	require.Len(t, with, 1)
	assert.Greater(t, with[0].Score, without[0].Score)
	assert.Equal(t, cfg.Weights.ConversationMention, with[0].ContributingSignals["conversation_mention"])
}

func TestDisplayCapsLimitEachBucket(t *testing.T) {
	cfg := config.Default()
	cfg.Display.MaxHighPriority = 1
	cfg.Display.MaxTopFiles = 100
	now := time.Now()

	entries := []fsindex.FileEntry{
		{RelativePath: "a.go", SizeBytes: 2000, ModTime: now, Extension: "go", DirectorySegments: []string{"src"}},
		{RelativePath: "b.go", SizeBytes: 2000, ModTime: now, Extension: "go", DirectorySegments: []string{"src"}},
	}

	scored := Score(entries, cfg, Inputs{Now: now})
	highCount := 0
	for _, s := range scored {
		if s.Priority == PriorityHigh {
			highCount++
		}
	}
	assert.LessOrEqual(t, highCount, 1)
}

func TestTiesBreakByMtimeThenPathLength(t *testing.T) {
	cfg := config.Default()
	now := time.Now()

	entries := []fsindex.FileEntry{
		{RelativePath: "zzzzzzzzz.go", SizeBytes: 2000, ModTime: now, Extension: "go", DirectorySegments: []string{"."}},
		{RelativePath: "a.go", SizeBytes: 2000, ModTime: now, Extension: "go", DirectorySegments: []string{"."}},
	}

	scored := Score(entries, cfg, Inputs{Now: now})
	require.Len(t, scored, 2)
	assert.Equal(t, scored[0].Score, scored[1].Score)
	assert.Equal(t, "a.go", scored[0].RelativePath, "shorter path should win the tie")
}
