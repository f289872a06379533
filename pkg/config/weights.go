// Package config implements C1: loading and validating Gandalf's scoring
// weights, limits, and security policy.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/bluekornchips/gandalf/pkg/logger"
)

var configLog = logger.New("config:weights")

//go:embed default_weights.yaml
var embeddedDefaults []byte

// SignalWeights holds the per-signal weights summed by the relevance
// scorer (C7).
type SignalWeights struct {
	RecentModification   float64 `yaml:"recent_modification"`
	FileSizeOptimal      float64 `yaml:"file_size_optimal"`
	ImportRelationship   float64 `yaml:"import_relationship"`
	ConversationMention  float64 `yaml:"conversation_mention"`
	GitActivity          float64 `yaml:"git_activity"`
	FileTypePriority     float64 `yaml:"file_type_priority"`
	DirectoryImportance  float64 `yaml:"directory_importance"`
}

// SizeModel parameterizes the file-size-fit signal.
type SizeModel struct {
	OptimalMin           int64   `yaml:"optimal_min"`
	OptimalMax           int64   `yaml:"optimal_max"`
	AcceptableMax        int64   `yaml:"acceptable_max"`
	AcceptableMultiplier float64 `yaml:"acceptable_multiplier"`
	LargeMultiplier      float64 `yaml:"large_multiplier"`
}

// RecencyModel parameterizes the recency-bucketing signal shared by
// file-modification and git-activity scoring.
type RecencyModel struct {
	HourMultiplier float64       `yaml:"hour_threshold_multiplier"`
	DayMultiplier  float64       `yaml:"day_threshold_multiplier"`
	WeekMultiplier float64       `yaml:"week_threshold_multiplier"`
	HourThreshold  time.Duration `yaml:"hour_threshold"`
	DayThreshold   time.Duration `yaml:"day_threshold"`
	WeekThreshold  time.Duration `yaml:"week_threshold"`
}

// DisplayLimits bound how many files per priority bucket are returned.
type DisplayLimits struct {
	MaxHighPriority   int     `yaml:"max_high_priority"`
	MaxMediumPriority int     `yaml:"max_medium_priority"`
	MaxTopFiles       int     `yaml:"max_top_files"`
	HighPriority      float64 `yaml:"high_priority"`
	MediumPriority    float64 `yaml:"medium_priority"`
}

// ScoringLimits bound the cache/scoring cross-cutting knobs.
type ScoringLimits struct {
	MinScore        float64       `yaml:"min_score"`
	GitCacheTTL     time.Duration `yaml:"git_cache_ttl"`
	GitLookbackDays int           `yaml:"git_lookback_days"`
	GitTimeout      time.Duration `yaml:"git_timeout"`
}

// WeightsConfig is the process-wide, immutable-after-load configuration
// singleton described in the data model (§3).
type WeightsConfig struct {
	Weights      SignalWeights      `yaml:"weights"`
	Size         SizeModel          `yaml:"size"`
	Recency      RecencyModel       `yaml:"recency"`
	Extensions   map[string]float64 `yaml:"extensions"`
	Directories  map[string]float64 `yaml:"directories"`
	Display      DisplayLimits      `yaml:"display"`
	Scoring      ScoringLimits      `yaml:"scoring"`
}

type yamlDoc struct {
	Weights     SignalWeights      `yaml:"weights"`
	Size        SizeModel          `yaml:"size"`
	Recency     RecencyModel       `yaml:"recency"`
	Extensions  map[string]float64 `yaml:"extensions"`
	Directories map[string]float64 `yaml:"directories"`
	Display     DisplayLimits      `yaml:"display"`
	Scoring     ScoringLimits      `yaml:"scoring"`
}

// Default returns the configuration parsed from the embedded default
// weights file. It panics only if the embedded asset itself is malformed,
// which would indicate a build-time defect rather than a runtime one.
func Default() *WeightsConfig {
	cfg, err := parse(embeddedDefaults)
	if err != nil {
		panic(fmt.Sprintf("gandalf: embedded default_weights.yaml is invalid: %v", err))
	}
	return cfg
}

// ResolvePath implements the three-tier path chain from §4.12:
// $GANDALF_WEIGHTS_FILE, then $GANDALF_HOME/config/weights.yaml, then
// "" (meaning: use the embedded default).
func ResolvePath(gandalfHome string) string {
	if p := os.Getenv("GANDALF_WEIGHTS_FILE"); p != "" {
		return p
	}
	if gandalfHome != "" {
		candidate := filepath.Join(gandalfHome, "config", "weights.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Load loads the weights configuration from path, falling back to the
// embedded defaults (with a logged warning, never a startup failure) on
// any read or validation error. path == "" always yields the embedded
// defaults silently.
func Load(path string) *WeightsConfig {
	if path == "" {
		return Default()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		configLog.Printf("could not read weights file %s: %v, falling back to defaults", path, err)
		return Default()
	}

	cfg, err := parse(raw)
	if err != nil {
		configLog.Printf("invalid weights file %s: %v, falling back to defaults", path, err)
		return Default()
	}

	return cfg
}

func parse(raw []byte) (*WeightsConfig, error) {
	cfg, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if errs := Validate(cfg); len(errs) > 0 {
		return nil, errs[0]
	}
	return cfg, nil
}

// Parse unmarshals raw weights yaml without validating it, so callers
// (notably "gandalf config validate") can report every Validate error
// instead of only the first.
func Parse(raw []byte) (*WeightsConfig, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing weights yaml: %w", err)
	}

	return &WeightsConfig{
		Weights:     doc.Weights,
		Size:        doc.Size,
		Recency:     doc.Recency,
		Extensions:  doc.Extensions,
		Directories: doc.Directories,
		Display:     doc.Display,
		Scoring:     doc.Scoring,
	}, nil
}

// Validate returns every schema violation found in cfg: negative or
// out-of-range weights, non-positive limits where a positive value is
// required. An empty slice means cfg is valid.
func Validate(cfg *WeightsConfig) []error {
	var errs []error

	checkRange := func(name string, v float64) {
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("%s: must be within [0, 100], got %v", name, v))
		}
	}

	checkRange("weights.recent_modification", cfg.Weights.RecentModification)
	checkRange("weights.file_size_optimal", cfg.Weights.FileSizeOptimal)
	checkRange("weights.import_relationship", cfg.Weights.ImportRelationship)
	checkRange("weights.conversation_mention", cfg.Weights.ConversationMention)
	checkRange("weights.git_activity", cfg.Weights.GitActivity)
	checkRange("weights.file_type_priority", cfg.Weights.FileTypePriority)
	checkRange("weights.directory_importance", cfg.Weights.DirectoryImportance)
	checkRange("size.acceptable_multiplier", cfg.Size.AcceptableMultiplier)
	checkRange("size.large_multiplier", cfg.Size.LargeMultiplier)
	checkRange("recency.hour_threshold_multiplier", cfg.Recency.HourMultiplier)
	checkRange("recency.day_threshold_multiplier", cfg.Recency.DayMultiplier)
	checkRange("recency.week_threshold_multiplier", cfg.Recency.WeekMultiplier)

	if cfg.Size.OptimalMin < 0 {
		errs = append(errs, fmt.Errorf("size.optimal_min: must be >= 0, got %d", cfg.Size.OptimalMin))
	}
	if cfg.Size.OptimalMax <= cfg.Size.OptimalMin {
		errs = append(errs, fmt.Errorf("size.optimal_max: must be > size.optimal_min"))
	}
	if cfg.Size.AcceptableMax <= cfg.Size.OptimalMax {
		errs = append(errs, fmt.Errorf("size.acceptable_max: must be > size.optimal_max"))
	}

	if cfg.Display.HighPriority <= cfg.Display.MediumPriority {
		errs = append(errs, fmt.Errorf("display.high_priority: must be > display.medium_priority"))
	}
	if cfg.Display.MaxHighPriority < 0 || cfg.Display.MaxMediumPriority < 0 || cfg.Display.MaxTopFiles < 0 {
		errs = append(errs, fmt.Errorf("display: max_* limits must be >= 0"))
	}

	if cfg.Scoring.GitLookbackDays < 0 {
		errs = append(errs, fmt.Errorf("scoring.git_lookback_days: must be >= 0"))
	}
	if cfg.Scoring.GitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("scoring.git_timeout: must be > 0"))
	}
	if cfg.Scoring.GitCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("scoring.git_cache_ttl: must be > 0"))
	}

	for ext, w := range cfg.Extensions {
		if w < 0 {
			errs = append(errs, fmt.Errorf("extensions[%s]: must be >= 0, got %v", ext, w))
		}
	}
	for dir, w := range cfg.Directories {
		if w < 0 {
			errs = append(errs, fmt.Errorf("directories[%s]: must be >= 0, got %v", dir, w))
		}
	}

	return errs
}
