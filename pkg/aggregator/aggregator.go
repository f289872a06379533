// Package aggregator implements C10: fanning out across every detected
// conversation driver concurrently, merging and deduping the results,
// and caching per-tool indexes fingerprinted against the source state
// files they were built from.
package aggregator

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/bluekornchips/gandalf/pkg/cache"
	"github.com/bluekornchips/gandalf/pkg/constants"
	"github.com/bluekornchips/gandalf/pkg/conversation"
	"github.com/bluekornchips/gandalf/pkg/logger"
	"github.com/bluekornchips/gandalf/pkg/sliceutil"
)

var aggLog = logger.New("aggregator")

// ExtractorState is the state machine a single driver call moves through
// during one request (§9).
type ExtractorState string

const (
	StateIdle        ExtractorState = "idle"
	StateProbing     ExtractorState = "probing"
	StateReading     ExtractorState = "reading"
	StateNormalizing ExtractorState = "normalizing"
	StateDone        ExtractorState = "done"
	StateDegraded    ExtractorState = "degraded"
)

// SourceError annotates a degraded driver in an otherwise successful
// aggregation (§7, kind 3).
type SourceError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// RecallResult is the aggregator's output for the recall_conversations
// tool: merged, capped, and annotated with any partial failures.
type RecallResult struct {
	Conversations []conversation.Conversation
	Errors        []SourceError
}

// Aggregator drives a fixed set of drivers concurrently, bounded by a
// worker pool sized min(8, 2*NumCPU) per §5.
type Aggregator struct {
	drivers []conversation.Driver
	cache   *cache.Cache
}

// New builds an Aggregator over drivers, using c for per-tool index
// caching in the "conversations" namespace.
func New(drivers []conversation.Driver, c *cache.Cache) *Aggregator {
	return &Aggregator{drivers: drivers, cache: c}
}

// ListAllWorkspaces enumerates every workspace known to every driver,
// concurrently, for the list_cursor_workspaces tool family. A driver
// whose ListWorkspaces call fails is reported in the returned errors
// without blocking the others. This call deliberately bypasses the
// conversation index cache: it returns WorkspaceRef (location/size/mtime),
// not the Conversation entries CachedIndex stores, and ListWorkspaces
// itself is already a cheap directory/file stat rather than a parse.
func (a *Aggregator) ListAllWorkspaces() ([]conversation.WorkspaceRef, []SourceError) {
	type outcome struct {
		source string
		refs   []conversation.WorkspaceRef
		err    error
	}

	p := pool.NewWithResults[outcome]().WithMaxGoroutines(poolSize())
	for _, d := range a.drivers {
		d := d
		p.Go(func() outcome {
			refs, err := d.ListWorkspaces()
			return outcome{source: d.SourceTool(), refs: refs, err: err}
		})
	}

	var all []conversation.WorkspaceRef
	var errs []SourceError
	for _, o := range p.Wait() {
		if o.err != nil {
			errs = append(errs, SourceError{Source: o.source, Message: o.err.Error()})
			continue
		}
		all = append(all, o.refs...)
	}
	return all, errs
}

func poolSize() int {
	n := runtime.NumCPU() * 2
	if n > maxWorkerPoolSize {
		n = maxWorkerPoolSize
	}
	if n < 1 {
		n = 1
	}
	return n
}

const maxWorkerPoolSize = 8

type driverRecallOutcome struct {
	source string
	convs  []conversation.Conversation
	err    error
}

// Recall fans out Recall across every driver's every known workspace,
// concurrently, then dedupes by (source_tool, native_id) first-seen-wins
// and merges sorted by UpdatedAt descending (§4.11, §9 open question:
// first-seen dedup chosen over a content-hash tiebreak).
func (a *Aggregator) Recall(opts conversation.RecallOptions) RecallResult {
	p := pool.NewWithResults[driverRecallOutcome]().WithMaxGoroutines(poolSize())

	for _, d := range a.drivers {
		d := d
		p.Go(func() driverRecallOutcome {
			return a.recallOneDriver(d, opts)
		})
	}

	outcomes := p.Wait()
	result := mergeRecallOutcomes(outcomes)
	if opts.Limit > 0 && len(result.Conversations) > opts.Limit {
		result.Conversations = result.Conversations[:opts.Limit]
	}
	return result
}

func (a *Aggregator) recallOneDriver(d conversation.Driver, opts conversation.RecallOptions) driverRecallOutcome {
	all, err := a.driverIndex(d, opts.FastMode)
	if err != nil {
		return driverRecallOutcome{source: d.SourceTool(), err: err}
	}

	if opts.DaysLookback > 0 {
		cutoff := time.Now().AddDate(0, 0, -opts.DaysLookback)
		filtered := make([]conversation.Conversation, 0, len(all))
		for _, c := range all {
			if c.UpdatedAt.After(cutoff) {
				filtered = append(filtered, c)
			}
		}
		all = filtered
	}

	return driverRecallOutcome{source: d.SourceTool(), convs: all}
}

// driverIndex returns every conversation d currently exposes across all of
// its workspaces, backed by the "conversations" cache namespace (§4.11): a
// hit against the driver's current workspace fingerprint skips re-reading
// every workspace database/transcript; a miss reads them all, through the
// usual probing/reading/normalizing state progression (§9), and stores the
// result under the new fingerprint for the next call.
func (a *Aggregator) driverIndex(d conversation.Driver, fastMode bool) ([]conversation.Conversation, error) {
	state := StateProbing
	workspaces, err := d.ListWorkspaces()
	if err != nil {
		aggLog.Printf("%s: %s -> degraded: %v", d.SourceTool(), state, err)
		return nil, err
	}

	fp := fingerprintWorkspaces(workspaces)
	if idx, ok := a.LoadCachedIndex(d.SourceTool(), fp); ok {
		aggLog.Printf("%s: conversation index cache hit, skipping %d workspace reads", d.SourceTool(), len(workspaces))
		return idx.Entries, nil
	}

	state = StateReading
	var all []conversation.Conversation
	for _, ws := range workspaces {
		convs, err := d.Recall(ws, conversation.RecallOptions{FastMode: fastMode})
		if err != nil {
			aggLog.Printf("%s: %s -> degraded for workspace %s: %v", d.SourceTool(), state, ws.Hash, err)
			continue
		}
		all = append(all, convs...)
	}

	state = StateNormalizing
	if err := a.StoreCachedIndex(d.SourceTool(), CachedIndex{Entries: all, Fingerprint: fp}, constants.ConversationCacheTTL); err != nil {
		aggLog.Printf("%s: %s -> could not persist conversation index: %v", d.SourceTool(), state, err)
	}

	return all, nil
}

// fingerprintWorkspaces observes every workspace's location, size, and
// mtime and combines them into the fingerprint a cached index is validated
// against (§3 ConversationIndex.source_fingerprint).
func fingerprintWorkspaces(workspaces []conversation.WorkspaceRef) string {
	obs := make([][3]string, len(workspaces))
	for i, ws := range workspaces {
		path := ws.DatabasePath
		if path == "" {
			path = ws.Path
		}
		obs[i] = [3]string{path, strconv.FormatInt(ws.SizeBytes, 10), strconv.FormatInt(ws.LastModified.UnixNano(), 10)}
	}
	return Fingerprint(obs)
}

// ConversationTextSnippets returns recent prompt/response bodies across
// every driver, feeding the conversation_mention relevance signal (§4.7).
// It reuses Recall's cached per-tool index, so on a warm cache this call
// costs no extractor I/O at all.
func (a *Aggregator) ConversationTextSnippets(limit int) []string {
	result := a.Recall(conversation.RecallOptions{FastMode: true, Limit: limit})
	var texts []string
	for _, c := range result.Conversations {
		texts = append(texts, c.Prompts...)
		texts = append(texts, c.Generations...)
	}
	return texts
}

func mergeRecallOutcomes(outcomes []driverRecallOutcome) RecallResult {
	seen := make(map[string]bool)
	var merged []conversation.Conversation
	var errs []SourceError

	for _, o := range outcomes {
		if o.err != nil {
			errs = append(errs, SourceError{Source: o.source, Message: o.err.Error()})
			continue
		}
		for _, c := range o.convs {
			if seen[c.Key()] {
				continue // first-seen-wins dedup (§9 open question)
			}
			seen[c.Key()] = true
			merged = append(merged, c)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].UpdatedAt.After(merged[j].UpdatedAt)
	})

	return RecallResult{Conversations: merged, Errors: errs}
}

// SearchResult is the aggregator's output for search_conversations.
type SearchResult struct {
	Matches []conversation.QueryMatch
	Errors  []SourceError
}

// Search matches opts.Query against every driver's cached conversation
// index, merging matches sorted by UpdatedAt descending. Reusing the same
// index Recall populates means a search against a warm cache costs no
// extractor I/O (§4.11).
func (a *Aggregator) Search(opts conversation.QueryOptions) SearchResult {
	type outcome struct {
		source  string
		matches []conversation.QueryMatch
		err     error
	}

	p := pool.NewWithResults[outcome]().WithMaxGoroutines(poolSize())
	for _, d := range a.drivers {
		d := d
		p.Go(func() outcome {
			convs, err := a.driverIndex(d, false)
			if err != nil {
				return outcome{source: d.SourceTool(), err: err}
			}
			var matches []conversation.QueryMatch
			needle := opts.Query
			for _, c := range convs {
				titleHit := sliceutil.ContainsIgnoreCase(c.Title, needle)
				contentHit := false
				if opts.IncludeContent {
					contentHit = containsInAny(c.Prompts, needle) || containsInAny(c.Generations, needle)
				}
				if titleHit || contentHit {
					matches = append(matches, conversation.QueryMatch{Conversation: c, MatchedInTitle: titleHit, MatchedInContent: contentHit})
				}
				if opts.Limit > 0 && len(matches) >= opts.Limit {
					break
				}
			}
			return outcome{source: d.SourceTool(), matches: matches}
		})
	}

	outcomes := p.Wait()
	var merged []conversation.QueryMatch
	var errs []SourceError
	for _, o := range outcomes {
		if o.err != nil {
			errs = append(errs, SourceError{Source: o.source, Message: o.err.Error()})
			continue
		}
		merged = append(merged, o.matches...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].UpdatedAt.After(merged[j].UpdatedAt)
	})
	if opts.Limit > 0 && len(merged) > opts.Limit {
		merged = merged[:opts.Limit]
	}
	return SearchResult{Matches: merged, Errors: errs}
}

// ExportResult is the aggregator's output for export_individual_conversations.
type ExportResult struct {
	Conversations []conversation.Conversation
	Errors        []SourceError
}

// Export fans Export out across every driver/workspace and merges the
// result; callers are responsible for writing files to disk (the
// aggregator only gathers content, §4.11 names the destination layout).
func (a *Aggregator) Export(filter conversation.ExportFilter) ExportResult {
	type outcome struct {
		source string
		convs  []conversation.Conversation
		err    error
	}

	p := pool.NewWithResults[outcome]().WithMaxGoroutines(poolSize())
	for _, d := range a.drivers {
		d := d
		p.Go(func() outcome {
			convs, err := a.driverIndex(d, false)
			if err != nil {
				return outcome{source: d.SourceTool(), err: err}
			}
			return outcome{source: d.SourceTool(), convs: conversation.ApplyExportFilter(convs, filter)}
		})
	}

	outcomes := p.Wait()
	seen := make(map[string]bool)
	var merged []conversation.Conversation
	var errs []SourceError
	for _, o := range outcomes {
		if o.err != nil {
			errs = append(errs, SourceError{Source: o.source, Message: o.err.Error()})
			continue
		}
		for _, c := range o.convs {
			if seen[c.Key()] {
				continue
			}
			seen[c.Key()] = true
			merged = append(merged, c)
		}
	}
	if filter.Limit > 0 && len(merged) > filter.Limit {
		merged = merged[:filter.Limit]
	}
	return ExportResult{Conversations: merged, Errors: errs}
}

// CachedIndex is what gets persisted to the "conversations" cache
// namespace per source tool: a snapshot plus the fingerprint it was
// built from (§3 ConversationIndex).
type CachedIndex struct {
	Entries     []conversation.Conversation `json:"entries"`
	Fingerprint string                      `json:"fingerprint"`
}

// LoadCachedIndex returns a source tool's cached conversation index if
// present and its fingerprint still matches.
func (a *Aggregator) LoadCachedIndex(sourceTool, fingerprint string) (*CachedIndex, bool) {
	if a.cache == nil {
		return nil, false
	}
	raw, ok := a.cache.Get("conversations", sourceTool, fingerprint)
	if !ok {
		return nil, false
	}
	var idx CachedIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		aggLog.Printf("%s: cached index corrupt, ignoring: %v", sourceTool, err)
		return nil, false
	}
	return &idx, true
}

// StoreCachedIndex persists a source tool's conversation index under the
// given fingerprint and ttl.
func (a *Aggregator) StoreCachedIndex(sourceTool string, idx CachedIndex, ttl time.Duration) error {
	if a.cache == nil {
		return nil
	}
	blob, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshaling conversation index for %s: %w", sourceTool, err)
	}
	return a.cache.Put("conversations", sourceTool, blob, ttl, idx.Fingerprint)
}

func containsInAny(items []string, needle string) bool {
	for _, item := range items {
		if sliceutil.ContainsIgnoreCase(item, needle) {
			return true
		}
	}
	return false
}

// Fingerprint combines a set of (path, size, mtimeUnixNano) observations
// into a single stable string (§3 ConversationIndex.source_fingerprint).
func Fingerprint(observations [][3]string) string {
	parts := make([]string, len(observations))
	for i, o := range observations {
		parts[i] = strings.Join(o[:], ":")
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}
