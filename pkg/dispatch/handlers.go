package dispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bluekornchips/gandalf/pkg/constants"
	"github.com/bluekornchips/gandalf/pkg/conversation"
	"github.com/bluekornchips/gandalf/pkg/fsindex"
	"github.com/bluekornchips/gandalf/pkg/scoring"
	"github.com/bluekornchips/gandalf/pkg/security"
	"github.com/bluekornchips/gandalf/pkg/stringutil"
)

// Descriptors is the static tool catalog (§6), one entry per canonical
// tool name. Aliases resolve to these same schemas via canonicalToolName.
func Descriptors() []ToolDescriptor {
	return []ToolDescriptor{
		{Name: "get_project_info", Description: "Report the resolved project root, name, and git status", Schema: toolSchemas["get_project_info"]},
		{Name: "list_project_files", Description: "List project files, optionally ranked by relevance", Schema: toolSchemas["list_project_files"]},
		{Name: "list_cursor_workspaces", Description: "List known conversation workspaces across detected assistants", Schema: toolSchemas["list_cursor_workspaces"]},
		{Name: "recall_conversations", Description: "Return recent conversations across detected assistants", Schema: toolSchemas["recall_conversations"]},
		{Name: "search_conversations", Description: "Search cached conversations by substring", Schema: toolSchemas["search_conversations"]},
		{Name: "export_individual_conversations", Description: "Export conversations to files under GANDALF_HOME/exports", Schema: toolSchemas["export_individual_conversations"]},
	}
}

// Handlers binds every canonical tool name to its HandlerFunc.
func Handlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"get_project_info":                handleGetProjectInfo,
		"list_project_files":              handleListProjectFiles,
		"list_cursor_workspaces":          handleListWorkspaces,
		"recall_conversations":            handleRecallConversations,
		"search_conversations":            handleSearchConversations,
		"export_individual_conversations": handleExportConversations,
	}
}

func handleGetProjectInfo(ctx *Context, args map[string]any) (any, *ToolError) {
	result := map[string]any{
		"project_name":  ctx.Project.Name,
		"project_root":  ctx.Project.Root,
		"was_sanitized": ctx.Project.WasSanitized,
		"is_git_repo":   ctx.Git.IsRepo(ctx.Project.Root),
	}

	if ctx.Git.IsRepo(ctx.Project.Root) {
		result["git"] = map[string]any{
			"branch": ctx.Git.Branch(ctx.Project.Root),
			"head":   ctx.Git.Head(ctx.Project.Root),
			"dirty":  ctx.Git.IsDirty(ctx.Project.Root),
		}
	}

	if includeStats, _ := args["include_stats"].(bool); includeStats {
		walkResult, err := fsindex.Walk(ctx.Project.Root, fsindex.Options{IncludeHidden: true})
		if err != nil {
			return nil, &ToolError{Message: "could not compute file stats: " + err.Error()}
		}
		byExt := map[string]int{}
		for _, e := range walkResult.Entries {
			byExt[e.Extension]++
		}
		result["file_stats"] = map[string]any{
			"total_files":  len(walkResult.Entries),
			"by_extension": byExt,
		}
	}

	return result, nil
}

func handleListProjectFiles(ctx *Context, args map[string]any) (any, *ToolError) {
	opts := fsindex.Options{IncludeHidden: true}

	if v, ok := args["include_hidden"].(bool); ok {
		opts.IncludeHidden = v
	}
	if v, ok := args["max_files"]; ok {
		n, toolErr := toPositiveInt(v, "max_files")
		if toolErr != nil {
			return nil, toolErr
		}
		opts.MaxFiles = n
	}

	var extAllowList []string
	if raw, ok := args["file_types"].([]any); ok {
		for _, v := range raw {
			ext, _ := v.(string)
			if verr := security.ValidateExtension(ext); verr != nil {
				return nil, &ToolError{Message: verr.Message}
			}
			extAllowList = append(extAllowList, ext)
		}
	}
	opts.ExtensionAllowList = extAllowList

	walkResult, err := fsindex.Walk(ctx.Project.Root, opts)
	if err != nil {
		return nil, &ToolError{Message: "could not list project files: " + err.Error()}
	}

	useScoring := true
	if v, ok := args["use_relevance_scoring"].(bool); ok {
		useScoring = v
	}
	if !useScoring {
		sort.Slice(walkResult.Entries, func(i, j int) bool {
			return walkResult.Entries[i].RelativePath < walkResult.Entries[j].RelativePath
		})
		paths := make([]string, len(walkResult.Entries))
		for i, e := range walkResult.Entries {
			paths[i] = e.RelativePath
		}
		return map[string]any{"files": paths, "truncated": walkResult.Truncated}, nil
	}

	scored := scoring.Score(walkResult.Entries, ctx.Weights.Current(), scoring.Inputs{
		Now:             time.Now(),
		RecentGitFiles:  ctx.Git.RecentFiles(ctx.Project.Root),
		ConversationText: ctx.Aggregator.ConversationTextSnippets(constants.DefaultConversationScoringLookback),
	})

	priorities := map[string][]string{"high": {}, "medium": {}, "low": {}}
	allPaths := make([]string, 0, len(scored))
	for _, s := range scored {
		priorities[string(s.Priority)] = append(priorities[string(s.Priority)], s.RelativePath)
		allPaths = append(allPaths, s.RelativePath)
	}

	return map[string]any{
		"files":      allPaths,
		"priorities": priorities,
		"truncated":  walkResult.Truncated,
	}, nil
}

func toPositiveInt(v any, field string) (int, *ToolError) {
	var n int
	switch t := v.(type) {
	case float64:
		n = int(t)
	case int:
		n = t
	case string:
		parsed, err := strconv.Atoi(t)
		if err != nil {
			return 0, &ToolError{Message: field + " must be an integer"}
		}
		n = parsed
	default:
		return 0, &ToolError{Message: field + " must be an integer"}
	}
	if n < 1 {
		return 0, &ToolError{Message: field + " must be >= 1"}
	}
	return n, nil
}

func handleListWorkspaces(ctx *Context, args map[string]any) (any, *ToolError) {
	refs, errs := ctx.Aggregator.ListAllWorkspaces()
	_ = errs

	workspaces := make([]map[string]any, 0, len(refs))
	for _, ref := range refs {
		workspaces = append(workspaces, map[string]any{
			"workspace_hash": ref.Hash,
			"database_path":  ref.DatabasePath,
			"size":           ref.SizeBytes,
			"last_modified":  ref.LastModified,
		})
	}

	return map[string]any{
		"workspaces":      workspaces,
		"total_workspaces": len(workspaces),
	}, nil
}

func handleRecallConversations(ctx *Context, args map[string]any) (any, *ToolError) {
	opts := conversation.RecallOptions{Limit: 50}
	if v, ok := args["fast_mode"].(bool); ok {
		opts.FastMode = v
	}
	if v, ok := args["days_lookback"].(float64); ok {
		opts.DaysLookback = int(v)
	}
	if v, ok := args["limit"].(float64); ok {
		opts.Limit = int(v)
	}

	result := ctx.Aggregator.Recall(opts)

	mode := "fast"
	if !opts.FastMode {
		mode = "full"
	}

	return map[string]any{
		"mode":                mode,
		"total_conversations": len(result.Conversations),
		"parameters":          args,
		"conversations":       result.Conversations,
		"errors":              result.Errors,
	}, nil
}

func handleSearchConversations(ctx *Context, args map[string]any) (any, *ToolError) {
	query, _ := args["query"].(string)
	if verr := security.ValidateQuery("query", query); verr != nil {
		return nil, &ToolError{Message: verr.Message}
	}

	opts := conversation.QueryOptions{Query: query, Limit: 50}
	if v, ok := args["limit"].(float64); ok {
		opts.Limit = int(v)
	}
	if v, ok := args["include_content"].(bool); ok {
		opts.IncludeContent = v
	}

	result := ctx.Aggregator.Search(opts)

	return map[string]any{
		"query":                 query,
		"total_matches":         len(result.Matches),
		"processed_conversations": len(result.Matches),
		"conversations":         result.Matches,
		"errors":                result.Errors,
	}, nil
}

func handleExportConversations(ctx *Context, args map[string]any) (any, *ToolError) {
	format, _ := args["format"].(string)
	if format != "json" && format != "md" && format != "txt" {
		return nil, &ToolError{Message: "format must be one of json, md, txt"}
	}

	filter := conversation.ExportFilter{Limit: 20}
	if v, ok := args["limit"]; ok {
		n, toolErr := toPositiveInt(v, "limit")
		if toolErr != nil {
			return nil, toolErr
		}
		if n > 100 {
			return nil, &ToolError{Message: "Limit must be an integer between 1 and 100"}
		}
		filter.Limit = n
	}
	if v, ok := args["conversation_filter"].(string); ok && v != "" {
		filter.ConversationIDs = []string{v}
	}

	outputDir := filepath.Join(ctx.GandalfHome, "exports")
	if v, ok := args["output_dir"].(string); ok && v != "" {
		outputDir = v
	}

	result := ctx.Aggregator.Export(filter)

	var exported []string
	for _, c := range result.Conversations {
		dir := filepath.Join(outputDir, c.SourceTool)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &ToolError{Message: "could not create export directory: " + err.Error()}
		}
		ext := format
		path := filepath.Join(dir, sanitizeConversationID(c.NativeID)+"."+ext)
		blob, err := renderConversation(c, format)
		if err != nil {
			return nil, &ToolError{Message: err.Error()}
		}
		if err := os.WriteFile(path, blob, 0o644); err != nil {
			return nil, &ToolError{Message: "could not write export file: " + err.Error()}
		}
		exported = append(exported, path)
	}

	return map[string]any{
		"exported_count":    len(exported),
		"files":             exported,
		"output_directory":  outputDir,
		"format":            format,
	}, nil
}

func sanitizeConversationID(id string) string {
	if id == "" {
		return "conversation"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, id)
}

func renderConversation(c conversation.Conversation, format string) ([]byte, error) {
	switch format {
	case "md":
		var b strings.Builder
		fmt.Fprintf(&b, "# %s\n\n", c.Title)
		for i, p := range c.Prompts {
			fmt.Fprintf(&b, "## Prompt %d\n\n%s\n\n", i+1, p)
			if i < len(c.Generations) {
				fmt.Fprintf(&b, "## Response %d\n\n%s\n\n", i+1, c.Generations[i])
			}
		}
		return []byte(stringutil.NormalizeWhitespace(b.String())), nil
	case "txt":
		var b strings.Builder
		for i, p := range c.Prompts {
			fmt.Fprintf(&b, "> %s\n", p)
			if i < len(c.Generations) {
				fmt.Fprintf(&b, "%s\n\n", c.Generations[i])
			}
		}
		return []byte(stringutil.NormalizeWhitespace(b.String())), nil
	default:
		return json.MarshalIndent(c, "", "  ")
	}
}
