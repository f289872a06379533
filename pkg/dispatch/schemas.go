package dispatch

// toolSchemas holds the inline JSON Schema for each tool's arguments
// object (§6). unknown fields are rejected ("additionalProperties":
// false) as the external interface contract requires.
var toolSchemas = map[string]string{
	"get_project_info": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"include_stats": {"type": "boolean"}
		}
	}`,

	"list_project_files": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"file_types": {"type": "array", "items": {"type": "string"}, "maxItems": 100},
			"max_files": {"type": "integer", "minimum": 1},
			"use_relevance_scoring": {"type": "boolean"},
			"include_hidden": {"type": "boolean"}
		}
	}`,

	"list_cursor_workspaces": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {}
	}`,

	"recall_conversations": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"fast_mode": {"type": "boolean"},
			"days_lookback": {"type": "integer", "minimum": 0},
			"limit": {"type": "integer", "minimum": 1, "maximum": 1000},
			"workspace_filter": {"type": "string"}
		}
	}`,

	"search_conversations": `{
		"type": "object",
		"additionalProperties": false,
		"required": ["query"],
		"properties": {
			"query": {"type": "string", "maxLength": 100},
			"limit": {"type": "integer", "minimum": 1},
			"include_content": {"type": "boolean"},
			"format": {"type": "string", "enum": ["json", "markdown", "cursor"]}
		}
	}`,

	"export_individual_conversations": `{
		"type": "object",
		"additionalProperties": false,
		"required": ["format"],
		"properties": {
			"format": {"type": "string", "enum": ["json", "md", "txt"]},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100},
			"conversation_filter": {"type": "string"},
			"output_dir": {"type": "string"}
		}
	}`,
}

// toolAliases maps alternate tool names to their canonical entry in
// toolSchemas and the handlers map (§9 open question: recall_conversations
// and recall_cursor_conversations are the same tool). A canonical name may
// have several aliases.
var toolAliases = map[string]string{
	"recall_cursor_conversations":      "recall_conversations",
	"recall_claude_code_conversations": "recall_conversations",
	"recall_windsurf_conversations":    "recall_conversations",
	"search_cursor_conversations":      "search_conversations",
	"query_conversation_context":       "search_conversations",
	"list_claude_workspaces":           "list_cursor_workspaces",
	"list_windsurf_workspaces":         "list_cursor_workspaces",
}

func canonicalToolName(name string) string {
	if canonical, ok := toolAliases[name]; ok {
		return canonical
	}
	return name
}
