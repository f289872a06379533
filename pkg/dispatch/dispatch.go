// Package dispatch implements C11: mapping MCP tool names to handlers,
// validating arguments against each tool's JSON Schema plus the security
// validator, and formatting results into the MCP content envelope (§4.2).
package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/bluekornchips/gandalf/pkg/logger"
	"github.com/bluekornchips/gandalf/pkg/security"
)

var dispatchLog = logger.New("dispatch")

// ToolError is a tool-call-level failure (§7 kind 2): reported as a
// successful JSON-RPC response whose result carries isError:true, never
// as a JSON-RPC protocol error.
type ToolError struct {
	Message string
}

func (e *ToolError) Error() string { return e.Message }

// HandlerFunc is the shared signature every tool handler implements
// (§9: "model as a map from name to a pair (schema, handler-function
// value)").
type HandlerFunc func(ctx *Context, args map[string]any) (any, *ToolError)

// ToolDescriptor is one entry in the tools/list catalog.
type ToolDescriptor struct {
	Name        string
	Description string
	Schema      string // raw JSON Schema text, reused verbatim in tools/list
}

// Registry is the compiled tool catalog: schema validators plus handler
// functions, built once at startup.
type Registry struct {
	descriptors []ToolDescriptor
	compiled    map[string]*jsonschema.Schema
	handlers    map[string]HandlerFunc
}

// NewRegistry compiles every schema in descriptors and binds it to the
// handler with the same name. A compile failure for any tool is a
// startup error (§7: fatal errors are confined to startup).
func NewRegistry(descriptors []ToolDescriptor, handlers map[string]HandlerFunc) (*Registry, error) {
	compiler := jsonschema.NewCompiler()
	compiled := make(map[string]*jsonschema.Schema, len(descriptors))

	for _, d := range descriptors {
		url := "mem://tools/" + d.Name + ".json"
		var doc any
		if err := json.Unmarshal([]byte(d.Schema), &doc); err != nil {
			return nil, fmt.Errorf("parsing schema for %s: %w", d.Name, err)
		}
		if err := compiler.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("registering schema for %s: %w", d.Name, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compiling schema for %s: %w", d.Name, err)
		}
		compiled[d.Name] = schema
	}

	return &Registry{descriptors: descriptors, compiled: compiled, handlers: handlers}, nil
}

// Descriptors returns the static tool catalog for tools/list.
func (r *Registry) Descriptors() []ToolDescriptor { return r.descriptors }

// ContentBlock is one entry in a tools/call result's content array, per
// the MCP content envelope.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the full tools/call result shape (§7): IsError true
// means this is a tool-call-level failure, never a JSON-RPC error.
type CallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

// Call validates rawArgs against name's schema and the security
// validator, then invokes its handler. An unknown tool, a schema
// violation, or a security rejection all become isError:true results,
// never panics and never a server crash (§8 scenario 5).
func (r *Registry) Call(ctx *Context, name string, rawArgs json.RawMessage) CallResult {
	canonical := canonicalToolName(name)

	schema, ok := r.compiled[canonical]
	if !ok {
		return errorResult(fmt.Sprintf("unknown tool: %s", name))
	}
	handler, ok := r.handlers[canonical]
	if !ok {
		return errorResult(fmt.Sprintf("unknown tool: %s", name))
	}

	if len(rawArgs) == 0 {
		rawArgs = json.RawMessage(`{}`)
	}
	if verr := security.ValidateRawParams(rawArgs); verr != nil {
		return errorResult(verr.Message)
	}

	var args map[string]any
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return errorResult("arguments must be a JSON object: " + err.Error())
	}

	if err := schema.Validate(args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments for %s: %v", canonical, err))
	}

	result, toolErr := handler(ctx, args)
	if toolErr != nil {
		dispatchLog.Printf("%s: %s", canonical, toolErr.Message)
		return errorResult(toolErr.Message)
	}

	text, err := json.Marshal(result)
	if err != nil {
		return errorResult("failed to format result: " + err.Error())
	}

	return CallResult{Content: []ContentBlock{{Type: "text", Text: string(text)}}}
}

func errorResult(message string) CallResult {
	return CallResult{
		Content: []ContentBlock{{Type: "text", Text: message}},
		IsError: true,
	}
}
