package api

import "context"

type (
	// ToolDeclaration describes a tool advertised to the model provider.
	// Declarations are rebuilt per step invocation from the current flow
	// step configuration; they are never assumed stable across calls
	ToolDeclaration struct {
		Parameters  map[string]any `json:"parameters"`
		Name        string         `json:"name"`
		Description string         `json:"description"`
	}

	// ToolHandler performs a tool invocation. The args it receives have
	// already been merged with step payload context by the executor
	ToolHandler func(context.Context, Args) (*ToolResult, error)

	// ToolMetadata binds a declared tool to its execution handler. A
	// handler tool terminates a pipeline-mode conversation when it
	// succeeds; a plain chat tool does not
	ToolMetadata struct {
		Handler     ToolHandler
		Declaration ToolDeclaration
		HandlerTool bool
	}

	// ToolResult is the structured outcome of a tool invocation
	ToolResult struct {
		Fields  Args   `json:"fields,omitempty"`
		Error   string `json:"error,omitempty"`
		Success bool   `json:"success"`
	}
)

// OKResult builds a successful tool result with the given fields
func OKResult(fields Args) *ToolResult {
	return &ToolResult{Success: true, Fields: fields}
}

// FailResult builds a failed tool result with the given message
func FailResult(msg string) *ToolResult {
	return &ToolResult{Success: false, Error: msg}
}

// ResultArgs flattens the result into the map shape fed back to the
// model as a function response payload
func (r *ToolResult) ResultArgs() Args {
	res := Args{"success": r.Success}
	if r.Error != "" {
		res = res.Set("error", r.Error)
	}
	return res.Merge(r.Fields)
}
