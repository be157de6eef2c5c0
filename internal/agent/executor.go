package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/datamill-io/datamill/pkg/api"
	"github.com/datamill-io/datamill/pkg/log"
)

// ToolExecutor resolves tool calls to their bound handlers and invokes
// them. Execution never raises: handler errors and panics are downgraded
// to failed results so the conversation loop can feed them back to the
// model as function responses
type ToolExecutor struct {
	tools map[string]*api.ToolMetadata
}

var (
	ErrToolNotFound = errors.New("tool not found")
	ErrToolNotBound = errors.New("tool has no handler binding")
)

// NewToolExecutor creates an executor over the given tool bindings.
// Bindings are rebuilt per step invocation from the current flow step
// configuration
func NewToolExecutor(tools ...*api.ToolMetadata) *ToolExecutor {
	byName := make(map[string]*api.ToolMetadata, len(tools))
	for _, tool := range tools {
		byName[tool.Declaration.Name] = tool
	}
	return &ToolExecutor{tools: byName}
}

// Declarations returns the tool list advertised to the model
func (x *ToolExecutor) Declarations() []api.ToolDeclaration {
	res := make([]api.ToolDeclaration, 0, len(x.tools))
	for _, tool := range x.tools {
		res = append(res, tool.Declaration)
	}
	return res
}

// Lookup resolves a tool name to its metadata
func (x *ToolExecutor) Lookup(name string) (*api.ToolMetadata, error) {
	tool, ok := x.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if tool.Handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotBound, name)
	}
	return tool, nil
}

// Execute runs the handler bound to the call. The call arguments are
// merged over the step scope (job id, step id, engine data) so handlers
// never receive raw, unscoped arguments
func (x *ToolExecutor) Execute(
	ctx context.Context, call *api.FunctionCall, scope api.Args,
) *api.ToolResult {
	tool, err := x.Lookup(call.Name)
	if err != nil {
		return api.FailResult(err.Error())
	}

	args := scope.Merge(call.Args)
	result := x.invoke(ctx, call.Name, tool.Handler, args)
	if result == nil {
		return api.FailResult("tool returned no result")
	}
	return result
}

func (x *ToolExecutor) invoke(
	ctx context.Context, name string, handler api.ToolHandler, args api.Args,
) (result *api.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool handler panic",
				log.Tool(name),
				slog.Any("panic", r))
			result = api.FailResult(fmt.Sprintf("tool panic: %v", r))
		}
	}()

	res, err := handler(ctx, args)
	if err != nil {
		return api.FailResult(err.Error())
	}
	return res
}
