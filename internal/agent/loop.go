package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/datamill-io/datamill/internal/config"
	"github.com/datamill-io/datamill/pkg/api"
	"github.com/datamill-io/datamill/pkg/log"
)

type (
	// Loop drives a bounded multi-turn exchange between a model provider
	// and the tool executor. In pipeline mode the loop ends as soon as a
	// handler tool reports success: a pipeline AI step performs exactly
	// one terminal action
	Loop struct {
		provider Provider
		executor *ToolExecutor
		conv     *Conversation
		model    string
		system   string
		settings api.Args
		maxTurns int
		timeout  time.Duration
		pipeline bool
	}

	// LoopConfig configures a conversation loop. A zero Timeout leaves
	// each provider request bounded only by the run's context
	LoopConfig struct {
		Settings api.Args
		Provider Provider
		Executor *ToolExecutor
		Seed     []*api.Message
		Model    string
		System   string
		MaxTurns int
		Timeout  time.Duration
		Pipeline bool
	}

	// Outcome is the result of a completed (or exhausted) loop run
	Outcome struct {
		FinalContent    string            `json:"final_content"`
		Messages        []*api.Message    `json:"messages"`
		ToolResults     []*api.ToolResult `json:"tool_results,omitempty"`
		TurnCount       int               `json:"turn_count"`
		Completed       bool              `json:"completed"`
		MaxTurnsReached bool              `json:"max_turns_reached,omitempty"`
	}
)

const duplicateCallError = "duplicate tool call: use different parameters"

// NewLoop creates a conversation loop. The turn bound is clamped to the
// supported range
func NewLoop(cfg *LoopConfig) *Loop {
	maxTurns := cfg.MaxTurns
	if maxTurns == 0 {
		maxTurns = config.DefaultMaxTurns
	}
	maxTurns = min(max(maxTurns, config.MinMaxTurns), config.MaxMaxTurns)

	return &Loop{
		provider: cfg.Provider,
		executor: cfg.Executor,
		conv:     NewConversation(cfg.Seed...),
		model:    cfg.Model,
		system:   cfg.System,
		settings: cfg.Settings,
		maxTurns: maxTurns,
		timeout:  cfg.Timeout,
		pipeline: cfg.Pipeline,
	}
}

// Run executes turns until the model completes, a handler tool succeeds
// in pipeline mode, the turn bound is exhausted, or the provider fails.
// Turn exhaustion is not a hard failure: the best-effort content so far
// is returned with MaxTurnsReached set. A provider failure aborts the
// loop and returns both the partial outcome and an error
func (l *Loop) Run(ctx context.Context, scope api.Args) (*Outcome, error) {
	out := &Outcome{}

	for !out.Completed {
		if out.TurnCount >= l.maxTurns {
			out.MaxTurnsReached = true
			slog.Warn("Conversation turn bound reached",
				log.Turn(l.maxTurns))
			break
		}
		out.TurnCount++

		response, err := l.generate(ctx, &Request{
			Model:    l.model,
			System:   l.system,
			Settings: l.settings,
			Messages: l.conv.Messages(),
			Tools:    l.executor.Declarations(),
		})
		if err != nil {
			out.Messages = l.conv.Messages()
			return out, fmt.Errorf("%w: %w", ErrProviderRequest, err)
		}

		l.conv.Append(response)
		if text := response.Text(); text != "" {
			out.FinalContent = text
		}

		calls := response.Calls()
		if len(calls) == 0 {
			out.Completed = true
			break
		}

		responses, done := l.dispatchCalls(ctx, calls, scope, out)
		if len(responses) > 0 {
			l.conv.Append(api.ResponseMessage(responses...))
		}
		if done {
			out.Completed = true
		}
	}

	out.Messages = l.conv.Messages()
	return out, nil
}

// generate issues a single provider request, bounded by the loop's
// request timeout when one is configured
func (l *Loop) generate(
	ctx context.Context, req *Request,
) (*api.Message, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	return l.provider.Generate(ctx, req)
}

// dispatchCalls executes the turn's function calls in order, rejecting
// duplicates inline. Returns the function responses to append and
// whether a pipeline handler tool completed the conversation
func (l *Loop) dispatchCalls(
	ctx context.Context, calls []*api.FunctionCall, scope api.Args,
	out *Outcome,
) ([]*api.FunctionResponse, bool) {
	var responses []*api.FunctionResponse

	for _, call := range calls {
		dup, err := l.conv.IsDuplicate(call)
		if err != nil {
			responses = append(responses,
				call.Respond(api.FailResult(err.Error()).ResultArgs()))
			continue
		}
		if dup {
			slog.Debug("Rejected duplicate tool call",
				log.Tool(call.Name))
			responses = append(responses,
				call.Respond(
					api.FailResult(duplicateCallError).ResultArgs(),
				))
			continue
		}

		result := l.executor.Execute(ctx, call, scope)
		_ = l.conv.RecordExecuted(call)
		out.ToolResults = append(out.ToolResults, result)
		responses = append(responses, call.Respond(result.ResultArgs()))

		if l.pipeline && result.Success && l.isHandlerTool(call.Name) {
			return responses, true
		}
	}
	return responses, false
}

func (l *Loop) isHandlerTool(name string) bool {
	tool, err := l.executor.Lookup(name)
	return err == nil && tool.HandlerTool
}
