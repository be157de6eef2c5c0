package helpers

import (
	"context"
	"sync"

	"github.com/datamill-io/datamill/internal/agent"
	"github.com/datamill-io/datamill/internal/steps"
	"github.com/datamill-io/datamill/pkg/api"
)

type (
	// QueuedReader is a source reader returning queued items. Queue
	// items before triggering a run; an empty queue means the source
	// has nothing new
	QueuedReader struct {
		items []*steps.SourceItem
		err   error
		mu    sync.Mutex
	}

	// ScriptedProvider replays canned model responses in order. When
	// the script is exhausted it returns a plain text completion, which
	// ends the conversation loop
	ScriptedProvider struct {
		responses []*api.Message
		requests  []*agent.Request
		err       error
		mu        sync.Mutex
	}

	// RecordingTarget captures every delivery a publish or update step
	// hands it
	RecordingTarget struct {
		deliveries []*steps.Delivery
		err        error
		mu         sync.Mutex
	}
)

// QueueItems adds items for the next read
func (r *QueuedReader) QueueItems(items ...*steps.SourceItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, items...)
}

// FailWith makes the next read return the given error
func (r *QueuedReader) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// ReadItems drains and returns the queued items
func (r *QueuedReader) ReadItems(
	_ context.Context, _ api.Args,
) ([]*steps.SourceItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	items := r.items
	r.items = nil
	return items, nil
}

// Respond queues canned responses for upcoming turns
func (p *ScriptedProvider) Respond(messages ...*api.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, messages...)
}

// FailWith makes the next generation return the given error
func (p *ScriptedProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Requests returns the generation requests seen so far
func (p *ScriptedProvider) Requests() []*agent.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

// Generate implements agent.Provider over the scripted responses
func (p *ScriptedProvider) Generate(
	_ context.Context, req *agent.Request,
) (*api.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return api.TextMessage(api.RoleAssistant, "done"), nil
	}
	next := p.responses[0]
	p.responses = p.responses[1:]
	return next, nil
}

// FailWith makes the next delivery return the given error
func (t *RecordingTarget) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// Deliveries returns the deliveries captured so far
func (t *RecordingTarget) Deliveries() []*steps.Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deliveries
}

// Deliver implements steps.Target by recording the delivery
func (t *RecordingTarget) Deliver(
	_ context.Context, d *steps.Delivery,
) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.deliveries = append(t.deliveries, d)
	return nil
}

// CallMessage builds an assistant message carrying one function call
func CallMessage(id, name string, args api.Args) *api.Message {
	return &api.Message{
		Role: api.RoleAssistant,
		Parts: []api.Part{{
			Call: &api.FunctionCall{ID: id, Name: name, Args: args},
		}},
	}
}

// HandlerTool builds a handler tool that records its invocations and
// reports success
func HandlerTool(name string) (*api.ToolMetadata, *[]api.Args) {
	var calls []api.Args
	tool := &api.ToolMetadata{
		Declaration: api.ToolDeclaration{
			Name:        name,
			Description: "test handler tool",
		},
		HandlerTool: true,
		Handler: func(
			_ context.Context, args api.Args,
		) (*api.ToolResult, error) {
			calls = append(calls, args)
			return api.OKResult(api.Args{"handled": true}), nil
		},
	}
	return tool, &calls
}
