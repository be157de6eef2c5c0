// Package agent implements the bounded multi-turn AI conversation loop
// that AI steps run: it drives a model provider, dispatches tool calls,
// rejects duplicate calls, and decides when the exchange is complete
package agent

import (
	"context"
	"errors"

	"github.com/datamill-io/datamill/pkg/api"
)

type (
	// Provider abstracts the model backend. The loop bounds each request
	// with its configured timeout; it does not retry a failed request,
	// that policy belongs to the caller
	Provider interface {
		Generate(context.Context, *Request) (*api.Message, error)
	}

	// Request carries one turn's worth of context to the provider
	Request struct {
		Settings api.Args              `json:"settings,omitempty"`
		Model    string                `json:"model"`
		System   string                `json:"system,omitempty"`
		Messages []*api.Message        `json:"messages"`
		Tools    []api.ToolDeclaration `json:"tools,omitempty"`
	}
)

var ErrProviderRequest = errors.New("provider request failed")
