package api

import (
	"errors"
	"fmt"
)

type (
	// Role identifies the author of a chat message
	Role string

	// Message is one entry in an AI conversation: a role plus an ordered
	// list of parts
	Message struct {
		Role  Role   `json:"role"`
		Parts []Part `json:"parts"`
	}

	// Part is one element of a message. Exactly one of Text, Call, or
	// Response is set
	Part struct {
		Call     *FunctionCall     `json:"call,omitempty"`
		Response *FunctionResponse `json:"response,omitempty"`
		Text     string            `json:"text,omitempty"`
	}

	// FunctionCall is a tool invocation requested by the model
	FunctionCall struct {
		Args Args   `json:"args"`
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// FunctionResponse carries a tool result back to the model
	FunctionResponse struct {
		Result Args   `json:"result"`
		CallID string `json:"call_id"`
		Name   string `json:"name"`
	}
)

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var ErrAmbiguousPart = errors.New("message part must have exactly one kind")

// TextMessage builds a message containing a single text part
func TextMessage(role Role, text string) *Message {
	return &Message{
		Role:  role,
		Parts: []Part{{Text: text}},
	}
}

// ResponseMessage builds a user message carrying tool responses
func ResponseMessage(responses ...*FunctionResponse) *Message {
	parts := make([]Part, len(responses))
	for i, fr := range responses {
		parts[i] = Part{Response: fr}
	}
	return &Message{Role: RoleUser, Parts: parts}
}

// Text concatenates the text parts of the message
func (m *Message) Text() string {
	var res string
	for _, part := range m.Parts {
		if part.Text != "" {
			if res != "" {
				res += "\n"
			}
			res += part.Text
		}
	}
	return res
}

// Calls returns the function calls in the message, in order
func (m *Message) Calls() []*FunctionCall {
	var res []*FunctionCall
	for _, part := range m.Parts {
		if part.Call != nil {
			res = append(res, part.Call)
		}
	}
	return res
}

// Validate checks that each part carries exactly one kind of payload
func (m *Message) Validate() error {
	for i, part := range m.Parts {
		kinds := 0
		if part.Text != "" {
			kinds++
		}
		if part.Call != nil {
			kinds++
		}
		if part.Response != nil {
			kinds++
		}
		if kinds != 1 {
			return fmt.Errorf("%w: part %d", ErrAmbiguousPart, i)
		}
	}
	return nil
}

// Fingerprint returns a stable identity for the call derived from its
// name and argument values. Two calls with the same name and arguments
// produce the same fingerprint regardless of call ID
func (c *FunctionCall) Fingerprint() (string, error) {
	hash, err := c.Args.HashKey()
	if err != nil {
		return "", err
	}
	return c.Name + ":" + hash, nil
}

// Respond builds a response to this call with the given result map
func (c *FunctionCall) Respond(result Args) *FunctionResponse {
	return &FunctionResponse{
		CallID: c.ID,
		Name:   c.Name,
		Result: result,
	}
}
