package agent

import (
	"github.com/tidwall/gjson"

	"github.com/datamill-io/datamill/pkg/api"
)

// Conversation owns the append-only message history of one AI step
// invocation and tracks which tool calls have already been executed so
// duplicates can be rejected instead of re-run. History is scoped to a
// single step execution and discarded when the step completes
type Conversation struct {
	messages []*api.Message
	executed map[string]bool
}

// NewConversation creates a conversation seeded with prior context
func NewConversation(seed ...*api.Message) *Conversation {
	return &Conversation{
		messages: append([]*api.Message{}, seed...),
		executed: map[string]bool{},
	}
}

// Append adds a message to the history
func (c *Conversation) Append(msg *api.Message) {
	c.messages = append(c.messages, msg)
}

// Messages returns the history in order
func (c *Conversation) Messages() []*api.Message {
	return c.messages
}

// IsDuplicate reports whether an identical call (same tool name, same
// argument values) has already been executed in this conversation
func (c *Conversation) IsDuplicate(call *api.FunctionCall) (bool, error) {
	fp, err := call.Fingerprint()
	if err != nil {
		return false, err
	}
	return c.executed[fp], nil
}

// RecordExecuted marks the call as executed for duplicate detection
func (c *Conversation) RecordExecuted(call *api.FunctionCall) error {
	fp, err := call.Fingerprint()
	if err != nil {
		return err
	}
	c.executed[fp] = true
	return nil
}

// ParseArgs decodes a raw provider argument payload into Args. Providers
// commonly deliver tool arguments as a JSON object string; anything that
// is not a JSON object yields empty Args
func ParseArgs(raw string) api.Args {
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return api.Args{}
	}

	res := api.Args{}
	parsed.ForEach(func(k, v gjson.Result) bool {
		res[api.Name(k.String())] = v.Value()
		return true
	})
	return res
}
