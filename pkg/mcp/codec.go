package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Labels returned by Message.Label for bodies that carry no method.
const (
	LabelResponse = "response"
	LabelInvalid  = "invalid"
	LabelOther    = "other"
)

// knownMethods bounds the label set so clients cannot mint new series.
var knownMethods = map[string]struct{}{
	"initialize":                       {},
	"ping":                             {},
	"tools/list":                       {},
	"tools/call":                       {},
	"resources/list":                   {},
	"resources/read":                   {},
	"resources/templates/list":         {},
	"resources/subscribe":              {},
	"resources/unsubscribe":            {},
	"prompts/list":                     {},
	"prompts/get":                      {},
	"logging/setLevel":                 {},
	"completion/complete":              {},
	"notifications/initialized":        {},
	"notifications/cancelled":          {},
	"notifications/progress":           {},
	"notifications/roots/list_changed": {},
}

// Peek decodes a posted body for inspection only. It never fails: a body
// the SDK's jsonrpc package cannot decode yields a Message with nil Decoded.
// The raw bytes are kept as-is for forwarding.
func Peek(raw []byte) *Message {
	msg := &Message{Raw: raw}
	if decoded, err := jsonrpc.DecodeMessage(raw); err == nil {
		msg.Decoded = decoded
	}
	return msg
}

// Label returns a bounded label for logs and metrics: a known request
// method, LabelOther, LabelResponse, or LabelInvalid.
func (m *Message) Label() string {
	if method := m.Method(); method != "" {
		if _, ok := knownMethods[method]; ok {
			return method
		}
		return LabelOther
	}
	if m.IsResponse() {
		return LabelResponse
	}
	return LabelInvalid
}

// LogAttrs returns slog key/value pairs describing the message: its label,
// the called tool, and either the JSON-RPC id or the notification flag.
func (m *Message) LogAttrs() []any {
	attrs := []any{"method", m.Label()}
	if m.IsToolCall() {
		if tool := m.ToolName(); tool != "" {
			attrs = append(attrs, "tool", tool)
		}
	}
	switch {
	case m.IsNotification():
		attrs = append(attrs, "notification", true)
	case m.IsRequest() || m.IsResponse():
		if id := m.RawID(); id != nil {
			attrs = append(attrs, "rpc_id", string(id))
		}
	}
	return attrs
}
