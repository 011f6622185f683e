package mcp

import (
	"fmt"
	"testing"
)

func TestPeek(t *testing.T) {
	tests := []struct {
		name             string
		raw              string
		wantDecoded      bool
		wantMethod       string
		wantRequest      bool
		wantNotification bool
		wantTool         string
	}{
		{
			name:        "tool call",
			raw:         `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"browserbase_session_debug"}}`,
			wantDecoded: true,
			wantMethod:  "tools/call",
			wantRequest: true,
			wantTool:    "browserbase_session_debug",
		},
		{
			name:        "tool call with unparseable params",
			raw:         `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":[1,2]}`,
			wantDecoded: true,
			wantMethod:  "tools/call",
			wantRequest: true,
		},
		{
			name:             "initialized notification",
			raw:              `{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			wantDecoded:      true,
			wantMethod:       "notifications/initialized",
			wantRequest:      true,
			wantNotification: true,
		},
		{
			name:        "response",
			raw:         `{"jsonrpc":"2.0","id":"abc","result":{}}`,
			wantDecoded: true,
		},
		{
			name: "not json",
			raw:  `{invalid`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Peek([]byte(tt.raw))

			if string(msg.Raw) != tt.raw {
				t.Errorf("raw bytes not preserved: got %q", msg.Raw)
			}
			if (msg.Decoded != nil) != tt.wantDecoded {
				t.Errorf("Decoded = %v, want decoded %v", msg.Decoded, tt.wantDecoded)
			}
			if msg.Method() != tt.wantMethod {
				t.Errorf("Method() = %q, want %q", msg.Method(), tt.wantMethod)
			}
			if msg.IsRequest() != tt.wantRequest {
				t.Errorf("IsRequest() = %v, want %v", msg.IsRequest(), tt.wantRequest)
			}
			if want := tt.wantDecoded && !tt.wantRequest; msg.IsResponse() != want {
				t.Errorf("IsResponse() = %v, want %v", msg.IsResponse(), want)
			}
			if msg.IsNotification() != tt.wantNotification {
				t.Errorf("IsNotification() = %v, want %v", msg.IsNotification(), tt.wantNotification)
			}
			if msg.ToolName() != tt.wantTool {
				t.Errorf("ToolName() = %q, want %q", msg.ToolName(), tt.wantTool)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "initialize", raw: `{"jsonrpc":"2.0","id":0,"method":"initialize","params":{}}`, want: "initialize"},
		{name: "tools list", raw: `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, want: "tools/list"},
		{name: "notification", raw: `{"jsonrpc":"2.0","method":"notifications/initialized"}`, want: "notifications/initialized"},
		{name: "unknown method", raw: `{"jsonrpc":"2.0","id":2,"method":"x/custom-123"}`, want: LabelOther},
		{name: "response", raw: `{"jsonrpc":"2.0","id":3,"result":{}}`, want: LabelResponse},
		{name: "malformed", raw: `{not json`, want: LabelInvalid},
		{name: "empty body", raw: ``, want: LabelInvalid},
		{name: "empty object", raw: `{}`, want: LabelInvalid},
		{name: "wrong version", raw: `{"jsonrpc":"1.0","id":1,"method":"ping"}`, want: LabelInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Peek([]byte(tt.raw)).Label(); got != tt.want {
				t.Errorf("Label(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestLogAttrs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "tool call",
			raw:  `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"browserbase_session_create"}}`,
			want: "[method tools/call tool browserbase_session_create rpc_id 7]",
		},
		{
			name: "request with string id",
			raw:  `{"jsonrpc":"2.0","id":"req-1","method":"ping"}`,
			want: `[method ping rpc_id "req-1"]`,
		},
		{
			name: "notification",
			raw:  `{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			want: "[method notifications/initialized notification true]",
		},
		{
			name: "response",
			raw:  `{"jsonrpc":"2.0","id":3,"result":{}}`,
			want: "[method response rpc_id 3]",
		},
		{
			name: "invalid",
			raw:  `{not json`,
			want: "[method invalid]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fmt.Sprint(Peek([]byte(tt.raw)).LogAttrs()); got != tt.want {
				t.Errorf("LogAttrs() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRawID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "number", raw: `{"jsonrpc":"2.0","id":42,"method":"ping"}`, want: `42`},
		{name: "string", raw: `{"jsonrpc":"2.0","id":"req-1","method":"ping"}`, want: `"req-1"`},
		{name: "absent", raw: `{"jsonrpc":"2.0","method":"notifications/initialized"}`, want: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &Message{Raw: []byte(tt.raw)}
			if got := string(msg.RawID()); got != tt.want {
				t.Errorf("RawID() = %q, want %q", got, tt.want)
			}
		})
	}

	if (&Message{}).RawID() != nil {
		t.Error("RawID() of empty message should be nil")
	}
}

func TestMessageWithNilDecoded(t *testing.T) {
	msg := &Message{Raw: []byte(`invalid`)}

	if msg.IsRequest() || msg.IsResponse() || msg.IsNotification() || msg.IsToolCall() {
		t.Error("nil Decoded should be neither request, response nor notification")
	}
	if msg.Method() != "" || msg.ToolName() != "" {
		t.Error("nil Decoded should have no method or tool name")
	}
}
