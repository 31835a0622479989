package openairealtime

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseEvent(t *testing.T) {
	data := []byte(`{"type":"response.done","event_id":"event_abc","response":{"id":"resp_1","status":"completed","output":[{"type":"message","role":"assistant"},{"type":"function_call","name":"display_color_palette","call_id":"call_1","arguments":"{\"theme\":\"sunset\"}"}]},"unknown_field":42}`)

	ev, err := ParseEvent(data)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Type != EventTypeResponseDone {
		t.Errorf("Type = %q", ev.Type)
	}
	if ev.EventID != "event_abc" {
		t.Errorf("EventID = %q", ev.EventID)
	}
	if ev.Response == nil || ev.Response.ID != "resp_1" {
		t.Fatalf("Response = %+v", ev.Response)
	}
	if string(ev.Raw) != string(data) {
		t.Errorf("Raw = %s", ev.Raw)
	}

	// Raw must not alias the input buffer.
	data[2] = 'X'
	if ev.Raw[2] == 'X' {
		t.Error("Raw aliases input")
	}

	calls := ev.FunctionCalls()
	if len(calls) != 1 {
		t.Fatalf("FunctionCalls len = %d, want 1", len(calls))
	}
	if calls[0].Name != "display_color_palette" || calls[0].CallID != "call_1" {
		t.Errorf("call = %+v", calls[0])
	}
}

func TestParseEventErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{"type":`},
		{"missing type", `{"event_id":"event_1"}`},
		{"not an object", `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEvent([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLegacyOrigin(t *testing.T) {
	tests := []struct {
		id   string
		want Origin
	}{
		{"", OriginServer},
		{"event_123", OriginServer},
		{"evt_123", OriginClient},
		{"5f1c1b1e-0000-4000-8000-000000000000", OriginClient},
		{"event", OriginClient},
	}
	for _, tt := range tests {
		if got := LegacyOrigin(tt.id); got != tt.want {
			t.Errorf("LegacyOrigin(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestDirection(t *testing.T) {
	// An explicit origin wins over the id heuristic.
	ev := &Event{Type: EventTypeSessionUpdate, EventID: "event_looks_like_server", Origin: OriginClient}
	if got := ev.Direction(); got != OriginClient {
		t.Errorf("Direction = %q, want client", got)
	}

	ev = &Event{Type: EventTypeSessionUpdate, EventID: "local-id"}
	if got := ev.Direction(); got != OriginClient {
		t.Errorf("Direction = %q, want client", got)
	}
}

func TestEventJSON(t *testing.T) {
	ev := NewUserMessage("hello")
	ev.EventID = "id-1"
	ev.Origin = OriginClient

	data, err := ev.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["type"] != EventTypeConversationItemCreate {
		t.Errorf("type = %v", m["type"])
	}
	if _, ok := m["Origin"]; ok {
		t.Error("origin must not be serialized")
	}
	if _, ok := m["response"]; ok {
		t.Error("empty response must be omitted")
	}
	item, _ := m["item"].(map[string]any)
	if item["role"] != "user" {
		t.Errorf("item = %v", item)
	}
	content, _ := item["content"].([]any)
	if len(content) != 1 {
		t.Fatalf("content = %v", content)
	}
	part, _ := content[0].(map[string]any)
	if part["type"] != "input_text" || part["text"] != "hello" {
		t.Errorf("part = %v", part)
	}
}

func TestEventIndent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"session.created","event_id":"event_1"}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	out, err := ev.Indent()
	if err != nil {
		t.Fatalf("Indent: %v", err)
	}
	if !strings.Contains(out, "\n  \"type\": \"session.created\"") {
		t.Errorf("Indent = %s", out)
	}
}

func TestNewResponseCreate(t *testing.T) {
	if ev := NewResponseCreate(""); ev.Response != nil {
		t.Errorf("Response = %+v, want nil", ev.Response)
	}
	ev := NewResponseCreate("ask for feedback")
	if ev.Type != EventTypeResponseCreate {
		t.Errorf("Type = %q", ev.Type)
	}
	if ev.Response == nil || ev.Response.Instructions != "ask for feedback" {
		t.Errorf("Response = %+v", ev.Response)
	}
}

func TestIsDelta(t *testing.T) {
	tests := []struct {
		typ  string
		want bool
	}{
		{EventTypeResponseAudioTranscriptDelta, true},
		{EventTypeResponseTextDelta, true},
		{EventTypeResponseDone, false},
		{"delta.started", false},
	}
	for _, tt := range tests {
		if got := (&Event{Type: tt.typ}).IsDelta(); got != tt.want {
			t.Errorf("IsDelta(%q) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestNewEventIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := NewEventID()
		if strings.HasPrefix(id, serverEventIDPrefix) {
			t.Fatalf("id %q carries the server prefix", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
