package console

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	rt "github.com/haivivi/rtconsole/pkg/openai-realtime"
)

const sunsetArgs = `{"theme":"sunset","colors":["#1","#2","#3","#4","#5"]}`

func paletteDone(t *testing.T, id, args string) *rt.Event {
	t.Helper()
	argsJSON, _ := json.Marshal(args)
	return mustParse(t, `{"type":"response.done","event_id":"`+id+`","response":{"id":"resp_1","status":"completed","output":[{"type":"function_call","name":"display_color_palette","call_id":"call_1","arguments":`+string(argsJSON)+`}]}}`)
}

func activeSnap(events ...*rt.Event) Snapshot {
	return Snapshot{State: Active, Events: events}
}

func countType(events []*rt.Event, typ string) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func TestToolPanelRegistersOnce(t *testing.T) {
	h := &fakeHandle{}
	p := NewToolPanel(h, WithToolLogger(discardLogger))

	created := mustParse(t, `{"type":"session.created","event_id":"event_1"}`)
	created2 := mustParse(t, `{"type":"session.created","event_id":"event_2"}`)
	unrelated := mustParse(t, `{"type":"rate_limits.updated","event_id":"event_3"}`)

	p.Observe(activeSnap(created))
	p.Observe(activeSnap(created2, created))
	p.Observe(activeSnap(unrelated, created2, created))

	sent := h.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d events, want 1", len(sent))
	}
	ev := sent[0]
	if ev.Type != rt.EventTypeSessionUpdate || ev.Session == nil {
		t.Fatalf("sent %+v", ev)
	}
	if len(ev.Session.Tools) != 1 || ev.Session.Tools[0].Name != PaletteToolName {
		t.Errorf("tools = %+v", ev.Session.Tools)
	}
	if ev.Session.ToolChoice != rt.ToolChoiceAuto {
		t.Errorf("tool_choice = %v", ev.Session.ToolChoice)
	}

	// A new session registers again.
	p.Observe(Snapshot{State: Inactive})
	p.Observe(activeSnap(created))
	if n := countType(h.Sent(), rt.EventTypeSessionUpdate); n != 2 {
		t.Errorf("registrations = %d, want 2", n)
	}
}

func TestToolPanelRegistersOnlyWhenOldestIsSessionCreated(t *testing.T) {
	h := &fakeHandle{}
	p := NewToolPanel(h, WithToolLogger(discardLogger))

	// session.created is the newest, not the oldest event.
	p.Observe(activeSnap(
		mustParse(t, `{"type":"session.created","event_id":"event_2"}`),
		mustParse(t, `{"type":"conversation.created","event_id":"event_1"}`),
	))
	if n := len(h.Sent()); n != 0 {
		t.Errorf("sent %d events, want 0", n)
	}
}

func TestToolPanelPaletteInvocation(t *testing.T) {
	h := &fakeHandle{}
	p := NewToolPanel(h, WithFollowUpDelay(20*time.Millisecond), WithToolLogger(discardLogger))

	done := paletteDone(t, "event_9", sunsetArgs)
	if err := p.Observe(activeSnap(done)); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	// Seeing the same head again does not schedule another follow-up.
	p.Observe(activeSnap(done))

	v := p.View()
	if v.Invocation == nil {
		t.Fatalf("view = %+v", v)
	}
	if v.Invocation.Theme != "sunset" || len(v.Invocation.Colors) != 5 {
		t.Errorf("invocation = %+v", v.Invocation)
	}
	if !strings.Contains(v.Invocation.Payload(), `"name": "display_color_palette"`) {
		t.Errorf("payload = %s", v.Invocation.Payload())
	}

	if n := len(h.Sent()); n != 0 {
		t.Fatalf("follow-up sent before the delay")
	}
	time.Sleep(200 * time.Millisecond)

	sent := h.Sent()
	if n := countType(sent, rt.EventTypeResponseCreate); n != 1 {
		t.Fatalf("response.create sent %d times, want 1", n)
	}
	if sent[0].Response == nil || !strings.Contains(sent[0].Response.Instructions, "ask for feedback") {
		t.Errorf("follow-up = %+v", sent[0].Response)
	}
}

func TestToolPanelIgnoresOtherFunctions(t *testing.T) {
	h := &fakeHandle{}
	p := NewToolPanel(h, WithFollowUpDelay(time.Millisecond), WithToolLogger(discardLogger))
	ev := mustParse(t, `{"type":"response.done","event_id":"event_1","response":{"output":[{"type":"function_call","name":"get_weather","arguments":"{}"}]}}`)
	p.Observe(activeSnap(ev))
	time.Sleep(50 * time.Millisecond)
	if v := p.View(); v.Invocation != nil || v.Placeholder != ToolIdlePlaceholder {
		t.Errorf("view = %+v", v)
	}
	if n := len(h.Sent()); n != 0 {
		t.Errorf("sent %d", n)
	}
}

func TestToolPanelResetCancelsFollowUp(t *testing.T) {
	h := &fakeHandle{}
	p := NewToolPanel(h, WithFollowUpDelay(50*time.Millisecond), WithToolLogger(discardLogger))

	p.Observe(activeSnap(paletteDone(t, "event_1", sunsetArgs)))
	p.Observe(Snapshot{State: Inactive})
	time.Sleep(150 * time.Millisecond)

	if n := len(h.Sent()); n != 0 {
		t.Errorf("sent %d events after reset, want 0", n)
	}
	v := p.View()
	if v.Active || v.Invocation != nil || v.Placeholder != ToolInactivePlaceholder {
		t.Errorf("view = %+v", v)
	}
}

func TestToolPanelRepairsArguments(t *testing.T) {
	h := &fakeHandle{}
	p := NewToolPanel(h, WithFollowUpDelay(time.Hour), WithToolLogger(discardLogger))
	defer p.Observe(Snapshot{State: Inactive})

	// Trailing comma and missing closing brace.
	if err := p.Observe(activeSnap(paletteDone(t, "event_1", `{"theme":"forest","colors":["#0b3d0b","#145214",]`))); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	v := p.View()
	if v.Invocation == nil || v.Invocation.Theme != "forest" || len(v.Invocation.Colors) != 2 {
		t.Errorf("invocation = %+v", v.Invocation)
	}
}

func TestToolPanelMalformedArguments(t *testing.T) {
	h := &fakeHandle{}
	p := NewToolPanel(h, WithFollowUpDelay(time.Millisecond), WithToolLogger(discardLogger))

	// Valid JSON of the wrong shape cannot be repaired.
	err := p.Observe(activeSnap(paletteDone(t, "event_1", `{"theme":"x","colors":"#fff"}`)))
	if err == nil {
		t.Fatal("expected error")
	}
	time.Sleep(30 * time.Millisecond)
	if p.View().Invocation != nil {
		t.Error("invocation remembered despite error")
	}
	if n := len(h.Sent()); n != 0 {
		t.Errorf("sent %d", n)
	}
}

func TestToolPanelViews(t *testing.T) {
	p := NewToolPanel(&fakeHandle{}, WithToolLogger(discardLogger))
	if v := p.View(); v.Active || v.Placeholder != ToolInactivePlaceholder {
		t.Errorf("inactive view = %+v", v)
	}
	p.Observe(activeSnap())
	if v := p.View(); !v.Active || v.Placeholder != ToolIdlePlaceholder {
		t.Errorf("active view = %+v", v)
	}
}

// TestToolPanelWithSession runs the panel against a real Session.
func TestToolPanelWithSession(t *testing.T) {
	d := &fakeDialer{}
	s := NewSession(rt.StaticCredential("ek"), d, WithLogger(discardLogger))
	p := NewToolPanel(s, WithFollowUpDelay(10*time.Millisecond), WithToolLogger(discardLogger))
	s.Subscribe(func(snap Snapshot) { p.Observe(snap) })

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn, h := d.last()
	h.OnOpen()
	h.OnMessage([]byte(`{"type":"session.created","event_id":"event_1"}`))
	h.OnMessage([]byte(`{"type":"session.updated","event_id":"event_2"}`))

	argsJSON, _ := json.Marshal(sunsetArgs)
	h.OnMessage([]byte(`{"type":"response.done","event_id":"event_3","response":{"output":[{"type":"function_call","name":"display_color_palette","arguments":` + string(argsJSON) + `}]}}`))

	deadline := time.Now().Add(5 * time.Second)
	for s.Events()[0].Type != rt.EventTypeResponseCreate {
		if time.Now().After(deadline) {
			t.Fatalf("sent = %v", conn.SentTypes())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := conn.SentTypes(); len(got) != 2 || got[0] != "session.update" || got[1] != "response.create" {
		t.Errorf("sent = %v", got)
	}
	if head := s.Events()[0]; head.Origin != rt.OriginClient {
		t.Errorf("head = %+v", head)
	}

	s.Stop()
	if v := p.View(); v.Active || v.Invocation != nil {
		t.Errorf("view after stop = %+v", v)
	}
}

func TestPaletteToolSchema(t *testing.T) {
	data, err := json.Marshal(PaletteTool())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var tool struct {
		Type       string `json:"type"`
		Name       string `json:"name"`
		Parameters struct {
			Type       string                     `json:"type"`
			Properties map[string]json.RawMessage `json:"properties"`
			Required   []string                   `json:"required"`
		} `json:"parameters"`
	}
	if err := json.Unmarshal(data, &tool); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if tool.Type != "function" || tool.Name != PaletteToolName {
		t.Errorf("tool = %+v", tool)
	}
	if tool.Parameters.Type != "object" || len(tool.Parameters.Properties) != 2 {
		t.Errorf("parameters = %+v", tool.Parameters)
	}
	if strings.Join(tool.Parameters.Required, ",") != "theme,colors" {
		t.Errorf("required = %v", tool.Parameters.Required)
	}
}
