package console

import (
	"context"
	"errors"
	"sync"
	"testing"

	rt "github.com/haivivi/rtconsole/pkg/openai-realtime"
)

// fakeHandle records sends and counts starts.
type fakeHandle struct {
	mu       sync.Mutex
	sent     []*rt.Event
	starts   int
	stops    int
	startErr error
	release  chan struct{}
}

func (h *fakeHandle) Send(ev *rt.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, ev)
}

func (h *fakeHandle) Start(ctx context.Context) error {
	h.mu.Lock()
	h.starts++
	release := h.release
	h.mu.Unlock()
	if release != nil {
		<-release
	}
	return h.startErr
}

func (h *fakeHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stops++
	return nil
}

func (h *fakeHandle) Sent() []*rt.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*rt.Event(nil), h.sent...)
}

func TestControlsSubmitRejectsBlank(t *testing.T) {
	h := &fakeHandle{}
	c := NewControls(h)
	c.Observe(Snapshot{State: Active})

	for _, text := range []string{"", " ", "\t\n", "    "} {
		if c.Submit(text) {
			t.Errorf("Submit(%q) accepted", text)
		}
	}
	if n := len(h.Sent()); n != 0 {
		t.Errorf("sent %d events, want 0", n)
	}
}

func TestControlsSubmit(t *testing.T) {
	h := &fakeHandle{}
	c := NewControls(h)
	c.Observe(Snapshot{State: Active})

	if !c.Submit("  pick colors for a beach house ") {
		t.Fatal("Submit rejected")
	}
	sent := h.Sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d events, want 2", len(sent))
	}
	if sent[0].Type != rt.EventTypeConversationItemCreate {
		t.Errorf("sent[0] = %q", sent[0].Type)
	}
	if got := sent[0].Item.Content[0].Text; got != "  pick colors for a beach house " {
		t.Errorf("text = %q", got)
	}
	if sent[1].Type != rt.EventTypeResponseCreate || sent[1].Response != nil {
		t.Errorf("sent[1] = %+v", sent[1])
	}
}

func TestControlsActivatingSuppressesStart(t *testing.T) {
	h := &fakeHandle{release: make(chan struct{})}
	c := NewControls(h)

	done := make(chan error, 1)
	if !c.RequestStart() {
		t.Fatal("first RequestStart refused")
	}
	go func() {
		err := h.Start(context.Background())
		c.Finish(err)
		done <- err
	}()

	// Repeated requests while outstanding are suppressed.
	for range 3 {
		if err := c.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
	v := c.View()
	if v.Mode != ControlsStopped || !v.Activating || v.StartLabel != LabelStarting {
		t.Errorf("view = %+v", v)
	}

	close(h.release)
	<-done
	c.Observe(Snapshot{State: Active})

	h.mu.Lock()
	starts := h.starts
	h.mu.Unlock()
	if starts != 1 {
		t.Errorf("starts = %d, want 1", starts)
	}
	if v := c.View(); v.Mode != ControlsActive {
		t.Errorf("view = %+v", v)
	}
	if c.RequestStart() {
		t.Error("RequestStart accepted while active")
	}
}

func TestControlsStartFailureClearsActivating(t *testing.T) {
	boom := errors.New("permission denied")
	h := &fakeHandle{startErr: boom}
	c := NewControls(h)

	if err := c.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Start = %v", err)
	}
	v := c.View()
	if v.Activating || v.StartLabel != LabelStart {
		t.Errorf("view = %+v", v)
	}
	if !errors.Is(v.Err, boom) {
		t.Errorf("Err = %v", v.Err)
	}
	if !c.RequestStart() {
		t.Error("RequestStart refused after failure")
	}
}

func TestControlsStoppedDuringStart(t *testing.T) {
	h := &fakeHandle{startErr: ErrSessionStopped}
	c := NewControls(h)
	c.Start(context.Background())
	if v := c.View(); v.Activating || v.Err != nil {
		t.Errorf("view = %+v", v)
	}
}

func TestControlsClearedWhenSessionEnds(t *testing.T) {
	c := NewControls(&fakeHandle{})
	c.RequestStart()
	c.Observe(Snapshot{State: Negotiating})
	c.Observe(Snapshot{State: Inactive})
	if c.View().Activating {
		t.Error("activating survived the end of the attempt")
	}
}

func TestControlsStop(t *testing.T) {
	h := &fakeHandle{}
	c := NewControls(h)
	c.Observe(Snapshot{State: Active})
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.stops != 1 {
		t.Errorf("stops = %d", h.stops)
	}
}
