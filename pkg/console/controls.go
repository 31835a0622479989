package console

import (
	"context"
	"errors"
	"strings"
	"sync"

	rt "github.com/haivivi/rtconsole/pkg/openai-realtime"
)

// Control labels.
const (
	LabelStart       = "start session"
	LabelStarting    = "starting session..."
	LabelSend        = "send text"
	LabelDisconnect  = "disconnect"
	InputPlaceholder = "send a text message..."
)

// ControlsMode selects which controls are offered.
type ControlsMode int

const (
	// ControlsStopped offers the start control.
	ControlsStopped ControlsMode = iota
	// ControlsActive offers the text field, send and disconnect.
	ControlsActive
)

// ControlsView is what the session controls show.
type ControlsView struct {
	Mode       ControlsMode
	Activating bool

	// StartLabel is the label of the start control in ControlsStopped.
	StartLabel string

	// Err is the error of the last failed start, if any.
	Err error
}

// Controls drives a session from user input.
type Controls struct {
	handle Handle

	mu         sync.Mutex
	state      State
	activating bool
	lastErr    error
}

// NewControls creates controls for handle.
func NewControls(handle Handle) *Controls {
	return &Controls{handle: handle}
}

// RequestStart marks a start as outstanding. It returns false, and the
// caller must not start, while another start is outstanding or the session
// is active. The mark is cleared by Finish or by an Active snapshot.
func (c *Controls) RequestStart() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activating || c.state == Active {
		return false
	}
	c.activating = true
	c.lastErr = nil
	return true
}

// Finish records the outcome of a start requested with RequestStart.
func (c *Controls) Finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		return
	}
	c.activating = false
	if !errors.Is(err, ErrSessionStopped) {
		c.lastErr = err
	}
}

// Start requests a start and runs it on the calling goroutine. It returns
// nil without starting when a start is already outstanding.
func (c *Controls) Start(ctx context.Context) error {
	if !c.RequestStart() {
		return nil
	}
	err := c.handle.Start(ctx)
	c.Finish(err)
	return err
}

// Stop disconnects the session.
func (c *Controls) Stop() error {
	c.mu.Lock()
	c.activating = false
	c.mu.Unlock()
	return c.handle.Stop()
}

// Submit sends text as a user message followed by a response request.
// Empty or whitespace-only text is rejected and nothing is sent. The text
// is sent as typed.
func (c *Controls) Submit(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	c.handle.Send(rt.NewUserMessage(text))
	c.handle.Send(rt.NewResponseCreate(""))
	return true
}

// Observe tracks the session state.
func (c *Controls) Observe(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state
	c.state = snap.State
	switch {
	case snap.State == Active:
		c.activating = false
		c.lastErr = nil
	case snap.State == Inactive && prev != Inactive:
		// The attempt or the session ended.
		c.activating = false
	}
}

// View returns what the controls show.
func (c *Controls) View() ControlsView {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Active {
		return ControlsView{Mode: ControlsActive}
	}
	v := ControlsView{
		Mode:       ControlsStopped,
		Activating: c.activating,
		StartLabel: LabelStart,
		Err:        c.lastErr,
	}
	if c.activating {
		v.StartLabel = LabelStarting
	}
	return v
}
