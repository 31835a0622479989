package console

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kaptinlin/jsonrepair"

	rt "github.com/haivivi/rtconsole/pkg/openai-realtime"
)

// DefaultFollowUpDelay is the pause between a palette invocation and the
// follow-up response request.
const DefaultFollowUpDelay = 500 * time.Millisecond

// Tool panel placeholders.
const (
	ToolInactivePlaceholder = "Start the session to use this tool..."
	ToolIdlePlaceholder     = "Ask for advice on a color palette..."
)

// Invocation is a palette function call made by the model.
type Invocation struct {
	Name   string
	CallID string

	// Arguments is the JSON-encoded argument string as received.
	Arguments string

	Theme  string
	Colors []string
}

// Payload returns the function call output item as indented JSON.
func (inv *Invocation) Payload() string {
	data, err := json.MarshalIndent(rt.ConversationItem{
		Type:      rt.ItemTypeFunctionCall,
		Name:      inv.Name,
		CallID:    inv.CallID,
		Arguments: inv.Arguments,
	}, "", "  ")
	if err != nil {
		return inv.Arguments
	}
	return string(data)
}

// ToolView is what the tool panel shows.
type ToolView struct {
	Active bool

	// Placeholder is set when there is no invocation to show.
	Placeholder string

	Invocation *Invocation
}

// ToolPanelOption configures a ToolPanel.
type ToolPanelOption func(*ToolPanel)

// WithFollowUpDelay sets the follow-up delay. Default: DefaultFollowUpDelay.
func WithFollowUpDelay(d time.Duration) ToolPanelOption {
	return func(p *ToolPanel) {
		p.delay = d
	}
}

// WithToolLogger sets the logger. Default: slog.Default().
func WithToolLogger(logger *slog.Logger) ToolPanelOption {
	return func(p *ToolPanel) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// ToolPanel registers the color palette function once per active session and
// shows the palette the model asks for.
type ToolPanel struct {
	sender Sender
	delay  time.Duration
	logger *slog.Logger

	mu         sync.Mutex
	active     bool
	registered bool
	invocation *Invocation
	lastHead   *rt.Event
	epoch      uint64 // bumped on reset to void pending follow-ups
	timers     []*time.Timer
}

// NewToolPanel creates a tool panel sending through sender.
func NewToolPanel(sender Sender, opts ...ToolPanelOption) *ToolPanel {
	p := &ToolPanel{
		sender: sender,
		delay:  DefaultFollowUpDelay,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Observe reacts to a session snapshot. It returns an error when the model
// invoked the palette function with arguments that cannot be decoded.
func (p *ToolPanel) Observe(snap Snapshot) error {
	p.mu.Lock()
	if snap.State != Active {
		p.resetLocked()
		p.mu.Unlock()
		return nil
	}
	p.active = true

	var register bool
	if oldest := snap.Oldest(); !p.registered && oldest != nil && oldest.Type == rt.EventTypeSessionCreated {
		p.registered = true
		register = true
	}

	var err error
	if head := snap.Head(); head != nil && head != p.lastHead {
		p.lastHead = head
		for _, call := range head.FunctionCalls() {
			if call.Name != PaletteToolName {
				continue
			}
			inv, derr := decodeInvocation(call)
			if derr != nil {
				err = derr
				break
			}
			p.invocation = inv
			p.scheduleFollowUpLocked()
		}
	}
	p.mu.Unlock()

	if register {
		p.sender.Send(PaletteSessionUpdate())
	}
	if err != nil {
		p.logger.Error("failed to decode tool arguments", "tool", PaletteToolName, "error", err)
	}
	return err
}

func (p *ToolPanel) scheduleFollowUpLocked() {
	epoch := p.epoch
	var t *time.Timer
	t = time.AfterFunc(p.delay, func() {
		p.mu.Lock()
		if p.epoch != epoch {
			p.mu.Unlock()
			return
		}
		for i, pending := range p.timers {
			if pending == t {
				p.timers = append(p.timers[:i], p.timers[i+1:]...)
				break
			}
		}
		p.mu.Unlock()
		p.sender.Send(PaletteFollowUp())
	})
	p.timers = append(p.timers, t)
}

func (p *ToolPanel) resetLocked() {
	p.active = false
	p.registered = false
	p.invocation = nil
	p.lastHead = nil
	p.epoch++
	for _, t := range p.timers {
		t.Stop()
	}
	p.timers = nil
}

// View returns what the panel shows.
func (p *ToolPanel) View() ToolView {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case !p.active:
		return ToolView{Placeholder: ToolInactivePlaceholder}
	case p.invocation == nil:
		return ToolView{Active: true, Placeholder: ToolIdlePlaceholder}
	default:
		return ToolView{Active: true, Invocation: p.invocation}
	}
}

// paletteArgs are the arguments of the palette function.
type paletteArgs struct {
	Theme  string   `json:"theme"`
	Colors []string `json:"colors"`
}

func decodeInvocation(call rt.ConversationItem) (*Invocation, error) {
	var args paletteArgs
	if err := unmarshalJSON([]byte(call.Arguments), &args); err != nil {
		return nil, fmt.Errorf("console: decode %s arguments: %w", call.Name, err)
	}
	return &Invocation{
		Name:      call.Name,
		CallID:    call.CallID,
		Arguments: call.Arguments,
		Theme:     args.Theme,
		Colors:    args.Colors,
	}, nil
}

// unmarshalJSON unmarshals data into v, repairing malformed JSON once if the
// first attempt fails with a syntax error.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, err := jsonrepair.JSONRepair(string(data))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}
