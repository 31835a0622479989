package openairealtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Client event types (sent from client to server).
const (
	// Session events
	EventTypeSessionUpdate = "session.update"

	// Input audio buffer events
	EventTypeInputAudioBufferAppend = "input_audio_buffer.append"
	EventTypeInputAudioBufferCommit = "input_audio_buffer.commit"
	EventTypeInputAudioBufferClear  = "input_audio_buffer.clear"

	// Conversation item events
	EventTypeConversationItemCreate   = "conversation.item.create"
	EventTypeConversationItemTruncate = "conversation.item.truncate"
	EventTypeConversationItemDelete   = "conversation.item.delete"

	// Response events
	EventTypeResponseCreate = "response.create"
	EventTypeResponseCancel = "response.cancel"
)

// Server event types (sent from server to client).
const (
	// Error event
	EventTypeError = "error"

	// Session events
	EventTypeSessionCreated = "session.created"
	EventTypeSessionUpdated = "session.updated"

	// Conversation events
	EventTypeConversationCreated     = "conversation.created"
	EventTypeConversationItemCreated = "conversation.item.created"

	// Input audio buffer events
	EventTypeInputAudioBufferCommitted     = "input_audio_buffer.committed"
	EventTypeInputAudioBufferSpeechStarted = "input_audio_buffer.speech_started"
	EventTypeInputAudioBufferSpeechStopped = "input_audio_buffer.speech_stopped"

	// Response events
	EventTypeResponseCreated         = "response.created"
	EventTypeResponseDone            = "response.done"
	EventTypeResponseOutputItemAdded = "response.output_item.added"
	EventTypeResponseOutputItemDone  = "response.output_item.done"

	// Response streaming fragments
	EventTypeResponseTextDelta                  = "response.text.delta"
	EventTypeResponseAudioDelta                 = "response.audio.delta"
	EventTypeResponseAudioTranscriptDelta       = "response.audio_transcript.delta"
	EventTypeResponseAudioTranscriptDone        = "response.audio_transcript.done"
	EventTypeResponseFunctionCallArgumentsDelta = "response.function_call_arguments.delta"
	EventTypeResponseFunctionCallArgumentsDone  = "response.function_call_arguments.done"

	// Rate limits event
	EventTypeRateLimitsUpdated = "rate_limits.updated"
)

// Conversation item types.
const (
	ItemTypeMessage            = "message"
	ItemTypeFunctionCall       = "function_call"
	ItemTypeFunctionCallOutput = "function_call_output"
)

// Origin tells which side of the events channel produced an event.
type Origin string

const (
	// OriginUnknown marks an event whose producer was not recorded.
	OriginUnknown Origin = ""
	// OriginClient marks events sent by this client.
	OriginClient Origin = "client"
	// OriginServer marks events received from the service.
	OriginServer Origin = "server"
)

// serverEventIDPrefix is the prefix the service uses for its event ids.
const serverEventIDPrefix = "event_"

// LegacyOrigin guesses the origin of an event from its id: an id that is
// present and lacks the server prefix is taken as client-generated. The guess
// is ambiguous for events without ids and for client ids that happen to carry
// the prefix; prefer Event.Origin.
func LegacyOrigin(eventID string) Origin {
	if eventID != "" && !strings.HasPrefix(eventID, serverEventIDPrefix) {
		return OriginClient
	}
	return OriginServer
}

// Event is a protocol message on the events channel, in either direction.
//
// Only the fields this client reads or writes are typed; Raw keeps the
// original message of received events so nothing is lost when displaying it.
type Event struct {
	// Type is the event type discriminator.
	Type string `json:"type"`

	// EventID is the unique identifier for this event.
	EventID string `json:"event_id,omitzero"`

	// Session carries session configuration (session.created, session.update).
	Session *SessionResource `json:"session,omitzero"`

	// Item carries a conversation item (conversation.item.*).
	Item *ConversationItem `json:"item,omitzero"`

	// Response carries model output (response.done) or per-response
	// options (response.create).
	Response *Response `json:"response,omitzero"`

	// ResponseID is the response identifier of streaming events.
	ResponseID string `json:"response_id,omitzero"`

	// ItemID is the item identifier of streaming events.
	ItemID string `json:"item_id,omitzero"`

	// Delta holds the incremental text, transcript or arguments of *.delta events.
	Delta string `json:"delta,omitzero"`

	// Transcript is the complete transcript of *.done transcript events.
	Transcript string `json:"transcript,omitzero"`

	// CallID, Name and Arguments describe function call argument events.
	CallID    string `json:"call_id,omitzero"`
	Name      string `json:"name,omitzero"`
	Arguments string `json:"arguments,omitzero"`

	// Error is the payload of "error" events.
	Error *EventError `json:"error,omitzero"`

	// Origin records which side produced the event. It is never serialized.
	Origin Origin `json:"-"`

	// Raw contains the original JSON message of received events.
	Raw json.RawMessage `json:"-"`
}

// NewEventID generates a locally unique event identifier.
func NewEventID() string {
	return uuid.NewString()
}

// ParseEvent decodes a message received on the events channel.
func ParseEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("openai-realtime: parse event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("openai-realtime: parse event: missing type")
	}
	ev.Raw = bytes.Clone(data)
	return &ev, nil
}

// Direction returns the recorded origin, falling back to LegacyOrigin.
func (e *Event) Direction() Origin {
	if e.Origin != OriginUnknown {
		return e.Origin
	}
	return LegacyOrigin(e.EventID)
}

// JSON returns the wire form of the event: the raw message for received
// events, the marshaled struct otherwise.
func (e *Event) JSON() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	return json.Marshal(e)
}

// Indent returns the event as indented JSON for display.
func (e *Event) Indent() (string, error) {
	data, err := e.JSON()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// IsDelta reports whether the event is a streaming fragment.
func (e *Event) IsDelta() bool {
	return strings.HasSuffix(e.Type, "delta")
}

// FunctionCalls returns the function call items of a response.done event.
func (e *Event) FunctionCalls() []ConversationItem {
	if e.Type != EventTypeResponseDone || e.Response == nil {
		return nil
	}
	var calls []ConversationItem
	for _, item := range e.Response.Output {
		if item.Type == ItemTypeFunctionCall {
			calls = append(calls, item)
		}
	}
	return calls
}

// NewUserMessage builds a conversation.item.create event carrying one
// input_text part.
func NewUserMessage(text string) *Event {
	return &Event{
		Type: EventTypeConversationItemCreate,
		Item: &ConversationItem{
			Type: ItemTypeMessage,
			Role: "user",
			Content: []ContentPart{
				{Type: "input_text", Text: text},
			},
		},
	}
}

// NewResponseCreate builds a response.create event. Empty instructions send
// no response options.
func NewResponseCreate(instructions string) *Event {
	ev := &Event{Type: EventTypeResponseCreate}
	if instructions != "" {
		ev.Response = &Response{Instructions: instructions}
	}
	return ev
}
