package openairealtime

import "github.com/google/jsonschema-go/jsonschema"

// Models supported by OpenAI Realtime API.
const (
	// ModelGPT4oRealtimePreview is the GPT-4o realtime preview model.
	ModelGPT4oRealtimePreview = "gpt-4o-realtime-preview"
	// ModelGPT4oRealtimePreview20241217 is a specific version.
	ModelGPT4oRealtimePreview20241217 = "gpt-4o-realtime-preview-2024-12-17"
	// ModelGPT4oMiniRealtimePreview is the GPT-4o mini realtime preview model.
	ModelGPT4oMiniRealtimePreview = "gpt-4o-mini-realtime-preview"

	// DefaultModel is the model used when none is configured.
	DefaultModel = ModelGPT4oRealtimePreview20241217
)

// Voice options for audio output.
const (
	VoiceAlloy   = "alloy"
	VoiceAsh     = "ash"
	VoiceBallad  = "ballad"
	VoiceCoral   = "coral"
	VoiceEcho    = "echo"
	VoiceSage    = "sage"
	VoiceShimmer = "shimmer"
	VoiceVerse   = "verse"
)

// Tool choice options.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
)

// Tool defines a function tool available to the model.
type Tool struct {
	// Type is always "function".
	Type string `json:"type"`

	// Name is the function name.
	Name string `json:"name"`

	// Description describes what the function does.
	Description string `json:"description,omitzero"`

	// Parameters is the JSON Schema for the function parameters.
	Parameters *jsonschema.Schema `json:"parameters,omitzero"`
}

// TurnDetection configures voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type,omitzero"`
	Threshold         float64 `json:"threshold,omitzero"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitzero"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitzero"`
}

// SessionResource is the session object. The server fills the identity
// fields in session.created; the client sets the configuration fields in
// session.update.
type SessionResource struct {
	ID                string         `json:"id,omitzero"`
	Object            string         `json:"object,omitzero"`
	Model             string         `json:"model,omitzero"`
	ExpiresAt         int64          `json:"expires_at,omitzero"`
	Modalities        []string       `json:"modalities,omitzero"`
	Instructions      string         `json:"instructions,omitzero"`
	Voice             string         `json:"voice,omitzero"`
	InputAudioFormat  string         `json:"input_audio_format,omitzero"`
	OutputAudioFormat string         `json:"output_audio_format,omitzero"`
	TurnDetection     *TurnDetection `json:"turn_detection,omitzero"`
	Tools             []Tool         `json:"tools,omitzero"`

	// ToolChoice is a string ("auto", "none", "required") or an object
	// naming one function.
	ToolChoice any `json:"tool_choice,omitzero"`

	Temperature float64 `json:"temperature,omitzero"`
}

// ConversationItem represents an item in the conversation.
type ConversationItem struct {
	ID        string        `json:"id,omitzero"`
	Object    string        `json:"object,omitzero"`
	Type      string        `json:"type,omitzero"` // "message", "function_call", "function_call_output"
	Status    string        `json:"status,omitzero"`
	Role      string        `json:"role,omitzero"` // "user", "assistant", "system"
	Content   []ContentPart `json:"content,omitzero"`
	CallID    string        `json:"call_id,omitzero"`
	Name      string        `json:"name,omitzero"`      // for function_call
	Arguments string        `json:"arguments,omitzero"` // for function_call, JSON encoded
	Output    string        `json:"output,omitzero"`    // for function_call_output
}

// ContentPart represents a part of message content.
type ContentPart struct {
	Type       string `json:"type,omitzero"` // "input_text", "input_audio", "text", "audio"
	Text       string `json:"text,omitzero"`
	Audio      string `json:"audio,omitzero"`
	Transcript string `json:"transcript,omitzero"`
}

// Response is the response object. The server fills status and output in
// response.* events; the client sets per-response options in
// response.create.
type Response struct {
	ID            string             `json:"id,omitzero"`
	Object        string             `json:"object,omitzero"`
	Status        string             `json:"status,omitzero"` // "in_progress", "completed", "cancelled", "incomplete", "failed"
	StatusDetails *StatusDetails     `json:"status_details,omitzero"`
	Output        []ConversationItem `json:"output,omitzero"`
	Usage         *Usage             `json:"usage,omitzero"`

	// Instructions override the session instructions for this response.
	Instructions string   `json:"instructions,omitzero"`
	Modalities   []string `json:"modalities,omitzero"`
	Voice        string   `json:"voice,omitzero"`
}

// StatusDetails contains details about the response status.
type StatusDetails struct {
	Type   string `json:"type,omitzero"`
	Reason string `json:"reason,omitzero"`
	Error  *Error `json:"error,omitzero"`
}

// Usage contains token usage information.
type Usage struct {
	TotalTokens  int `json:"total_tokens,omitzero"`
	InputTokens  int `json:"input_tokens,omitzero"`
	OutputTokens int `json:"output_tokens,omitzero"`
}
