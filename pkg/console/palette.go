package console

import (
	"github.com/google/jsonschema-go/jsonschema"

	rt "github.com/haivivi/rtconsole/pkg/openai-realtime"
)

// PaletteToolName is the name of the color palette function.
const PaletteToolName = "display_color_palette"

const paletteDescription = "Call this function when a user asks for a color palette."

// paletteFollowUp instructs the model after the palette has been shown.
const paletteFollowUp = "ask for feedback about the color palette - don't repeat the colors, just ask if they like the colors."

// PaletteTool returns the color palette function definition.
func PaletteTool() rt.Tool {
	return rt.Tool{
		Type:        "function",
		Name:        PaletteToolName,
		Description: paletteDescription,
		Parameters: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"theme": {
					Type:        "string",
					Description: "Description of the theme for the color scheme.",
				},
				"colors": {
					Type:        "array",
					Description: "Array of five hex color codes based on the theme.",
					Items: &jsonschema.Schema{
						Type:        "string",
						Description: "Hex color code",
					},
				},
			},
			Required: []string{"theme", "colors"},
		},
	}
}

// PaletteSessionUpdate returns the session.update event that registers the
// palette function with automatic tool choice.
func PaletteSessionUpdate() *rt.Event {
	return &rt.Event{
		Type: rt.EventTypeSessionUpdate,
		Session: &rt.SessionResource{
			Tools:      []rt.Tool{PaletteTool()},
			ToolChoice: rt.ToolChoiceAuto,
		},
	}
}

// PaletteFollowUp returns the response.create event sent after a palette
// invocation.
func PaletteFollowUp() *rt.Event {
	return rt.NewResponseCreate(paletteFollowUp)
}
