package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for the TUI.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/help text color
	Client  lipgloss.Color // Locally sent events
	Server  lipgloss.Color // Received events
	Error   lipgloss.Color // Failures
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Client:  lipgloss.Color("#58a6ff"),
	Server:  lipgloss.Color("#d2a8ff"),
	Error:   lipgloss.Color("#ff7b72"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title    lipgloss.Style
	Label    lipgloss.Style
	Border   lipgloss.Style
	Help     lipgloss.Style
	Client   lipgloss.Style
	Server   lipgloss.Style
	Error    lipgloss.Style
	Selected lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border:   lipgloss.NewStyle().Foreground(t.Primary),
		Help:     lipgloss.NewStyle().Foreground(t.Dim),
		Client:   lipgloss.NewStyle().Bold(true).Foreground(t.Client),
		Server:   lipgloss.NewStyle().Bold(true).Foreground(t.Server),
		Error:    lipgloss.NewStyle().Foreground(t.Error),
		Selected: lipgloss.NewStyle().Reverse(true),
	}
}

// Swatch renders a block filled with color, or the color string itself when
// it is not a usable hex color.
func Swatch(color string, width int) string {
	if !strings.HasPrefix(color, "#") || (len(color) != 4 && len(color) != 7) {
		return color
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(color)).
		Render(strings.Repeat(" ", max(width, 1)))
}

// Section is a labeled pane of a Frame.
type Section struct {
	Label string
	Lines []string

	// Height fixes the number of content lines. Zero shares the remaining
	// height with the other zero-height sections.
	Height int

	// Tail shows the last lines when content overflows; otherwise the first.
	Tail bool
}

// Frame renders a complete TUI frame with title, sections, and help text.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string
}

// Render renders the frame to a string.
func (f Frame) Render(width, height int) string {
	if width == 0 || height == 0 {
		return "Loading..."
	}

	bc := f.Styles.Border
	maxContentWidth := width - 4

	var lines []string

	lines = append(lines, bc.Render("╭"+strings.Repeat("─", width-2)+"╮"))

	// │ title [status]    │
	title := f.Styles.Title.Render(f.Title)
	status := f.Styles.Help.Render("[" + f.Status + "]")
	padding := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(status))
	titleLine := bc.Render("│") + " " + title + " " + status +
		strings.Repeat(" ", padding) + " " + bc.Render("│")
	lines = append(lines, titleLine)

	heights := f.sectionHeights(height)
	for i, sec := range f.Sections {
		lines = append(lines, f.renderSection(bc, sec, heights[i], width, maxContentWidth)...)
	}

	lines = append(lines, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	lines = append(lines, f.Styles.Help.Render(f.Help))

	return strings.Join(lines, "\n")
}

// sectionHeights distributes the height left after borders, title, labels
// and help over the sections.
func (f Frame) sectionHeights(height int) []int {
	// top(1) + title(1) + labels + bottom(1) + help(1)
	available := height - 4 - len(f.Sections)
	heights := make([]int, len(f.Sections))
	flexible := 0
	for i, sec := range f.Sections {
		if sec.Height > 0 {
			heights[i] = sec.Height
			available -= sec.Height
		} else {
			flexible++
		}
	}
	if flexible == 0 {
		return heights
	}
	share := max(available/flexible, 2)
	extra := max(available-share*flexible, 0)
	for i := range heights {
		if heights[i] == 0 {
			heights[i] = share
			if extra > 0 {
				heights[i]++
				extra--
			}
		}
	}
	return heights
}

// renderSection renders a single section with embedded label.
func (f Frame) renderSection(bc lipgloss.Style, sec Section, height, width, maxContentWidth int) []string {
	var lines []string

	// ├─Label────────┤
	labelText := f.Styles.Label.Render(sec.Label)
	padding := max(0, width-3-lipgloss.Width(labelText))
	labelSep := bc.Render("├") + bc.Render("─") + labelText +
		bc.Render(strings.Repeat("─", padding)) + bc.Render("┤")
	lines = append(lines, labelSep)

	startIdx := 0
	if sec.Tail && len(sec.Lines) > height {
		startIdx = len(sec.Lines) - height
	}

	for i := 0; i < height; i++ {
		text := ""
		idx := startIdx + i
		if idx < len(sec.Lines) {
			text = sec.Lines[idx]
		}
		if maxContentWidth > 1 && lipgloss.Width(text) > maxContentWidth {
			text = truncateString(text, maxContentWidth-1) + "…"
		}
		line := bc.Render("│") + " " + text +
			strings.Repeat(" ", max(0, maxContentWidth-lipgloss.Width(text))) + " " + bc.Render("│")
		lines = append(lines, line)
	}

	return lines
}

// truncateString safely truncates a string to the given width,
// handling multi-byte characters correctly.
func truncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	currentWidth := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if currentWidth+w > width {
			return string(runes[:i])
		}
		currentWidth += w
	}
	return s
}
