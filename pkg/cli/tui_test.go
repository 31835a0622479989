package cli

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestFrameRender(t *testing.T) {
	f := Frame{
		Styles: NewStyles(DefaultTheme),
		Title:  "rtconsole",
		Status: "active",
		Sections: []Section{
			{Label: "Events", Lines: []string{"first", "second", "third"}},
			{Label: "Diagnostics", Lines: []string{"a", "b", "c", "d"}, Height: 2, Tail: true},
		},
		Help: "q: quit",
	}

	const width, height = 40, 14
	out := f.Render(width, height)
	lines := strings.Split(out, "\n")
	if len(lines) != height {
		t.Fatalf("rendered %d lines, want %d", len(lines), height)
	}
	for i, line := range lines[:len(lines)-1] {
		if w := lipgloss.Width(line); w != width {
			t.Errorf("line %d width = %d, want %d: %q", i, w, width, line)
		}
	}
	if !strings.Contains(out, "first") {
		t.Error("head-anchored section lost its first line")
	}
	if strings.Contains(out, "│ a ") || !strings.Contains(out, "│ d ") {
		t.Error("tail section should show only its last lines")
	}
}

func TestFrameRender_Truncates(t *testing.T) {
	f := Frame{
		Styles:   NewStyles(DefaultTheme),
		Sections: []Section{{Label: "x", Lines: []string{strings.Repeat("界", 50)}}},
	}
	for _, line := range strings.Split(f.Render(30, 8), "\n")[:7] {
		if w := lipgloss.Width(line); w != 30 {
			t.Errorf("width = %d: %q", w, line)
		}
	}
}

func TestFrameRender_Loading(t *testing.T) {
	if got := (Frame{}).Render(0, 0); got != "Loading..." {
		t.Errorf("got %q", got)
	}
}

func TestSwatch(t *testing.T) {
	if got := Swatch("teal", 4); got != "teal" {
		t.Errorf("non-hex color = %q", got)
	}
	if got := Swatch("#ff8800", 4); lipgloss.Width(got) != 4 {
		t.Errorf("swatch width = %d", lipgloss.Width(got))
	}
}
