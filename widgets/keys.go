package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// KeyCell is one key of a key strip
type KeyCell struct {
	Symbol rune
	Color  lipgloss.Color
	Held   bool
}

// RenderKeyStrip renders keys left to right, wrapping every width keys.
// Held keys are drawn solid.
func RenderKeyStrip(cells []KeyCell, width int) string {
	if width < 1 {
		width = len(cells)
	}
	var lines []string
	var line strings.Builder
	for i, c := range cells {
		if i > 0 && i%width == 0 {
			lines = append(lines, line.String())
			line.Reset()
		}
		sym := c.Symbol
		if c.Held {
			sym = '█'
		}
		line.WriteString(lipgloss.NewStyle().Foreground(c.Color).Render(string(sym)))
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color lipgloss.Color, symbol rune, name, desc string) string {
	sym := lipgloss.NewStyle().Foreground(color).Render(string(symbol))
	return fmt.Sprintf("  %s %s - %s", sym, name, desc)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
