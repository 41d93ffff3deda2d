// Package help renders the key reference overlay from Markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/xr-emulator/panel/internal/client"
)

// Binding is one row of the key table.
type Binding struct {
	Keys string
	Desc string
}

// Model caches the rendered overlay per width.
type Model struct {
	Bindings []Binding
	Presets  []client.Preset

	width    int
	rendered string
}

func New(bindings []Binding, presets []client.Preset) Model {
	return Model{Bindings: bindings, Presets: presets}
}

// Markdown is the overlay source.
func (m Model) Markdown() string {
	var b strings.Builder
	b.WriteString("# Keys\n\n| key | action |\n|---|---|\n")
	for _, k := range m.Bindings {
		fmt.Fprintf(&b, "| `%s` | %s |\n", k.Keys, k.Desc)
	}
	if len(m.Presets) > 0 {
		b.WriteString("\n## Presets\n\n")
		for i, p := range m.Presets {
			fmt.Fprintf(&b, "%d. **%s** at (%.2f, %.2f, %.2f), yaw %.0f°\n",
				i+1, p.Name, p.Position[0], p.Position[1], p.Position[2], p.Yaw)
		}
	}
	return b.String()
}

// View renders the overlay at width, reusing the last render when the
// width is unchanged.
func (m *Model) View(width int) string {
	if width < 40 {
		width = 40
	}
	if m.rendered != "" && m.width == width {
		return m.rendered
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return m.Markdown()
	}
	out, err := r.Render(m.Markdown())
	if err != nil {
		return m.Markdown()
	}
	m.width = width
	m.rendered = out
	return out
}
