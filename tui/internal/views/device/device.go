// Package device renders the emulated headset, controllers and sessions.
package device

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xr-emulator/panel/internal/client"
	"github.com/xr-emulator/panel/internal/motion"
	"github.com/xr-emulator/panel/internal/theme"
)

// Headset is the pseudo slot of the headset in Selected.
const Headset = -1

type Model struct {
	Kind        string
	Headset     client.Pose
	Controllers []client.Controller
	Sessions    []client.Session
	Selected    int
	Width       int
}

func New() Model {
	return Model{Selected: Headset}
}

// Label names a slot the way the device kind uses it.
func Label(kind string, slot int) string {
	passthrough := kind == client.KindPassthrough
	switch {
	case slot == Headset && passthrough:
		return "camera"
	case slot == Headset:
		return "headset"
	case slot == 0 && passthrough:
		return "pointer"
	case slot == 1 && passthrough:
		return "surface"
	case slot == 0:
		return "primary"
	default:
		return "secondary"
	}
}

// View renders one line per target followed by the session list.
func (m Model) View() string {
	lines := []string{theme.StyleHeader.Render("DEVICE")}
	lines = append(lines, m.targetLine(Headset, m.Headset, ""))
	for i, c := range m.Controllers {
		lines = append(lines, m.targetLine(i, c.Pose, controllerState(c)))
	}

	lines = append(lines, "", theme.StyleHeader.Render("SESSIONS"))
	if len(m.Sessions) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  none"))
	}
	for _, s := range m.Sessions {
		line := fmt.Sprintf("  #%d %-12s %s", s.ID, s.Mode, strings.Join(s.EnabledFeatures, ","))
		if s.Ended {
			line = theme.StyleDimmed.Render(line + " (ended)")
		}
		lines = append(lines, line)
	}

	width := m.Width
	if width < 40 {
		width = 40
	}
	return theme.StyleBorder.Width(width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) targetLine(slot int, p client.Pose, state string) string {
	prefix := "  "
	if slot == m.Selected {
		prefix = "▶ "
	}
	name := lipgloss.NewStyle().Foreground(theme.TargetColor(slot)).Width(10).Render(Label(m.Kind, slot))
	yaw := motion.Yaw(p.Quaternion) * 180 / math.Pi
	pose := fmt.Sprintf("%6.2f %6.2f %6.2f  yaw %4.0f°", p.Position[0], p.Position[1], p.Position[2], yaw)
	return prefix + name + pose + state
}

func controllerState(c client.Controller) string {
	var b strings.Builder
	b.WriteString("  ")
	for i := range c.Buttons {
		b.WriteString(theme.ButtonGlyph(c.Pressed(i)))
	}
	fmt.Fprintf(&b, "  axes %5.2f %5.2f", c.Axes[0], c.Axes[1])
	if !c.Active {
		b.WriteString(theme.StyleDimmed.Render("  inactive"))
	}
	if c.PrimaryActionLatch {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorSelect).Render("  selecting"))
	}
	return b.String()
}
