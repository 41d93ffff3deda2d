package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xr-emulator/panel/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Profile   string
	Kind      string
	Stereo    bool
	Clients   int
	Active    int
	Immersive int
	// AssetWanted is set while the emulator waits for a surface mesh.
	AssetWanted bool
	Width       int
}

func New() Model {
	return Model{}
}

func (m Model) device() string {
	name := m.Profile
	if name == "" {
		name = "no device"
	}
	if m.Kind != "" {
		name += " (" + m.Kind + ")"
	}
	return name
}

func (m Model) View() string {
	width := max(m.Width, 40)

	conn := lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	if m.Connected {
		conn = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	}
	view := "mono"
	if m.Stereo {
		view = "stereo"
	}

	parts := []string{conn, m.device(), view, fmt.Sprintf("%d active sessions  %d panels", m.Active, m.Clients)}
	if m.Immersive > 0 {
		parts = append(parts, lipgloss.NewStyle().Bold(true).Foreground(theme.ColorHeadset).Render("IMMERSIVE"))
	}
	if m.AssetWanted {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("surface asset requested"))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.Join(parts, sep))
}
