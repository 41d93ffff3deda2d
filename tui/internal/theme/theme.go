// Package theme provides the Lip Gloss color palette and reusable styles
// for the XR emulator panel. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Target colors.
var (
	ColorHeadset   = lipgloss.Color("#a855f7")
	ColorPrimary   = lipgloss.Color("#3b82f6")
	ColorSecondary = lipgloss.Color("#06b6d4")
	ColorDefault   = lipgloss.Color("#9ca3af")
)

// Input event colors.
var (
	ColorSelect  = lipgloss.Color("#2563eb")
	ColorSqueeze = lipgloss.Color("#d97706")
	ColorSources = lipgloss.Color("#7c3aed")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// TargetColor returns the color for a posable target by slot: -1 is the
// headset, 0 and 1 are controller slots.
func TargetColor(slot int) lipgloss.Color {
	switch slot {
	case -1:
		return ColorHeadset
	case 0:
		return ColorPrimary
	case 1:
		return ColorSecondary
	default:
		return ColorDefault
	}
}

// InputColor returns the color for an input event type.
func InputColor(kind string) lipgloss.Color {
	switch kind {
	case "selectstart", "selectend":
		return ColorSelect
	case "squeezestart", "squeezeend":
		return ColorSqueeze
	case "inputsourceschange":
		return ColorSources
	default:
		return ColorDefault
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)
)

// ButtonGlyph renders a button state.
func ButtonGlyph(pressed bool) string {
	if pressed {
		return "●"
	}
	return "○"
}
