package app

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/xr-emulator/panel/internal/views/help"
)

// KeyMap defines all keyboard bindings for the panel.
type KeyMap struct {
	Forward  key.Binding
	Back     key.Binding
	Left     key.Binding
	Right    key.Binding
	Up       key.Binding
	Down     key.Binding
	TurnL    key.Binding
	TurnR    key.Binding
	Target   key.Binding
	Select   key.Binding
	Squeeze  key.Binding
	StickX   key.Binding
	StickY   key.Binding
	Stereo   key.Binding
	Start    key.Binding
	End      key.Binding
	Preset   key.Binding
	Events   key.Binding
	Help     key.Binding
	ScrollUp key.Binding
	ScrollDn key.Binding
	Escape   key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Forward: key.NewBinding(
			key.WithKeys("w", "up"),
			key.WithHelp("w/↑", "move forward"),
		),
		Back: key.NewBinding(
			key.WithKeys("s", "down"),
			key.WithHelp("s/↓", "move back"),
		),
		Left: key.NewBinding(
			key.WithKeys("a", "left"),
			key.WithHelp("a/←", "move left"),
		),
		Right: key.NewBinding(
			key.WithKeys("d", "right"),
			key.WithHelp("d/→", "move right"),
		),
		Up: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "raise"),
		),
		Down: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "lower"),
		),
		TurnL: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "turn left"),
		),
		TurnR: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "turn right"),
		),
		Target: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next target"),
		),
		Select: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "press/release primary (tap on AR)"),
		),
		Squeeze: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "press/release squeeze"),
		),
		StickX: key.NewBinding(
			key.WithKeys("[", "]"),
			key.WithHelp("[ ]", "thumbstick x"),
		),
		StickY: key.NewBinding(
			key.WithKeys("-", "="),
			key.WithHelp("- =", "thumbstick y"),
		),
		Stereo: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle stereo"),
		),
		Start: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "start immersive session"),
		),
		End: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "end newest session"),
		),
		Preset: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("1-9", "jump headset to preset"),
		),
		Events: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "event log"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("k"),
			key.WithHelp("k", "scroll up"),
		),
		ScrollDn: key.NewBinding(
			key.WithKeys("j"),
			key.WithHelp("j", "scroll down"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// HelpBindings lists the bindings for the help overlay.
func (k KeyMap) HelpBindings() []help.Binding {
	var out []help.Binding
	for _, b := range []key.Binding{
		k.Forward, k.Back, k.Left, k.Right, k.Up, k.Down, k.TurnL, k.TurnR,
		k.Target, k.Select, k.Squeeze, k.StickX, k.StickY, k.Stereo, k.Start, k.End, k.Preset,
		k.Events, k.Help, k.Escape, k.Quit,
	} {
		h := b.Help()
		out = append(out, help.Binding{Keys: h.Key, Desc: h.Desc})
	}
	return out
}
