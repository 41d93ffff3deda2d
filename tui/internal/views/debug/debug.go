// Package debug provides a scrollable overlay of emulator traffic: input
// events, session changes and errors.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/xr-emulator/panel/internal/theme"
)

const maxEntries = 200

// Kind tags an entry with where it came from.
type Kind string

const (
	KindTransport Kind = "ws"
	KindInput     Kind = "in"
	KindSession   Kind = "ses"
	KindError     Kind = "err"
	KindPanel     Kind = "nav"
)

// filters is the cycle order of CycleFilter. The empty kind shows all.
var filters = []Kind{"", KindInput, KindSession, KindError}

// Entry is one log line. Identical consecutive messages collapse into a
// single entry with Repeat > 1.
type Entry struct {
	Time    time.Time
	Kind    Kind
	Message string
	Repeat  int
}

type Model struct {
	Entries []Entry
	Offset  int // scroll offset from the bottom of the filtered list
	Filter  Kind
}

func New() Model {
	return Model{}
}

// Add appends an entry, caps the buffer and scrolls back to the bottom.
func (m *Model) Add(kind Kind, message string) {
	now := time.Now()
	m.Offset = 0
	if n := len(m.Entries); n > 0 {
		last := &m.Entries[n-1]
		if last.Kind == kind && last.Message == message {
			last.Repeat++
			last.Time = now
			return
		}
	}
	m.Entries = append(m.Entries, Entry{Time: now, Kind: kind, Message: message, Repeat: 1})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
}

func (m *Model) Addf(kind Kind, format string, args ...any) {
	m.Add(kind, fmt.Sprintf(format, args...))
}

// Count returns how many retained events have the given kind, repeats
// included.
func (m *Model) Count(kind Kind) int {
	n := 0
	for _, e := range m.Entries {
		if e.Kind == kind {
			n += e.Repeat
		}
	}
	return n
}

// CycleFilter steps through all, input, session and error entries.
func (m *Model) CycleFilter() {
	next := 0
	for i, k := range filters {
		if k == m.Filter {
			next = (i + 1) % len(filters)
			break
		}
	}
	m.Filter = filters[next]
	m.Offset = 0
}

func (m *Model) visible() []Entry {
	if m.Filter == "" {
		return m.Entries
	}
	var out []Entry
	for _, e := range m.Entries {
		if e.Kind == m.Filter {
			out = append(out, e)
		}
	}
	return out
}

func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.visible())-1, 0))
}

func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	rows := max(height-6, 3)

	filter := "all"
	if m.Filter != "" {
		filter = string(m.Filter)
	}
	title := theme.StyleHeader.Render(" EVENT LOG ") + theme.StyleDimmed.Render("  ["+filter+"]")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  tab:filter  esc:close  %d entries  %d input  %d errors",
		len(m.Entries), m.Count(KindInput), m.Count(KindError)))

	entries := m.visible()
	if len(entries) == 0 {
		body := theme.StyleDimmed.Render("  No events recorded yet.")
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := max(len(entries)-m.Offset, 0)
	start := max(end-rows, 0)

	lines := make([]string, 0, end-start)
	for _, e := range entries[start:end] {
		lines = append(lines, m.renderEntry(e, innerW))
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help)
	return panelStyle(innerW).Render(content)
}

func (m Model) renderEntry(e Entry, width int) string {
	ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
	kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(4).Render(string(e.Kind))
	msg := e.Message
	if e.Repeat > 1 {
		msg = fmt.Sprintf("%s (x%d)", msg, e.Repeat)
	}
	if limit := width - 20; limit > 3 && len(msg) > limit {
		msg = msg[:limit-3] + "..."
	}
	return ts + " " + kind + " " + msg
}

func kindColor(kind Kind) lipgloss.Color {
	switch kind {
	case KindTransport:
		return theme.ColorPrimary
	case KindError:
		return theme.ColorDanger
	case KindInput:
		return theme.ColorSelect
	case KindSession:
		return theme.ColorWarning
	default:
		return theme.ColorDimmed
	}
}
