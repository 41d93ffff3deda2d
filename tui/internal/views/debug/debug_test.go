package debug

import (
	"fmt"
	"strings"
	"testing"
)

func fill(m *Model, kind Kind, n int) {
	for i := range n {
		m.Addf(kind, "msg %d", i)
	}
}

func TestAddEntry(t *testing.T) {
	m := New()
	m.Add(KindTransport, "connected")
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.Entries))
	}
	if m.Entries[0].Kind != KindTransport || m.Entries[0].Repeat != 1 {
		t.Errorf("entry = %+v", m.Entries[0])
	}
}

func TestRepeatsCollapse(t *testing.T) {
	m := New()
	m.Add(KindInput, "selectstart")
	m.Add(KindInput, "selectstart")
	m.Add(KindError, "selectstart")
	m.Add(KindInput, "selectstart")
	if len(m.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(m.Entries))
	}
	if m.Entries[0].Repeat != 2 {
		t.Errorf("first entry repeat = %d, want 2", m.Entries[0].Repeat)
	}
	if m.Count(KindInput) != 3 {
		t.Errorf("Count(in) = %d, want 3", m.Count(KindInput))
	}
	if v := m.View(80, 20); !strings.Contains(v, "(x2)") {
		t.Error("view should mark collapsed repeats")
	}
}

func TestMaxEntries(t *testing.T) {
	m := New()
	fill(&m, KindTransport, maxEntries+50)
	if len(m.Entries) != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
	if m.Entries[0].Message != "msg 50" {
		t.Errorf("oldest kept = %q", m.Entries[0].Message)
	}
}

func TestScrollUpDown(t *testing.T) {
	m := New()
	fill(&m, KindTransport, 20)
	if m.Offset != 0 {
		t.Fatal("expected offset 0 after adds")
	}

	m.ScrollUp(5)
	if m.Offset != 5 {
		t.Errorf("expected offset 5, got %d", m.Offset)
	}

	m.ScrollDown(3)
	if m.Offset != 2 {
		t.Errorf("expected offset 2, got %d", m.Offset)
	}

	m.ScrollDown(10)
	if m.Offset != 0 {
		t.Errorf("expected offset 0, got %d", m.Offset)
	}
}

func TestScrollUpCapped(t *testing.T) {
	m := New()
	fill(&m, KindTransport, 5)
	m.ScrollUp(100)
	if m.Offset != 4 {
		t.Errorf("expected offset 4, got %d", m.Offset)
	}
}

func TestFilter(t *testing.T) {
	m := New()
	fill(&m, KindTransport, 10)
	m.Add(KindInput, "selectstart session 1")
	m.Add(KindSession, "session 1 immersive-vr active")

	m.CycleFilter()
	if m.Filter != KindInput {
		t.Fatalf("filter = %q, want in", m.Filter)
	}
	v := m.View(80, 20)
	if !strings.Contains(v, "selectstart") || strings.Contains(v, "msg 3") {
		t.Error("input filter should hide transport entries")
	}
	m.ScrollUp(10)
	if m.Offset != 0 {
		t.Errorf("scroll should be capped to the filtered list, got %d", m.Offset)
	}

	for range filters[1:] {
		m.CycleFilter()
	}
	if m.Filter != "" {
		t.Errorf("filter should wrap to all, got %q", m.Filter)
	}
}

func TestViewEmpty(t *testing.T) {
	m := New()
	if v := m.View(80, 20); !strings.Contains(v, "No events") {
		t.Error("empty view should show 'No events' message")
	}
}

func TestViewWithEntries(t *testing.T) {
	m := New()
	m.Add(KindTransport, "connected")
	m.Add(KindError, "timeout")
	v := m.View(80, 20)
	for _, want := range []string{"connected", "timeout", "[all]"} {
		if !strings.Contains(v, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestAddResetsScroll(t *testing.T) {
	m := New()
	fill(&m, KindTransport, 10)
	m.ScrollUp(5)
	m.Add(KindTransport, "new")
	if m.Offset != 0 {
		t.Error("adding entry should reset scroll to 0")
	}
}

func TestAddfAndCount(t *testing.T) {
	m := New()
	m.Addf(KindInput, "%s session %d", "selectstart", 1)
	m.Addf(KindInput, "%s session %d", "selectend", 1)
	m.Add(KindError, "boom")
	if m.Entries[0].Message != "selectstart session 1" {
		t.Errorf("message = %q", m.Entries[0].Message)
	}
	if got := fmt.Sprint(m.Count(KindInput), m.Count(KindError), m.Count(KindTransport)); got != "2 1 0" {
		t.Errorf("counts = %s", got)
	}
	if v := m.View(80, 20); !strings.Contains(v, "2 input") {
		t.Error("help line should count input events")
	}
}
