package device

import (
	"strings"
	"testing"

	"github.com/xr-emulator/panel/internal/client"
	"github.com/xr-emulator/panel/internal/motion"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		kind string
		slot int
		want string
	}{
		{"primary", Headset, "headset"},
		{"primary", 0, "primary"},
		{"primary", 1, "secondary"},
		{client.KindPassthrough, Headset, "camera"},
		{client.KindPassthrough, 0, "pointer"},
		{client.KindPassthrough, 1, "surface"},
	}
	for _, tt := range tests {
		if got := Label(tt.kind, tt.slot); got != tt.want {
			t.Errorf("Label(%q, %d) = %q, want %q", tt.kind, tt.slot, got, tt.want)
		}
	}
}

func TestViewShowsTargetsAndSessions(t *testing.T) {
	m := New()
	m.Width = 100
	m.Kind = "primary"
	m.Headset = client.Pose{Position: [3]float64{0, 1.6, 0}, Quaternion: motion.YawQuat(0)}
	m.Controllers = []client.Controller{
		{Buttons: []client.Button{{Pressed: true}, {}}, Active: true, PrimaryActionLatch: true},
	}
	m.Sessions = []client.Session{
		{ID: 1, Mode: "immersive-vr", EnabledFeatures: []string{"local", "viewer"}},
		{ID: 2, Mode: "inline", Ended: true},
	}

	v := m.View()
	for _, want := range []string{"▶ ", "headset", "1.60", "primary", "●○", "selecting", "#1 immersive-vr", "(ended)"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}

func TestViewWithoutSessions(t *testing.T) {
	m := New()
	m.Controllers = []client.Controller{{Buttons: []client.Button{{}}}}
	v := m.View()
	if !strings.Contains(v, "none") || !strings.Contains(v, "inactive") {
		t.Errorf("view:\n%s", v)
	}
}
