package status

import (
	"strings"
	"testing"
)

func TestView(t *testing.T) {
	tests := []struct {
		name   string
		m      Model
		want   []string
		unwant []string
	}{
		{
			name:   "connecting",
			m:      Model{Width: 120},
			want:   []string{"Connecting", "no device", "mono"},
			unwant: []string{"IMMERSIVE"},
		},
		{
			name: "immersive headset",
			m:    Model{Connected: true, Profile: "generic-headset", Kind: "primary", Stereo: true, Active: 1, Immersive: 1, Width: 120},
			want: []string{"Connected", "generic-headset (primary)", "stereo", "1 active sessions", "IMMERSIVE"},
		},
		{
			name: "waiting for surface",
			m:    Model{Connected: true, Profile: "handheld-ar", AssetWanted: true, Width: 140},
			want: []string{"surface asset requested"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.m.View()
			for _, w := range tt.want {
				if !strings.Contains(v, w) {
					t.Errorf("view missing %q:\n%s", w, v)
				}
			}
			for _, w := range tt.unwant {
				if strings.Contains(v, w) {
					t.Errorf("view should not contain %q", w)
				}
			}
		})
	}
}
