// Package device holds the emulated hardware: declarative device profiles
// and the live pose/button state of the headset and its controllers.
package device

import (
	"slices"

	"github.com/xr-emulator/backend/internal/session"
)

// MaxControllers is the number of controller slots a device exposes.
const MaxControllers = 2

// Kind distinguishes devices that replace the view from devices that overlay
// a camera feed.
type Kind int

const (
	KindPrimary Kind = iota
	KindPassthrough
)

func (k Kind) String() string {
	if k == KindPassthrough {
		return "passthrough"
	}
	return "primary"
}

type Resolution struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// SurfaceSize is the physical size in meters of the handheld viewing
// surface of a passthrough device.
type SurfaceSize struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// ControllerProfile describes one controller slot.
type ControllerProfile struct {
	ID                 string     `yaml:"id" json:"id"`
	Handedness         string     `yaml:"handedness" json:"handedness"`
	TargetRayMode      string     `yaml:"target_ray_mode" json:"targetRayMode"`
	Profiles           []string   `yaml:"profiles" json:"profiles"`
	Touch              bool       `yaml:"touch" json:"touch"`
	PositionalTracking bool       `yaml:"positional_tracking" json:"hasPositionalTracking"`
	Buttons            int        `yaml:"buttons" json:"buttons"`
	PrimaryButton      *int       `yaml:"primary_button" json:"primaryButtonIndex"`
	SqueezeButton      *int       `yaml:"squeeze_button" json:"primarySqueezeButtonIndex"`
	Position           [3]float64 `yaml:"position" json:"position"`
}

// Profile is a declarative device description.
type Profile struct {
	ID          string              `yaml:"id" json:"id"`
	Name        string              `yaml:"name" json:"name"`
	Modes       []session.Mode      `yaml:"modes" json:"modes"`
	Features    []string            `yaml:"features" json:"features"`
	Resolution  Resolution          `yaml:"resolution" json:"resolution"`
	SurfaceSize SurfaceSize         `yaml:"surface_size" json:"surfaceSize"`
	Stereo      bool                `yaml:"stereo" json:"stereo"`
	Controllers []ControllerProfile `yaml:"controllers" json:"controllers"`
}

// Kind is passthrough when the profile advertises immersive-ar.
func (p *Profile) Kind() Kind {
	if slices.Contains(p.Modes, session.ImmersiveAR) {
		return KindPassthrough
	}
	return KindPrimary
}

func (p *Profile) SupportsMode(m session.Mode) bool {
	return slices.Contains(p.Modes, m)
}

func (p *Profile) HasFeature(f string) bool {
	return slices.Contains(p.Features, f)
}

func (p *Profile) Clone() *Profile {
	c := *p
	c.Modes = slices.Clone(p.Modes)
	c.Features = slices.Clone(p.Features)
	c.Controllers = make([]ControllerProfile, len(p.Controllers))
	for i, cp := range p.Controllers {
		cp.Profiles = slices.Clone(cp.Profiles)
		if cp.PrimaryButton != nil {
			v := *cp.PrimaryButton
			cp.PrimaryButton = &v
		}
		if cp.SqueezeButton != nil {
			v := *cp.SqueezeButton
			cp.SqueezeButton = &v
		}
		c.Controllers[i] = cp
	}
	return &c
}
