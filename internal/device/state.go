package device

import (
	"slices"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xr-emulator/backend/internal/xrmath"
)

// Controller slots.
const (
	Primary   = 0 // right hand, or the touch pointer of a passthrough device
	Secondary = 1 // left hand, or the handheld surface of a passthrough device
)

// NoButton marks an unconfigured primary or squeeze button index.
const NoButton = -1

// DefaultHeadsetPosition is where the headset sits until the first update.
var DefaultHeadsetPosition = r3.Vec{Y: 1.6}

// reconfigureDelay is the number of frame boundaries between a
// reconfiguration and the controller rebuild.
const reconfigureDelay = 2

type Button struct {
	Pressed bool    `json:"pressed"`
	Touched bool    `json:"touched"`
	Value   float64 `json:"value"`
}

type Controller struct {
	ID                        string      `json:"id"`
	Handedness                string      `json:"handedness,omitempty"`
	TargetRayMode             string      `json:"targetRayMode"`
	Profiles                  []string    `json:"profiles"`
	Touch                     bool        `json:"touch"`
	HasPositionalTracking     bool        `json:"hasPositionalTracking"`
	Buttons                   []Button    `json:"buttons"`
	Axes                      [2]float64  `json:"axes"`
	Pose                      xrmath.Pose `json:"-"`
	PrimaryButtonIndex        int         `json:"primaryButtonIndex"`
	PrimarySqueezeButtonIndex int         `json:"primarySqueezeButtonIndex"`
	Active                    bool        `json:"active"`
	PrimaryActionLatch        bool        `json:"primaryActionLatch"`
	PrimarySqueezeLatch       bool        `json:"primarySqueezeLatch"`
}

// PrimaryPressed reports the current pressed state of the primary button.
func (c *Controller) PrimaryPressed() bool {
	return c.pressed(c.PrimaryButtonIndex)
}

// SqueezePressed reports the current pressed state of the squeeze button.
func (c *Controller) SqueezePressed() bool {
	return c.pressed(c.PrimarySqueezeButtonIndex)
}

func (c *Controller) pressed(i int) bool {
	return i >= 0 && i < len(c.Buttons) && c.Buttons[i].Pressed
}

func (c *Controller) release(i int) {
	if i >= 0 && i < len(c.Buttons) {
		c.Buttons[i].Pressed = false
		c.Buttons[i].Value = 0
	}
}

func (c *Controller) Clone() *Controller {
	cc := *c
	cc.Profiles = slices.Clone(c.Profiles)
	cc.Buttons = slices.Clone(c.Buttons)
	return &cc
}

type pendingRebuild struct {
	due     uint64
	profile *Profile
}

// State is the live emulated hardware. It is owned by a single goroutine.
type State struct {
	profile     *Profile
	headset     xrmath.Pose
	controllers []*Controller
	stereo      bool
	// contact is whether the pointer touches the handheld surface. It is
	// device-wide so every session sees one transition.
	contact bool

	boundary   uint64
	pending    []pendingRebuild
	generation uint64
}

func NewState(p *Profile) *State {
	s := &State{
		profile: p.Clone(),
		headset: xrmath.NewPose(DefaultHeadsetPosition),
		stereo:  p.Stereo,
	}
	s.controllers = buildControllers(s.profile)
	return s
}

func buildControllers(p *Profile) []*Controller {
	n := min(len(p.Controllers), MaxControllers)
	out := make([]*Controller, n)
	for i := 0; i < n; i++ {
		cp := p.Controllers[i]
		c := &Controller{
			ID:                        cp.ID,
			Handedness:                cp.Handedness,
			TargetRayMode:             cp.TargetRayMode,
			Profiles:                  slices.Clone(cp.Profiles),
			Touch:                     cp.Touch,
			HasPositionalTracking:     cp.PositionalTracking,
			Buttons:                   make([]Button, cp.Buttons),
			Pose:                      xrmath.NewPose(xrmath.Vec(cp.Position)),
			PrimaryButtonIndex:        NoButton,
			PrimarySqueezeButtonIndex: NoButton,
			Active:                    !(p.Kind() == KindPassthrough && i == Primary),
		}
		if cp.PrimaryButton != nil {
			c.PrimaryButtonIndex = *cp.PrimaryButton
		}
		if cp.SqueezeButton != nil {
			c.PrimarySqueezeButtonIndex = *cp.SqueezeButton
		}
		out[i] = c
	}
	return out
}

func (s *State) Profile() *Profile    { return s.profile }
func (s *State) Kind() Kind           { return s.profile.Kind() }
func (s *State) Headset() xrmath.Pose { return s.headset }
func (s *State) Stereo() bool         { return s.stereo }
func (s *State) SetStereo(on bool)    { s.stereo = on }

// Generation changes every time the controller array is rebuilt.
func (s *State) Generation() uint64 { return s.generation }

func (s *State) ControllerCount() int { return len(s.controllers) }

// Controller returns the live controller in slot i.
func (s *State) Controller(i int) (*Controller, bool) {
	if i < 0 || i >= len(s.controllers) {
		return nil, false
	}
	return s.controllers[i], true
}

// Exposed reports whether slot i currently appears as an input source. The
// handheld surface of a passthrough device never does.
func (s *State) Exposed(i int) bool {
	c, ok := s.Controller(i)
	if !ok {
		return false
	}
	if s.Kind() == KindPassthrough && i == Secondary {
		return false
	}
	return c.Active
}

// Controllers returns deep copies of every controller.
func (s *State) Controllers() []*Controller {
	out := make([]*Controller, len(s.controllers))
	for i, c := range s.controllers {
		out[i] = c.Clone()
	}
	return out
}

func (s *State) SetHeadsetPose(position r3.Vec, orientation quat.Number) {
	s.headset = xrmath.Pose{Position: position, Orientation: orientation}
}

func (s *State) SetControllerPose(index int, position r3.Vec, orientation quat.Number) {
	c, ok := s.Controller(index)
	if !ok {
		return
	}
	c.Pose = xrmath.Pose{Position: position, Orientation: orientation}
}

func (s *State) SetButtonPressed(pressed bool, controller, button int) {
	c, ok := s.Controller(controller)
	if !ok || button < 0 || button >= len(c.Buttons) {
		return
	}
	c.Buttons[button].Pressed = pressed
	if pressed {
		c.Buttons[button].Value = 1
	} else {
		c.Buttons[button].Value = 0
	}
}

func (s *State) SetButtonTouched(touched bool, controller, button int) {
	c, ok := s.Controller(controller)
	if !ok || button < 0 || button >= len(c.Buttons) {
		return
	}
	c.Buttons[button].Touched = touched
}

func (s *State) SetAxisValue(controller, axis int, value float64) {
	c, ok := s.Controller(controller)
	if !ok || axis < 0 || axis >= len(c.Axes) {
		return
	}
	c.Axes[axis] = value
}

func (s *State) SetAxes(controller int, x, y float64) {
	c, ok := s.Controller(controller)
	if !ok {
		return
	}
	c.Axes = [2]float64{x, y}
}

// Reconfigure switches to profile p. Everything except the controller array
// applies now. Held primary and squeeze buttons are released immediately so
// the next frame observes the release; the array itself is rebuilt once two
// more frame boundaries have passed.
func (s *State) Reconfigure(p *Profile) {
	for _, c := range s.controllers {
		if c.PrimaryPressed() {
			c.release(c.PrimaryButtonIndex)
		}
		if c.SqueezePressed() {
			c.release(c.PrimarySqueezeButtonIndex)
		}
	}
	s.profile = p.Clone()
	s.stereo = p.Stereo
	s.pending = append(s.pending, pendingRebuild{due: s.boundary + reconfigureDelay, profile: s.profile})
}

// PendingRebuilds is the number of queued controller rebuilds.
func (s *State) PendingRebuilds() int { return len(s.pending) }

// FrameBoundary marks the end of a frame and applies any rebuild that has
// become due. It reports whether the controller array was replaced.
func (s *State) FrameBoundary() bool {
	s.boundary++
	applied := false
	kept := s.pending[:0]
	for _, r := range s.pending {
		if r.due <= s.boundary {
			s.controllers = buildControllers(r.profile)
			applied = true
			continue
		}
		kept = append(kept, r)
	}
	s.pending = kept
	if applied {
		s.generation++
		s.contact = false
	}
	return applied
}

// Contact reports whether the pointer is touching the handheld surface.
func (s *State) Contact() bool { return s.contact }

// SetContact records the touch state and reports whether it changed.
func (s *State) SetContact(touched bool) bool {
	if s.contact == touched {
		return false
	}
	s.contact = touched
	return true
}
