package session

import (
	"math"
	"slices"
	"time"
)

// Reference space types a session can enable.
const (
	SpaceViewer       = "viewer"
	SpaceLocal        = "local"
	SpaceLocalFloor   = "local-floor"
	SpaceBoundedFloor = "bounded-floor"
	SpaceUnbounded    = "unbounded"
)

// Default render state values, applied to zero fields.
const (
	DefaultDepthNear   = 0.1
	DefaultDepthFar    = 1000.0
	DefaultFieldOfView = math.Pi / 2
)

// RenderState carries the per-frame rendering parameters chosen by the
// application.
type RenderState struct {
	DepthNear   float64 `json:"depthNear"`
	DepthFar    float64 `json:"depthFar"`
	FieldOfView float64 `json:"fieldOfView"` // vertical, radians
}

// WithDefaults returns rs with zero fields replaced by the defaults.
func (rs RenderState) WithDefaults() RenderState {
	if rs.DepthNear <= 0 {
		rs.DepthNear = DefaultDepthNear
	}
	if rs.DepthFar <= 0 {
		rs.DepthFar = DefaultDepthFar
	}
	if rs.FieldOfView <= 0 {
		rs.FieldOfView = DefaultFieldOfView
	}
	return rs
}

// Surface is the presentation target a session renders into.
type Surface interface {
	Attach(width, height int)
	Detach()
	Size() (width, height int)
}

// Canvas is an in-memory Surface.
type Canvas struct {
	Width    int
	Height   int
	Attached bool
}

func (c *Canvas) Attach(width, height int) {
	c.Width, c.Height = width, height
	c.Attached = true
}

func (c *Canvas) Detach() { c.Attached = false }

func (c *Canvas) Size() (int, int) { return c.Width, c.Height }

type Session struct {
	ID              int         `json:"id"`
	Mode            Mode        `json:"mode"`
	EnabledFeatures []string    `json:"enabledFeatures"` // sorted
	Surface         Surface     `json:"-"`
	RenderState     RenderState `json:"renderState"`
	Ended           bool        `json:"ended"`
	StartedAt       time.Time   `json:"startedAt"`
	EndedAt         *time.Time  `json:"endedAt,omitempty"`
}

func (s *Session) Immersive() bool   { return s.Mode.Immersive() }
func (s *Session) Primary() bool     { return s.Mode == ImmersiveVR }
func (s *Session) Passthrough() bool { return s.Mode == ImmersiveAR }

// HasFeature reports whether feature was enabled at creation.
func (s *Session) HasFeature(feature string) bool {
	_, found := slices.BinarySearch(s.EnabledFeatures, feature)
	return found
}

// Clone returns a copy that shares only the Surface handle.
func (s *Session) Clone() *Session {
	c := *s
	c.EnabledFeatures = slices.Clone(s.EnabledFeatures)
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}
