// Package frame runs the per-session animation-frame pipeline: projection
// and view matrices, input edge detection, the passthrough touch check, and
// hit testing.
package frame

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xr-emulator/backend/internal/device"
	"github.com/xr-emulator/backend/internal/event"
	"github.com/xr-emulator/backend/internal/hittest"
	"github.com/xr-emulator/backend/internal/session"
	"github.com/xr-emulator/backend/internal/xrmath"
)

const (
	// DefaultEyeOffset is the lateral distance of each eye from the head
	// center, in meters.
	DefaultEyeOffset = 0.032
	// DefaultTouchDepth is the half-thickness of the band around the
	// handheld surface inside which the pointer counts as touching it.
	DefaultTouchDepth = 0.02
)

// Visualization is the part of the AR collaborator the pipeline drives.
type Visualization interface {
	hittest.Surface
	OnContact()
	OnContactReleased()
}

type Options struct {
	EyeOffset  float64
	TouchDepth float64
	Logger     *slog.Logger
}

// Pipeline is the frame state machine of one session.
type Pipeline struct {
	sessionID int
	primary   bool // immersive-vr session
	inputs    bool // inline sessions expose no input sources and leave controllers alone
	state     *device.State
	hits      *hittest.Engine
	vis       Visualization
	emit      event.InputListener
	opts      Options
	logger    *slog.Logger

	stereo     bool
	projection [2]xrmath.Mat4
	view       [2]xrmath.Mat4
	pose       [2]xrmath.Mat4
	viewport   [2]Viewport

	// Latches are kept per session so every immersive session observes
	// each edge. They are mirrored onto the controllers for reporting.
	generation  uint64
	exposed     []bool
	sampled     []bool
	latched     []bool
	squeezeHeld []bool
	deferred    []int
	released    []int
}

// New creates the pipeline for s. vis may be nil when no visualization is
// attached; emit may be nil to drop input events.
func New(s *session.Session, state *device.State, hits *hittest.Engine, vis Visualization, emit event.InputListener, opts Options) *Pipeline {
	if opts.EyeOffset == 0 {
		opts.EyeOffset = DefaultEyeOffset
	}
	if opts.TouchDepth == 0 {
		opts.TouchDepth = DefaultTouchDepth
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if emit == nil {
		emit = func(event.Input) {}
	}
	p := &Pipeline{
		sessionID: s.ID,
		primary:   s.Primary(),
		inputs:    s.Immersive(),
		state:     state,
		hits:      hits,
		vis:       vis,
		emit:      emit,
		opts:      opts,
		logger:    logger.With("session", s.ID),
	}
	identity := xrmath.Identity()
	p.view = [2]xrmath.Mat4{identity, identity}
	p.pose = p.view
	p.resetControllers()
	return p
}

func (p *Pipeline) resetControllers() {
	n := p.state.ControllerCount()
	p.generation = p.state.Generation()
	p.exposed = make([]bool, n)
	p.sampled = make([]bool, n)
	p.latched = make([]bool, n)
	p.squeezeHeld = make([]bool, n)
	for i := 0; i < n; i++ {
		c, _ := p.state.Controller(i)
		p.exposed[i] = p.inputs && p.state.Exposed(i)
		p.sampled[i] = c.PrimaryActionLatch
		p.latched[i] = c.PrimaryActionLatch
		p.squeezeHeld[i] = c.PrimarySqueezeLatch
	}
	p.deferred = p.deferred[:0]
	p.released = p.released[:0]
}

// Start runs the frame-start phase. Every event it produces has been
// dispatched when it returns.
func (p *Pipeline) Start(rs session.RenderState, surface session.Surface) {
	rs = rs.WithDefaults()
	p.checkGeneration()
	p.updateProjection(rs, surface)
	p.updateViews()
	if p.inputs {
		p.detectEdges()
		if p.state.Kind() == device.KindPassthrough {
			p.checkProximity()
		}
	}
	p.resolveHits()
}

// End runs the frame-end phase: deferred select-start events, latch commit,
// and removal of released transient controllers.
func (p *Pipeline) End() {
	if !p.inputs {
		return
	}
	for _, slot := range p.deferred {
		p.emit(event.Input{Type: event.SelectStart, SessionID: p.sessionID, Controller: slot})
	}
	p.deferred = p.deferred[:0]

	for i, pressed := range p.sampled {
		p.latched[i] = pressed
		if c, ok := p.state.Controller(i); ok {
			c.PrimaryActionLatch = pressed
		}
	}

	if len(p.released) > 0 {
		removed := make([]int, 0, len(p.released))
		for _, slot := range p.released {
			c, ok := p.state.Controller(slot)
			if !ok {
				continue
			}
			c.Active = false
			if p.exposed[slot] {
				p.exposed[slot] = false
				removed = append(removed, slot)
			}
		}
		p.released = p.released[:0]
		if len(removed) > 0 {
			p.sourcesChanged(nil, removed)
		}
	}
}

func (p *Pipeline) checkGeneration() {
	if p.state.Generation() == p.generation {
		return
	}
	var removed, added []int
	for i, was := range p.exposed {
		if was {
			removed = append(removed, i)
		}
	}
	p.resetControllers()
	for i, now := range p.exposed {
		if now {
			added = append(added, i)
		}
	}
	if p.inputs && (len(removed) > 0 || len(added) > 0) {
		p.sourcesChanged(added, removed)
	}
}

func (p *Pipeline) sourcesChanged(added, removed []int) {
	p.emit(event.Input{
		Type:       event.InputSourcesChange,
		SessionID:  p.sessionID,
		Controller: -1,
		Added:      added,
		Removed:    removed,
	})
}

func (p *Pipeline) updateProjection(rs session.RenderState, surface session.Surface) {
	w, h := 0, 0
	if surface != nil {
		w, h = surface.Size()
	}
	if w <= 0 || h <= 0 {
		res := p.state.Profile().Resolution
		w, h = res.Width, res.Height
	}
	if w <= 0 || h <= 0 {
		w, h = 1, 1
	}

	p.stereo = p.primary && p.state.Kind() == device.KindPrimary && p.state.Stereo()
	aspect := float64(w) / float64(h)
	if p.stereo {
		aspect /= 2
		half := w / 2
		p.viewport = [2]Viewport{
			{X: 0, Y: 0, Width: half, Height: h},
			{X: half, Y: 0, Width: w - half, Height: h},
		}
	} else {
		full := Viewport{Width: w, Height: h}
		p.viewport = [2]Viewport{full, full}
	}

	proj := xrmath.Perspective(rs.FieldOfView, aspect, rs.DepthNear, rs.DepthFar)
	p.projection = [2]xrmath.Mat4{proj, proj}
}

// modelMatrix is the pose the views are derived from: the headset, or the
// handheld surface on a passthrough device.
func (p *Pipeline) modelMatrix() xrmath.Mat4 {
	if p.state.Kind() == device.KindPassthrough {
		if c, ok := p.state.Controller(device.Secondary); ok {
			return c.Pose.Matrix()
		}
	}
	return p.state.Headset().Matrix()
}

func (p *Pipeline) updateViews() {
	model := p.modelMatrix()
	models := [2]xrmath.Mat4{model, model}
	if p.stereo {
		d := p.opts.EyeOffset
		models[Left] = model.Translate(r3.Vec{X: -d})
		models[Right] = model.Translate(r3.Vec{X: d})
	}
	for eye, m := range models {
		inv, ok := xrmath.Invert(m)
		if !ok {
			p.logger.Debug("singular view pose, keeping previous view", "eye", Eye(eye).String())
			continue
		}
		p.view[eye] = inv
		p.pose[eye] = m
	}
}

func (p *Pipeline) detectEdges() {
	passthrough := p.state.Kind() == device.KindPassthrough
	for i := range p.sampled {
		c, ok := p.state.Controller(i)
		if !ok {
			continue
		}

		if c.PrimaryButtonIndex != device.NoButton {
			pressed := c.PrimaryPressed()
			p.sampled[i] = pressed
			switch {
			case pressed && !p.latched[i]:
				if passthrough {
					c.Active = true
					if !p.exposed[i] && p.state.Exposed(i) {
						p.exposed[i] = true
						p.sourcesChanged([]int{i}, nil)
					}
					p.deferred = append(p.deferred, i)
				} else {
					p.emit(event.Input{Type: event.SelectStart, SessionID: p.sessionID, Controller: i})
				}
			case !pressed && p.latched[i]:
				p.emit(event.Input{Type: event.SelectEnd, SessionID: p.sessionID, Controller: i})
				if passthrough && i == device.Primary {
					p.released = append(p.released, i)
				}
			}
		}

		if c.PrimarySqueezeButtonIndex != device.NoButton {
			squeezed := c.SqueezePressed()
			switch {
			case squeezed && !p.squeezeHeld[i]:
				p.emit(event.Input{Type: event.SqueezeStart, SessionID: p.sessionID, Controller: i})
			case !squeezed && p.squeezeHeld[i]:
				p.emit(event.Input{Type: event.SqueezeEnd, SessionID: p.sessionID, Controller: i})
			}
			p.squeezeHeld[i] = squeezed
			c.PrimarySqueezeLatch = squeezed
		}
	}
}

func (p *Pipeline) checkProximity() {
	pointer, ok := p.state.Controller(device.Primary)
	size := p.state.Profile().SurfaceSize
	if !ok || size.Width <= 0 || size.Height <= 0 {
		return
	}

	local := p.view[Left].TransformPoint(pointer.Pose.Position)
	x := local.X / (size.Width / 2)
	y := local.Y / (size.Height / 2)
	inside := math.Abs(x) <= 1 && math.Abs(y) <= 1 && math.Abs(local.Z) <= p.opts.TouchDepth

	if p.state.SetContact(inside) {
		if inside {
			p.state.SetButtonPressed(true, device.Primary, 0)
			if p.vis != nil {
				p.vis.OnContact()
			}
		} else {
			p.state.SetButtonPressed(false, device.Primary, 0)
			p.state.SetAxes(device.Primary, 0, 0)
			if p.vis != nil {
				p.vis.OnContactReleased()
			}
		}
	}
	if inside {
		p.state.SetAxes(device.Primary, x, -y)
	}
}

func (p *Pipeline) resolveHits() {
	if p.hits == nil {
		return
	}
	var pointer *hittest.Pointer
	if c, ok := p.state.Controller(device.Primary); ok {
		pointer = &hittest.Pointer{
			Slot:     device.Primary,
			Active:   c.Active,
			Touch:    c.Touch,
			Profiles: c.Profiles,
			Pose:     c.Pose,
		}
	}
	var surface hittest.Surface
	if p.vis != nil {
		surface = p.vis
	}
	p.hits.Resolve(p.sessionID, pointer, surface)
}

// Stereo reports whether the last frame rendered two distinct views.
func (p *Pipeline) Stereo() bool { return p.stereo }

// Touched reports whether the pointer is in contact with the handheld
// surface.
func (p *Pipeline) Touched() bool { return p.state.Contact() }

func (p *Pipeline) ProjectionMatrix(e Eye) xrmath.Mat4 { return p.projection[e.index()] }

// BaseViewMatrix is the inverse of BasePoseMatrix.
func (p *Pipeline) BaseViewMatrix(e Eye) xrmath.Mat4 { return p.view[e.index()] }

// BasePoseMatrix is the eye's model matrix in tracking space.
func (p *Pipeline) BasePoseMatrix(e Eye) xrmath.Mat4 { return p.pose[e.index()] }

func (p *Pipeline) Viewport(e Eye) Viewport { return p.viewport[e.index()] }

func (e Eye) index() int {
	if e == Right {
		return 1
	}
	return 0
}
