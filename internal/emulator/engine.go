// Package emulator is the device emulation engine. It owns the session
// registry, the device state, the hit-test sources and one frame pipeline
// per session, and exposes an ingestion method per inbound transport event
// plus the session-API surface.
//
// An Engine is not safe for concurrent use. internal/host serializes every
// call onto one goroutine.
package emulator

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xr-emulator/backend/internal/arbridge"
	"github.com/xr-emulator/backend/internal/device"
	"github.com/xr-emulator/backend/internal/event"
	"github.com/xr-emulator/backend/internal/frame"
	"github.com/xr-emulator/backend/internal/hittest"
	"github.com/xr-emulator/backend/internal/session"
	"github.com/xr-emulator/backend/internal/xrmath"
)

var (
	ErrUnknownSession            = errors.New("unknown session")
	ErrSessionEnded              = errors.New("session ended")
	ErrUnsupportedReferenceSpace = errors.New("unsupported reference space")
)

// Options configures an Engine. Zero values select defaults.
type Options struct {
	EyeOffset float64
	Logger    *slog.Logger
	// Notifier receives outbound notifications for the transport.
	Notifier event.Notifier
	// Inputs receives session-API input events.
	Inputs event.InputListener
	// Visualization is the AR collaborator. Nil installs an in-process
	// arbridge.Scene.
	Visualization arbridge.Visualization
	// Observer additionally receives session lifecycle events.
	Observer func(session.Event)
}

type Engine struct {
	registry  *session.Registry
	state     *device.State
	hits      *hittest.Engine
	vis       arbridge.Visualization
	bridge    *arbridge.Bridge
	pipelines map[int]*frame.Pipeline

	notifier event.Notifier
	inputs   event.InputListener
	observer func(session.Event)
	opts     Options
	logger   *slog.Logger
}

// New creates an engine emulating profile.
func New(profile *device.Profile, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = event.Discard
	}
	vis := opts.Visualization
	if vis == nil {
		vis = arbridge.NewScene(logger)
	}

	e := &Engine{
		registry:  session.NewRegistry(),
		state:     device.NewState(profile),
		hits:      hittest.NewEngine(),
		vis:       vis,
		pipelines: make(map[int]*frame.Pipeline),
		notifier:  notifier,
		inputs:    opts.Inputs,
		observer:  opts.Observer,
		opts:      opts,
		logger:    logger,
	}
	e.bridge = arbridge.New(e.state, vis, notifier)
	e.registry.SetObserver(e.onLifecycle)
	return e
}

// Registry is safe to read from other goroutines.
func (e *Engine) Registry() *session.Registry { return e.registry }

func (e *Engine) State() *device.State { return e.state }

func (e *Engine) onLifecycle(ev session.Event) {
	s := ev.Session
	switch ev.Type {
	case session.EventCreated:
		e.logger.Info("session created", "session", s.ID, "mode", s.Mode.String(), "features", s.EnabledFeatures)
		if s.Immersive() {
			e.notifier.Notify(event.Notification{Type: event.EnterImmersive})
		}
	case session.EventSurfaceDetached:
		if s.Passthrough() {
			e.vis.ReleaseVirtualScreen()
		}
	case session.EventEnded:
		e.logger.Info("session ended", "session", s.ID, "active", ev.ActiveCount)
		if s.Passthrough() {
			e.vis.ClearOverlay()
		}
		if s.Immersive() {
			e.notifier.Notify(event.Notification{Type: event.LeaveImmersive})
		}
	}
	if e.observer != nil {
		e.observer(ev)
	}
}

func (e *Engine) dispatch(ev event.Input) {
	e.logger.Debug("input event", "type", ev.Type.String(), "session", ev.SessionID, "controller", ev.Controller)
	if e.inputs != nil {
		e.inputs(ev)
	}
}

// Inbound transport events.

// DeviceConfigChanged switches the emulated device to p. The controller
// array is rebuilt two frame boundaries later.
func (e *Engine) DeviceConfigChanged(p *device.Profile) {
	e.logger.Info("device reconfigured", "profile", p.ID, "kind", p.Kind().String())
	e.state.Reconfigure(p)
}

func (e *Engine) HeadsetPoseUpdate(position r3.Vec, orientation quat.Number) {
	e.state.SetHeadsetPose(position, orientation)
	e.vis.UpdateCameraTransform(position, orientation)
}

func (e *Engine) ControllerPoseUpdate(controller string, position r3.Vec, orientation quat.Number) {
	slot := event.ControllerSlot(controller)
	e.state.SetControllerPose(slot, position, orientation)
	if e.state.Kind() != device.KindPassthrough {
		return
	}
	switch slot {
	case device.Primary:
		e.vis.UpdatePointerTransform(position, orientation)
	case device.Secondary:
		e.vis.UpdateSurfaceTransform(position, orientation)
	}
}

func (e *Engine) ControllerButtonUpdate(controller string, button int, pressed bool) {
	e.state.SetButtonPressed(pressed, event.ControllerSlot(controller), button)
}

func (e *Engine) ControllerAxisUpdate(controller string, axis int, value float64) {
	e.state.SetAxisValue(event.ControllerSlot(controller), axis, value)
}

func (e *Engine) StereoToggle(enabled bool) {
	e.state.SetStereo(enabled)
}

// SurfaceAssetReady loads a hit-test surface mesh into the visualization.
func (e *Engine) SurfaceAssetReady(buf []byte) error {
	if err := e.vis.LoadSurfaceAsset(buf); err != nil {
		return fmt.Errorf("load surface asset: %w", err)
	}
	return nil
}

func (e *Engine) CameraPoseChanged(position r3.Vec, orientation quat.Number) {
	e.bridge.CameraPoseChanged(position, orientation)
}

func (e *Engine) SurfacePoseChanged(position r3.Vec, orientation quat.Number) {
	e.bridge.SurfacePoseChanged(position, orientation)
}

func (e *Engine) Touch(point r3.Vec) { e.bridge.Touch(point) }

func (e *Engine) Release() { e.bridge.Release() }

// Session API.

// RequestSession creates a session. Requested features the device does not
// advertise are dropped; viewer is always enabled and local is enabled for
// immersive sessions.
func (e *Engine) RequestSession(mode session.Mode, features []string) (*session.Session, error) {
	profile := e.state.Profile()
	enabled := []string{session.SpaceViewer}
	if mode.Immersive() {
		enabled = append(enabled, session.SpaceLocal)
	}
	for _, f := range features {
		if profile.HasFeature(f) && !slices.Contains(enabled, f) {
			enabled = append(enabled, f)
		}
	}

	s, err := e.registry.Create(mode, enabled, profile.Modes)
	if err != nil {
		return nil, err
	}
	e.pipelines[s.ID] = frame.New(s, e.state, e.hits, e.vis, e.dispatch, frame.Options{
		EyeOffset: e.opts.EyeOffset,
		Logger:    e.logger,
	})

	if s.Passthrough() && !e.hasSurfaceAsset() {
		e.notifier.Notify(event.Notification{Type: event.SurfaceAssetRequest})
	}
	return s, nil
}

func (e *Engine) hasSurfaceAsset() bool {
	hs, ok := e.vis.(interface{ HasSurface() bool })
	return ok && hs.HasSurface()
}

// BindSurface attaches a presentation surface, sized to the device
// resolution.
func (e *Engine) BindSurface(id int, surface session.Surface) error {
	res := e.state.Profile().Resolution
	if err := e.registry.BindSurface(id, surface, res.Width, res.Height); err != nil {
		return fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}
	return nil
}

func (e *Engine) live(id int) (*session.Session, *frame.Pipeline, error) {
	s, ok := e.registry.Get(id)
	p := e.pipelines[id]
	if !ok || p == nil {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}
	if s.Ended {
		return s, p, fmt.Errorf("%w: %d", ErrSessionEnded, id)
	}
	return s, p, nil
}

// OnFrameStart runs the frame-start phase for the session. Every event of
// the phase has been dispatched when it returns.
func (e *Engine) OnFrameStart(id int, rs session.RenderState) error {
	s, p, err := e.live(id)
	if err != nil {
		return err
	}
	e.registry.SetRenderState(id, rs)
	if s.Passthrough() {
		e.bridge.Sync()
	}
	p.Start(rs, s.Surface)
	return nil
}

// OnFrameEnd runs the frame-end phase for the session.
func (e *Engine) OnFrameEnd(id int) error {
	_, p, err := e.live(id)
	if err != nil {
		return err
	}
	p.End()
	return nil
}

// EndTick marks a frame boundary for the deferred reconfiguration queue.
// Call it once per host tick, after every session has run its frame end.
func (e *Engine) EndTick() {
	if e.state.FrameBoundary() {
		e.logger.Debug("controllers rebuilt", "generation", e.state.Generation(), "count", e.state.ControllerCount())
	}
}

// EndSession ends the session. Repeated calls are no-ops.
func (e *Engine) EndSession(id int) error {
	if _, ok := e.registry.Get(id); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}
	if e.registry.End(id) {
		e.hits.CancelSession(id)
	}
	return nil
}

// ActiveSessions returns the ids of every session that has not ended.
func (e *Engine) ActiveSessions() []int { return e.registry.ActiveIDs() }

func (e *Engine) pipeline(id int) (*frame.Pipeline, error) {
	p, ok := e.pipelines[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}
	return p, nil
}

func (e *Engine) GetViewport(id int, eye frame.Eye) (frame.Viewport, error) {
	p, err := e.pipeline(id)
	if err != nil {
		return frame.Viewport{}, err
	}
	return p.Viewport(eye), nil
}

func (e *Engine) GetProjectionMatrix(id int, eye frame.Eye) (xrmath.Mat4, error) {
	p, err := e.pipeline(id)
	if err != nil {
		return xrmath.Mat4{}, err
	}
	return p.ProjectionMatrix(eye), nil
}

func (e *Engine) GetBaseViewMatrix(id int, eye frame.Eye) (xrmath.Mat4, error) {
	p, err := e.pipeline(id)
	if err != nil {
		return xrmath.Mat4{}, err
	}
	return p.BaseViewMatrix(eye), nil
}

func (e *Engine) GetBasePoseMatrix(id int, eye frame.Eye) (xrmath.Mat4, error) {
	p, err := e.pipeline(id)
	if err != nil {
		return xrmath.Mat4{}, err
	}
	return p.BasePoseMatrix(eye), nil
}

// SupportsReferenceSpace is false for unknown and ended sessions.
func (e *Engine) SupportsReferenceSpace(id int, space string) bool {
	return e.registry.SupportsReferenceSpace(id, space)
}

// Hit testing.

// AddHitTestSource anchors a hit-test source to space. A zero ray selects
// hittest.DefaultRay.
func (e *Engine) AddHitTestSource(id int, space *ReferenceSpace, ray hittest.Ray) (*hittest.Source, error) {
	if _, _, err := e.live(id); err != nil {
		return nil, err
	}
	if space == nil || space.sessionID != id {
		return nil, fmt.Errorf("%w: space not owned by session %d", ErrUnsupportedReferenceSpace, id)
	}
	return e.hits.AddSource(id, space, normalizeRay(ray)), nil
}

// AddTransientInputHitTestSource follows the touch pointer while it is in
// contact. An empty profile matches any touch input.
func (e *Engine) AddTransientInputHitTestSource(id int, profile string, ray hittest.Ray) (*hittest.TransientSource, error) {
	if _, _, err := e.live(id); err != nil {
		return nil, err
	}
	return e.hits.AddTransientSource(id, profile, normalizeRay(ray)), nil
}

func (e *Engine) GetHitTestResults(src *hittest.Source) []hittest.Result {
	return src.Results()
}

func (e *Engine) GetHitTestResultsForTransientInput(src *hittest.TransientSource) []hittest.TransientResult {
	return src.Results()
}

func normalizeRay(r hittest.Ray) hittest.Ray {
	if r.Direction == (r3.Vec{}) {
		r.Direction = hittest.DefaultRay().Direction
	}
	r.Direction = r3.Unit(r.Direction)
	return r
}
