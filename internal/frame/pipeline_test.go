package frame

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xr-emulator/backend/internal/device"
	"github.com/xr-emulator/backend/internal/event"
	"github.com/xr-emulator/backend/internal/hittest"
	"github.com/xr-emulator/backend/internal/session"
	"github.com/xr-emulator/backend/internal/xrmath"
)

type fakeVis struct {
	contacts, releases int
	queries            int
	hit                []r3.Vec
}

func (v *fakeVis) QueryHitTestSurface(origin, direction r3.Vec) []r3.Vec {
	v.queries++
	return v.hit
}
func (v *fakeVis) OnContact()         { v.contacts++ }
func (v *fakeVis) OnContactReleased() { v.releases++ }

type inputLog struct {
	events []event.Input
}

func (l *inputLog) listen(ev event.Input) { l.events = append(l.events, ev) }

func (l *inputLog) types() []event.InputType {
	out := make([]event.InputType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func (l *inputLog) count(t event.InputType) int {
	n := 0
	for _, ev := range l.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (l *inputLog) reset() { l.events = nil }

type fixture struct {
	p     *Pipeline
	state *device.State
	log   *inputLog
	vis   *fakeVis
	hits  *hittest.Engine
	canv  *session.Canvas
}

func newFixture(t *testing.T, profile string, mode session.Mode) *fixture {
	t.Helper()
	prof, ok := device.Builtin().Lookup(profile)
	require.True(t, ok)
	f := &fixture{
		state: device.NewState(prof),
		log:   &inputLog{},
		vis:   &fakeVis{},
		hits:  hittest.NewEngine(),
		canv:  &session.Canvas{Width: prof.Resolution.Width, Height: prof.Resolution.Height},
	}
	s := &session.Session{ID: 7, Mode: mode}
	f.p = New(s, f.state, f.hits, f.vis, f.log.listen, Options{})
	return f
}

func (f *fixture) start() { f.p.Start(session.RenderState{}, f.canv) }

func (f *fixture) tick() {
	f.start()
	f.p.End()
}

func TestStereoViewMatrices(t *testing.T) {
	f := newFixture(t, "generic-headset", session.ImmersiveVR)
	q := xrmath.Normalize(quat.Number{Real: 0.9, Jmag: 0.3, Imag: 0.1})
	f.state.SetHeadsetPose(r3.Vec{X: 0.3, Y: 1.7, Z: -0.2}, q)
	f.tick()

	require.True(t, f.p.Stereo())
	head := f.state.Headset().Matrix()
	wantLeft, _ := xrmath.Invert(head.Translate(r3.Vec{X: -DefaultEyeOffset}))
	wantRight, _ := xrmath.Invert(head.Translate(r3.Vec{X: DefaultEyeOffset}))
	assert.True(t, wantLeft.ApproxEqual(f.p.BaseViewMatrix(Left), 1e-12))
	assert.True(t, wantRight.ApproxEqual(f.p.BaseViewMatrix(Right), 1e-12))
	assert.False(t, f.p.BaseViewMatrix(Left).ApproxEqual(f.p.BaseViewMatrix(Right), 1e-6))

	// Eyes sit 2d apart along the head's local X axis.
	l := f.p.BasePoseMatrix(Left).Position()
	r := f.p.BasePoseMatrix(Right).Position()
	assert.InDelta(t, 2*DefaultEyeOffset, r3.Norm(r3.Sub(r, l)), 1e-9)
}

func TestMonoViewMatrices(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		mode    session.Mode
		stereo  bool
	}{
		{"stereo disabled", "generic-headset", session.ImmersiveVR, false},
		{"inline", "generic-headset", session.Inline, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.profile, tt.mode)
			f.state.SetStereo(tt.stereo)
			f.state.SetHeadsetPose(r3.Vec{X: 1, Y: 1.5}, xrmath.IdentityQuat)
			f.tick()

			assert.False(t, f.p.Stereo())
			want, _ := xrmath.Invert(f.state.Headset().Matrix())
			assert.Equal(t, want, f.p.BaseViewMatrix(Left))
			assert.Equal(t, want, f.p.BaseViewMatrix(Right))
		})
	}
}

func TestProjectionAndViewports(t *testing.T) {
	f := newFixture(t, "generic-headset", session.ImmersiveVR)
	f.p.Start(session.RenderState{FieldOfView: math.Pi / 3, DepthNear: 0.5, DepthFar: 50}, f.canv)

	want := xrmath.Perspective(math.Pi/3, (1920.0/2)/1080.0, 0.5, 50)
	assert.Equal(t, want, f.p.ProjectionMatrix(Left))
	assert.Equal(t, want, f.p.ProjectionMatrix(Right))
	assert.Equal(t, Viewport{Width: 960, Height: 1080}, f.p.Viewport(Left))
	assert.Equal(t, Viewport{X: 960, Width: 960, Height: 1080}, f.p.Viewport(Right))

	f.state.SetStereo(false)
	f.p.Start(session.RenderState{}, nil)
	mono := xrmath.Perspective(session.DefaultFieldOfView, 1920.0/1080.0, session.DefaultDepthNear, session.DefaultDepthFar)
	assert.Equal(t, mono, f.p.ProjectionMatrix(Left))
	assert.Equal(t, Viewport{Width: 1920, Height: 1080}, f.p.Viewport(Right))
}

func TestPrimaryPressReleaseAcrossTicks(t *testing.T) {
	f := newFixture(t, "generic-headset", session.ImmersiveVR)
	c, _ := f.state.Controller(device.Primary)

	f.state.SetButtonPressed(true, device.Primary, 0)
	f.start()
	assert.Equal(t, []event.InputType{event.SelectStart}, f.log.types(), "select-start is immediate")
	f.p.End()
	assert.True(t, c.PrimaryActionLatch)
	assert.Equal(t, 1, f.log.count(event.SelectStart))

	f.log.reset()
	f.state.SetButtonPressed(false, device.Primary, 0)
	f.tick()
	assert.Equal(t, []event.InputType{event.SelectEnd}, f.log.types())
	assert.False(t, c.PrimaryActionLatch)

	f.log.reset()
	f.tick()
	assert.Empty(t, f.log.events, "no edges while idle")
}

func TestInlinePipelineLeavesLatchesAlone(t *testing.T) {
	f := newFixture(t, "generic-headset", session.ImmersiveVR)
	inlineLog := &inputLog{}
	inline := New(&session.Session{ID: 8, Mode: session.Inline}, f.state, f.hits, f.vis, inlineLog.listen, Options{})

	f.state.SetButtonPressed(true, device.Primary, 0)
	inline.Start(session.RenderState{}, nil)
	inline.End()
	f.tick()
	assert.Empty(t, inlineLog.events)
	assert.Equal(t, []event.InputType{event.SelectStart}, f.log.types())

	f.log.reset()
	f.state.SetButtonPressed(false, device.Primary, 0)
	inline.Start(session.RenderState{}, nil)
	inline.End()
	f.tick()
	assert.Empty(t, inlineLog.events)
	assert.Equal(t, []event.InputType{event.SelectEnd}, f.log.types())
}

func TestImmersivePipelinesShareEdges(t *testing.T) {
	f := newFixture(t, "generic-headset", session.ImmersiveVR)
	otherLog := &inputLog{}
	other := New(&session.Session{ID: 8, Mode: session.ImmersiveVR}, f.state, f.hits, f.vis, otherLog.listen, Options{})

	f.state.SetButtonPressed(true, device.Primary, 0)
	f.tick()
	other.Start(session.RenderState{}, nil)
	other.End()
	assert.Equal(t, 1, f.log.count(event.SelectStart))
	assert.Equal(t, 1, otherLog.count(event.SelectStart))
}

func TestPassthroughContactSharedAcrossPipelines(t *testing.T) {
	f := newFixture(t, "handheld-ar", session.ImmersiveAR)
	other := New(&session.Session{ID: 8, Mode: session.ImmersiveAR}, f.state, f.hits, f.vis, nil, Options{})
	surface, _ := f.state.Controller(device.Secondary)
	f.state.SetControllerPose(device.Primary, r3.Add(surface.Pose.Position, r3.Vec{X: 0.05}), xrmath.IdentityQuat)

	for range 2 {
		f.tick()
		other.Start(session.RenderState{}, f.canv)
		other.End()
	}
	assert.Equal(t, 1, f.vis.contacts)
	assert.True(t, other.Touched())
}

func TestSqueezeEdgesAreImmediate(t *testing.T) {
	f := newFixture(t, "generic-headset", session.ImmersiveVR)
	c, _ := f.state.Controller(device.Secondary)

	f.state.SetButtonPressed(true, device.Secondary, 1)
	f.start()
	require.Equal(t, []event.InputType{event.SqueezeStart}, f.log.types())
	assert.Equal(t, device.Secondary, f.log.events[0].Controller)
	assert.True(t, c.PrimarySqueezeLatch, "squeeze latch updates in the start phase")
	f.p.End()

	f.log.reset()
	f.state.SetButtonPressed(false, device.Secondary, 1)
	f.start()
	assert.Equal(t, []event.InputType{event.SqueezeEnd}, f.log.types())
	assert.False(t, c.PrimarySqueezeLatch)
}

func TestPassthroughDefersSelectStart(t *testing.T) {
	f := newFixture(t, "handheld-ar", session.ImmersiveAR)
	c, _ := f.state.Controller(device.Primary)
	require.False(t, c.Active)

	f.state.SetButtonPressed(true, device.Primary, 0)
	f.start()
	assert.True(t, c.Active)
	require.Equal(t, []event.InputType{event.InputSourcesChange}, f.log.types(), "no select-start in the start phase")
	assert.Equal(t, []int{device.Primary}, f.log.events[0].Added)
	assert.False(t, c.PrimaryActionLatch, "latch commits at frame end")

	f.p.End()
	assert.Equal(t, []event.InputType{event.InputSourcesChange, event.SelectStart}, f.log.types())
	assert.True(t, c.PrimaryActionLatch)
}

func TestPassthroughReleaseDeactivatesAtFrameEnd(t *testing.T) {
	f := newFixture(t, "handheld-ar", session.ImmersiveAR)
	c, _ := f.state.Controller(device.Primary)
	f.state.SetButtonPressed(true, device.Primary, 0)
	f.tick()
	f.log.reset()

	f.state.SetButtonPressed(false, device.Primary, 0)
	f.start()
	assert.Equal(t, []event.InputType{event.SelectEnd}, f.log.types())
	assert.True(t, c.Active, "still listed during the start phase")

	f.p.End()
	assert.False(t, c.Active)
	require.Equal(t, []event.InputType{event.SelectEnd, event.InputSourcesChange}, f.log.types())
	assert.Equal(t, []int{device.Primary}, f.log.events[1].Removed)
}

func TestPassthroughViewFollowsSurface(t *testing.T) {
	f := newFixture(t, "handheld-ar", session.ImmersiveAR)
	f.state.SetControllerPose(device.Secondary, r3.Vec{X: 2, Y: 1}, xrmath.IdentityQuat)
	f.tick()

	assert.False(t, f.p.Stereo())
	assert.Equal(t, r3.Vec{X: 2, Y: 1}, f.p.BasePoseMatrix(Left).Position())
	want, _ := xrmath.Invert(xrmath.Translation(r3.Vec{X: 2, Y: 1}))
	assert.True(t, want.ApproxEqual(f.p.BaseViewMatrix(Left), 1e-12))
}

func TestPassthroughTouchContact(t *testing.T) {
	f := newFixture(t, "handheld-ar", session.ImmersiveAR)
	surface, _ := f.state.Controller(device.Secondary)
	pointer, _ := f.state.Controller(device.Primary)
	center := surface.Pose.Position

	// 5cm right, 3cm up, on the surface plane.
	f.state.SetControllerPose(device.Primary, r3.Add(center, r3.Vec{X: 0.05, Y: 0.03}), xrmath.IdentityQuat)

	f.tick()
	assert.True(t, f.p.Touched())
	assert.Equal(t, 1, f.vis.contacts)
	assert.InDelta(t, 0.05/0.125, pointer.Axes[0], 1e-9)
	assert.InDelta(t, -0.03/0.09, pointer.Axes[1], 1e-9)
	assert.True(t, pointer.Buttons[0].Pressed)
	assert.Empty(t, f.log.events, "the press edge is seen on the next tick")

	f.tick()
	f.tick()
	assert.Equal(t, 1, f.vis.contacts, "contact fires only on the transition")
	assert.Equal(t, []event.InputType{event.InputSourcesChange, event.SelectStart}, f.log.types())

	// Dragging keeps forwarding the position as axes.
	f.state.SetControllerPose(device.Primary, r3.Add(center, r3.Vec{X: -0.1, Y: 0.0, Z: 0.01}), xrmath.IdentityQuat)
	f.tick()
	assert.InDelta(t, -0.8, pointer.Axes[0], 1e-9)
	assert.InDelta(t, 0, pointer.Axes[1], 1e-9)

	// Lift off past the depth band.
	f.state.SetControllerPose(device.Primary, r3.Add(center, r3.Vec{Z: 0.1}), xrmath.IdentityQuat)
	f.log.reset()
	f.tick()
	assert.False(t, f.p.Touched())
	assert.Equal(t, 1, f.vis.releases)
	assert.Equal(t, [2]float64{}, pointer.Axes)
	assert.False(t, pointer.Buttons[0].Pressed)

	f.tick()
	assert.Equal(t, []event.InputType{event.SelectEnd, event.InputSourcesChange}, f.log.types())
	assert.False(t, pointer.Active)
}

func TestPassthroughOutsideBoundsDoesNotTouch(t *testing.T) {
	f := newFixture(t, "handheld-ar", session.ImmersiveAR)
	surface, _ := f.state.Controller(device.Secondary)
	f.state.SetControllerPose(device.Primary, r3.Add(surface.Pose.Position, r3.Vec{X: 0.2}), xrmath.IdentityQuat)
	f.tick()
	assert.False(t, f.p.Touched())
	assert.Zero(t, f.vis.contacts)
}

func TestReconfigureReleasesOnceThenSwapsSources(t *testing.T) {
	f := newFixture(t, "generic-headset", session.ImmersiveVR)
	f.state.SetButtonPressed(true, device.Primary, 0)
	f.state.SetButtonPressed(true, device.Secondary, 1)
	f.tick()
	require.Equal(t, []event.InputType{event.SelectStart, event.SqueezeStart}, f.log.types())
	f.log.reset()

	profile, _ := device.Builtin().Lookup("3dof-headset")
	f.state.Reconfigure(profile)

	// Frame N+1: releases are observed exactly once.
	f.tick()
	f.state.FrameBoundary()
	assert.Equal(t, 1, f.log.count(event.SelectEnd))
	assert.Equal(t, 1, f.log.count(event.SqueezeEnd))

	// Frame N+2: still the old array.
	f.tick()
	assert.True(t, f.state.FrameBoundary())

	// Frame N+3: new controllers announced.
	f.tick()
	assert.Equal(t, 1, f.log.count(event.SelectEnd))
	assert.Equal(t, 1, f.log.count(event.SqueezeEnd))
	require.Equal(t, 1, f.log.count(event.InputSourcesChange))
	change := f.log.events[len(f.log.events)-1]
	assert.Equal(t, []int{0, 1}, change.Removed)
	assert.Equal(t, []int{0}, change.Added)
}

func TestSingularPoseKeepsPreviousView(t *testing.T) {
	f := newFixture(t, "generic-headset", session.Inline)
	f.state.SetHeadsetPose(r3.Vec{Y: 1}, xrmath.IdentityQuat)
	f.tick()
	before := f.p.BaseViewMatrix(Left)

	f.state.SetHeadsetPose(r3.Vec{Y: 5}, quat.Number{Imag: 0.5, Jmag: 0.5}) // non-unit, collapses the basis
	f.tick()
	assert.Equal(t, before, f.p.BaseViewMatrix(Left))
}

func TestHitTestsResolvedEachFrame(t *testing.T) {
	f := newFixture(t, "handheld-ar", session.ImmersiveAR)
	f.vis.hit = []r3.Vec{{X: 1}}
	space := &staticSpace{}
	src := f.hits.AddSource(7, space, hittest.DefaultRay())
	transient := f.hits.AddTransientSource(7, "generic-touchscreen", hittest.DefaultRay())

	f.tick()
	require.Len(t, src.Results(), 1)
	assert.Empty(t, transient.Results(), "pointer inactive until touched")

	f.state.SetButtonPressed(true, device.Primary, 0)
	f.tick()
	results := transient.Results()
	require.Len(t, results, 1)
	assert.Equal(t, device.Primary, results[0].InputSource)
}

type staticSpace struct{}

func (staticSpace) BaseMatrix() (xrmath.Mat4, bool) { return xrmath.Identity(), true }

func TestParseEye(t *testing.T) {
	for in, want := range map[string]Eye{"left": Left, "right": Right, "none": Left, "": Left} {
		got, err := ParseEye(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseEye("middle")
	assert.Error(t, err)
}
