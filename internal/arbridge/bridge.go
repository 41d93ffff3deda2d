// Package arbridge connects the engine to the AR visualization: outbound
// transform sync and hit-test queries, inbound camera, surface and touch
// callbacks.
package arbridge

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xr-emulator/backend/internal/device"
	"github.com/xr-emulator/backend/internal/event"
	"github.com/xr-emulator/backend/internal/xrmath"
)

// RetractDistance is how far Release pulls the pointer off the surface,
// along the surface normal, in meters.
const RetractDistance = 0.1

// Visualization is the AR panel as the engine sees it. Contact callbacks
// are visual feedback only.
type Visualization interface {
	UpdateCameraTransform(position r3.Vec, orientation quat.Number)
	UpdatePointerTransform(position r3.Vec, orientation quat.Number)
	UpdateSurfaceTransform(position r3.Vec, orientation quat.Number)
	QueryHitTestSurface(origin, direction r3.Vec) []r3.Vec
	OnContact()
	OnContactReleased()

	// ReleaseVirtualScreen drops the texture backing a passthrough session's
	// detached presentation surface.
	ReleaseVirtualScreen()
	// ClearOverlay resets passthrough overlay state when a session ends.
	ClearOverlay()
	// LoadSurfaceAsset replaces the hit-test surface with mesh data.
	LoadSurfaceAsset(buf []byte) error
}

// Bridge applies inbound visualization callbacks to the device state and
// re-emits them as pose notifications.
type Bridge struct {
	state    *device.State
	notifier event.Notifier
	vis      Visualization
}

func New(state *device.State, vis Visualization, notifier event.Notifier) *Bridge {
	if notifier == nil {
		notifier = event.Discard
	}
	return &Bridge{state: state, vis: vis, notifier: notifier}
}

// CameraPoseChanged handles the panel moving the headset camera.
func (b *Bridge) CameraPoseChanged(position r3.Vec, orientation quat.Number) {
	b.state.SetHeadsetPose(position, orientation)
	b.notifier.Notify(event.PoseNotification(event.HeadsetPoseChanged, "", position, orientation))
}

// SurfacePoseChanged handles the panel moving the handheld surface.
func (b *Bridge) SurfacePoseChanged(position r3.Vec, orientation quat.Number) {
	b.setController(device.Secondary, position, orientation)
}

// Touch places the pointer on the surface at point, facing the surface.
func (b *Bridge) Touch(point r3.Vec) {
	b.setController(device.Primary, point, b.surfaceOrientation())
}

// Release pulls the pointer back off the surface so the next frame sees the
// contact end.
func (b *Bridge) Release() {
	c, ok := b.state.Controller(device.Primary)
	if !ok {
		return
	}
	q := b.surfaceOrientation()
	normal := xrmath.Rotate(q, r3.Vec{Z: 1})
	b.setController(device.Primary, r3.Add(c.Pose.Position, r3.Scale(RetractDistance, normal)), q)
}

func (b *Bridge) surfaceOrientation() quat.Number {
	if s, ok := b.state.Controller(device.Secondary); ok {
		return s.Pose.Orientation
	}
	return xrmath.IdentityQuat
}

func (b *Bridge) setController(slot int, position r3.Vec, orientation quat.Number) {
	if _, ok := b.state.Controller(slot); !ok {
		return
	}
	b.state.SetControllerPose(slot, position, orientation)
	b.notifier.Notify(event.PoseNotification(event.ControllerPoseChanged, event.ControllerName(slot), position, orientation))
}

// Sync pushes the current headset and controller poses to the
// visualization.
func (b *Bridge) Sync() {
	h := b.state.Headset()
	b.vis.UpdateCameraTransform(h.Position, h.Orientation)
	if c, ok := b.state.Controller(device.Primary); ok {
		b.vis.UpdatePointerTransform(c.Pose.Position, c.Pose.Orientation)
	}
	if c, ok := b.state.Controller(device.Secondary); ok {
		b.vis.UpdateSurfaceTransform(c.Pose.Position, c.Pose.Orientation)
	}
}
