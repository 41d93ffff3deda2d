package emulator

import (
	"fmt"

	"github.com/xr-emulator/backend/internal/device"
	"github.com/xr-emulator/backend/internal/session"
	"github.com/xr-emulator/backend/internal/xrmath"
)

// ReferenceSpace is a coordinate system requested by a session. Its base
// transform is unresolved until the session first queries a pose against
// it; until then hit-test sources anchored to it produce no results.
type ReferenceSpace struct {
	Type      string
	sessionID int
	state     *device.State
	base      xrmath.Mat4
	resolved  bool
}

func (s *ReferenceSpace) SessionID() int { return s.sessionID }

// BaseMatrix returns the space's origin in tracking space. The viewer space
// follows the headset.
func (s *ReferenceSpace) BaseMatrix() (xrmath.Mat4, bool) {
	if !s.resolved {
		return xrmath.Mat4{}, false
	}
	if s.Type == session.SpaceViewer {
		return s.state.Headset().Matrix(), true
	}
	return s.base, true
}

func (s *ReferenceSpace) resolve() {
	if s.resolved {
		return
	}
	s.base = xrmath.Identity()
	s.resolved = true
}

// Resolved reports whether a pose query has resolved the base transform.
func (s *ReferenceSpace) Resolved() bool { return s.resolved }

// RequestReferenceSpace returns a new unresolved space of type space.
func (e *Engine) RequestReferenceSpace(id int, space string) (*ReferenceSpace, error) {
	if _, _, err := e.live(id); err != nil {
		return nil, err
	}
	if !e.registry.SupportsReferenceSpace(id, space) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedReferenceSpace, space)
	}
	return &ReferenceSpace{Type: space, sessionID: id, state: e.state}, nil
}

// GetViewerPose returns the headset pose relative to space, resolving the
// space on first use.
func (e *Engine) GetViewerPose(space *ReferenceSpace) (xrmath.Mat4, bool) {
	return relativeTo(space, e.state.Headset().Matrix())
}

func relativeTo(space *ReferenceSpace, m xrmath.Mat4) (xrmath.Mat4, bool) {
	if space == nil {
		return m, true
	}
	space.resolve()
	base, _ := space.BaseMatrix()
	inv, ok := xrmath.Invert(base)
	if !ok {
		return xrmath.Mat4{}, false
	}
	return inv.Mul(m), true
}
