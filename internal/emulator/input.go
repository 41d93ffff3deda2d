package emulator

import (
	"slices"

	"github.com/xr-emulator/backend/internal/device"
	"github.com/xr-emulator/backend/internal/xrmath"
)

// PoseType selects which pose of an input source GetInputPose returns.
type PoseType int

const (
	TargetRayPose PoseType = iota
	GripPose
)

type Gamepad struct {
	Buttons []device.Button `json:"buttons"`
	Axes    [2]float64      `json:"axes"`
}

// InputSource is an exposed controller as the session API sees it.
type InputSource struct {
	Index                 int      `json:"index"`
	Handedness            string   `json:"handedness"`
	TargetRayMode         string   `json:"targetRayMode"`
	Profiles              []string `json:"profiles"`
	HasPositionalTracking bool     `json:"hasPositionalTracking"`
	Selecting             bool     `json:"selecting"`
	Squeezing             bool     `json:"squeezing"`
	Gamepad               Gamepad  `json:"gamepad"`
}

// GetInputSources lists the controllers currently exposed, in slot order.
func (e *Engine) GetInputSources() []InputSource {
	var out []InputSource
	for i := 0; i < e.state.ControllerCount(); i++ {
		if !e.state.Exposed(i) {
			continue
		}
		c, _ := e.state.Controller(i)
		out = append(out, InputSource{
			Index:                 i,
			Handedness:            c.Handedness,
			TargetRayMode:         c.TargetRayMode,
			Profiles:              slices.Clone(c.Profiles),
			HasPositionalTracking: c.HasPositionalTracking,
			Selecting:             c.PrimaryActionLatch,
			Squeezing:             c.PrimarySqueezeLatch,
			Gamepad: Gamepad{
				Buttons: slices.Clone(c.Buttons),
				Axes:    c.Axes,
			},
		})
	}
	return out
}

// GetInputPose returns the pose of input source index relative to space,
// resolving the space on first use. Screen and gaze sources have no grip.
func (e *Engine) GetInputPose(index int, space *ReferenceSpace, pose PoseType) (xrmath.Mat4, bool) {
	if !e.state.Exposed(index) {
		return xrmath.Mat4{}, false
	}
	c, _ := e.state.Controller(index)
	if pose == GripPose && c.TargetRayMode != "tracked-pointer" {
		return xrmath.Mat4{}, false
	}
	return relativeTo(space, c.Pose.Matrix())
}
