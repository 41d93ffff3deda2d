package emulator

import (
	"github.com/xr-emulator/backend/internal/device"
	"github.com/xr-emulator/backend/internal/session"
	"github.com/xr-emulator/backend/internal/xrmath"
)

// WirePose is a pose in the transport layout.
type WirePose struct {
	Position   [3]float64 `json:"position"`
	Quaternion [4]float64 `json:"quaternion"`
}

func wirePose(p xrmath.Pose) WirePose {
	return WirePose{Position: xrmath.VecArray(p.Position), Quaternion: xrmath.QuatArray(p.Orientation)}
}

type ControllerSnapshot struct {
	*device.Controller
	Pose WirePose `json:"pose"`
}

// Snapshot is the full device and session state, sent to panels on
// connect.
type Snapshot struct {
	Profile      *device.Profile      `json:"profile"`
	Kind         string               `json:"kind"`
	Stereo       bool                 `json:"stereo"`
	Headset      WirePose             `json:"headset"`
	Controllers  []ControllerSnapshot `json:"controllers"`
	InputSources []InputSource        `json:"inputSources"`
	Sessions     []*session.Session   `json:"sessions"`
}

func (e *Engine) Snapshot() Snapshot {
	controllers := e.state.Controllers()
	cs := make([]ControllerSnapshot, len(controllers))
	for i, c := range controllers {
		cs[i] = ControllerSnapshot{Controller: c, Pose: wirePose(c.Pose)}
	}
	return Snapshot{
		Profile:      e.state.Profile().Clone(),
		Kind:         e.state.Kind().String(),
		Stereo:       e.state.Stereo(),
		Headset:      wirePose(e.state.Headset()),
		Controllers:  cs,
		InputSources: e.GetInputSources(),
		Sessions:     e.registry.All(),
	}
}
