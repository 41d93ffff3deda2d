package client

import "encoding/json"

// MessageType identifies a WebSocket message.
type MessageType string

// Sent by the panel.
const (
	MsgHeadsetPoseUpdate      MessageType = "headset-pose-update"
	MsgControllerPoseUpdate   MessageType = "controller-pose-update"
	MsgControllerButtonUpdate MessageType = "controller-button-update"
	MsgControllerAxisUpdate   MessageType = "controller-axis-update"
	MsgStereoToggle           MessageType = "stereo-toggle"
	MsgCameraPoseChanged      MessageType = "camera-pose-changed"
	MsgSurfacePoseChanged     MessageType = "surface-pose-changed"
	MsgTouch                  MessageType = "touch"
	MsgRelease                MessageType = "release"
)

// Sent by the emulator.
const (
	MsgSnapshot              MessageType = "snapshot"
	MsgInputEvent            MessageType = "input-event"
	MsgSessions              MessageType = "sessions"
	MsgError                 MessageType = "error"
	MsgHeadsetPoseChanged    MessageType = "headset-pose-changed"
	MsgControllerPoseChanged MessageType = "controller-pose-changed"
	MsgEnterImmersive        MessageType = "enter-immersive"
	MsgLeaveImmersive        MessageType = "leave-immersive"
	MsgSurfaceAssetRequest   MessageType = "surface-asset-request"
)

// Controller wire names.
const (
	ControllerPrimary   = "primary"
	ControllerSecondary = "secondary"
)

// KindPassthrough marks a handheld AR device in snapshots.
const KindPassthrough = "passthrough"

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Pose is a position and an [x, y, z, w] orientation.
type Pose struct {
	Position   [3]float64 `json:"position"`
	Quaternion [4]float64 `json:"quaternion"`
}

type Button struct {
	Pressed bool    `json:"pressed"`
	Touched bool    `json:"touched"`
	Value   float64 `json:"value"`
}

type Controller struct {
	ID                        string     `json:"id"`
	Handedness                string     `json:"handedness,omitempty"`
	TargetRayMode             string     `json:"targetRayMode"`
	Touch                     bool       `json:"touch"`
	Buttons                   []Button   `json:"buttons"`
	Axes                      [2]float64 `json:"axes"`
	PrimaryButtonIndex        int        `json:"primaryButtonIndex"`
	PrimarySqueezeButtonIndex int        `json:"primarySqueezeButtonIndex"`
	Active                    bool       `json:"active"`
	PrimaryActionLatch        bool       `json:"primaryActionLatch"`
	Pose                      Pose       `json:"pose"`
}

// Pressed reports whether button i is held. Out-of-range indices are not.
func (c Controller) Pressed(i int) bool {
	return i >= 0 && i < len(c.Buttons) && c.Buttons[i].Pressed
}

type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Profile struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Modes      []string   `json:"modes"`
	Features   []string   `json:"features"`
	Resolution Resolution `json:"resolution"`
	Stereo     bool       `json:"stereo"`
}

// ImmersiveMode returns the immersive session mode the profile supports.
func (p *Profile) ImmersiveMode() string {
	for _, m := range p.Modes {
		if m == "immersive-vr" || m == "immersive-ar" {
			return m
		}
	}
	return "inline"
}

type Session struct {
	ID              int      `json:"id"`
	Mode            string   `json:"mode"`
	EnabledFeatures []string `json:"enabledFeatures"`
	Ended           bool     `json:"ended"`
}

type InputEvent struct {
	Type       string `json:"type"`
	SessionID  int    `json:"sessionId"`
	Controller int    `json:"controller"`
	Added      []int  `json:"added,omitempty"`
	Removed    []int  `json:"removed,omitempty"`
}

type SnapshotPayload struct {
	Profile     *Profile     `json:"profile"`
	Kind        string       `json:"kind"`
	Stereo      bool         `json:"stereo"`
	Headset     Pose         `json:"headset"`
	Controllers []Controller `json:"controllers"`
	Sessions    []Session    `json:"sessions"`
	ClientID    string       `json:"clientId"`
	Clients     int          `json:"clients"`
}

type SessionsPayload struct {
	Sessions    []Session `json:"sessions"`
	ActiveCount int       `json:"activeCount"`
}

type PosePayload struct {
	Controller string     `json:"controller,omitempty"`
	Position   [3]float64 `json:"position"`
	Quaternion [4]float64 `json:"quaternion"`
}

type ButtonPayload struct {
	Controller  string `json:"controller"`
	ButtonIndex int    `json:"buttonIndex"`
	Pressed     bool   `json:"pressed"`
}

type AxisPayload struct {
	Controller string  `json:"controller"`
	AxisIndex  int     `json:"axisIndex"`
	Value      float64 `json:"value"`
}

type StereoPayload struct {
	Enabled bool `json:"enabled"`
}

type TouchPayload struct {
	Point [3]float64 `json:"point"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
