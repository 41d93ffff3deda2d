// Package event defines the two streams the engine produces: input events
// toward the session API and notifications toward the transport.
package event

import (
	"encoding/json"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xr-emulator/backend/internal/xrmath"
)

// InputType classifies session-API input events.
type InputType int

const (
	SelectStart InputType = iota
	SelectEnd
	SqueezeStart
	SqueezeEnd
	InputSourcesChange
)

var inputTypeNames = map[InputType]string{
	SelectStart:        "selectstart",
	SelectEnd:          "selectend",
	SqueezeStart:       "squeezestart",
	SqueezeEnd:         "squeezeend",
	InputSourcesChange: "inputsourceschange",
}

func (t InputType) String() string {
	if s, ok := inputTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

func (t InputType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Input is one event dispatched to the session API.
type Input struct {
	Type       InputType `json:"type"`
	SessionID  int       `json:"sessionId"`
	Controller int       `json:"controller"`        // slot; -1 for InputSourcesChange
	Added      []int     `json:"added,omitempty"`   // InputSourcesChange only
	Removed    []int     `json:"removed,omitempty"` // InputSourcesChange only
}

// InputListener receives input events synchronously during a frame phase.
type InputListener func(Input)

// NotificationType names outbound transport notifications.
type NotificationType string

const (
	HeadsetPoseChanged    NotificationType = "headset-pose-changed"
	ControllerPoseChanged NotificationType = "controller-pose-changed"
	EnterImmersive        NotificationType = "enter-immersive"
	LeaveImmersive        NotificationType = "leave-immersive"
	SurfaceAssetRequest   NotificationType = "surface-asset-request"
)

// Controller names used on the wire.
const (
	ControllerPrimary   = "primary"
	ControllerSecondary = "secondary"
)

// ControllerName maps a controller slot to its wire name.
func ControllerName(slot int) string {
	if slot == 1 {
		return ControllerSecondary
	}
	return ControllerPrimary
}

// ControllerSlot maps a wire name to a controller slot. Unknown names
// return -1, which every state mutator ignores.
func ControllerSlot(name string) int {
	switch name {
	case ControllerPrimary:
		return 0
	case ControllerSecondary:
		return 1
	default:
		return -1
	}
}

// Notification is one message toward the transport collaborator. Pose
// fields are set for the pose-changed types only.
type Notification struct {
	Type       NotificationType `json:"type"`
	Controller string           `json:"controller,omitempty"`
	Position   *[3]float64      `json:"position,omitempty"`
	Quaternion *[4]float64      `json:"quaternion,omitempty"`
}

// PoseNotification builds a pose-changed notification. controller is empty
// for the headset.
func PoseNotification(t NotificationType, controller string, p r3.Vec, q quat.Number) Notification {
	pos := xrmath.VecArray(p)
	rot := xrmath.QuatArray(q)
	return Notification{Type: t, Controller: controller, Position: &pos, Quaternion: &rot}
}

// Notifier accepts outbound notifications. Implementations must not block.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(Notification) {})
