package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xr-emulator/backend/internal/device"
	"github.com/xr-emulator/backend/internal/emulator"
	"github.com/xr-emulator/backend/internal/event"
	"github.com/xr-emulator/backend/internal/session"
	"github.com/xr-emulator/backend/internal/xrmath"
)

type MessageType string

// Inbound, from the device panel.
const (
	MsgDeviceConfigChanged    MessageType = "device-config-changed"
	MsgHeadsetPoseUpdate      MessageType = "headset-pose-update"
	MsgControllerPoseUpdate   MessageType = "controller-pose-update"
	MsgControllerButtonUpdate MessageType = "controller-button-update"
	MsgControllerAxisUpdate   MessageType = "controller-axis-update"
	MsgStereoToggle           MessageType = "stereo-toggle"
	MsgSurfaceAssetReady      MessageType = "surface-asset-ready"
)

// Inbound, from the AR panel.
const (
	MsgCameraPoseChanged  MessageType = "camera-pose-changed"
	MsgSurfacePoseChanged MessageType = "surface-pose-changed"
	MsgTouch              MessageType = "touch"
	MsgRelease            MessageType = "release"
)

// Outbound. Engine notifications are sent under their own type names.
const (
	MsgSnapshot   MessageType = "snapshot"
	MsgInputEvent MessageType = "input-event"
	MsgSessions   MessageType = "sessions"
	MsgError      MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type inboundMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
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

// AssetPayload carries mesh data base64 encoded. Panels may instead send
// the raw buffer as a binary frame.
type AssetPayload struct {
	Buffer []byte `json:"buffer"`
}

type TouchPayload struct {
	Point [3]float64 `json:"point"`
}

type SnapshotPayload struct {
	emulator.Snapshot
	ClientID string `json:"clientId"`
	Clients  int    `json:"clients"`
}

type SessionsPayload struct {
	Sessions    []*session.Session `json:"sessions"`
	ActiveCount int                `json:"activeCount"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Command is an inbound message ready to run on the engine goroutine.
type Command func(*emulator.Engine) error

var errEmptyPayload = errors.New("missing payload")

// Decode parses an inbound text frame.
func Decode(data []byte) (MessageType, Command, error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", nil, fmt.Errorf("decode message: %w", err)
	}
	cmd, err := decodePayload(msg)
	if err != nil {
		return msg.Type, nil, fmt.Errorf("decode %s: %w", msg.Type, err)
	}
	return msg.Type, cmd, nil
}

func decodePayload(msg inboundMessage) (Command, error) {
	switch msg.Type {
	case MsgDeviceConfigChanged:
		var p device.Profile
		if err := unmarshal(msg.Payload, &p); err != nil {
			return nil, err
		}
		if len(p.Controllers) > device.MaxControllers {
			return nil, fmt.Errorf("%d controllers, max %d", len(p.Controllers), device.MaxControllers)
		}
		return func(e *emulator.Engine) error {
			e.DeviceConfigChanged(&p)
			return nil
		}, nil

	case MsgHeadsetPoseUpdate, MsgCameraPoseChanged:
		var p PosePayload
		if err := unmarshal(msg.Payload, &p); err != nil {
			return nil, err
		}
		pos, q := xrmath.Vec(p.Position), xrmath.Quat(p.Quaternion)
		if msg.Type == MsgCameraPoseChanged {
			return func(e *emulator.Engine) error {
				e.CameraPoseChanged(pos, q)
				return nil
			}, nil
		}
		return func(e *emulator.Engine) error {
			e.HeadsetPoseUpdate(pos, q)
			return nil
		}, nil

	case MsgControllerPoseUpdate:
		var p PosePayload
		if err := unmarshal(msg.Payload, &p); err != nil {
			return nil, err
		}
		return func(e *emulator.Engine) error {
			e.ControllerPoseUpdate(p.Controller, xrmath.Vec(p.Position), xrmath.Quat(p.Quaternion))
			return nil
		}, nil

	case MsgSurfacePoseChanged:
		var p PosePayload
		if err := unmarshal(msg.Payload, &p); err != nil {
			return nil, err
		}
		return func(e *emulator.Engine) error {
			e.SurfacePoseChanged(xrmath.Vec(p.Position), xrmath.Quat(p.Quaternion))
			return nil
		}, nil

	case MsgControllerButtonUpdate:
		var p ButtonPayload
		if err := unmarshal(msg.Payload, &p); err != nil {
			return nil, err
		}
		return func(e *emulator.Engine) error {
			e.ControllerButtonUpdate(p.Controller, p.ButtonIndex, p.Pressed)
			return nil
		}, nil

	case MsgControllerAxisUpdate:
		var p AxisPayload
		if err := unmarshal(msg.Payload, &p); err != nil {
			return nil, err
		}
		return func(e *emulator.Engine) error {
			e.ControllerAxisUpdate(p.Controller, p.AxisIndex, p.Value)
			return nil
		}, nil

	case MsgStereoToggle:
		var p StereoPayload
		if err := unmarshal(msg.Payload, &p); err != nil {
			return nil, err
		}
		return func(e *emulator.Engine) error {
			e.StereoToggle(p.Enabled)
			return nil
		}, nil

	case MsgSurfaceAssetReady:
		var p AssetPayload
		if err := unmarshal(msg.Payload, &p); err != nil {
			return nil, err
		}
		return AssetCommand(p.Buffer), nil

	case MsgTouch:
		var p TouchPayload
		if err := unmarshal(msg.Payload, &p); err != nil {
			return nil, err
		}
		return func(e *emulator.Engine) error {
			e.Touch(xrmath.Vec(p.Point))
			return nil
		}, nil

	case MsgRelease:
		return func(e *emulator.Engine) error {
			e.Release()
			return nil
		}, nil
	}
	return nil, fmt.Errorf("unknown message type %q", msg.Type)
}

// AssetCommand loads buf as the hit-test surface.
func AssetCommand(buf []byte) Command {
	return func(e *emulator.Engine) error {
		return e.SurfaceAssetReady(buf)
	}
}

func unmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errEmptyPayload
	}
	return json.Unmarshal(raw, v)
}

// notificationMessage maps an engine notification onto the wire.
func notificationMessage(n event.Notification) WSMessage {
	msg := WSMessage{Type: MessageType(n.Type)}
	if n.Position != nil && n.Quaternion != nil {
		msg.Payload = PosePayload{Controller: n.Controller, Position: *n.Position, Quaternion: *n.Quaternion}
	}
	return msg
}
