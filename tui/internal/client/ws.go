package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

var errNotConnected = errors.New("not connected")

// WSClient manages the WebSocket connection to the emulator.
type WSClient struct {
	url   string
	token string

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes
	conn    *websocket.Conn
	pingCtx context.CancelFunc // cancels the active ping goroutine
}

// NewWSClient creates a client that connects to the given WebSocket URL.
func NewWSClient(url, token string) *WSClient {
	return &WSClient{url: url, token: token}
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when the WebSocket connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the connection drops.
type WSDisconnectedMsg struct{ Err error }

// WSSnapshotMsg delivers the full device state.
type WSSnapshotMsg struct{ Payload SnapshotPayload }

// WSPoseMsg reports a headset or controller pose change.
type WSPoseMsg struct {
	Type    MessageType
	Payload PosePayload
}

// WSSessionsMsg follows a session lifecycle change.
type WSSessionsMsg struct{ Payload SessionsPayload }

// WSInputMsg mirrors an input event dispatched to a session.
type WSInputMsg struct{ Payload InputEvent }

// WSNoticeMsg carries payload-free notifications such as enter-immersive.
type WSNoticeMsg struct{ Type MessageType }

// WSErrorMsg wraps a server-side error.
type WSErrorMsg struct{ Message string }

func (c *WSClient) dialURL() string {
	if c.token == "" {
		return c.url
	}
	u, err := url.Parse(c.url)
	if err != nil {
		return c.url
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()
	return u.String()
}

// Listen returns a Bubble Tea command that dials with exponential backoff
// until it connects or ctx is done.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := reconnectBaseDelay
		for {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.dialURL(), nil)
			if err == nil {
				c.attach(ctx, conn)
				return WSConnectedMsg{}
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMaxDelay)
		}
	}
}

// attach makes conn current and restarts the ping goroutine for it.
func (c *WSClient) attach(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pingCtx != nil {
		c.pingCtx()
	}
	pingCtx, cancel := context.WithCancel(ctx)
	c.conn = conn
	c.pingCtx = cancel
	go c.pingLoop(pingCtx, conn)
}

func (c *WSClient) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// detach forgets conn unless a newer connection replaced it.
func (c *WSClient) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}

// ReadLoop returns a Bubble Tea command that reads until the next message
// the panel cares about. Start it after WSConnectedMsg and again after
// every message it returns.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		conn := c.current()
		if conn == nil {
			return WSDisconnectedMsg{Err: errNotConnected}
		}

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.detach(conn)
				return WSDisconnectedMsg{Err: err}
			}

			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if teaMsg := dispatch(msg); teaMsg != nil {
				return teaMsg
			}
		}
	}
}

func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.current() != conn {
				return
			}
			if err := c.write(conn, func() error { return conn.WriteMessage(websocket.PingMessage, nil) }); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) write(conn *websocket.Conn, fn func() error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return fn()
}

// Send writes one message to the emulator.
func (c *WSClient) Send(typ MessageType, payload any) error {
	conn := c.current()
	if conn == nil {
		return errNotConnected
	}
	msg := struct {
		Type    MessageType `json:"type"`
		Payload any         `json:"payload,omitempty"`
	}{typ, payload}
	return c.write(conn, func() error { return conn.WriteJSON(msg) })
}

func (c *WSClient) SendHeadsetPose(p Pose) error {
	return c.Send(MsgHeadsetPoseUpdate, PosePayload{Position: p.Position, Quaternion: p.Quaternion})
}

func (c *WSClient) SendControllerPose(controller string, p Pose) error {
	return c.Send(MsgControllerPoseUpdate, PosePayload{Controller: controller, Position: p.Position, Quaternion: p.Quaternion})
}

func (c *WSClient) SendButton(controller string, button int, pressed bool) error {
	return c.Send(MsgControllerButtonUpdate, ButtonPayload{Controller: controller, ButtonIndex: button, Pressed: pressed})
}

func (c *WSClient) SendAxis(controller string, axis int, value float64) error {
	return c.Send(MsgControllerAxisUpdate, AxisPayload{Controller: controller, AxisIndex: axis, Value: value})
}

func (c *WSClient) SendStereo(enabled bool) error {
	return c.Send(MsgStereoToggle, StereoPayload{Enabled: enabled})
}

// SendCameraPose moves the camera of a passthrough device.
func (c *WSClient) SendCameraPose(p Pose) error {
	return c.Send(MsgCameraPoseChanged, PosePayload{Position: p.Position, Quaternion: p.Quaternion})
}

// SendSurfacePose moves the handheld surface of a passthrough device.
func (c *WSClient) SendSurfacePose(p Pose) error {
	return c.Send(MsgSurfacePoseChanged, PosePayload{Position: p.Position, Quaternion: p.Quaternion})
}

func (c *WSClient) Touch(point [3]float64) error {
	return c.Send(MsgTouch, TouchPayload{Point: point})
}

func (c *WSClient) Release() error {
	return c.Send(MsgRelease, nil)
}

func dispatch(msg WSMessage) tea.Msg {
	switch msg.Type {
	case MsgSnapshot:
		var p SnapshotPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSSnapshotMsg{Payload: p}
		}
	case MsgHeadsetPoseChanged, MsgControllerPoseChanged:
		var p PosePayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSPoseMsg{Type: msg.Type, Payload: p}
		}
	case MsgSessions:
		var p SessionsPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSSessionsMsg{Payload: p}
		}
	case MsgInputEvent:
		var p InputEvent
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSInputMsg{Payload: p}
		}
	case MsgEnterImmersive, MsgLeaveImmersive, MsgSurfaceAssetRequest:
		return WSNoticeMsg{Type: msg.Type}
	case MsgError:
		var p ErrorPayload
		json.Unmarshal(msg.Payload, &p)
		return WSErrorMsg{Message: p.Message}
	}
	return nil
}
