package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xr-emulator/backend/internal/emulator"
	"github.com/xr-emulator/backend/internal/event"
	"github.com/xr-emulator/backend/internal/xrmath"
)

// connPair upgrades a test connection and returns the server side and the
// dialed client side. Both are closed when the test ends.
func connPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	select {
	case serverConn := <-connCh:
		t.Cleanup(func() { serverConn.Close() })
		return serverConn, clientConn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side WebSocket connection")
		return nil, nil
	}
}

type received struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg received
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return msg
}

// readUntil reads messages until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ MessageType) received {
	t.Helper()
	for i := 0; i < 50; i++ {
		if msg := readMessage(t, conn); msg.Type == typ {
			return msg
		}
	}
	t.Fatalf("no %s message", typ)
	return received{}
}

func TestAddClientSendsSnapshot(t *testing.T) {
	b := NewBroadcaster(time.Millisecond, time.Hour, 0, nil)
	defer b.Stop()
	b.SetSnapshotSource(func(context.Context) (emulator.Snapshot, error) {
		return emulator.Snapshot{Kind: "primary", Stereo: true}, nil
	})

	serverConn, clientConn := connPair(t)
	if _, err := b.AddClient(context.Background(), serverConn); err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	msg := readMessage(t, clientConn)
	if msg.Type != MsgSnapshot {
		t.Fatalf("first message = %s, want snapshot", msg.Type)
	}
	var payload SnapshotPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(payload.ClientID); err != nil {
		t.Errorf("clientId %q is not a uuid: %v", payload.ClientID, err)
	}
	if payload.Kind != "primary" || !payload.Stereo || payload.Clients != 1 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestAddClientWithoutSnapshotSource(t *testing.T) {
	b := NewBroadcaster(time.Millisecond, time.Hour, 0, nil)
	defer b.Stop()

	serverConn, clientConn := connPair(t)
	if _, err := b.AddClient(context.Background(), serverConn); err != nil {
		t.Fatal(err)
	}
	b.Notify(event.Notification{Type: event.LeaveImmersive})
	if msg := readMessage(t, clientConn); msg.Type != MessageType(event.LeaveImmersive) {
		t.Errorf("first message = %s, want leave-immersive", msg.Type)
	}
}

func TestNotifyCoalescesPoses(t *testing.T) {
	b := NewBroadcaster(20*time.Millisecond, time.Hour, 0, nil)
	defer b.Stop()
	serverConn, clientConn := connPair(t)
	if _, err := b.AddClient(context.Background(), serverConn); err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		b.Notify(event.PoseNotification(event.HeadsetPoseChanged, "", r3.Vec{X: float64(i)}, xrmath.IdentityQuat))
	}
	b.Notify(event.PoseNotification(event.ControllerPoseChanged, event.ControllerSecondary, r3.Vec{Y: 1}, xrmath.IdentityQuat))

	first := readMessage(t, clientConn)
	if first.Type != MessageType(event.HeadsetPoseChanged) {
		t.Fatalf("first = %s, want headset-pose-changed", first.Type)
	}
	var pose PosePayload
	if err := json.Unmarshal(first.Payload, &pose); err != nil {
		t.Fatal(err)
	}
	if pose.Position != [3]float64{3, 0, 0} {
		t.Errorf("coalesced position = %v, want the latest [3 0 0]", pose.Position)
	}

	second := readMessage(t, clientConn)
	if second.Type != MessageType(event.ControllerPoseChanged) {
		t.Fatalf("second = %s, want controller-pose-changed", second.Type)
	}
	if err := json.Unmarshal(second.Payload, &pose); err != nil {
		t.Fatal(err)
	}
	if pose.Controller != event.ControllerSecondary || pose.Quaternion != [4]float64{0, 0, 0, 1} {
		t.Errorf("controller pose = %+v", pose)
	}
}

func TestInputEventMirrored(t *testing.T) {
	b := NewBroadcaster(time.Hour, time.Hour, 0, nil)
	defer b.Stop()
	serverConn, clientConn := connPair(t)
	if _, err := b.AddClient(context.Background(), serverConn); err != nil {
		t.Fatal(err)
	}

	b.InputEvent(event.Input{Type: event.SelectStart, SessionID: 4, Controller: 1})
	msg := readMessage(t, clientConn)
	if msg.Type != MsgInputEvent {
		t.Fatalf("type = %s, want input-event", msg.Type)
	}
	if got := string(msg.Payload); !strings.Contains(got, `"type":"selectstart"`) || !strings.Contains(got, `"sessionId":4`) {
		t.Errorf("payload = %s", got)
	}
}

func TestAddClient_MaxConnections(t *testing.T) {
	const maxConns = 2
	b := NewBroadcaster(100*time.Millisecond, time.Hour, maxConns, nil)
	defer b.Stop()

	var clients []*client
	for i := 0; i < maxConns; i++ {
		conn, _ := connPair(t)
		c, err := b.AddClient(context.Background(), conn)
		if err != nil {
			t.Fatalf("AddClient[%d]: unexpected error: %v", i, err)
		}
		clients = append(clients, c)
	}

	conn, _ := connPair(t)
	if _, err := b.AddClient(context.Background(), conn); !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("expected ErrTooManyConnections, got %v", err)
	}
	if got := b.ClientCount(); got != maxConns {
		t.Fatalf("expected %d clients after rejection, got %d", maxConns, got)
	}

	b.RemoveClient(clients[0])
	conn2, _ := connPair(t)
	if _, err := b.AddClient(context.Background(), conn2); err != nil {
		t.Fatalf("AddClient after removal: unexpected error: %v", err)
	}
}

// A write error in the pump removes the client from the broadcaster.
func TestWritePump_RemovesClientOnWriteError(t *testing.T) {
	serverConn, _ := connPair(t)
	b := NewBroadcaster(time.Hour, time.Hour, 0, nil)
	defer b.Stop()

	c := &client{id: "c1", conn: serverConn, b: b, send: make(chan []byte, 64)}
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	serverConn.Close()
	c.send <- []byte(`{"type":"test"}`)
	go c.writePump()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.ClientCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client not removed after write error; ClientCount = %d", b.ClientCount())
}

func TestRemoveClientTwice(t *testing.T) {
	b := NewBroadcaster(time.Hour, time.Hour, 0, nil)
	defer b.Stop()
	conn, _ := connPair(t)
	c, err := b.AddClient(context.Background(), conn)
	if err != nil {
		t.Fatal(err)
	}
	b.RemoveClient(c)
	b.RemoveClient(c)
	if b.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", b.ClientCount())
	}
}
