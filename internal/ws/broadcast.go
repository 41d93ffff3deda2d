package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xr-emulator/backend/internal/emulator"
	"github.com/xr-emulator/backend/internal/event"
	"github.com/xr-emulator/backend/internal/logging"
	"github.com/xr-emulator/backend/internal/session"
)

var ErrTooManyConnections = errors.New("too many websocket connections")

// SnapshotFunc reads the engine state from outside the engine goroutine.
type SnapshotFunc func(ctx context.Context) (emulator.Snapshot, error)

type client struct {
	id   string
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans engine output out to every connected panel. Pose
// notifications are coalesced per target and flushed at most once per
// throttle interval; everything else is sent immediately.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	maxConns int
	snapshot SnapshotFunc

	throttle       time.Duration
	snapshotTicker *time.Ticker
	stop           chan struct{}
	stopOnce       sync.Once

	flushMu      sync.Mutex
	pendingPoses map[string]event.Notification
	poseOrder    []string
	flushTimer   *time.Timer

	logger *slog.Logger
}

func NewBroadcaster(throttle, snapshotInterval time.Duration, maxConns int, logger *slog.Logger) *Broadcaster {
	if snapshotInterval <= 0 {
		snapshotInterval = time.Hour
	}
	b := &Broadcaster{
		clients:        make(map[*client]bool),
		maxConns:       maxConns,
		throttle:       throttle,
		snapshotTicker: time.NewTicker(snapshotInterval),
		stop:           make(chan struct{}),
		pendingPoses:   make(map[string]event.Notification),
		logger:         logging.Component(logger, "broadcast"),
	}
	go b.snapshotLoop()
	return b
}

// SetSnapshotSource installs the function used for connect and periodic
// snapshots. Without one, no snapshots are sent.
func (b *Broadcaster) SetSnapshotSource(fn SnapshotFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = fn
}

func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
		b.snapshotTicker.Stop()
	})
}

func (b *Broadcaster) AddClient(ctx context.Context, conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		b:    b,
		send: make(chan []byte, 64),
	}
	b.clients[c] = true
	b.mu.Unlock()

	go c.writePump()

	if msg, ok := b.snapshotMessage(ctx, c.id); ok {
		b.sendTo(c, msg)
	}
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Notify implements event.Notifier. It never blocks.
func (b *Broadcaster) Notify(n event.Notification) {
	if n.Position == nil {
		b.broadcast(notificationMessage(n))
		return
	}

	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	key := string(n.Type) + "/" + n.Controller
	if _, queued := b.pendingPoses[key]; !queued {
		b.poseOrder = append(b.poseOrder, key)
	}
	b.pendingPoses[key] = n
	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// InputEvent mirrors a session-API input event to every panel.
func (b *Broadcaster) InputEvent(ev event.Input) {
	b.broadcast(WSMessage{Type: MsgInputEvent, Payload: ev})
}

// SessionEvent publishes the session list after a lifecycle change.
func (b *Broadcaster) SessionEvent(ev session.Event) {
	b.broadcast(WSMessage{Type: MsgSessions, Payload: SessionsPayload{
		Sessions:    []*session.Session{ev.Session},
		ActiveCount: ev.ActiveCount,
	}})
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	order := b.poseOrder
	poses := b.pendingPoses
	b.poseOrder = nil
	b.pendingPoses = make(map[string]event.Notification)
	b.flushTimer = nil
	b.flushMu.Unlock()

	for _, key := range order {
		b.broadcast(notificationMessage(poses[key]))
	}
}

func (b *Broadcaster) snapshotMessage(ctx context.Context, clientID string) (WSMessage, bool) {
	b.mu.RLock()
	fn := b.snapshot
	b.mu.RUnlock()
	if fn == nil {
		return WSMessage{}, false
	}
	snap, err := fn(ctx)
	if err != nil {
		b.logger.Debug("snapshot unavailable", "error", err)
		return WSMessage{}, false
	}
	return WSMessage{Type: MsgSnapshot, Payload: SnapshotPayload{
		Snapshot: snap,
		ClientID: clientID,
		Clients:  b.ClientCount(),
	}}, true
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.stop:
			return
		case <-b.snapshotTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			msg, ok := b.snapshotMessage(ctx, "")
			cancel()
			if ok {
				b.broadcast(msg)
			}
		}
	}
}

// sendTo queues msg for a single client, dropping it if the client is
// gone or its buffer is full.
func (b *Broadcaster) sendTo(c *client, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("marshal failed", "type", msg.Type, "error", err)
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("marshal failed", "type", msg.Type, "error", err)
		return
	}

	b.mu.RLock()
	var slow []*client
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	// Client can't keep up, disconnect it
	for _, c := range slow {
		b.logger.Warn("client too slow, disconnecting", "client", c.id)
		b.RemoveClient(c)
	}
}
