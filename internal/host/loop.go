// Package host drives the engine the way a browser drives an animation
// frame callback: one goroutine owns the engine, runs submitted calls in
// order and ticks every active session once per frame interval.
package host

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xr-emulator/backend/internal/emulator"
)

// DefaultInterval is a 60 Hz frame clock.
const DefaultInterval = time.Second / 60

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("host loop stopped")

type call struct {
	fn   func(*emulator.Engine)
	done chan struct{}
}

type Loop struct {
	engine   *emulator.Engine
	interval time.Duration
	calls    chan call
	stopped  chan struct{}
	frames   atomic.Uint64
	logger   *slog.Logger
}

func New(engine *emulator.Engine, interval time.Duration, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		engine:   engine,
		interval: interval,
		calls:    make(chan call),
		stopped:  make(chan struct{}),
		logger:   logger,
	}
}

// Run owns the engine until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.stopped)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("frame loop started", "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("frame loop stopped", "frames", l.frames.Load())
			return
		case c := <-l.calls:
			c.fn(l.engine)
			close(c.done)
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Do runs fn on the loop goroutine and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func(*emulator.Engine)) error {
	c := call{fn: fn, done: make(chan struct{})}
	select {
	case l.calls <- c:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrStopped
	}
	<-c.done
	return nil
}

// Tick runs one frame for every session that has not ended. It must only
// be called from the loop goroutine, or before Run starts.
func (l *Loop) Tick() {
	registry := l.engine.Registry()
	for _, id := range l.engine.ActiveSessions() {
		s, ok := registry.Get(id)
		if !ok {
			continue
		}
		if err := l.engine.OnFrameStart(id, s.RenderState); err != nil {
			l.logger.Debug("frame start skipped", "session", id, "error", err)
			continue
		}
		if err := l.engine.OnFrameEnd(id); err != nil {
			l.logger.Debug("frame end skipped", "session", id, "error", err)
		}
	}
	l.engine.EndTick()
	l.frames.Add(1)
}

// Frames is the number of ticks run so far.
func (l *Loop) Frames() uint64 { return l.frames.Load() }
