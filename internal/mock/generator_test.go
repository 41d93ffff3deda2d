package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xr-emulator/backend/internal/arbridge"
	"github.com/xr-emulator/backend/internal/device"
	"github.com/xr-emulator/backend/internal/emulator"
	"github.com/xr-emulator/backend/internal/session"
)

type countingRunner struct {
	mu    sync.Mutex
	e     *emulator.Engine
	calls atomic.Int64
}

func (r *countingRunner) Do(ctx context.Context, fn func(*emulator.Engine)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.e)
	r.calls.Add(1)
	return nil
}

func newEngine(t *testing.T, profile string) *emulator.Engine {
	t.Helper()
	p, ok := device.Builtin().Lookup(profile)
	require.True(t, ok, profile)
	return emulator.New(p, emulator.Options{Visualization: arbridge.NewScene(nil)})
}

func TestAdvanceMovesPrimaryDevice(t *testing.T) {
	e := newEngine(t, "generic-headset")

	advance(e, 10)

	head := e.State().Headset()
	assert.InDelta(t, headHeight, head.Position.Y, 0.03)
	assert.NotEqual(t, 1.0, head.Orientation.Real, "headset should be turned")

	right, _ := e.State().Controller(device.Primary)
	left, _ := e.State().Controller(device.Secondary)
	assert.Greater(t, right.Pose.Position.X, 0.0)
	assert.Less(t, left.Pose.Position.X, 0.0)
	assert.InDelta(t, -reach, right.Pose.Position.Z, 1e-9)
}

func TestAdvanceClicksOnCycle(t *testing.T) {
	e := newEngine(t, "generic-headset")
	pressed := func() bool {
		c, _ := e.State().Controller(device.Primary)
		return c.Buttons[c.PrimaryButtonIndex].Pressed
	}

	advance(e, clickPeriod)
	assert.True(t, pressed(), "press starts at the top of the cycle")
	advance(e, clickPeriod+clickLength-1)
	assert.True(t, pressed())
	advance(e, clickPeriod+clickLength)
	assert.False(t, pressed(), "press is released after clickLength ticks")
}

func TestAdvanceTapsPassthroughSurface(t *testing.T) {
	e := newEngine(t, "handheld-ar")
	s, err := e.RequestSession(session.ImmersiveAR, nil)
	require.NoError(t, err)
	require.NoError(t, e.BindSurface(s.ID, &session.Canvas{}))

	advance(e, 1)
	surface, _ := e.State().Controller(device.Secondary)
	assert.Equal(t, surfacePosition, surface.Pose.Position)

	advance(e, clickPeriod)
	pointer, _ := e.State().Controller(device.Primary)
	assert.Equal(t, tapPoint(clickPeriod), pointer.Pose.Position)

	advance(e, clickPeriod+clickLength)
	pointer, _ = e.State().Controller(device.Primary)
	want := r3.Add(tapPoint(clickPeriod), r3.Vec{Z: arbridge.RetractDistance})
	assert.InDelta(t, want.Z, pointer.Pose.Position.Z, 1e-9, "release pulls the pointer off the surface")
}

func TestRunStopsOnCancel(t *testing.T) {
	r := &countingRunner{e: newEngine(t, "generic-headset")}
	g := NewGenerator(r, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return r.calls.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
