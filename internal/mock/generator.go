// Package mock drives the emulated device with a synthetic pose and button
// stream so the panel and session API can be exercised without a real
// control panel attached.
package mock

import (
	"context"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xr-emulator/backend/internal/device"
	"github.com/xr-emulator/backend/internal/emulator"
	"github.com/xr-emulator/backend/internal/event"
	"github.com/xr-emulator/backend/internal/logging"
	"github.com/xr-emulator/backend/internal/xrmath"
)

// DefaultInterval is how often the generator moves the device.
const DefaultInterval = 50 * time.Millisecond

const (
	clickPeriod = 40 // ticks between primary presses
	clickLength = 6  // ticks a press is held
	headHeight  = 1.6
	handHeight  = 1.4
	reach       = 0.4
)

// Runner serializes calls onto the goroutine that owns the engine.
type Runner interface {
	Do(ctx context.Context, fn func(*emulator.Engine)) error
}

// Generator sways the headset, circles the controllers and clicks the
// primary button on a fixed cycle. On a passthrough device it holds the
// surface in front of the camera and taps it instead.
type Generator struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
}

func NewGenerator(runner Runner, interval time.Duration, logger *slog.Logger) *Generator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Generator{
		runner:   runner,
		interval: interval,
		logger:   logging.Component(logger, "mock"),
	}
}

// Start runs the generator in its own goroutine until ctx is cancelled.
func (g *Generator) Start(ctx context.Context) {
	go g.Run(ctx)
}

// Run blocks, advancing the device once per interval, until ctx is cancelled
// or the runner stops accepting calls.
func (g *Generator) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.logger.Info("mock motion started", "interval", g.interval)
	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			n := tick
			if err := g.runner.Do(ctx, func(e *emulator.Engine) { advance(e, n) }); err != nil {
				g.logger.Debug("mock motion stopped", "error", err)
				return
			}
		}
	}
}

func advance(e *emulator.Engine, tick int) {
	if e.State().Kind() == device.KindPassthrough {
		advancePassthrough(e, tick)
		return
	}
	advancePrimary(e, tick)
}

func phase(tick int) float64 { return float64(tick) * 0.05 }

func headPose(tick int) (r3.Vec, quat.Number) {
	t := phase(tick)
	pos := r3.Vec{X: 0.05 * math.Sin(t), Y: headHeight + 0.02*math.Sin(2*t)}
	return pos, xrmath.AxisAngle(r3.Vec{Y: 1}, 0.3*math.Sin(t))
}

// clicking reports whether the primary button is held at tick.
func clicking(tick int) bool { return tick%clickPeriod < clickLength }

func advancePrimary(e *emulator.Engine, tick int) {
	e.HeadsetPoseUpdate(headPose(tick))

	t := phase(tick)
	for slot, side := range []float64{1, -1} {
		if _, ok := e.State().Controller(slot); !ok {
			continue
		}
		pos := r3.Vec{
			X: side * (0.25 + 0.1*math.Cos(t)),
			Y: handHeight + 0.1*math.Sin(t),
			Z: -reach,
		}
		e.ControllerPoseUpdate(event.ControllerName(slot), pos, xrmath.IdentityQuat)
	}

	c, ok := e.State().Controller(device.Primary)
	if !ok {
		return
	}
	name := event.ControllerName(device.Primary)
	e.ControllerButtonUpdate(name, c.PrimaryButtonIndex, clicking(tick))
	e.ControllerAxisUpdate(name, 0, math.Sin(t))
	e.ControllerAxisUpdate(name, 1, math.Cos(t))
}

// surfacePosition is where the handheld surface is held, in front of the
// initial camera.
var surfacePosition = r3.Vec{Y: handHeight, Z: -reach}

func tapPoint(tick int) r3.Vec {
	t := phase(tick)
	return r3.Add(surfacePosition, r3.Vec{X: 0.05 * math.Sin(t), Y: 0.03 * math.Cos(t)})
}

func advancePassthrough(e *emulator.Engine, tick int) {
	pos, _ := headPose(tick)
	e.CameraPoseChanged(pos, xrmath.IdentityQuat)
	if tick == 1 {
		e.SurfacePoseChanged(surfacePosition, xrmath.IdentityQuat)
	}

	switch n := tick % clickPeriod; {
	case n < clickLength:
		e.Touch(tapPoint(tick))
	case n == clickLength:
		e.Release()
	}
}
