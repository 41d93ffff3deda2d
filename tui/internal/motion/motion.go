// Package motion eases panel-driven poses toward their targets so a held
// key moves the emulated device smoothly instead of in jumps.
package motion

import (
	"math"

	"github.com/charmbracelet/harmonica"

	"github.com/xr-emulator/panel/internal/client"
)

// FPS is the rate the panel steps every Rig.
const FPS = 30

const (
	frequency = 7.0
	damping   = 1.0 // critically damped, no overshoot
	epsilon   = 1e-4
)

// axis order in Rig.axes
const (
	axisX = iota
	axisY
	axisZ
	axisYaw
	axisCount
)

type axis struct {
	pos, vel, target float64
}

// Rig tracks one posable target: a position plus a yaw angle in radians.
// Orientation other than yaw is not modelled.
type Rig struct {
	spring harmonica.Spring
	axes   [axisCount]axis
}

func NewRig() *Rig {
	return &Rig{spring: harmonica.NewSpring(harmonica.FPS(FPS), frequency, damping)}
}

// Set jumps to p with no motion.
func (r *Rig) Set(p client.Pose) {
	vals := [axisCount]float64{p.Position[0], p.Position[1], p.Position[2], Yaw(p.Quaternion)}
	for i, v := range vals {
		r.axes[i] = axis{pos: v, target: v}
	}
}

// Nudge moves the target by the given offsets.
func (r *Rig) Nudge(dx, dy, dz, dyaw float64) {
	r.axes[axisX].target += dx
	r.axes[axisY].target += dy
	r.axes[axisZ].target += dz
	r.axes[axisYaw].target += dyaw
}

// MoveTo sets an absolute target.
func (r *Rig) MoveTo(position [3]float64, yaw float64) {
	r.axes[axisX].target = position[0]
	r.axes[axisY].target = position[1]
	r.axes[axisZ].target = position[2]
	r.axes[axisYaw].target = yaw
}

// Step advances one frame. It reports whether the pose changed.
func (r *Rig) Step() bool {
	if r.Settled() {
		return false
	}
	for i := range r.axes {
		a := &r.axes[i]
		a.pos, a.vel = r.spring.Update(a.pos, a.vel, a.target)
		if math.Abs(a.target-a.pos) < epsilon && math.Abs(a.vel) < epsilon {
			a.pos, a.vel = a.target, 0
		}
	}
	return true
}

// Settled reports whether every axis has reached its target.
func (r *Rig) Settled() bool {
	for _, a := range r.axes {
		if a.pos != a.target || a.vel != 0 {
			return false
		}
	}
	return true
}

// Pose is the current eased pose.
func (r *Rig) Pose() client.Pose {
	return client.Pose{
		Position:   [3]float64{r.axes[axisX].pos, r.axes[axisY].pos, r.axes[axisZ].pos},
		Quaternion: YawQuat(r.axes[axisYaw].pos),
	}
}

// Target is the pose the rig is easing toward.
func (r *Rig) Target() client.Pose {
	return client.Pose{
		Position:   [3]float64{r.axes[axisX].target, r.axes[axisY].target, r.axes[axisZ].target},
		Quaternion: YawQuat(r.axes[axisYaw].target),
	}
}

// YawQuat is the [x, y, z, w] rotation of yaw radians about +Y.
func YawQuat(yaw float64) [4]float64 {
	return [4]float64{0, math.Sin(yaw / 2), 0, math.Cos(yaw / 2)}
}

// Yaw extracts the rotation about +Y from an [x, y, z, w] quaternion.
func Yaw(q [4]float64) float64 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	return math.Atan2(2*(w*y+x*z), 1-2*(y*y+x*x))
}
