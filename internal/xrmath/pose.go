package xrmath

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// IdentityQuat is the no-rotation quaternion.
var IdentityQuat = quat.Number{Real: 1}

// UnitScale is the fixed scale of every emulated pose.
var UnitScale = r3.Vec{X: 1, Y: 1, Z: 1}

// Pose is a rigid transform: a position and a unit orientation.
type Pose struct {
	Position    r3.Vec
	Orientation quat.Number
}

// NewPose returns a pose at position p with identity orientation.
func NewPose(p r3.Vec) Pose {
	return Pose{Position: p, Orientation: IdentityQuat}
}

// Matrix composes the pose into a model matrix at unit scale.
func (p Pose) Matrix() Mat4 {
	return Compose(p.Position, p.Orientation, UnitScale)
}

// Rotate rotates v by q. q must be a unit quaternion.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(q).Rotate(v)
}

// AxisAngle returns the rotation of angle radians about axis.
func AxisAngle(axis r3.Vec, angle float64) quat.Number {
	return quat.Number(r3.NewRotation(angle, axis))
}

// Normalize returns q scaled to unit length. The zero quaternion is returned
// as the identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return IdentityQuat
	}
	return quat.Scale(1/n, q)
}

// Vec converts a wire-format [x, y, z] triple.
func Vec(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}

// VecArray converts v to its wire-format [x, y, z] triple.
func VecArray(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// Quat converts a wire-format [x, y, z, w] quaternion.
func Quat(a [4]float64) quat.Number {
	return quat.Number{Imag: a[0], Jmag: a[1], Kmag: a[2], Real: a[3]}
}

// QuatArray converts q to its wire-format [x, y, z, w] layout.
func QuatArray(q quat.Number) [4]float64 {
	return [4]float64{q.Imag, q.Jmag, q.Kmag, q.Real}
}
