// Package xrmath holds the spatial math used by the emulator: column-major
// 4x4 matrices in the layout the session API consumes, plus pose helpers on
// top of gonum's r3 vectors and quaternions.
package xrmath

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mat4 is a 4x4 matrix stored column-major:
//
//	| m0 m4 m8  m12 |
//	| m1 m5 m9  m13 |
//	| m2 m6 m10 m14 |
//	| m3 m7 m11 m15 |
type Mat4 [16]float64

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns a matrix translating by v.
func Translation(v r3.Vec) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = v.X, v.Y, v.Z
	return m
}

// Compose builds the model matrix for a rotation q, translation v and
// scale s, in that application order (scale, rotate, translate).
func Compose(v r3.Vec, q quat.Number, s r3.Vec) Mat4 {
	x, y, z, w := q.Imag, q.Jmag, q.Kmag, q.Real
	x2, y2, z2 := x+x, y+y, z+z

	xx, xy, xz := x*x2, x*y2, x*z2
	yy, yz, zz := y*y2, y*z2, z*z2
	wx, wy, wz := w*x2, w*y2, w*z2

	return Mat4{
		(1 - (yy + zz)) * s.X, (xy + wz) * s.X, (xz - wy) * s.X, 0,
		(xy - wz) * s.Y, (1 - (xx + zz)) * s.Y, (yz + wx) * s.Y, 0,
		(xz + wy) * s.Z, (yz - wx) * s.Z, (1 - (xx + yy)) * s.Z, 0,
		v.X, v.Y, v.Z, 1,
	}
}

// Perspective returns a right-handed projection matrix with clip-space depth
// in [-1, 1]. fovy is the vertical field of view in radians.
func Perspective(fovy, aspect, near, far float64) Mat4 {
	f := 1 / math.Tan(fovy/2)
	nf := 1 / (near - far)
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) * nf, -1,
		0, 0, 2 * far * near * nf, 0,
	}
}

// Mul returns m * n.
func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[k*4+r] * n[c*4+k]
			}
			out[c*4+r] = sum
		}
	}
	return out
}

// Translate returns m post-multiplied by a translation, i.e. m moved by v
// along its own local axes.
func (m Mat4) Translate(v r3.Vec) Mat4 {
	out := m
	for r := 0; r < 4; r++ {
		out[12+r] = m[r]*v.X + m[4+r]*v.Y + m[8+r]*v.Z + m[12+r]
	}
	return out
}

// Invert returns the inverse of m. ok is false when m is singular or too
// ill-conditioned to invert; the returned matrix is then the identity.
func Invert(m Mat4) (inv Mat4, ok bool) {
	a := mat.NewDense(4, 4, m.rowMajor())
	var d mat.Dense
	if err := d.Inverse(a); err != nil {
		return Identity(), false
	}
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			inv[c*4+r] = d.At(r, c)
		}
	}
	return inv, true
}

func (m Mat4) rowMajor() []float64 {
	data := make([]float64, 16)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			data[r*4+c] = m[c*4+r]
		}
	}
	return data
}

// TransformPoint applies m to the point p, including the perspective divide.
func (m Mat4) TransformPoint(p r3.Vec) r3.Vec {
	x := m[0]*p.X + m[4]*p.Y + m[8]*p.Z + m[12]
	y := m[1]*p.X + m[5]*p.Y + m[9]*p.Z + m[13]
	z := m[2]*p.X + m[6]*p.Y + m[10]*p.Z + m[14]
	w := m[3]*p.X + m[7]*p.Y + m[11]*p.Z + m[15]
	if w != 0 && w != 1 {
		x, y, z = x/w, y/w, z/w
	}
	return r3.Vec{X: x, Y: y, Z: z}
}

// TransformDirection applies the linear part of m to d, ignoring
// translation.
func (m Mat4) TransformDirection(d r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0]*d.X + m[4]*d.Y + m[8]*d.Z,
		Y: m[1]*d.X + m[5]*d.Y + m[9]*d.Z,
		Z: m[2]*d.X + m[6]*d.Y + m[10]*d.Z,
	}
}

// Position returns the translation component of m.
func (m Mat4) Position() r3.Vec {
	return r3.Vec{X: m[12], Y: m[13], Z: m[14]}
}

// ApproxEqual reports whether every element of m and n differs by at most
// tol.
func (m Mat4) ApproxEqual(n Mat4, tol float64) bool {
	for i := range m {
		if math.Abs(m[i]-n[i]) > tol {
			return false
		}
	}
	return true
}
