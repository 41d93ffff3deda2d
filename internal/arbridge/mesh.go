package arbridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	triangleFloats = 9
	triangleBytes  = triangleFloats * 4
	epsilon        = 1e-9
)

var ErrShortMesh = errors.New("mesh buffer shorter than its triangle count")

// Triangle is one face of the hit-test surface.
type Triangle [3]r3.Vec

// Mesh is a triangle soup.
type Mesh struct {
	Triangles []Triangle
}

// DecodeMesh reads a little-endian buffer: a uint32 triangle count followed
// by nine float32 vertex coordinates per triangle.
func DecodeMesh(buf []byte) (*Mesh, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortMesh, len(buf))
	}
	n := int(binary.LittleEndian.Uint32(buf))
	body := buf[4:]
	if len(body) < n*triangleBytes {
		return nil, fmt.Errorf("%w: want %d triangles, have %d bytes", ErrShortMesh, n, len(body))
	}
	m := &Mesh{Triangles: make([]Triangle, n)}
	for i := range m.Triangles {
		off := i * triangleBytes
		for v := 0; v < 3; v++ {
			base := off + v*12
			m.Triangles[i][v] = r3.Vec{
				X: float64(math.Float32frombits(binary.LittleEndian.Uint32(body[base:]))),
				Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(body[base+4:]))),
				Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(body[base+8:]))),
			}
		}
	}
	return m, nil
}

// EncodeMesh is the inverse of DecodeMesh.
func EncodeMesh(m *Mesh) []byte {
	buf := make([]byte, 4+len(m.Triangles)*triangleBytes)
	binary.LittleEndian.PutUint32(buf, uint32(len(m.Triangles)))
	off := 4
	for _, tri := range m.Triangles {
		for _, v := range tri {
			for _, f := range [3]float64{v.X, v.Y, v.Z} {
				binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(f)))
				off += 4
			}
		}
	}
	return buf
}

// Intersect returns every point where the ray hits the mesh, nearest first.
// Both faces of a triangle count.
func (m *Mesh) Intersect(origin, direction r3.Vec) []r3.Vec {
	type hit struct {
		t float64
		p r3.Vec
	}
	var hits []hit
	for _, tri := range m.Triangles {
		if t, ok := intersectTriangle(origin, direction, tri); ok {
			hits = append(hits, hit{t: t, p: r3.Add(origin, r3.Scale(t, direction))})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		switch {
		case a.t < b.t:
			return -1
		case a.t > b.t:
			return 1
		}
		return 0
	})
	points := make([]r3.Vec, len(hits))
	for i, h := range hits {
		points[i] = h.p
	}
	return points
}

// intersectTriangle is the Moller-Trumbore test.
func intersectTriangle(origin, direction r3.Vec, tri Triangle) (float64, bool) {
	e1 := r3.Sub(tri[1], tri[0])
	e2 := r3.Sub(tri[2], tri[0])
	p := r3.Cross(direction, e2)
	det := r3.Dot(e1, p)
	if math.Abs(det) < epsilon {
		return 0, false
	}
	inv := 1 / det
	s := r3.Sub(origin, tri[0])
	u := r3.Dot(s, p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := r3.Cross(s, e1)
	v := r3.Dot(direction, q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := r3.Dot(e2, q) * inv
	if t < epsilon {
		return 0, false
	}
	return t, true
}
