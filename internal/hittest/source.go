// Package hittest resolves hit-test sources against the virtual surface
// once per frame.
package hittest

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xr-emulator/backend/internal/xrmath"
)

// Ray is an origin and a unit direction. It is a value type; every
// resolution builds its own.
type Ray struct {
	Origin    r3.Vec
	Direction r3.Vec
}

// DefaultRay points down the local -Z axis from the origin.
func DefaultRay() Ray {
	return Ray{Direction: r3.Vec{Z: -1}}
}

// Transform maps r through m. It reports false when m collapses the
// direction to zero, leaving no ray to cast.
func (r Ray) Transform(m xrmath.Mat4) (Ray, bool) {
	dir := m.TransformDirection(r.Direction)
	if r3.Norm(dir) == 0 {
		return Ray{}, false
	}
	return Ray{
		Origin:    m.TransformPoint(r.Origin),
		Direction: r3.Unit(dir),
	}, true
}

// Space is a reference space whose base transform may not be known yet.
type Space interface {
	BaseMatrix() (xrmath.Mat4, bool)
}

// Surface intersects world-space rays with the virtual environment.
type Surface interface {
	QueryHitTestSurface(origin, direction r3.Vec) []r3.Vec
}

// Result is one hit. Only the position is known; Matrix is a pure
// translation to it.
type Result struct {
	Position r3.Vec
	Matrix   xrmath.Mat4
}

func toResults(points []r3.Vec) []Result {
	if len(points) == 0 {
		return nil
	}
	out := make([]Result, len(points))
	for i, p := range points {
		out[i] = Result{Position: p, Matrix: xrmath.Translation(p)}
	}
	return out
}

// Source is a hit-test source anchored to a reference space.
type Source struct {
	id        int
	sessionID int
	space     Space
	ray       Ray
	active    bool
	results   []Result
}

func (s *Source) ID() int        { return s.id }
func (s *Source) SessionID() int { return s.sessionID }
func (s *Source) Active() bool   { return s.active }

// Cancel stops the source. It is dropped on the next resolution pass.
func (s *Source) Cancel() { s.active = false }

// Results returns the hits of the last resolution pass.
func (s *Source) Results() []Result { return slices.Clone(s.results) }

// TransientResult groups hits by the input source that produced them.
type TransientResult struct {
	InputSource int
	Results     []Result
}

// TransientSource is a hit-test source that follows a momentary input
// contact of the given input profile.
type TransientSource struct {
	id        int
	sessionID int
	profile   string
	ray       Ray
	active    bool
	results   []TransientResult
}

func (s *TransientSource) ID() int         { return s.id }
func (s *TransientSource) SessionID() int  { return s.sessionID }
func (s *TransientSource) Profile() string { return s.profile }
func (s *TransientSource) Active() bool    { return s.active }
func (s *TransientSource) Cancel()         { s.active = false }

func (s *TransientSource) Results() []TransientResult {
	out := make([]TransientResult, len(s.results))
	for i, r := range s.results {
		out[i] = TransientResult{InputSource: r.InputSource, Results: slices.Clone(r.Results)}
	}
	return out
}
