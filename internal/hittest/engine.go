package hittest

import (
	"slices"

	"github.com/xr-emulator/backend/internal/xrmath"
)

// Pointer is the primary controller as seen by transient sources.
type Pointer struct {
	Slot     int
	Active   bool
	Touch    bool
	Profiles []string
	Pose     xrmath.Pose
}

// accepts reports whether p can drive a transient source of profile.
func (p *Pointer) accepts(profile string) bool {
	if p == nil || !p.Active || !p.Touch {
		return false
	}
	return profile == "" || slices.Contains(p.Profiles, profile)
}

// Engine holds every hit-test source in creation order.
type Engine struct {
	sources   []*Source
	transient []*TransientSource
	nextID    int
}

func NewEngine() *Engine {
	return &Engine{nextID: 1}
}

func (e *Engine) AddSource(sessionID int, space Space, ray Ray) *Source {
	s := &Source{id: e.nextID, sessionID: sessionID, space: space, ray: ray, active: true}
	e.nextID++
	e.sources = append(e.sources, s)
	return s
}

func (e *Engine) AddTransientSource(sessionID int, profile string, ray Ray) *TransientSource {
	s := &TransientSource{id: e.nextID, sessionID: sessionID, profile: profile, ray: ray, active: true}
	e.nextID++
	e.transient = append(e.transient, s)
	return s
}

// Sources returns the spatial sources of a session currently in the working
// list, including cancelled ones not yet compacted.
func (e *Engine) Sources(sessionID int) []*Source {
	var out []*Source
	for _, s := range e.sources {
		if s.sessionID == sessionID {
			out = append(out, s)
		}
	}
	return out
}

// TransientSources is Sources for transient-input sources.
func (e *Engine) TransientSources(sessionID int) []*TransientSource {
	var out []*TransientSource
	for _, s := range e.transient {
		if s.sessionID == sessionID {
			out = append(out, s)
		}
	}
	return out
}

// CancelSession cancels every source owned by the session.
func (e *Engine) CancelSession(sessionID int) {
	for _, s := range e.sources {
		if s.sessionID == sessionID {
			s.Cancel()
		}
	}
	for _, s := range e.transient {
		if s.sessionID == sessionID {
			s.Cancel()
		}
	}
}

// Resolve runs one resolution pass for a session. Cancelled sources are
// compacted out first; the results of every surviving source of the session
// are replaced.
func (e *Engine) Resolve(sessionID int, pointer *Pointer, surface Surface) {
	e.sources = slices.DeleteFunc(e.sources, func(s *Source) bool { return !s.active })
	e.transient = slices.DeleteFunc(e.transient, func(s *TransientSource) bool { return !s.active })

	for _, s := range e.sources {
		if s.sessionID != sessionID {
			continue
		}
		s.results = nil
		base, ok := s.space.BaseMatrix()
		if !ok || surface == nil {
			continue
		}
		ray, ok := s.ray.Transform(base)
		if !ok {
			continue
		}
		s.results = toResults(surface.QueryHitTestSurface(ray.Origin, ray.Direction))
	}

	for _, s := range e.transient {
		if s.sessionID != sessionID {
			continue
		}
		s.results = nil
		if !pointer.accepts(s.profile) || surface == nil {
			continue
		}
		ray, ok := s.ray.Transform(pointer.Pose.Matrix())
		if !ok {
			continue
		}
		hits := toResults(surface.QueryHitTestSurface(ray.Origin, ray.Direction))
		s.results = []TransientResult{{InputSource: pointer.Slot, Results: hits}}
	}
}
