package session

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

var (
	ErrUnsupportedMode = errors.New("unsupported session mode")
	ErrNotFound        = errors.New("session not found")
)

// Registry tracks sessions by id. Ended sessions are kept so late queries
// still see them as ended.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int]*Session
	nextID   int
	observer func(Event)
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int]*Session),
		nextID:   1,
	}
}

// SetObserver installs fn to receive lifecycle events. fn runs synchronously
// on the caller's goroutine after the registry lock is released.
func (r *Registry) SetObserver(fn func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
}

// Create allocates a session for mode when the device advertises it.
func (r *Registry) Create(mode Mode, features []string, advertised []Mode) (*Session, error) {
	if !slices.Contains(advertised, mode) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, mode)
	}

	enabled := slices.Clone(features)
	slices.Sort(enabled)
	enabled = slices.Compact(enabled)

	r.mu.Lock()
	s := &Session{
		ID:              r.nextID,
		Mode:            mode,
		EnabledFeatures: enabled,
		RenderState:     RenderState{}.WithDefaults(),
		StartedAt:       time.Now(),
	}
	r.nextID++
	r.sessions[s.ID] = s
	ev := r.eventLocked(EventCreated, s)
	r.mu.Unlock()

	r.emit(ev)
	return s.Clone(), nil
}

// BindSurface attaches surface to the session. An immersive session that is
// already bound has its old surface detached first, and the new surface is
// sized to width x height.
func (r *Registry) BindSurface(id int, surface Surface, width, height int) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	var events []Event
	if s.Immersive() {
		if old := s.Surface; old != nil {
			old.Detach()
			s.Surface = nil
			ev := r.eventLocked(EventSurfaceDetached, s)
			ev.Surface = old
			events = append(events, ev)
		}
		surface.Attach(width, height)
	}
	s.Surface = surface
	events = append(events, r.eventLocked(EventSurfaceBound, s))
	r.mu.Unlock()

	for _, ev := range events {
		r.emit(ev)
	}
	return nil
}

// SetRenderState records the render state last supplied for the session.
func (r *Registry) SetRenderState(id int, rs RenderState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.RenderState = rs.WithDefaults()
	}
}

// End marks the session ended. Only the first call has any effect; it
// reports whether this call was that first one.
func (r *Registry) End(id int) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.Ended {
		r.mu.Unlock()
		return false
	}
	if s.Surface != nil && s.Immersive() {
		s.Surface.Detach()
	}
	s.Surface = nil
	now := time.Now()
	s.EndedAt = &now
	s.Ended = true
	ev := r.eventLocked(EventEnded, s)
	r.mu.Unlock()

	r.emit(ev)
	return true
}

// SupportsReferenceSpace reports whether space was enabled for a session
// that has not ended.
func (r *Registry) SupportsReferenceSpace(id int, space string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok || s.Ended {
		return false
	}
	return s.HasFeature(space)
}

func (r *Registry) Get(id int) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// All returns snapshots of every session ordered by id.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ActiveIDs returns the ids of sessions that have not ended, ascending.
func (r *Registry) ActiveIDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.sessions))
	for id, s := range r.sessions {
		if !s.Ended {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeCountLocked()
}

func (r *Registry) activeCountLocked() int {
	count := 0
	for _, s := range r.sessions {
		if !s.Ended {
			count++
		}
	}
	return count
}

func (r *Registry) eventLocked(t EventType, s *Session) Event {
	return Event{Type: t, Session: s.Clone(), ActiveCount: r.activeCountLocked()}
}

func (r *Registry) emit(ev Event) {
	r.mu.RLock()
	fn := r.observer
	r.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}
