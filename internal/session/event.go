package session

// EventType classifies session lifecycle events.
type EventType int

const (
	EventCreated         EventType = iota // session allocated
	EventSurfaceBound                     // presentation surface attached
	EventSurfaceDetached                  // previous surface of an immersive session released
	EventEnded                            // first End call
)

// Event carries a session snapshot to the registry observer.
type Event struct {
	Type        EventType
	Session     *Session // snapshot (safe to retain)
	Surface     Surface  // detached surface, EventSurfaceDetached only
	ActiveCount int      // non-ended sessions at event time
}
