package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allModes = []Mode{Inline, ImmersiveVR, ImmersiveAR}

// recorder collects observer events in order.
type recorder struct {
	events []Event
}

func (r *recorder) observe(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) count(t EventType) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)
	assert.Empty(t, r.All())
	assert.Zero(t, r.ActiveCount())
}

func TestCreateUnsupportedMode(t *testing.T) {
	r := NewRegistry()
	s, err := r.Create(ImmersiveAR, nil, []Mode{Inline, ImmersiveVR})
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, ErrUnsupportedMode), "got %v", err)
	assert.Empty(t, r.All())
}

func TestCreateAssignsMonotonicIDs(t *testing.T) {
	r := NewRegistry()
	var ids []int
	for i := 0; i < 3; i++ {
		s, err := r.Create(Inline, nil, allModes)
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int{1, 2, 3}, ids)
}

func TestCreateSortsAndDedupesFeatures(t *testing.T) {
	r := NewRegistry()
	s, err := r.Create(ImmersiveVR, []string{"local", "viewer", "local"}, allModes)
	require.NoError(t, err)
	assert.Equal(t, []string{"local", "viewer"}, s.EnabledFeatures)
	assert.True(t, s.Immersive())
	assert.True(t, s.Primary())
	assert.False(t, s.Passthrough())
}

func TestGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	s, _ := r.Create(Inline, []string{"viewer"}, allModes)

	got, ok := r.Get(s.ID)
	require.True(t, ok)
	got.EnabledFeatures[0] = "mutated"
	got.Ended = true

	again, _ := r.Get(s.ID)
	assert.Equal(t, []string{"viewer"}, again.EnabledFeatures)
	assert.False(t, again.Ended)
}

func TestBindSurfaceImmersiveReplacesOld(t *testing.T) {
	r := NewRegistry()
	rec := &recorder{}
	r.SetObserver(rec.observe)
	s, _ := r.Create(ImmersiveAR, nil, allModes)

	first := &Canvas{}
	require.NoError(t, r.BindSurface(s.ID, first, 1920, 1080))
	assert.True(t, first.Attached)
	assert.Equal(t, 1920, first.Width)

	second := &Canvas{}
	require.NoError(t, r.BindSurface(s.ID, second, 1280, 720))
	assert.False(t, first.Attached, "old surface must be detached")
	assert.True(t, second.Attached)
	w, h := second.Size()
	assert.Equal(t, [2]int{1280, 720}, [2]int{w, h})

	require.Equal(t, 1, rec.count(EventSurfaceDetached))
	for _, ev := range rec.events {
		if ev.Type == EventSurfaceDetached {
			assert.Same(t, first, ev.Surface)
			assert.True(t, ev.Session.Passthrough())
		}
	}
}

func TestBindSurfaceInlineLeavesSize(t *testing.T) {
	r := NewRegistry()
	s, _ := r.Create(Inline, nil, allModes)
	c := &Canvas{Width: 300, Height: 150}
	require.NoError(t, r.BindSurface(s.ID, c, 1920, 1080))
	assert.False(t, c.Attached)
	assert.Equal(t, 300, c.Width)
}

func TestBindSurfaceUnknownSession(t *testing.T) {
	r := NewRegistry()
	err := r.BindSurface(42, &Canvas{}, 1, 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEndIsIdempotent(t *testing.T) {
	r := NewRegistry()
	rec := &recorder{}
	r.SetObserver(rec.observe)
	s, _ := r.Create(ImmersiveVR, []string{"viewer", "local"}, allModes)
	c := &Canvas{}
	require.NoError(t, r.BindSurface(s.ID, c, 100, 100))

	assert.True(t, r.End(s.ID))
	assert.False(t, r.End(s.ID))
	assert.False(t, r.End(s.ID))

	assert.Equal(t, 1, rec.count(EventEnded))
	assert.False(t, c.Attached)

	got, _ := r.Get(s.ID)
	assert.True(t, got.Ended)
	assert.Nil(t, got.Surface)
	assert.NotNil(t, got.EndedAt)
	assert.Zero(t, r.ActiveCount())
}

func TestSupportsReferenceSpace(t *testing.T) {
	r := NewRegistry()
	s, _ := r.Create(ImmersiveVR, []string{SpaceViewer, SpaceLocal}, allModes)

	tests := []struct {
		space string
		want  bool
	}{
		{SpaceViewer, true},
		{SpaceLocal, true},
		{SpaceLocalFloor, false},
		{SpaceUnbounded, false},
	}
	for _, tt := range tests {
		t.Run(tt.space, func(t *testing.T) {
			assert.Equal(t, tt.want, r.SupportsReferenceSpace(s.ID, tt.space))
		})
	}

	r.End(s.ID)
	for _, tt := range tests {
		assert.False(t, r.SupportsReferenceSpace(s.ID, tt.space), "%s after end", tt.space)
	}
	assert.False(t, r.SupportsReferenceSpace(999, SpaceViewer))
}

func TestActiveIDsSkipsEnded(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Create(Inline, nil, allModes)
	b, _ := r.Create(ImmersiveVR, nil, allModes)
	c, _ := r.Create(Inline, nil, allModes)
	r.End(b.ID)

	assert.Equal(t, []int{a.ID, c.ID}, r.ActiveIDs())
	assert.Len(t, r.All(), 3)
}

func TestObserverSeesActiveCount(t *testing.T) {
	r := NewRegistry()
	rec := &recorder{}
	r.SetObserver(rec.observe)
	a, _ := r.Create(Inline, nil, allModes)
	r.Create(Inline, nil, allModes)
	r.End(a.ID)

	require.Len(t, rec.events, 3)
	assert.Equal(t, 1, rec.events[0].ActiveCount)
	assert.Equal(t, 2, rec.events[1].ActiveCount)
	assert.Equal(t, 1, rec.events[2].ActiveCount)
}

func TestRenderStateDefaults(t *testing.T) {
	rs := RenderState{DepthFar: 50}.WithDefaults()
	assert.Equal(t, DefaultDepthNear, rs.DepthNear)
	assert.Equal(t, 50.0, rs.DepthFar)
	assert.Equal(t, DefaultFieldOfView, rs.FieldOfView)
}
