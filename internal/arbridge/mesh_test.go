package arbridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestMeshRoundTrip(t *testing.T) {
	m := FloorMesh(2)
	got, err := DecodeMesh(EncodeMesh(m))
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestDecodeMeshShort(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"count only", []byte{1, 0, 0, 0}},
		{"truncated triangle", append([]byte{1, 0, 0, 0}, make([]byte, 20)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMesh(tt.buf)
			assert.True(t, errors.Is(err, ErrShortMesh), "got %v", err)
		})
	}
}

func TestIntersectNearestFirst(t *testing.T) {
	upper := Triangle{{X: -1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: 0, Y: 1, Z: 1}}
	lower := Triangle{{X: -1, Z: -1}, {X: 1, Z: -1}, {X: 0, Z: 1}}
	m := &Mesh{Triangles: []Triangle{lower, upper}}

	hits := m.Intersect(r3.Vec{Y: 3}, r3.Vec{Y: -1})
	require.Len(t, hits, 2)
	assert.InDelta(t, 1, hits[0].Y, 1e-9)
	assert.InDelta(t, 0, hits[1].Y, 1e-9)
}

func TestIntersectMisses(t *testing.T) {
	m := FloorMesh(1)
	tests := []struct {
		name      string
		origin    r3.Vec
		direction r3.Vec
	}{
		{"pointing away", r3.Vec{X: 0.3, Y: 1}, r3.Vec{Y: 1}},
		{"parallel", r3.Vec{X: 0.3, Y: 1}, r3.Vec{X: 1}},
		{"outside extent", r3.Vec{X: 5, Y: 1}, r3.Vec{Y: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, m.Intersect(tt.origin, tt.direction))
		})
	}
}

func TestSceneHitTestNeedsMesh(t *testing.T) {
	s := NewScene(nil)
	assert.False(t, s.HasSurface())
	assert.Empty(t, s.QueryHitTestSurface(r3.Vec{X: 0.3, Y: 1, Z: 0.1}, r3.Vec{Y: -1}))

	require.NoError(t, s.LoadSurfaceAsset(EncodeMesh(FloorMesh(1))))
	assert.True(t, s.HasSurface())
	hits := s.QueryHitTestSurface(r3.Vec{X: 0.3, Y: 1, Z: 0.1}, r3.Vec{Y: -1})
	require.Len(t, hits, 1)
	assert.InDelta(t, 0.3, hits[0].X, 1e-6)
	assert.InDelta(t, 0, hits[0].Y, 1e-9)

	assert.Error(t, s.LoadSurfaceAsset([]byte{9}))
	assert.True(t, s.HasSurface(), "a bad asset keeps the previous mesh")
}

func TestSceneContactCounters(t *testing.T) {
	s := NewScene(nil)
	s.OnContact()
	assert.True(t, s.InContact)
	s.OnContactReleased()
	s.ReleaseVirtualScreen()
	s.ClearOverlay()
	assert.Equal(t, 1, s.Contacts)
	assert.Equal(t, 1, s.Releases)
	assert.Equal(t, 1, s.ScreenReleases)
	assert.Equal(t, 1, s.OverlayClears)
	assert.False(t, s.InContact)
}
