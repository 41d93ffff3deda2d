package arbridge

import (
	"log/slog"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xr-emulator/backend/internal/xrmath"
)

// Scene is an in-process Visualization. It mirrors the transforms it is
// sent, counts contacts, and answers hit tests against the loaded mesh.
// Until a mesh arrives every query misses.
type Scene struct {
	Camera  xrmath.Pose
	Pointer xrmath.Pose
	Surface xrmath.Pose

	Contacts        int
	Releases        int
	ScreenReleases  int
	OverlayClears   int
	InContact       bool
	VirtualScreenUp bool

	mesh   *Mesh
	logger *slog.Logger
}

func NewScene(logger *slog.Logger) *Scene {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scene{
		Camera:  xrmath.NewPose(r3.Vec{}),
		Pointer: xrmath.NewPose(r3.Vec{}),
		Surface: xrmath.NewPose(r3.Vec{}),
		logger:  logger,
	}
}

func (s *Scene) UpdateCameraTransform(p r3.Vec, q quat.Number) {
	s.Camera = xrmath.Pose{Position: p, Orientation: q}
}

func (s *Scene) UpdatePointerTransform(p r3.Vec, q quat.Number) {
	s.Pointer = xrmath.Pose{Position: p, Orientation: q}
}

func (s *Scene) UpdateSurfaceTransform(p r3.Vec, q quat.Number) {
	s.Surface = xrmath.Pose{Position: p, Orientation: q}
	s.VirtualScreenUp = true
}

func (s *Scene) QueryHitTestSurface(origin, direction r3.Vec) []r3.Vec {
	if s.mesh == nil {
		return nil
	}
	return s.mesh.Intersect(origin, direction)
}

func (s *Scene) OnContact() {
	s.Contacts++
	s.InContact = true
}

func (s *Scene) OnContactReleased() {
	s.Releases++
	s.InContact = false
}

func (s *Scene) ReleaseVirtualScreen() {
	s.ScreenReleases++
	s.VirtualScreenUp = false
}

func (s *Scene) ClearOverlay() {
	s.OverlayClears++
	s.InContact = false
}

func (s *Scene) LoadSurfaceAsset(buf []byte) error {
	m, err := DecodeMesh(buf)
	if err != nil {
		return err
	}
	s.mesh = m
	s.logger.Info("surface asset loaded", "triangles", len(m.Triangles))
	return nil
}

// HasSurface reports whether a mesh has been loaded.
func (s *Scene) HasSurface() bool { return s.mesh != nil }

// FloorMesh is a square of the given half-extent on the y=0 plane.
func FloorMesh(half float64) *Mesh {
	a := r3.Vec{X: -half, Z: -half}
	b := r3.Vec{X: half, Z: -half}
	c := r3.Vec{X: half, Z: half}
	d := r3.Vec{X: -half, Z: half}
	return &Mesh{Triangles: []Triangle{{a, b, c}, {a, c, d}}}
}
