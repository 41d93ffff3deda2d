package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xr-emulator/backend/internal/session"
)

func TestBuiltinCatalog(t *testing.T) {
	c := Builtin()
	assert.Equal(t, []string{"generic-headset", "3dof-headset", "handheld-ar"}, c.IDs())

	p, ok := c.Lookup("handheld-ar")
	require.True(t, ok)
	assert.Equal(t, KindPassthrough, p.Kind())
	assert.True(t, p.SupportsMode(session.ImmersiveAR))
	assert.False(t, p.SupportsMode(session.ImmersiveVR))
	assert.True(t, p.HasFeature("hit-test"))
	assert.InDelta(t, 0.25, p.SurfaceSize.Width, 1e-12)

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
}

func TestLookupReturnsCopy(t *testing.T) {
	c := Builtin()
	p, _ := c.Lookup("generic-headset")
	*p.Controllers[0].PrimaryButton = 3
	p.Modes[0] = session.ImmersiveAR

	again, _ := c.Lookup("generic-headset")
	assert.Equal(t, 0, *again.Controllers[0].PrimaryButton)
	assert.Equal(t, session.Inline, again.Modes[0])
}

func TestParseCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "profiles:\n  - name: nameless\n"},
		{"too many controllers", "profiles:\n  - id: x\n    controllers: [{id: a}, {id: b}, {id: c}]\n"},
		{"bad mode", "profiles:\n  - id: x\n    modes: [immersive-xr]\n"},
		{"not yaml", "profiles: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFileOverridesAndAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	data := `
profiles:
  - id: generic-headset
    name: Overridden
    modes: [immersive-vr]
  - id: custom
    name: Custom rig
    modes: [inline]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	c := Builtin()
	require.NoError(t, c.LoadFile(path))
	assert.Equal(t, []string{"generic-headset", "3dof-headset", "handheld-ar", "custom"}, c.IDs())

	p, _ := c.Lookup("generic-headset")
	assert.Equal(t, "Overridden", p.Name)

	assert.Error(t, c.LoadFile(filepath.Join(dir, "missing.yaml")))
}
