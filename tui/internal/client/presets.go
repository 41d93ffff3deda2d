package client

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is a named headset placement the panel can jump to.
type Preset struct {
	Name     string     `yaml:"name"`
	Position [3]float64 `yaml:"position"`
	Yaw      float64    `yaml:"yaw"` // degrees, counter-clockwise seen from above
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// DefaultPresets are used when no presets file is given.
var DefaultPresets = []Preset{
	{Name: "standing", Position: [3]float64{0, 1.6, 0}},
	{Name: "seated", Position: [3]float64{0, 1.1, 0}},
	{Name: "look left", Position: [3]float64{0, 1.6, 0}, Yaw: 90},
	{Name: "look right", Position: [3]float64{0, 1.6, 0}, Yaw: -90},
	{Name: "step back", Position: [3]float64{0, 1.6, 1}},
}

// LoadPresets reads a YAML presets file. At most nine presets are kept, one
// per number key.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	if len(f.Presets) == 0 {
		return nil, fmt.Errorf("parse presets: %s has no presets", path)
	}
	if len(f.Presets) > 9 {
		f.Presets = f.Presets[:9]
	}
	return f.Presets, nil
}
