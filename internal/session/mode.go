package session

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Mode is the kind of session an application asks for.
type Mode int

const (
	Inline Mode = iota
	ImmersiveVR
	ImmersiveAR
)

var modeNames = map[Mode]string{
	Inline:      "inline",
	ImmersiveVR: "immersive-vr",
	ImmersiveAR: "immersive-ar",
}

var modeFromName = map[string]Mode{
	"inline":       Inline,
	"immersive-vr": ImmersiveVR,
	"immersive-ar": ImmersiveAR,
}

// ParseMode maps a wire name such as "immersive-ar" to a Mode.
func ParseMode(name string) (Mode, error) {
	if m, ok := modeFromName[name]; ok {
		return m, nil
	}
	return Inline, fmt.Errorf("unknown session mode %q", name)
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// Immersive reports whether the mode occupies the whole device output.
func (m Mode) Immersive() bool { return m == ImmersiveVR || m == ImmersiveAR }

func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m *Mode) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseMode(node.Value)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
