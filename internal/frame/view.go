package frame

import "fmt"

// Eye selects one of the two views. Mono frames report the same matrices
// for both.
type Eye int

const (
	Left Eye = iota
	Right
)

func (e Eye) String() string {
	if e == Right {
		return "right"
	}
	return "left"
}

// ParseEye accepts "left", "right", and "none" (treated as left).
func ParseEye(s string) (Eye, error) {
	switch s {
	case "left", "none", "":
		return Left, nil
	case "right":
		return Right, nil
	}
	return Left, fmt.Errorf("unknown eye %q", s)
}

// Viewport is a pixel rectangle of the presentation surface.
type Viewport struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}
