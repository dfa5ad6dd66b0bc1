// Package gesture classifies hand shapes and body posture from detected landmarks.
package gesture

import "strings"

// Label is the closed set of hand shapes the emulator reacts to.
type Label int

const (
	// None means no hand was seen or its shape is not recognized.
	None Label = iota
	OpenPalm
	IndexUp
	PeaceSign
	ThreeUp
	FourUp
)

var labelNames = [...]string{
	None:      "none",
	OpenPalm:  "open_palm",
	IndexUp:   "index_finger_up",
	PeaceSign: "peace_sign",
	ThreeUp:   "three_fingers_up",
	FourUp:    "four_fingers_up",
}

// Labels returns every recognizable label, excluding None.
func Labels() []Label {
	return []Label{OpenPalm, IndexUp, PeaceSign, ThreeUp, FourUp}
}

func (l Label) String() string {
	if l < 0 || int(l) >= len(labelNames) {
		return labelNames[None]
	}
	return labelNames[l]
}

// MarshalText encodes the label by name so it reads well in JSON.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// ParseLabel maps a label name back to its Label. Unknown names yield None
// and false.
func ParseLabel(s string) (Label, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range labelNames {
		if name == s {
			return Label(i), true
		}
	}
	return None, false
}

// Lean is the lateral lean direction of the upper body.
type Lean int

const (
	LeanNone Lean = iota
	LeanLeft
	LeanRight
)

func (l Lean) String() string {
	switch l {
	case LeanLeft:
		return "left"
	case LeanRight:
		return "right"
	default:
		return "none"
	}
}

// MarshalText encodes the lean by name.
func (l Lean) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}
