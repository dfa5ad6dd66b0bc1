package gesture

import "github.com/ayusman/posepad/internal/detector"

// fingers lists the MCP index of each non-thumb finger. PIP, DIP and tip
// follow consecutively.
var fingers = [4]int{detector.IndexMCP, detector.MiddleMCP, detector.RingMCP, detector.PinkyMCP}

// fingerExtended reports whether the finger starting at mcp points away from
// the wrist: its tip lies farther from the wrist than its PIP joint.
func fingerExtended(h *detector.HandLandmarks, mcp int) bool {
	wrist := h.Points[detector.Wrist]
	return detector.Distance2D(h.Points[mcp+3], wrist) > detector.Distance2D(h.Points[mcp+1], wrist)
}

// thumbExtended measures against the pinky knuckle, since a folded thumb
// crosses the palm toward it.
func thumbExtended(h *detector.HandLandmarks) bool {
	anchor := h.Points[detector.PinkyMCP]
	return detector.Distance2D(h.Points[detector.ThumbTip], anchor) >
		detector.Distance2D(h.Points[detector.ThumbIP], anchor)
}

// ClassifyHand maps hand landmarks to a Label. A nil hand is None.
func ClassifyHand(h *detector.HandLandmarks) Label {
	if h == nil {
		return None
	}

	var up [4]bool
	for i, mcp := range fingers {
		up[i] = fingerExtended(h, mcp)
	}
	index, middle, ring, pinky := up[0], up[1], up[2], up[3]

	switch {
	case index && middle && ring && pinky:
		if thumbExtended(h) {
			return OpenPalm
		}
		return FourUp
	case index && middle && ring && !pinky:
		return ThreeUp
	case index && middle && !ring && !pinky:
		return PeaceSign
	case index && !middle && !ring && !pinky:
		return IndexUp
	default:
		return None
	}
}
