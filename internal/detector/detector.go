package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for landmark detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand and body landmarks.
	// A frame without a person yields an empty Result, not an error.
	Detect(frame *gocv.Mat) (Result, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Result holds everything detected in a single camera frame.
type Result struct {
	Hands []HandLandmarks `json:"hands"`
	Body  *BodyLandmarks  `json:"body,omitempty"`
}

// PoseFrame is one sampled snapshot of body and hand landmarks, as carried
// from the frame source to the emulator. It is not modified once built.
type PoseFrame struct {
	// Hand is the tracked hand, or nil when it was not visible.
	Hand      *HandLandmarks
	Body      BodyLandmarks
	Timestamp time.Time
}

// Frame builds a PoseFrame from the result, picking the first hand with the
// given handedness. It returns false when no body was detected, since every
// downstream feature needs body landmarks.
func (r Result) Frame(handedness string, ts time.Time) (PoseFrame, bool) {
	if r.Body == nil {
		return PoseFrame{}, false
	}

	frame := PoseFrame{
		Body:      *r.Body,
		Timestamp: ts,
	}

	for i := range r.Hands {
		if r.Hands[i].Handedness == handedness {
			hand := r.Hands[i]
			frame.Hand = &hand
			break
		}
	}

	return frame, true
}

// Config holds configuration options for landmark detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// IdleTimeout shuts the detection backend down after this long without frames.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		IdleTimeout:     30 * time.Second,
	}
}
