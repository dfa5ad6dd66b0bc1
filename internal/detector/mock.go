package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	result Result
	err    error
	calls  int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result.Hands = hands
}

// SetBody sets the body that will be returned by Detect. Nil clears it.
func (m *MockDetector) SetBody(body *BodyLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result.Body = body
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured result or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return Result{}, m.err
	}
	return m.result, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// ThumbsUpLandmarks returns a preset left hand with the thumb extended upward
// while the other fingers are curled.
func ThumbsUpLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Left",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended upward (pointing up, Y decreases going up)
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.58, Y: 0.65, Z: 0.0}
	landmarks.Points[ThumbIP] = Point3D{X: 0.58, Y: 0.50, Z: 0.0}
	landmarks.Points[ThumbTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.70, Z: -0.02}
	landmarks.Points[IndexPIP] = Point3D{X: 0.55, Y: 0.68, Z: -0.05}
	landmarks.Points[IndexDIP] = Point3D{X: 0.52, Y: 0.70, Z: -0.04}
	landmarks.Points[IndexTip] = Point3D{X: 0.50, Y: 0.72, Z: -0.02}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.68, Z: -0.02}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.66, Z: -0.05}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.47, Y: 0.68, Z: -0.04}
	landmarks.Points[MiddleTip] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}
	landmarks.Points[RingPIP] = Point3D{X: 0.45, Y: 0.68, Z: -0.05}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.70, Z: -0.04}
	landmarks.Points[RingTip] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.40, Y: 0.70, Z: -0.05}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.37, Y: 0.72, Z: -0.04}
	landmarks.Points[PinkyTip] = Point3D{X: 0.35, Y: 0.74, Z: -0.02}

	return landmarks
}

// OpenPalmLandmarks returns a preset left hand with all fingers extended.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Left",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended to the side
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return landmarks
}

// FourUpLandmarks returns an open palm with the thumb folded across the palm.
func FourUpLandmarks() HandLandmarks {
	h := OpenPalmLandmarks()
	foldThumb(&h)
	return h
}

// ThreeUpLandmarks returns index, middle and ring fingers extended.
func ThreeUpLandmarks() HandLandmarks {
	h := FourUpLandmarks()
	foldFinger(&h, PinkyMCP)
	return h
}

// PeaceSignLandmarks returns index and middle fingers extended.
func PeaceSignLandmarks() HandLandmarks {
	h := ThreeUpLandmarks()
	foldFinger(&h, RingMCP)
	return h
}

// IndexUpLandmarks returns only the index finger extended.
func IndexUpLandmarks() HandLandmarks {
	h := PeaceSignLandmarks()
	foldFinger(&h, MiddleMCP)
	return h
}

// foldFinger curls the finger whose MCP index is mcp back toward the wrist.
// PIP, DIP and tip follow the MCP index consecutively.
func foldFinger(h *HandLandmarks, mcp int) {
	base := h.Points[mcp]
	h.Points[mcp+1] = Point3D{X: base.X, Y: base.Y - 0.03, Z: -0.03}
	h.Points[mcp+2] = Point3D{X: base.X, Y: base.Y, Z: -0.04}
	h.Points[mcp+3] = Point3D{X: base.X, Y: base.Y + 0.03, Z: -0.02}
}

func foldThumb(h *HandLandmarks) {
	h.Points[ThumbIP] = Point3D{X: 0.60, Y: 0.66, Z: -0.02}
	h.Points[ThumbTip] = Point3D{X: 0.56, Y: 0.69, Z: -0.03}
}

// StandingPose returns a preset body standing upright, facing the camera,
// with both arms resting at the sides.
func StandingPose() BodyLandmarks {
	var b BodyLandmarks
	b.Score = 0.9

	b.Points[Nose] = Point3D{X: 0.50, Y: 0.20}
	b.Points[LeftShoulder] = Point3D{X: 0.56, Y: 0.35}
	b.Points[RightShoulder] = Point3D{X: 0.44, Y: 0.35}
	b.Points[LeftElbow] = Point3D{X: 0.58, Y: 0.45}
	b.Points[RightElbow] = Point3D{X: 0.42, Y: 0.45}
	b.Points[LeftWrist] = Point3D{X: 0.58, Y: 0.55}
	b.Points[RightWrist] = Point3D{X: 0.42, Y: 0.55}
	b.Points[LeftHip] = Point3D{X: 0.54, Y: 0.60}
	b.Points[RightHip] = Point3D{X: 0.46, Y: 0.60}
	b.Points[LeftKnee] = Point3D{X: 0.54, Y: 0.80}
	b.Points[RightKnee] = Point3D{X: 0.46, Y: 0.80}
	b.Points[LeftAnkle] = Point3D{X: 0.54, Y: 0.95}
	b.Points[RightAnkle] = Point3D{X: 0.46, Y: 0.95}

	syncExtremities(&b)
	return b
}

// StepPose returns a standing body with the right knee raised to the side,
// bending the right hip below the walk threshold but above the jump threshold.
func StepPose() BodyLandmarks {
	b := StandingPose()
	b.Points[RightKnee] = Point3D{X: 0.30, Y: 0.64}
	b.Points[RightAnkle] = Point3D{X: 0.30, Y: 0.80}
	syncExtremities(&b)
	return b
}

// CrouchPose returns a body with both knees pulled up, bending both hips
// below the jump threshold.
func CrouchPose() BodyLandmarks {
	b := StandingPose()
	b.Points[RightKnee] = Point3D{X: 0.30, Y: 0.55}
	b.Points[LeftKnee] = Point3D{X: 0.70, Y: 0.55}
	b.Points[RightAnkle] = Point3D{X: 0.30, Y: 0.75}
	b.Points[LeftAnkle] = Point3D{X: 0.70, Y: 0.75}
	syncExtremities(&b)
	return b
}

// LeanPose returns the body with the head shifted horizontally by dx.
// Negative dx leans toward the left of the image.
func LeanPose(body BodyLandmarks, dx float64) BodyLandmarks {
	for i := Nose; i < LeftShoulder; i++ {
		body.Points[i].X += dx
	}
	return body
}

// WithRaisedLeftHand returns the body with the left arm lifted away from the hip.
func WithRaisedLeftHand(body BodyLandmarks) BodyLandmarks {
	body.Points[LeftElbow] = Point3D{X: 0.62, Y: 0.42}
	body.Points[LeftWrist] = Point3D{X: 0.62, Y: 0.30}
	syncExtremities(&body)
	return body
}

// syncExtremities places the face, hand and foot points that the presets do
// not set explicitly onto their nearest named landmark.
func syncExtremities(b *BodyLandmarks) {
	for i := Nose + 1; i < LeftShoulder; i++ {
		b.Points[i] = b.Points[Nose]
	}
	for _, i := range []int{17, 19, 21} {
		b.Points[i] = b.Points[LeftWrist]
	}
	for _, i := range []int{18, 20, 22} {
		b.Points[i] = b.Points[RightWrist]
	}
	for _, i := range []int{29, 31} {
		b.Points[i] = b.Points[LeftAnkle]
	}
	for _, i := range []int{30, 32} {
		b.Points[i] = b.Points[RightAnkle]
	}
}
