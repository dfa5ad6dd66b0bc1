package gesture

import (
	"math"

	"github.com/ayusman/posepad/internal/detector"
)

const (
	// WalkAngle is the knee-hip-shoulder angle below which a leg counts as raised.
	WalkAngle = 110.0
	// JumpAngle is the angle both legs must fall below to trigger a jump.
	JumpAngle = 90.0
)

// JointAngle returns the angle at b formed by the segments b-a and b-c, in
// degrees within [0, 180]. Depth is ignored. A degenerate segment yields 180
// so that missing points never read as a bent joint.
func JointAngle(a, b, c detector.Point3D) float64 {
	ax, ay := a.X-b.X, a.Y-b.Y
	cx, cy := c.X-b.X, c.Y-b.Y

	na := math.Hypot(ax, ay)
	nc := math.Hypot(cx, cy)
	if na < 1e-9 || nc < 1e-9 {
		return 180
	}

	cos := (ax*cx + ay*cy) / (na * nc)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// LegAngles returns the knee-hip-shoulder angle for the right and left side.
func LegAngles(body *detector.BodyLandmarks) (right, left float64) {
	p := &body.Points
	right = JointAngle(p[detector.RightKnee], p[detector.RightHip], p[detector.RightShoulder])
	left = JointAngle(p[detector.LeftKnee], p[detector.LeftHip], p[detector.LeftShoulder])
	return right, left
}

// LeanDirection reports which way the head has moved past the hips.
// The directions are in image coordinates.
func LeanDirection(body *detector.BodyLandmarks) Lean {
	p := &body.Points
	nose := p[detector.Nose].X
	lo := math.Min(p[detector.LeftHip].X, p[detector.RightHip].X)
	hi := math.Max(p[detector.LeftHip].X, p[detector.RightHip].X)

	switch {
	case nose < lo:
		return LeanLeft
	case nose > hi:
		return LeanRight
	default:
		return LeanNone
	}
}

// LeftHandActive reports whether the left hand is raised away from the body.
// The wrist must be farther from the left hip than half the nose-to-hip
// distance, which scales with how far the person stands from the camera.
func LeftHandActive(body *detector.BodyLandmarks) bool {
	p := &body.Points
	hip := p[detector.LeftHip]
	torso := detector.Distance2D(p[detector.Nose], hip)
	if torso < 1e-9 {
		return false
	}
	return detector.Distance2D(p[detector.LeftWrist], hip) > 0.5*torso
}
