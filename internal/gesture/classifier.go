package gesture

import "github.com/ayusman/posepad/internal/detector"

// Observation is everything the emulator needs to know about one frame.
type Observation struct {
	Hand       Label   `json:"hand"`
	HandActive bool    `json:"hand_active"`
	Lean       Lean    `json:"lean"`
	RightLeg   float64 `json:"right_leg"`
	LeftLeg    float64 `json:"left_leg"`
}

// Walking reports whether either leg is raised far enough to walk.
func (o Observation) Walking() bool {
	return o.RightLeg < WalkAngle || o.LeftLeg < WalkAngle
}

// Jumping reports whether both legs are raised far enough to jump.
func (o Observation) Jumping() bool {
	return o.RightLeg < JumpAngle && o.LeftLeg < JumpAngle
}

// Classifier turns a pose frame into an Observation.
type Classifier interface {
	Classify(frame detector.PoseFrame) Observation
}

// RuleClassifier classifies frames with the fixed geometric rules.
type RuleClassifier struct{}

// Classify implements Classifier.
func (RuleClassifier) Classify(frame detector.PoseFrame) Observation {
	return observe(frame, ClassifyHand(frame.Hand))
}

// observe fills the body features around an already classified hand.
func observe(frame detector.PoseFrame, hand Label) Observation {
	right, left := LegAngles(&frame.Body)
	return Observation{
		Hand:       hand,
		HandActive: LeftHandActive(&frame.Body),
		Lean:       LeanDirection(&frame.Body),
		RightLeg:   right,
		LeftLeg:    left,
	}
}
