package emulator

import "github.com/ayusman/posepad/internal/gesture"

// Session is the state carried from one frame to the next. It is owned by
// the engine goroutine.
type Session struct {
	LastHand  gesture.Label
	Sprinting bool
	Strafe    gesture.Lean
	Walk      Decay
}

// NewSession creates a session sized for the camera frame rate.
func NewSession(fps int) Session {
	return Session{Walk: NewDecay(fps)}
}

// Holding returns the actions whose keys the session holds.
func (s Session) Holding() []Action {
	var actions []Action
	if s.Walk.Held() {
		actions = append(actions, ActionWalk)
	}
	if s.Sprinting {
		actions = append(actions, ActionSprint)
	}
	if a, ok := strafeAction(s.Strafe); ok {
		actions = append(actions, a)
	}
	return actions
}

// Snapshot is a read-only view of a Session for status reporting.
type Snapshot struct {
	LastHand   gesture.Label `json:"last_hand"`
	Sprinting  bool          `json:"sprinting"`
	Strafe     gesture.Lean  `json:"strafe"`
	Walking    bool          `json:"walking"`
	WalkTokens int           `json:"walk_tokens"`
	WalkWindow int           `json:"walk_window"`
	Holding    []Action      `json:"holding"`
}

// Snapshot returns a view of s.
func (s Session) Snapshot() Snapshot {
	return Snapshot{
		LastHand:   s.LastHand,
		Sprinting:  s.Sprinting,
		Strafe:     s.Strafe,
		Walking:    s.Walk.Held(),
		WalkTokens: s.Walk.Len(),
		WalkWindow: s.Walk.Capacity(),
		Holding:    s.Holding(),
	}
}
