package emulator

import "github.com/ayusman/posepad/internal/gesture"

// HandAction fires the single-shot action for current when the hand shape
// changed since the previous frame.
func HandAction(current, previous gesture.Label) []Command {
	if current == previous || current == gesture.None {
		return nil
	}
	action, ok := HandActionFor(current)
	if !ok {
		return nil
	}
	return []Command{press(action)}
}

// Sprint holds the sprint key for as long as the palm is open.
func Sprint(current gesture.Label, sprinting bool) (bool, []Command) {
	if current == gesture.OpenPalm {
		if sprinting {
			return true, nil
		}
		return true, []Command{hold(ActionSprint)}
	}
	if sprinting {
		return false, []Command{release(ActionSprint)}
	}
	return false, nil
}

func strafeAction(l gesture.Lean) (Action, bool) {
	switch l {
	case gesture.LeanLeft:
		return ActionLeft, true
	case gesture.LeanRight:
		return ActionRight, true
	case gesture.LeanNone:
		return "", false
	default:
		return "", false
	}
}

// Strafe follows the lean direction. The held key is always released before
// another is held so the two directions are never down together. Returning to
// no lean releases the held key.
func Strafe(lean, previous gesture.Lean) (gesture.Lean, []Command) {
	if lean == previous {
		return previous, nil
	}

	var cmds []Command
	if old, ok := strafeAction(previous); ok {
		cmds = append(cmds, release(old))
	}
	if next, ok := strafeAction(lean); ok {
		cmds = append(cmds, hold(next))
		return lean, cmds
	}
	return gesture.LeanNone, cmds
}

// Walk holds the walk key while a leg is raised and for the decay window
// after. A qualifying frame refills the window; every frame consumes one
// token, and finding the window already empty releases the key.
func Walk(d Decay, qualifies bool) (Decay, []Command) {
	var cmds []Command
	if qualifies {
		d.Refill()
		if !d.held {
			d.held = true
			cmds = append(cmds, hold(ActionWalk))
		}
	}
	if !d.Pop() && d.held {
		d.held = false
		cmds = append(cmds, release(ActionWalk))
	}
	return d, cmds
}

// Jump presses the jump key on every frame with both legs raised high.
func Jump(obs gesture.Observation) []Command {
	if obs.Jumping() {
		return []Command{press(ActionJump)}
	}
	return nil
}
