package emulator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ayusman/posepad/internal/gesture"
)

// ErrUnbound is returned when a logical action has no key binding.
var ErrUnbound = errors.New("action has no key binding")

// Action is a logical action name that key bindings are keyed by.
type Action string

// Logical actions driven by the emulator.
const (
	ActionWalk    Action = "Walk"
	ActionJump    Action = "Jump"
	ActionLeft    Action = "Go left"
	ActionRight   Action = "Go right"
	ActionSprint  Action = "Sprint"
	ActionIndexUp Action = "l-index-up"
	ActionPeace   Action = "l-peace"
	ActionThreeUp Action = "l-three-up"
	ActionFourUp  Action = "l-four-up"
)

// Actions returns every logical action in a stable order.
func Actions() []Action {
	return []Action{ActionWalk, ActionJump, ActionLeft, ActionRight, ActionSprint, ActionIndexUp, ActionPeace, ActionThreeUp, ActionFourUp}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions() {
		if a == known {
			return true
		}
	}
	return false
}

// HandActionFor returns the single-shot action for a hand label. OpenPalm
// drives sprint instead and None never fires.
func HandActionFor(l gesture.Label) (Action, bool) {
	switch l {
	case gesture.IndexUp:
		return ActionIndexUp, true
	case gesture.PeaceSign:
		return ActionPeace, true
	case gesture.ThreeUp:
		return ActionThreeUp, true
	case gesture.FourUp:
		return ActionFourUp, true
	case gesture.OpenPalm, gesture.None:
		return "", false
	default:
		return "", false
	}
}

// Bindings maps logical actions to key identifiers. The engine never
// mutates the map it is given.
type Bindings map[Action]string

// DefaultBindings returns the built-in key layout.
func DefaultBindings() Bindings {
	return Bindings{
		ActionWalk:    "w",
		ActionJump:    "space",
		ActionLeft:    "a",
		ActionRight:   "d",
		ActionSprint:  "ctrl",
		ActionIndexUp: "1",
		ActionPeace:   "2",
		ActionThreeUp: "3",
		ActionFourUp:  "4",
	}
}

// Key returns the key bound to a, or an error wrapping ErrUnbound.
func (b Bindings) Key(a Action) (string, error) {
	key, ok := b[a]
	if !ok || key == "" {
		return "", fmt.Errorf("%w: %q", ErrUnbound, a)
	}
	return key, nil
}

// Merge returns a copy of b with overrides applied. Empty override values
// unbind the action.
func (b Bindings) Merge(overrides map[Action]string) Bindings {
	merged := b.Clone()
	for a, key := range overrides {
		if key == "" {
			delete(merged, a)
			continue
		}
		merged[a] = key
	}
	return merged
}

// Clone returns an independent copy of b.
func (b Bindings) Clone() Bindings {
	c := make(Bindings, len(b))
	for a, key := range b {
		c[a] = key
	}
	return c
}

// Sorted returns the bound actions in name order.
func (b Bindings) Sorted() []Action {
	actions := make([]Action, 0, len(b))
	for a := range b {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}
