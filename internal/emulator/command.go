// Package emulator turns a stream of pose frames into keyboard commands.
//
// Each frame is classified into an Observation and fed through five small
// state machines (hand actions, sprint, strafe, walk and jump). The machines
// are pure functions of the observation and the previous Session; the Engine
// applies the commands they emit to a Sink.
package emulator

import "fmt"

// Op is a key command kind.
type Op int

const (
	OpHold Op = iota
	OpRelease
	OpPress
)

func (o Op) String() string {
	switch o {
	case OpHold:
		return "hold"
	case OpRelease:
		return "release"
	case OpPress:
		return "press"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// MarshalText encodes the op by name.
func (o Op) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Command is one key event for a logical action. Key is filled in from the
// bindings when the command is applied.
type Command struct {
	Op     Op     `json:"op"`
	Action Action `json:"action"`
	Key    string `json:"key,omitempty"`
}

func (c Command) String() string {
	if c.Key == "" {
		return fmt.Sprintf("%s %s", c.Op, c.Action)
	}
	return fmt.Sprintf("%s %s (%s)", c.Op, c.Action, c.Key)
}

func hold(a Action) Command { return Command{Op: OpHold, Action: a} }
func release(a Action) Command { return Command{Op: OpRelease, Action: a} }
func press(a Action) Command { return Command{Op: OpPress, Action: a} }

// Sink injects key events. Hold and Release must be idempotent.
type Sink interface {
	Hold(key string) error
	Release(key string) error
	Press(key string) error
}

func apply(s Sink, c Command) error {
	switch c.Op {
	case OpHold:
		return s.Hold(c.Key)
	case OpRelease:
		return s.Release(c.Key)
	case OpPress:
		return s.Press(c.Key)
	default:
		return fmt.Errorf("unknown op %d", int(c.Op))
	}
}
