package keyboard

import (
	"sync"
)

// Event is one recorded sink call.
type Event struct {
	Op  string // "hold", "release" or "press"
	Key string
}

// Recorder is a sink for tests. It records every call, tracks held keys
// without deduplicating calls, and can be told to fail.
type Recorder struct {
	mu       sync.Mutex
	events   []Event
	held     map[string]bool
	err      error
	faults   []fault
	failures int
}

// fault is a one-shot failure for one op on one key.
type fault struct {
	op, key string
	err     error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{held: make(map[string]bool)}
}

// SetError makes every following call fail with err until cleared with nil.
func (r *Recorder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// FailNext makes the next op call for key fail with err. Other calls are
// unaffected.
func (r *Recorder) FailNext(op, key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = append(r.faults, fault{op: op, key: key, err: err})
}

func (r *Recorder) record(op, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		r.failures++
		return r.err
	}
	for i, f := range r.faults {
		if f.op == op && f.key == key {
			r.faults = append(r.faults[:i], r.faults[i+1:]...)
			r.failures++
			return f.err
		}
	}

	r.events = append(r.events, Event{Op: op, Key: key})
	switch op {
	case ActionHold:
		r.held[key] = true
	case ActionRelease:
		delete(r.held, key)
	}
	return nil
}

// Hold implements the sink contract.
func (r *Recorder) Hold(key string) error { return r.record(ActionHold, key) }

// Release implements the sink contract.
func (r *Recorder) Release(key string) error { return r.record(ActionRelease, key) }

// Press implements the sink contract.
func (r *Recorder) Press(key string) error { return r.record(ActionPress, key) }

// Events returns a copy of the recorded calls.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many successful op calls were made for key.
func (r *Recorder) Count(op, key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.events {
		if e.Op == op && e.Key == key {
			n++
		}
	}
	return n
}

// IsHeld reports whether key is currently held.
func (r *Recorder) IsHeld(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held[key]
}

// HeldCount returns the number of held keys.
func (r *Recorder) HeldCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held)
}

// Failures returns how many calls failed.
func (r *Recorder) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures
}

// Reset clears recorded events and held keys.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.held = make(map[string]bool)
	r.faults = nil
	r.failures = 0
}
