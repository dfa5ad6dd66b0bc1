// Package keyboard injects key events into the host OS. Every sink keeps
// track of the keys it holds so that Hold and Release are idempotent.
package keyboard

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrEmptyKey is returned when a key identifier is blank.
var ErrEmptyKey = errors.New("empty key")

var aliases = map[string]string{
	"control":  "ctrl",
	"spacebar": "space",
	"return":   "enter",
	"option":   "alt",
	"cmd":      "command",
	"esc":      "escape",
}

// Normalize lower-cases a key name and maps common aliases to the names the
// injection layer understands.
func Normalize(key string) (string, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return "", ErrEmptyKey
	}
	if alias, ok := aliases[k]; ok {
		return alias, nil
	}
	return k, nil
}

// driver performs raw key events without any bookkeeping.
type driver interface {
	down(key string) error
	up(key string) error
	tap(key string) error
}

// tracked wraps a driver with the set of keys it currently holds.
type tracked struct {
	mu   sync.Mutex
	held map[string]bool
	drv  driver
}

// Hold presses key down unless it is already held.
func (t *tracked) Hold(key string) error {
	k, err := Normalize(key)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.held == nil {
		t.held = make(map[string]bool)
	}
	if t.held[k] {
		return nil
	}
	if err := t.drv.down(k); err != nil {
		return err
	}
	t.held[k] = true
	return nil
}

// Release lets key up if it is held.
func (t *tracked) Release(key string) error {
	k, err := Normalize(key)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.held[k] {
		return nil
	}
	if err := t.drv.up(k); err != nil {
		return err
	}
	delete(t.held, k)
	return nil
}

// Press taps key once.
func (t *tracked) Press(key string) error {
	k, err := Normalize(key)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.drv.tap(k)
}

// ReleaseAll lets every held key up and reports all failures.
func (t *tracked) ReleaseAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for k := range t.held {
		if err := t.drv.up(k); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(t.held, k)
	}
	return errors.Join(errs...)
}

// Held returns the held keys in sorted order.
func (t *tracked) Held() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.held))
	for k := range t.held {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
