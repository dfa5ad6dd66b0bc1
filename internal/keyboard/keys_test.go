package keyboard

import (
	"errors"
	"reflect"
	"testing"
)

type fakeDriver struct {
	calls []string
	err   error
}

func (d *fakeDriver) do(op, key string) error {
	if d.err != nil {
		return d.err
	}
	d.calls = append(d.calls, op+":"+key)
	return nil
}

func (d *fakeDriver) down(key string) error { return d.do("down", key) }
func (d *fakeDriver) up(key string) error { return d.do("up", key) }
func (d *fakeDriver) tap(key string) error { return d.do("tap", key) }

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"W":        "w",
		" space ":  "space",
		"Control":  "ctrl",
		"spacebar": "space",
		"Return":   "enter",
		"option":   "alt",
		"cmd":      "command",
		"esc":      "escape",
		"shift":    "shift",
		"F5":       "f5",
	}

	for in, want := range tests {
		got, err := Normalize(in)
		if err != nil {
			t.Errorf("Normalize(%q) error = %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := Normalize("  "); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
}

func TestTracked_Idempotent(t *testing.T) {
	drv := &fakeDriver{}
	sink := &tracked{drv: drv}

	steps := []func() error{
		func() error { return sink.Hold("W") },
		func() error { return sink.Hold("w") },
		func() error { return sink.Release("w") },
		func() error { return sink.Release("w") },
		func() error { return sink.Press("space") },
		func() error { return sink.Press("space") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	want := []string{"down:w", "up:w", "tap:space", "tap:space"}
	if !reflect.DeepEqual(drv.calls, want) {
		t.Errorf("driver calls = %v, want %v", drv.calls, want)
	}
}

func TestTracked_FailedHoldIsNotHeld(t *testing.T) {
	drv := &fakeDriver{err: errors.New("no display")}
	sink := &tracked{drv: drv}

	if err := sink.Hold("ctrl"); err == nil {
		t.Fatal("expected error")
	}
	if len(sink.Held()) != 0 {
		t.Errorf("failed hold should not be tracked, got %v", sink.Held())
	}

	drv.err = nil
	if err := sink.Hold("ctrl"); err != nil {
		t.Fatalf("Hold() error = %v", err)
	}
	if !reflect.DeepEqual(sink.Held(), []string{"ctrl"}) {
		t.Errorf("Held() = %v", sink.Held())
	}
}

func TestTracked_ReleaseAll(t *testing.T) {
	drv := &fakeDriver{}
	sink := &tracked{drv: drv}

	sink.Hold("d")
	sink.Hold("w")
	sink.Hold("ctrl")

	if got := sink.Held(); !reflect.DeepEqual(got, []string{"ctrl", "d", "w"}) {
		t.Fatalf("Held() = %v", got)
	}

	if err := sink.ReleaseAll(); err != nil {
		t.Fatalf("ReleaseAll() error = %v", err)
	}
	if len(sink.Held()) != 0 {
		t.Errorf("expected no held keys, got %v", sink.Held())
	}
	if len(drv.calls) != 6 {
		t.Errorf("expected 3 downs and 3 ups, got %v", drv.calls)
	}
}

func TestTracked_EmptyKey(t *testing.T) {
	sink := &tracked{drv: &fakeDriver{}}

	for name, call := range map[string]func(string) error{
		"hold":    sink.Hold,
		"release": sink.Release,
		"press":   sink.Press,
	} {
		if err := call(""); !errors.Is(err, ErrEmptyKey) {
			t.Errorf("%s: expected ErrEmptyKey, got %v", name, err)
		}
	}
}

func TestRobot_ImplementsSink(t *testing.T) {
	var _ interface {
		Hold(string) error
		Release(string) error
		Press(string) error
	} = NewRobot()
}
