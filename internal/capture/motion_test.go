package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func newSolidFrame(v float64) gocv.Mat {
	m := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	m.SetTo(gocv.NewScalar(v, v, v, 0))
	return m
}

func TestNewMotionGate(t *testing.T) {
	tests := []struct {
		name        string
		maxSkip     int
		wantMaxSkip int
	}{
		{name: "explicit", maxSkip: 4, wantMaxSkip: 4},
		{name: "zero uses default", maxSkip: 0, wantMaxSkip: DefaultMaxSkip},
		{name: "negative uses default", maxSkip: -1, wantMaxSkip: DefaultMaxSkip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewMotionGate(1.0, tt.maxSkip)
			defer g.Close()

			if g.maxSkip != tt.wantMaxSkip {
				t.Errorf("maxSkip = %d, want %d", g.maxSkip, tt.wantMaxSkip)
			}
			if g.hasRef {
				t.Error("gate should start without a reference")
			}
		})
	}
}

func TestMotionGate_FirstFramePasses(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	g := NewMotionGate(1.0, 0)
	defer g.Close()

	frame := newSolidFrame(0)
	defer frame.Close()

	if ok, _ := g.Changed(&frame); !ok {
		t.Error("first frame should pass")
	}
	if ok, pct := g.Changed(&frame); ok {
		t.Errorf("identical frame should be held back, changed %f%%", pct)
	}
}

func TestMotionGate_MotionPasses(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	g := NewMotionGate(1.0, 0)
	defer g.Close()

	black := newSolidFrame(0)
	defer black.Close()
	white := newSolidFrame(255)
	defer white.Close()

	g.Changed(&black)

	ok, pct := g.Changed(&white)
	if !ok {
		t.Errorf("black to white should pass, changed %f%%", pct)
	}
	if pct < 50 {
		t.Errorf("changePercent = %f, expected > 50%% for black to white", pct)
	}
}

func TestMotionGate_MaxSkipForcesPass(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	g := NewMotionGate(1.0, 2)
	defer g.Close()

	frame := newSolidFrame(0)
	defer frame.Close()

	var passed []bool
	for i := 0; i < 7; i++ {
		ok, _ := g.Changed(&frame)
		passed = append(passed, ok)
	}

	want := []bool{true, false, false, true, false, false, true}
	for i := range want {
		if passed[i] != want[i] {
			t.Fatalf("pass pattern = %v, want %v", passed, want)
		}
	}
}

func TestMotionGate_DriftAccumulates(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	// Each step changes intensity by less than DiffThreshold; only the
	// distance from the reference frame crosses it.
	g := NewMotionGate(1.0, 100)
	defer g.Close()

	steps := []float64{0, 15, 30}
	var results []bool
	for _, v := range steps {
		frame := newSolidFrame(v)
		ok, _ := g.Changed(&frame)
		frame.Close()
		results = append(results, ok)
	}

	if !results[0] || results[1] || !results[2] {
		t.Errorf("pass pattern = %v, want [true false true]", results)
	}
}

func TestMotionGate_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	g := NewMotionGate(1.0, 0)
	defer g.Close()

	frame := newSolidFrame(0)
	defer frame.Close()

	g.Changed(&frame)
	g.Reset()

	if ok, _ := g.Changed(&frame); !ok {
		t.Error("first frame after Reset should pass")
	}
}

func TestMotionGate_NilFrame(t *testing.T) {
	g := NewMotionGate(1.0, 0)
	defer g.Close()

	if ok, _ := g.Changed(nil); ok {
		t.Error("nil frame should not pass")
	}
}

func TestMotionGate_Close_Multiple(t *testing.T) {
	g := NewMotionGate(1.0, 0)

	// Close multiple times should not panic
	g.Close()
	g.Close()
}
