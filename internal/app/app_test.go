package app

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/posepad/internal/capture"
	"github.com/ayusman/posepad/internal/detector"
	"github.com/ayusman/posepad/internal/emulator"
	"github.com/ayusman/posepad/internal/keyboard"
	"github.com/ayusman/posepad/internal/log"
	"github.com/ayusman/posepad/internal/store"
)

const testFPS = 200

type harness struct {
	app      *App
	camera   *capture.MockCamera
	detector *detector.MockDetector
	sink     *keyboard.Recorder
}

func newHarness(t *testing.T, s *store.Store) *harness {
	t.Helper()

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })

	h := &harness{
		camera:   capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		detector: detector.NewMockDetector(),
		sink:     keyboard.NewRecorder(),
	}

	app, err := New(Config{
		Store:    s,
		Sink:     h.sink,
		Camera:   h.camera,
		FPS:      testFPS,
		Detector: h.detector,
		Logger:   log.Discard(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { app.Close() })
	h.app = app
	return h
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNew(t *testing.T) {
	t.Run("requires sink", func(t *testing.T) {
		if _, err := New(Config{Camera: capture.NewMockCamera(nil, false)}); !errors.Is(err, errNoSink) {
			t.Errorf("New() error = %v, want %v", err, errNoSink)
		}
	})

	t.Run("rejects negative fps", func(t *testing.T) {
		_, err := New(Config{
			Sink:     keyboard.NewRecorder(),
			Camera:   capture.NewMockCamera(nil, false),
			Detector: detector.NewMockDetector(),
			FPS:      -1,
		})
		if !errors.Is(err, emulator.ErrInvalidFPS) {
			t.Errorf("New() error = %v, want %v", err, emulator.ErrInvalidFPS)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		camera := capture.NewMockCamera(nil, false)
		camera.SetFPS(5)

		app, err := New(Config{
			Sink:     keyboard.NewRecorder(),
			Camera:   camera,
			Detector: detector.NewMockDetector(),
			Logger:   log.Discard(),
		})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		if app.config.Handedness != DefaultHandedness {
			t.Errorf("Handedness = %q, want %q", app.config.Handedness, DefaultHandedness)
		}
		if camera.FPS() != capture.DefaultFPS {
			t.Errorf("camera FPS = %d, want %d", camera.FPS(), capture.DefaultFPS)
		}
		if app.config.QueueSize != emulator.DefaultQueueSize {
			t.Errorf("QueueSize = %d, want %d", app.config.QueueSize, emulator.DefaultQueueSize)
		}
		if app.gate != nil {
			t.Error("motion gate should be off without a threshold")
		}
		if app.Enabled() {
			t.Error("app should start disabled")
		}
	})

	t.Run("loads bindings from store", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.Bindings().Set(emulator.ActionJump, "x"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		h := newHarness(t, s)
		b := h.app.Bindings()
		if b[emulator.ActionJump] != "x" {
			t.Errorf("Jump = %q, want %q", b[emulator.ActionJump], "x")
		}
		if b[emulator.ActionWalk] != "w" {
			t.Errorf("Walk = %q, want default %q", b[emulator.ActionWalk], "w")
		}
	})
}

func TestApp_WalkHeldAndReleasedOnDisable(t *testing.T) {
	h := newHarness(t, nil)
	body := detector.StepPose()
	h.detector.SetBody(&body)

	if err := h.app.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	if !h.camera.IsOpen() {
		t.Error("camera should be open while enabled")
	}

	waitFor(t, "walk key held", func() bool { return h.sink.IsHeld("w") })

	snap := h.app.Session()
	if !snap.Walking {
		t.Error("session should report walking")
	}

	if err := h.app.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled(false) error = %v", err)
	}
	if h.sink.IsHeld("w") {
		t.Error("walk key should be released on disable")
	}
	if n := h.sink.HeldCount(); n != 0 {
		t.Errorf("HeldCount() = %d after disable, want 0", n)
	}
	if h.camera.IsOpen() {
		t.Error("camera should be closed after disable")
	}
	if h.app.Enabled() {
		t.Error("Enabled() should be false")
	}
}

func TestApp_SetEnabled_Idempotent(t *testing.T) {
	h := newHarness(t, nil)

	for i := 0; i < 2; i++ {
		if err := h.app.SetEnabled(true); err != nil {
			t.Fatalf("SetEnabled(true) error = %v", err)
		}
	}
	if got := h.camera.Opens(); got != 1 {
		t.Errorf("camera opened %d times, want 1", got)
	}

	for i := 0; i < 2; i++ {
		if err := h.app.SetEnabled(false); err != nil {
			t.Fatalf("SetEnabled(false) error = %v", err)
		}
	}
}

func TestApp_HandPressedOnce(t *testing.T) {
	h := newHarness(t, nil)
	body := detector.WithRaisedLeftHand(detector.StandingPose())
	h.detector.SetBody(&body)
	h.detector.SetHands([]detector.HandLandmarks{detector.PeaceSignLandmarks()})

	var steps atomic.Int64
	h.app.OnStep(func(emulator.StepResult) { steps.Add(1) })

	if err := h.app.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}

	waitFor(t, "peace sign press", func() bool {
		return h.sink.Count(keyboard.ActionPress, "2") > 0
	})
	start := steps.Load()
	waitFor(t, "more frames", func() bool { return steps.Load() > start+5 })

	if got := h.sink.Count(keyboard.ActionPress, "2"); got != 1 {
		t.Errorf("peace sign pressed %d times while held, want 1", got)
	}
}

func TestApp_LoadTemplates(t *testing.T) {
	s := newTestStore(t)

	hand := detector.PeaceSignLandmarks()
	tmpl := &store.Template{ID: "t1", Name: "my_four", Label: "four_fingers_up", Tolerance: 0.5}
	if err := s.Templates().Create(tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Templates().SetLandmarks(tmpl.ID, hand.Normalize().Points[:]); err != nil {
		t.Fatalf("SetLandmarks() error = %v", err)
	}
	// Without landmarks this one is skipped.
	if err := s.Templates().Create(&store.Template{ID: "t2", Name: "empty", Label: "peace_sign"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	h := newHarness(t, s)
	n, err := h.app.LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}
	if n != 1 {
		t.Errorf("LoadTemplates() = %d, want 1", n)
	}
	if got := h.app.Matcher().Len(); got != 1 {
		t.Errorf("Matcher().Len() = %d, want 1", got)
	}

	// The trained template relabels the peace sign.
	body := detector.WithRaisedLeftHand(detector.StandingPose())
	h.detector.SetBody(&body)
	h.detector.SetHands([]detector.HandLandmarks{hand})

	if err := h.app.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	waitFor(t, "template press", func() bool {
		return h.sink.Count(keyboard.ActionPress, "4") > 0
	})
	if got := h.sink.Count(keyboard.ActionPress, "2"); got != 0 {
		t.Errorf("rule label pressed %d times, want 0", got)
	}
}

func TestApp_LoadTemplates_NoStore(t *testing.T) {
	h := newHarness(t, nil)
	n, err := h.app.LoadTemplates()
	if err != nil || n != 0 {
		t.Errorf("LoadTemplates() = %d, %v, want 0, nil", n, err)
	}
}

func TestApp_SinkFailureDisables(t *testing.T) {
	h := newHarness(t, nil)
	body := detector.CrouchPose()
	h.detector.SetBody(&body)
	h.sink.SetError(errors.New("injection denied"))

	type change struct {
		enabled bool
		err     error
	}
	changes := make(chan change, 4)
	h.app.OnStateChange(func(enabled bool, err error) {
		changes <- change{enabled, err}
	})

	if err := h.app.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}

	if c := <-changes; !c.enabled || c.err != nil {
		t.Fatalf("first change = %+v, want enabled without error", c)
	}

	select {
	case c := <-changes:
		if c.enabled {
			t.Error("expected emulation to be switched off")
		}
		if !errors.Is(c.err, emulator.ErrSinkFailed) {
			t.Errorf("err = %v, want %v", c.err, emulator.ErrSinkFailed)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for sink failure")
	}

	if h.app.Enabled() {
		t.Error("app should be disabled after sink failure")
	}
	if h.camera.IsOpen() {
		t.Error("camera should be closed after sink failure")
	}
	if h.sink.Failures() < emulator.DefaultMaxSinkFailures {
		t.Errorf("Failures() = %d, want at least %d", h.sink.Failures(), emulator.DefaultMaxSinkFailures)
	}

	// Emulation can be restarted once the sink recovers.
	h.sink.SetError(nil)
	if err := h.app.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) after failure error = %v", err)
	}
	waitFor(t, "jump press", func() bool {
		return h.sink.Count(keyboard.ActionPress, "space") > 0
	})
}

func TestApp_SetBindingsRestartsSession(t *testing.T) {
	h := newHarness(t, nil)

	b := emulator.DefaultBindings()
	b[emulator.ActionWalk] = "up"

	t.Run("disabled", func(t *testing.T) {
		if err := h.app.SetBindings(b); err != nil {
			t.Fatalf("SetBindings() error = %v", err)
		}
		if h.camera.Opens() != 0 {
			t.Error("SetBindings should not start a session")
		}
		if got := h.app.Bindings()[emulator.ActionWalk]; got != "up" {
			t.Errorf("Walk = %q, want %q", got, "up")
		}
	})

	t.Run("running", func(t *testing.T) {
		body := detector.StepPose()
		h.detector.SetBody(&body)

		if err := h.app.SetEnabled(true); err != nil {
			t.Fatalf("SetEnabled(true) error = %v", err)
		}
		waitFor(t, "walk held on up", func() bool { return h.sink.IsHeld("up") })

		next := emulator.DefaultBindings()
		if err := h.app.SetBindings(next); err != nil {
			t.Fatalf("SetBindings() error = %v", err)
		}
		if h.sink.IsHeld("up") {
			t.Error("old walk key should be released on restart")
		}
		if !h.app.Enabled() {
			t.Error("session should keep running after a bindings change")
		}
		waitFor(t, "walk held on w", func() bool { return h.sink.IsHeld("w") })

		if got := h.camera.Opens(); got != 2 {
			t.Errorf("camera opened %d times, want 2", got)
		}
	})
}

func TestApp_SetBindings_CopiesInput(t *testing.T) {
	h := newHarness(t, nil)

	b := emulator.DefaultBindings()
	if err := h.app.SetBindings(b); err != nil {
		t.Fatalf("SetBindings() error = %v", err)
	}
	b[emulator.ActionWalk] = "z"

	if got := h.app.Bindings()[emulator.ActionWalk]; got != "w" {
		t.Errorf("Walk = %q, want %q", got, "w")
	}
}

func TestApp_Session(t *testing.T) {
	h := newHarness(t, nil)

	snap := h.app.Session()
	if snap.WalkWindow != testFPS/2 {
		t.Errorf("WalkWindow = %d, want %d", snap.WalkWindow, testFPS/2)
	}
	if snap.Walking || snap.Sprinting || len(snap.Holding) != 0 {
		t.Errorf("disabled session should be idle, got %+v", snap)
	}
}

func TestApp_OnStep(t *testing.T) {
	h := newHarness(t, nil)
	body := detector.StandingPose()
	h.detector.SetBody(&body)

	if err := h.app.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}

	// Observers added while running are attached to the live engine.
	var steps atomic.Int64
	h.app.OnStep(func(emulator.StepResult) { steps.Add(1) })

	waitFor(t, "step observer", func() bool { return steps.Load() > 0 })
}

func TestApp_NoBodySkipsFrames(t *testing.T) {
	h := newHarness(t, nil)
	h.detector.SetHands([]detector.HandLandmarks{detector.PeaceSignLandmarks()})

	var steps atomic.Int64
	h.app.OnStep(func(emulator.StepResult) { steps.Add(1) })

	if err := h.app.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	waitFor(t, "detections", func() bool { return h.detector.Calls() > 5 })

	if n := steps.Load(); n != 0 {
		t.Errorf("engine processed %d frames without a body, want 0", n)
	}
	if n := len(h.sink.Events()); n != 0 {
		t.Errorf("sink received %d events, want 0", n)
	}
}

func TestApp_DetectorErrorKeepsRunning(t *testing.T) {
	h := newHarness(t, nil)
	h.detector.SetError(errors.New("model crashed"))

	if err := h.app.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	waitFor(t, "detections", func() bool { return h.detector.Calls() > 3 })

	if !h.app.Enabled() {
		t.Error("detector errors should not end the session")
	}

	body := detector.StepPose()
	h.detector.SetBody(&body)
	h.detector.SetError(nil)
	waitFor(t, "walk after recovery", func() bool { return h.sink.IsHeld("w") })
}

func TestApp_PersistsEnabledFlag(t *testing.T) {
	s := newTestStore(t)
	h := newHarness(t, s)

	if err := h.app.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	if on, err := s.Settings().Bool(store.SettingEnabled, false); err != nil || !on {
		t.Errorf("stored enabled = %v, %v, want true", on, err)
	}

	// Shutting down keeps the flag so the next run resumes.
	if err := h.app.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if on, err := s.Settings().Bool(store.SettingEnabled, false); err != nil || !on {
		t.Errorf("stored enabled = %v, %v after Close, want true", on, err)
	}
	if h.app.Enabled() {
		t.Error("Close should stop emulation")
	}

	if err := h.app.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	if err := h.app.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled(false) error = %v", err)
	}
	if on, err := s.Settings().Bool(store.SettingEnabled, true); err != nil || on {
		t.Errorf("stored enabled = %v, %v, want false", on, err)
	}
}

func TestApp_MotionGateReusesDetection(t *testing.T) {
	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	mock := detector.NewMockDetector()
	body := detector.StandingPose()
	mock.SetBody(&body)

	app, err := New(Config{
		Sink:            keyboard.NewRecorder(),
		Camera:          capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		FPS:             testFPS,
		Detector:        mock,
		MotionThreshold: 1.0,
		Logger:          log.Discard(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	var last detector.Result
	have := false
	for i := 0; i < 3; i++ {
		last, err = app.detect(&frame, last, have)
		if err != nil {
			t.Fatalf("detect() error = %v", err)
		}
		have = true
	}

	// Identical frames only reach the detector once.
	if got := mock.Calls(); got != 1 {
		t.Errorf("detector called %d times, want 1", got)
	}
	if last.Body == nil {
		t.Error("reused result should keep the body")
	}
}
