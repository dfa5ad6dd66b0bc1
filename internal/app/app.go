// Package app wires the camera, landmark detector and emulator engine into a
// session that can be switched on and off at runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ayusman/posepad/internal/capture"
	"github.com/ayusman/posepad/internal/detector"
	"github.com/ayusman/posepad/internal/emulator"
	"github.com/ayusman/posepad/internal/gesture"
	"github.com/ayusman/posepad/internal/log"
	"github.com/ayusman/posepad/internal/store"
)

// DefaultHandedness is the hand that drives hand actions.
const DefaultHandedness = "Left"

var errNoSink = errors.New("app: sink is required")

// Config holds configuration options for the application.
type Config struct {
	// Store persists bindings, templates and the enabled flag. Optional.
	Store *store.Store

	// Sink receives key commands. Required.
	Sink emulator.Sink

	// Camera defaults to a device camera for CameraID, mirrored when
	// Mirror is set.
	Camera   capture.Camera
	CameraID int
	Mirror   bool

	// FPS is the capture rate. Zero uses capture.DefaultFPS.
	FPS int

	// Detector defaults to MediaPipe, or a mock when MediaPipe is missing.
	Detector detector.Detector

	// Handedness selects the hand that drives hand actions.
	Handedness string

	// MotionThreshold enables the motion gate when positive: frames that
	// changed less than this percentage reuse the previous detection.
	MotionThreshold float64

	QueueSize int
	Logger    *slog.Logger
}

// App runs emulation sessions. A session owns a camera producer goroutine
// and an engine goroutine; disabling ends it and releases every held key.
type App struct {
	config     Config
	camera     capture.Camera
	detector   detector.Detector
	gate       *capture.MotionGate
	matcher    *gesture.StaticMatcher
	classifier gesture.Classifier
	log        *slog.Logger

	// toggle serializes session starts and stops.
	toggle sync.Mutex

	mu        sync.RWMutex
	bindings  emulator.Bindings
	session   *session
	observers []func(emulator.StepResult)
	listeners []func(enabled bool, err error)
}

// session is one enabled period.
type session struct {
	engine *emulator.Engine
	queue  *emulator.Queue
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an App. Bindings are loaded from the store when one is given.
func New(config Config) (*App, error) {
	if config.Sink == nil {
		return nil, errNoSink
	}
	if config.FPS == 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.FPS < 0 {
		return nil, fmt.Errorf("%w: %d", emulator.ErrInvalidFPS, config.FPS)
	}
	if config.Handedness == "" {
		config.Handedness = DefaultHandedness
	}
	if config.QueueSize <= 0 {
		config.QueueSize = emulator.DefaultQueueSize
	}

	a := &App{
		config:   config,
		camera:   config.Camera,
		detector: config.Detector,
		matcher:  gesture.NewStaticMatcher(),
		log:      config.Logger,
		bindings: emulator.DefaultBindings(),
	}
	a.classifier = gesture.NewTemplateClassifier(a.matcher)

	if a.log == nil {
		a.log = log.With("component", "app")
	}
	if a.camera == nil {
		opts := capture.DefaultOptions(config.CameraID)
		opts.Mirror = config.Mirror
		a.camera = capture.NewCameraWithOptions(opts)
	}
	a.camera.SetFPS(config.FPS)

	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
			a.detector = mp
			a.log.Info("using MediaPipe landmark detection")
		} else {
			a.log.Warn("MediaPipe not available, using mock detector", "error", err)
			a.detector = detector.NewMockDetector()
		}
	}

	if config.MotionThreshold > 0 {
		a.gate = capture.NewMotionGate(config.MotionThreshold, 0)
	}

	if config.Store != nil {
		b, err := config.Store.Bindings().Load(emulator.DefaultBindings())
		if err != nil {
			return nil, fmt.Errorf("load bindings: %w", err)
		}
		a.bindings = b
	}

	return a, nil
}

// LoadTemplates fills the template classifier from the store and returns the
// number of templates loaded.
func (a *App) LoadTemplates() (int, error) {
	if a.config.Store == nil {
		return 0, nil
	}

	n, skipped, err := a.config.Store.Templates().LoadInto(a.matcher)
	if err != nil {
		return 0, fmt.Errorf("load templates: %w", err)
	}
	for _, err := range skipped {
		a.log.Warn("template skipped", "error", err)
	}

	a.log.Info("templates loaded", "count", n)
	return n, nil
}

// OnStep registers fn to receive every processed frame of every session.
// It runs on the engine goroutine and must not block.
func (a *App) OnStep(fn func(emulator.StepResult)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
	if a.session != nil {
		a.session.engine.OnStep(fn)
	}
}

// OnStateChange registers fn to be told when emulation is switched on or
// off. err is set when a session ended on its own because of a failure.
func (a *App) OnStateChange(fn func(enabled bool, err error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Enabled reports whether a session is running.
func (a *App) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session != nil
}

// SetEnabled starts or stops emulation. Stopping releases every held key
// before it returns. The choice is remembered in the store.
func (a *App) SetEnabled(enabled bool) error {
	a.toggle.Lock()
	defer a.toggle.Unlock()

	if enabled == a.Enabled() {
		return nil
	}

	var err error
	if enabled {
		err = a.start()
	} else {
		a.stop()
	}
	if err != nil {
		return err
	}

	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetBool(store.SettingEnabled, enabled); err != nil {
			a.log.Warn("failed to save enabled flag", "error", err)
		}
	}

	a.notify(enabled, nil)
	return nil
}

// Session returns a snapshot of the running session, or of a fresh one when
// emulation is off.
func (a *App) Session() emulator.Snapshot {
	a.mu.RLock()
	s := a.session
	a.mu.RUnlock()

	if s == nil {
		return emulator.NewSession(a.config.FPS).Snapshot()
	}
	return s.engine.Session()
}

// Bindings returns a copy of the key bindings new sessions start with.
func (a *App) Bindings() emulator.Bindings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bindings.Clone()
}

// SetBindings replaces the key bindings. A running session is restarted so
// held keys are released under the bindings they were pressed with.
func (a *App) SetBindings(b emulator.Bindings) error {
	a.toggle.Lock()
	defer a.toggle.Unlock()

	a.mu.Lock()
	a.bindings = b.Clone()
	running := a.session != nil
	a.mu.Unlock()

	if !running {
		return nil
	}

	a.log.Info("bindings changed, restarting session")
	a.stop()
	if err := a.start(); err != nil {
		a.notify(false, err)
		return err
	}
	return nil
}

// Matcher returns the template matcher used for hand classification.
func (a *App) Matcher() *gesture.StaticMatcher {
	return a.matcher
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Detector returns the landmark detector.
func (a *App) Detector() detector.Detector {
	return a.detector
}

// Close stops emulation and releases the detector. Unlike SetEnabled(false)
// it leaves the stored enabled flag alone so the next start resumes.
func (a *App) Close() error {
	a.toggle.Lock()
	running := a.Enabled()
	a.stop()
	a.toggle.Unlock()

	if running {
		a.notify(false, nil)
	}
	if a.gate != nil {
		a.gate.Close()
	}
	return a.detector.Close()
}

// start opens the camera and launches a session. Callers hold toggle.
func (a *App) start() error {
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	a.mu.Lock()
	queue := emulator.NewQueue(a.config.QueueSize)
	engine, err := emulator.New(emulator.Options{
		FPS:        a.config.FPS,
		Bindings:   a.bindings,
		Classifier: a.classifier,
		Sink:       a.config.Sink,
		Queue:      queue,
		Logger:     a.log.With("component", "emulator"),
	})
	if err != nil {
		a.mu.Unlock()
		a.camera.Close()
		return err
	}
	for _, fn := range a.observers {
		engine.OnStep(fn)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{engine: engine, queue: queue, cancel: cancel}
	a.session = s
	a.mu.Unlock()

	if a.gate != nil {
		a.gate.Reset()
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		a.produce(ctx, queue)
	}()
	go func() {
		defer s.wg.Done()
		if err := engine.Run(ctx); err != nil {
			cancel()
			go a.abort(s, err)
		}
	}()

	a.log.Info("emulation started", "fps", a.config.FPS, "handedness", a.config.Handedness)
	return nil
}

// stop ends the current session and waits for it. Callers hold toggle.
func (a *App) stop() {
	a.mu.Lock()
	s := a.session
	a.session = nil
	a.mu.Unlock()

	if s == nil {
		return
	}
	a.end(s)
	a.log.Info("emulation stopped")
}

// end shuts a session's goroutines down and closes the camera.
func (a *App) end(s *session) {
	s.cancel()
	s.queue.Close()
	s.wg.Wait()

	if err := a.camera.Close(); err != nil {
		a.log.Warn("error closing camera", "error", err)
	}
}

// abort ends a session that failed on its own.
func (a *App) abort(s *session, err error) {
	a.toggle.Lock()
	defer a.toggle.Unlock()

	a.mu.Lock()
	current := a.session == s
	if current {
		a.session = nil
	}
	a.mu.Unlock()

	if !current {
		return
	}

	a.end(s)
	a.log.Error("emulation stopped after failure", "error", err)
	a.notify(false, err)
}

func (a *App) notify(enabled bool, err error) {
	a.mu.RLock()
	listeners := append(([]func(bool, error))(nil), a.listeners...)
	a.mu.RUnlock()

	for _, fn := range listeners {
		fn(enabled, err)
	}
}
