package emulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/posepad/internal/detector"
	"github.com/ayusman/posepad/internal/gesture"
	"github.com/ayusman/posepad/internal/log"
)

const (
	// DefaultPopTimeout bounds how long the engine waits for a frame before
	// checking for cancellation again.
	DefaultPopTimeout = time.Second

	// DefaultMaxSinkFailures is the number of consecutive sink failures that
	// end a session.
	DefaultMaxSinkFailures = 3
)

var (
	// ErrSinkFailed is returned by Run when the sink keeps failing.
	ErrSinkFailed = errors.New("key sink failed")

	// ErrRunning is returned by Run when the engine is already running.
	ErrRunning = errors.New("engine already running")

	// ErrInvalidFPS is returned by New for a non-positive frame rate.
	ErrInvalidFPS = errors.New("fps must be positive")

	errNoSink = errors.New("sink is required")
)

// Options configures an Engine.
type Options struct {
	// FPS is the camera frame rate. It sizes the walk decay window.
	FPS int

	// Bindings maps actions to keys. Nil uses DefaultBindings. The engine
	// keeps its own copy.
	Bindings Bindings

	// Classifier turns frames into observations. Nil uses the rule classifier.
	Classifier gesture.Classifier

	// Sink receives key commands. Required.
	Sink Sink

	// Queue delivers frames to Run. Nil creates one of DefaultQueueSize.
	Queue *Queue

	PopTimeout      time.Duration
	MaxSinkFailures int
	Logger          *slog.Logger
}

// StepResult describes one processed frame.
type StepResult struct {
	Timestamp   time.Time           `json:"timestamp"`
	Observation gesture.Observation `json:"observation"`
	Commands    []Command           `json:"commands,omitempty"`
	Session     Snapshot            `json:"session"`
}

// Engine runs the per-frame state machines against a key sink.
type Engine struct {
	fps             int
	bindings        Bindings
	classifier      gesture.Classifier
	sink            Sink
	queue           *Queue
	popTimeout      time.Duration
	maxSinkFailures int
	log             *slog.Logger

	running  atomic.Bool
	failures int
	// owed holds actions whose key state is unknown after a sink failure.
	owed map[Action]bool

	mu      sync.Mutex
	session Session

	obsMu     sync.RWMutex
	observers []func(StepResult)
}

// New creates an Engine from opts.
func New(opts Options) (*Engine, error) {
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFPS, opts.FPS)
	}
	if opts.Sink == nil {
		return nil, errNoSink
	}

	e := &Engine{
		fps:             opts.FPS,
		bindings:        opts.Bindings.Clone(),
		classifier:      opts.Classifier,
		sink:            opts.Sink,
		queue:           opts.Queue,
		popTimeout:      opts.PopTimeout,
		maxSinkFailures: opts.MaxSinkFailures,
		log:             opts.Logger,
		session:         NewSession(opts.FPS),
		owed:            make(map[Action]bool),
	}

	if opts.Bindings == nil {
		e.bindings = DefaultBindings()
	}
	if e.classifier == nil {
		e.classifier = gesture.RuleClassifier{}
	}
	if e.queue == nil {
		e.queue = NewQueue(DefaultQueueSize)
	}
	if e.popTimeout <= 0 {
		e.popTimeout = DefaultPopTimeout
	}
	if e.maxSinkFailures <= 0 {
		e.maxSinkFailures = DefaultMaxSinkFailures
	}
	if e.log == nil {
		e.log = log.With("component", "emulator")
	}

	for _, a := range Actions() {
		if _, err := e.bindings.Key(a); err != nil {
			e.log.Warn("action is not bound, it will be skipped", "action", a)
		}
	}

	return e, nil
}

// Queue returns the frame queue Run reads from.
func (e *Engine) Queue() *Queue {
	return e.queue
}

// Bindings returns a copy of the engine's key bindings.
func (e *Engine) Bindings() Bindings {
	return e.bindings.Clone()
}

// OnStep registers fn to be called after every processed frame. Observers
// run on the engine goroutine and must not block.
func (e *Engine) OnStep(fn func(StepResult)) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, fn)
}

// Session returns a snapshot of the current session.
func (e *Engine) Session() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Snapshot()
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run processes frames from the queue until ctx is canceled or the queue is
// closed, in which case it returns nil. It returns an error wrapping
// ErrSinkFailed when the sink fails MaxSinkFailures times in a row. Every
// key the session holds is released before Run returns, including on panic.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer e.running.Store(false)

	e.reset()
	defer e.releaseAll()

	e.log.Info("engine started", "fps", e.fps, "walk_window", NewDecay(e.fps).Capacity())

	for {
		if ctx.Err() != nil {
			e.log.Info("engine stopped")
			return nil
		}

		frame, err := e.queue.Pop(ctx, e.popTimeout)
		switch {
		case err == nil:
		case errors.Is(err, ErrQueueEmpty):
			continue
		case errors.Is(err, ErrQueueClosed):
			e.log.Info("frame queue closed, engine stopped")
			return nil
		default:
			// Context done while waiting.
			continue
		}

		if _, err := e.Step(frame); err != nil {
			e.log.Error("engine aborted", "error", err)
			return err
		}
	}
}

// Step runs one frame through the state machines and applies the resulting
// commands. A machine's state only moves past the commands the sink
// accepted, so a rejected hold or release is retried on a later frame. It
// must not be called concurrently with itself or Run's loop.
func (e *Engine) Step(frame detector.PoseFrame) (StepResult, error) {
	obs := e.classifier.Classify(frame)

	e.mu.Lock()
	s := e.session
	e.mu.Unlock()

	applied, err := e.advance(&s, obs)
	s.LastHand = obs.Hand

	e.mu.Lock()
	e.session = s
	e.mu.Unlock()

	result := StepResult{
		Timestamp:   frame.Timestamp,
		Observation: obs,
		Commands:    applied,
		Session:     s.Snapshot(),
	}
	if len(applied) > 0 {
		e.log.Debug("frame applied", "hand", obs.Hand, "lean", obs.Lean, "commands", applied)
	}
	e.notify(result)

	return result, err
}

// advance runs the machines in order against s and returns the commands that
// reached the sink.
func (e *Engine) advance(s *Session, obs gesture.Observation) ([]Command, error) {
	var applied []Command
	send := func(cmds []Command) ([]Command, error) {
		done, err := e.send(cmds)
		for _, c := range done {
			if c.Key != "" {
				applied = append(applied, c)
			}
		}
		return done, err
	}

	if obs.HandActive {
		if _, err := send(HandAction(obs.Hand, s.LastHand)); err != nil {
			return applied, err
		}
		_, cmds := Sprint(obs.Hand, s.Sprinting)
		done, err := send(cmds)
		s.Sprinting = heldAfter(s.Sprinting, done)
		if err != nil {
			return applied, err
		}
	}

	_, cmds := Strafe(obs.Lean, s.Strafe)
	done, err := send(cmds)
	s.Strafe = strafeAfter(s.Strafe, done)
	if err != nil {
		return applied, err
	}

	walk, cmds := Walk(s.Walk, obs.Walking())
	done, err = send(cmds)
	walk.held = heldAfter(s.Walk.held, done)
	s.Walk = walk
	if err != nil {
		return applied, err
	}

	_, err = send(Jump(obs))
	return applied, err
}

// heldAfter reports whether a key is down once done ran, given its state
// before.
func heldAfter(held bool, done []Command) bool {
	for _, c := range done {
		switch c.Op {
		case OpHold:
			held = true
		case OpRelease:
			held = false
		}
	}
	return held
}

// strafeAfter is the strafe direction once done ran from lean.
func strafeAfter(lean gesture.Lean, done []Command) gesture.Lean {
	for _, c := range done {
		switch {
		case c.Op == OpRelease:
			lean = gesture.LeanNone
		case c.Op == OpHold && c.Action == ActionLeft:
			lean = gesture.LeanLeft
		case c.Op == OpHold && c.Action == ActionRight:
			lean = gesture.LeanRight
		}
	}
	return lean
}

// send applies cmds in order and stops at the first one the sink rejects, so
// a strafe hold never goes out after its release failed. Unbound actions
// count as done with an empty Key. A rejected hold or release marks its
// action as owing a release at shutdown. Only a run of MaxSinkFailures
// failures is an error.
func (e *Engine) send(cmds []Command) ([]Command, error) {
	var done []Command
	for _, cmd := range cmds {
		key, err := e.bindings.Key(cmd.Action)
		if err != nil {
			e.log.Warn("skipping command", "op", cmd.Op, "action", cmd.Action, "error", err)
			done = append(done, cmd)
			continue
		}
		cmd.Key = key

		if err := apply(e.sink, cmd); err != nil {
			e.failures++
			if cmd.Op != OpPress {
				e.owed[cmd.Action] = true
			}
			e.log.Error("key sink failed", "op", cmd.Op, "key", key, "failures", e.failures, "error", err)
			if e.failures >= e.maxSinkFailures {
				return done, fmt.Errorf("%w after %d consecutive failures: %w", ErrSinkFailed, e.failures, err)
			}
			return done, nil
		}
		e.failures = 0
		if cmd.Op != OpPress {
			delete(e.owed, cmd.Action)
		}
		done = append(done, cmd)
	}
	return done, nil
}

func (e *Engine) notify(result StepResult) {
	e.obsMu.RLock()
	defer e.obsMu.RUnlock()
	for _, fn := range e.observers {
		fn(result)
	}
}

func (e *Engine) reset() {
	e.mu.Lock()
	e.session = NewSession(e.fps)
	e.mu.Unlock()
	e.failures = 0
	e.owed = make(map[Action]bool)
}

// releaseAll lets go of every key the session holds and every key whose last
// hold or release the sink rejected. Failures are logged and do not stop the
// remaining releases.
func (e *Engine) releaseAll() {
	e.mu.Lock()
	held := e.session.Holding()
	e.session = NewSession(e.fps)
	e.mu.Unlock()

	owed := e.owed
	e.owed = make(map[Action]bool)
	for _, a := range held {
		owed[a] = true
	}

	for _, a := range Actions() {
		if !owed[a] {
			continue
		}
		key, err := e.bindings.Key(a)
		if err != nil {
			continue
		}
		if err := e.sink.Release(key); err != nil {
			e.log.Error("release on shutdown failed", "action", a, "key", key, "error", err)
			continue
		}
		e.log.Debug("released on shutdown", "action", a, "key", key)
	}
}
