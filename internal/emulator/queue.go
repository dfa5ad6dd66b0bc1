package emulator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/posepad/internal/detector"
)

var (
	// ErrQueueEmpty is returned by Pop when no frame arrived before the timeout.
	ErrQueueEmpty = errors.New("frame queue empty")

	// ErrQueueClosed is returned once the queue is closed and drained.
	ErrQueueClosed = errors.New("frame queue closed")
)

// DefaultQueueSize is the frame queue capacity used when none is given.
const DefaultQueueSize = 8

// Queue is a bounded FIFO of pose frames between any number of producers and
// the engine. PushWait blocks while the queue is full, so every frame it
// accepts reaches the engine. Push never blocks and discards the oldest frame
// instead; the walk window counts processed frames, so each discarded frame
// stretches the walk linger by one frame of wall time.
type Queue struct {
	ch      chan detector.PoseFrame
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
	dropped atomic.Uint64
}

// NewQueue creates a queue holding up to size frames.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		ch:   make(chan detector.PoseFrame, size),
		done: make(chan struct{}),
	}
}

// Push enqueues frame. It reports whether an older frame was dropped to make
// room.
func (q *Queue) Push(frame detector.PoseFrame) (dropped bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrQueueClosed
	}

	for {
		select {
		case q.ch <- frame:
			return dropped, nil
		default:
		}

		select {
		case <-q.ch:
			dropped = true
			q.dropped.Add(1)
		default:
		}
	}
}

// PushWait enqueues frame, waiting for room. It returns ErrQueueClosed once
// the queue is closed and the context error when ctx is done first.
func (q *Queue) PushWait(ctx context.Context, frame detector.PoseFrame) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- frame:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop dequeues the oldest frame, waiting up to timeout. It returns
// ErrQueueEmpty on timeout, ErrQueueClosed when closed and drained, and the
// context error when ctx is done.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (detector.PoseFrame, error) {
	select {
	case frame := <-q.ch:
		return frame, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-q.ch:
		return frame, nil
	case <-q.done:
		select {
		case frame := <-q.ch:
			return frame, nil
		default:
			return detector.PoseFrame{}, ErrQueueClosed
		}
	case <-ctx.Done():
		return detector.PoseFrame{}, ctx.Err()
	case <-timer.C:
		return detector.PoseFrame{}, ErrQueueEmpty
	}
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Dropped returns how many frames were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close stops accepting frames. Frames already queued can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}
