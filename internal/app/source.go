package app

import (
	"context"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/posepad/internal/detector"
	"github.com/ayusman/posepad/internal/emulator"
)

// slowPushWarn is how long a push may wait for the engine before it is logged.
const slowPushWarn = 100 * time.Millisecond

// produce reads the camera at the configured rate, detects landmarks and
// pushes pose frames to q until ctx is done or q is closed. A full queue
// holds the camera back rather than dropping frames.
func (a *App) produce(ctx context.Context, q *emulator.Queue) {
	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	var (
		last     detector.Result
		haveLast bool
		failing  bool
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			if !failing {
				a.log.Warn("error reading frame", "error", err)
				failing = true
			}
			continue
		}
		failing = false

		result, err := a.detect(frame, last, haveLast)
		frame.Close()
		if err != nil {
			a.log.Warn("landmark detection failed", "error", err)
			continue
		}
		last, haveLast = result, true

		pose, ok := result.Frame(a.config.Handedness, time.Now())
		if !ok {
			continue
		}

		start := time.Now()
		if err := q.PushWait(ctx, pose); err != nil {
			return
		}
		if waited := time.Since(start); waited > slowPushWarn {
			a.log.Debug("engine is behind, camera throttled", "waited", waited)
		}
	}
}

// detect runs the detector on frame, or reuses last when the motion gate
// says nothing changed.
func (a *App) detect(frame *gocv.Mat, last detector.Result, haveLast bool) (detector.Result, error) {
	if a.gate != nil {
		if changed, _ := a.gate.Changed(frame); !changed && haveLast {
			return last, nil
		}
	}
	return a.detector.Detect(frame)
}
