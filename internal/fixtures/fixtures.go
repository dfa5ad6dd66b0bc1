// Package fixtures loads scripted pose sequences for tests and replays them
// through a detector.
package fixtures

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/posepad/internal/detector"
	"github.com/ayusman/posepad/internal/gesture"
)

//go:embed sequences/*.json
var sequencesFS embed.FS

// ErrUnknownPose is returned for a body or hand name with no preset.
var ErrUnknownPose = errors.New("unknown pose")

// Step is one scripted pose held for Repeat frames.
type Step struct {
	// Body is "standing", "step", "crouch" or "none".
	Body string `json:"body"`
	// Hand is a hand label name, or empty for no hand.
	Hand   string  `json:"hand,omitempty"`
	Raised bool    `json:"raised,omitempty"`
	Lean   float64 `json:"lean,omitempty"`
	Repeat int     `json:"repeat,omitempty"`
}

// Sequences lists the embedded sequence names.
func Sequences() ([]string, error) {
	entries, err := sequencesFS.ReadDir("sequences")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return names, nil
}

// LoadSequence expands the named sequence into one detection result per frame.
func LoadSequence(name string) ([]detector.Result, error) {
	data, err := sequencesFS.ReadFile(path.Join("sequences", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("load sequence %s: %w", name, err)
	}

	var steps []Step
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("decode sequence %s: %w", name, err)
	}

	var results []detector.Result
	for i, step := range steps {
		r, err := step.Result()
		if err != nil {
			return nil, fmt.Errorf("sequence %s step %d: %w", name, i, err)
		}
		n := max(step.Repeat, 1)
		for j := 0; j < n; j++ {
			results = append(results, r)
		}
	}
	return results, nil
}

// Result builds the detection result the step describes.
func (s Step) Result() (detector.Result, error) {
	var r detector.Result

	if s.Body != "none" {
		body, err := bodyPreset(s.Body)
		if err != nil {
			return r, err
		}
		if s.Raised {
			body = detector.WithRaisedLeftHand(body)
		}
		if s.Lean != 0 {
			body = detector.LeanPose(body, s.Lean)
		}
		r.Body = &body
	}

	if s.Hand != "" {
		hand, err := handPreset(s.Hand)
		if err != nil {
			return r, err
		}
		r.Hands = []detector.HandLandmarks{hand}
	}
	return r, nil
}

func bodyPreset(name string) (detector.BodyLandmarks, error) {
	switch name {
	case "", "standing":
		return detector.StandingPose(), nil
	case "step":
		return detector.StepPose(), nil
	case "crouch":
		return detector.CrouchPose(), nil
	default:
		return detector.BodyLandmarks{}, fmt.Errorf("%w: body %q", ErrUnknownPose, name)
	}
}

func handPreset(name string) (detector.HandLandmarks, error) {
	label, ok := gesture.ParseLabel(name)
	if !ok {
		return detector.HandLandmarks{}, fmt.Errorf("%w: hand %q", ErrUnknownPose, name)
	}

	switch label {
	case gesture.OpenPalm:
		return detector.OpenPalmLandmarks(), nil
	case gesture.IndexUp:
		return detector.IndexUpLandmarks(), nil
	case gesture.PeaceSign:
		return detector.PeaceSignLandmarks(), nil
	case gesture.ThreeUp:
		return detector.ThreeUpLandmarks(), nil
	case gesture.FourUp:
		return detector.FourUpLandmarks(), nil
	case gesture.None:
		return detector.HandLandmarks{}, fmt.Errorf("%w: hand %q", ErrUnknownPose, name)
	default:
		return detector.HandLandmarks{}, fmt.Errorf("%w: hand %q", ErrUnknownPose, name)
	}
}

// Replay is a detector that returns scripted results in order, one per
// Detect call, and keeps returning the last one once the script runs out.
type Replay struct {
	mu      sync.Mutex
	results []detector.Result
	next    int
}

// NewReplay creates a Replay over results.
func NewReplay(results []detector.Result) *Replay {
	return &Replay{results: results}
}

// Detect implements detector.Detector. The frame is ignored.
func (r *Replay) Detect(*gocv.Mat) (detector.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.results) == 0 {
		return detector.Result{}, nil
	}
	i := min(r.next, len(r.results)-1)
	if r.next < len(r.results) {
		r.next++
	}
	return r.results[i], nil
}

// Done reports whether every scripted result has been returned.
func (r *Replay) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next >= len(r.results)
}

// Close implements detector.Detector.
func (r *Replay) Close() error { return nil }
