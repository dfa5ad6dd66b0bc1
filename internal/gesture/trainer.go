package gesture

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/posepad/internal/detector"
)

var (
	// ErrNoSamples is returned when training is attempted without samples.
	ErrNoSamples = errors.New("no samples provided")

	// ErrIncompleteHand is returned by TrainHand for a sample that does not
	// carry every hand landmark.
	ErrIncompleteHand = errors.New("sample is not a full hand")
)

// Trainer processes recorded samples into gesture templates.
type Trainer struct{}

// NewTrainer creates a new Trainer instance.
func NewTrainer() *Trainer {
	return &Trainer{}
}

// Sample is one recorded hand pose.
type Sample struct {
	Landmarks []detector.Point3D `json:"landmarks"`
	Timestamp int64              `json:"timestamp"`
}

// TrainStatic averages multiple landmark samples into a single template.
// Samples are expected to be normalized already (see
// detector.HandLandmarks.Normalize); the result is suitable for matching.
func (t *Trainer) TrainStatic(samples []json.RawMessage) ([]detector.Point3D, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	// Parse all samples
	var allLandmarks [][]detector.Point3D
	for i, raw := range samples {
		var sample Sample
		if err := json.Unmarshal(raw, &sample); err != nil {
			return nil, fmt.Errorf("failed to parse sample %d: %w", i, err)
		}

		if len(sample.Landmarks) == 0 {
			return nil, fmt.Errorf("sample %d has no landmarks", i)
		}

		allLandmarks = append(allLandmarks, sample.Landmarks)
	}

	// Verify all samples have the same number of landmarks
	numPoints := len(allLandmarks[0])
	for i, landmarks := range allLandmarks {
		if len(landmarks) != numPoints {
			return nil, fmt.Errorf("sample %d has %d landmarks, expected %d", i, len(landmarks), numPoints)
		}
	}

	// Average landmarks across all samples
	averaged := make([]detector.Point3D, numPoints)
	n := float64(len(allLandmarks))

	for i := 0; i < numPoints; i++ {
		var sumX, sumY, sumZ float64
		for _, landmarks := range allLandmarks {
			sumX += landmarks[i].X
			sumY += landmarks[i].Y
			sumZ += landmarks[i].Z
		}
		averaged[i] = detector.Point3D{
			X: sumX / n,
			Y: sumY / n,
			Z: sumZ / n,
		}
	}

	return averaged, nil
}

// TrainHand trains a template from raw hand samples as the detector reports
// them. Each sample must carry all detector.NumLandmarks points; they are
// normalized before averaging.
func (t *Trainer) TrainHand(samples []json.RawMessage) ([]detector.Point3D, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	normalized := make([]json.RawMessage, len(samples))
	for i, raw := range samples {
		var sample Sample
		if err := json.Unmarshal(raw, &sample); err != nil {
			return nil, fmt.Errorf("failed to parse sample %d: %w", i, err)
		}
		if len(sample.Landmarks) != detector.NumLandmarks {
			return nil, fmt.Errorf("sample %d has %d landmarks: %w", i, len(sample.Landmarks), ErrIncompleteHand)
		}

		var hand detector.HandLandmarks
		copy(hand.Points[:], sample.Landmarks)
		sample.Landmarks = hand.Normalize().Points[:]

		data, err := json.Marshal(sample)
		if err != nil {
			return nil, err
		}
		normalized[i] = data
	}

	return t.TrainStatic(normalized)
}
