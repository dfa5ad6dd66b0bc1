package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// GaussianBlurSize is the kernel size used to smooth sensor noise.
	GaussianBlurSize = 21

	// DiffThreshold is the per-pixel intensity change that counts as different.
	DiffThreshold = 25

	// DefaultMaxSkip bounds how many frames in a row a gate may hold back.
	DefaultMaxSkip = 10
)

// MotionGate decides whether a frame differs enough from the last frame it
// let through to be worth running landmark detection on. Frames are compared
// against that reference rather than their predecessor so slow drift still
// adds up.
type MotionGate struct {
	threshold float64
	maxSkip   int
	ref       gocv.Mat
	hasRef    bool
	skipped   int
	mu        sync.Mutex
}

// NewMotionGate creates a gate that passes frames where more than threshold
// percent of pixels changed, and at least every maxSkip+1 frames regardless.
// A maxSkip of zero or less uses DefaultMaxSkip.
func NewMotionGate(threshold float64, maxSkip int) *MotionGate {
	if maxSkip <= 0 {
		maxSkip = DefaultMaxSkip
	}
	return &MotionGate{
		threshold: threshold,
		maxSkip:   maxSkip,
		ref:       gocv.NewMat(),
	}
}

// Changed reports whether frame should be analysed, along with the
// percentage of pixels that differ from the reference. The first frame
// always passes. Nil or empty frames never do.
func (g *MotionGate) Changed(frame *gocv.Mat) (bool, float64) {
	if frame == nil || frame.Empty() {
		return false, 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	blurred := smoothGray(frame)
	defer blurred.Close()

	if !g.hasRef {
		g.pass(blurred)
		return true, 100
	}

	changed := changePercent(blurred, g.ref)
	if changed > g.threshold || g.skipped >= g.maxSkip {
		g.pass(blurred)
		return true, changed
	}

	g.skipped++
	return false, changed
}

// pass makes blurred the new reference.
func (g *MotionGate) pass(blurred gocv.Mat) {
	blurred.CopyTo(&g.ref)
	g.hasRef = true
	g.skipped = 0
}

// Reset forgets the reference so the next frame passes.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hasRef = false
	g.skipped = 0
}

// Close releases the reference frame. The gate may be used again afterwards.
func (g *MotionGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ref.Close()
	g.ref = gocv.NewMat()
	g.hasRef = false
	g.skipped = 0
}

// smoothGray returns a blurred grayscale copy of frame. The caller closes it.
func smoothGray(frame *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)
	return blurred
}

// changePercent returns the share of pixels, in percent, whose intensity
// differs by more than DiffThreshold between a and b.
func changePercent(a, b gocv.Mat) float64 {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	total := thresh.Rows() * thresh.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(thresh)) / float64(total) * 100.0
}
