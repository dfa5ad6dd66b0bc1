package emulator

// Decay is the walk linger window: a bounded count of tokens that qualifying
// frames refill and every frame consumes one of. It is a value type so that
// machines can return an updated copy.
type Decay struct {
	capacity int
	tokens   int
	held     bool
}

// NewDecay sizes the window to half a second of frames at fps.
func NewDecay(fps int) Decay {
	if fps < 0 {
		fps = 0
	}
	return Decay{capacity: fps / 2}
}

// Capacity returns the window size in frames.
func (d Decay) Capacity() int { return d.capacity }

// Len returns the tokens left.
func (d Decay) Len() int { return d.tokens }

// Held reports whether the walk key is held.
func (d Decay) Held() bool { return d.held }

// Refill tops the window back up to capacity.
func (d *Decay) Refill() { d.tokens = d.capacity }

// Pop removes one token. It returns false if there was none.
func (d *Decay) Pop() bool {
	if d.tokens == 0 {
		return false
	}
	d.tokens--
	return true
}
