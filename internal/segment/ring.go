package segment

// frameRing holds the most recent frames up to a capacity measured in frame
// ticks against the configured sample rate (not wall time), so the retained
// pre-roll tracks nominal device throughput even when callbacks jitter.
type frameRing struct {
	frames   [][]float32
	ticks    []int
	total    int // sum of ticks currently held
	capTicks int
}

// newFrameRing creates a ring holding up to capTicks frame ticks. A zero or
// negative capacity yields a ring that retains only the newest frame.
func newFrameRing(capTicks int) *frameRing {
	return &frameRing{capTicks: capTicks}
}

// Push appends a copy of frame and evicts the oldest frames until the held
// duration fits the capacity again. The newest frame is always retained.
func (r *frameRing) Push(frame []float32, frameCount int) {
	cp := make([]float32, len(frame))
	copy(cp, frame)
	r.frames = append(r.frames, cp)
	r.ticks = append(r.ticks, frameCount)
	r.total += frameCount

	for len(r.frames) > 1 && r.total > r.capTicks {
		r.total -= r.ticks[0]
		r.frames = r.frames[1:]
		r.ticks = r.ticks[1:]
	}
}

// Snapshot returns the buffered frames oldest-first. The returned slice is a
// fresh header but shares the frame payloads, which are never mutated after
// Push copies them.
func (r *frameRing) Snapshot() [][]float32 {
	out := make([][]float32, len(r.frames))
	copy(out, r.frames)
	return out
}

// Ticks returns the number of frame ticks currently held.
func (r *frameRing) Ticks() int { return r.total }
