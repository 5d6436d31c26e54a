// Package mock provides scripted audio device test doubles.
package mock

import (
	"context"
	"sync"

	"github.com/varactor/squawk/pkg/audio"
)

// FrameSource replays a scripted sequence of frames into the registered
// handler when Start is called. It implements audio.FrameSource.
type FrameSource struct {
	// Frames is the scripted input, delivered in order on Start.
	Frames [][]float32

	// Channels is the interleaved channel count of each scripted frame.
	Channels int

	mu      sync.Mutex
	started bool
}

var _ audio.FrameSource = (*FrameSource)(nil)

// Start delivers every scripted frame synchronously, then returns.
func (s *FrameSource) Start(handler audio.FrameHandler) error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	ch := s.Channels
	if ch <= 0 {
		ch = 1
	}
	for _, f := range s.Frames {
		handler(f, len(f)/ch)
	}
	return nil
}

// Stop implements audio.FrameSource.
func (s *FrameSource) Stop() error { return nil }

// Started reports whether Start has been called.
func (s *FrameSource) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Player records every Play call instead of touching a device.
type Player struct {
	// Err, when non-nil, is returned by every Play call.
	Err error

	// BeforeReturn, when non-nil, runs while Play is "playing" — use it to
	// assert on cross-process lock state mid-playback.
	BeforeReturn func()

	mu     sync.Mutex
	played []string
}

var _ audio.Player = (*Player)(nil)

// Play records path and returns Err.
func (p *Player) Play(_ context.Context, path string) error {
	p.mu.Lock()
	p.played = append(p.played, path)
	p.mu.Unlock()
	if p.BeforeReturn != nil {
		p.BeforeReturn()
	}
	return p.Err
}

// Played returns a copy of all artifact paths played so far.
func (p *Player) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.played))
	copy(out, p.played)
	return out
}
