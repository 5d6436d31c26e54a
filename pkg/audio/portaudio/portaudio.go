// Package portaudio implements the audio device boundary using the PortAudio
// bindings: a callback-driven capture stream for the receiver and a blocking
// WAV player for the transmitter.
//
// PortAudio's library-level Initialize/Terminate is reference counted here so
// a process may hold a capture stream and a player at the same time.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/spf13/afero"

	"github.com/varactor/squawk/pkg/audio"
)

var (
	initMu   sync.Mutex
	initRefs int
)

func acquire() error {
	initMu.Lock()
	defer initMu.Unlock()
	if initRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("portaudio: initialize: %w", err)
		}
	}
	initRefs++
	return nil
}

func release() error {
	initMu.Lock()
	defer initMu.Unlock()
	if initRefs == 0 {
		return nil
	}
	initRefs--
	if initRefs == 0 {
		if err := portaudio.Terminate(); err != nil {
			return fmt.Errorf("portaudio: terminate: %w", err)
		}
	}
	return nil
}

// Compile-time assertion that CaptureStream satisfies audio.FrameSource.
var _ audio.FrameSource = (*CaptureStream)(nil)

// CaptureStream is an input-device frame source. The device callback invokes
// the registered handler once per buffer of framesPerBuffer ticks.
type CaptureStream struct {
	sampleRate      int
	channels        int
	framesPerBuffer int

	mu      sync.Mutex
	stream  *portaudio.Stream
	stopped bool
}

// NewCaptureStream prepares a capture stream for the default input device.
// framesPerBuffer is the per-channel tick count delivered per callback.
func NewCaptureStream(sampleRate, channels, framesPerBuffer int) (*CaptureStream, error) {
	if sampleRate <= 0 || channels <= 0 || framesPerBuffer <= 0 {
		return nil, fmt.Errorf("portaudio: invalid capture format %d Hz / %d ch / %d frames",
			sampleRate, channels, framesPerBuffer)
	}
	return &CaptureStream{
		sampleRate:      sampleRate,
		channels:        channels,
		framesPerBuffer: framesPerBuffer,
	}, nil
}

// Start implements audio.FrameSource. The handler runs on PortAudio's capture
// thread; it must copy any samples it retains and must never block.
func (c *CaptureStream) Start(handler audio.FrameHandler) error {
	if handler == nil {
		return errors.New("portaudio: handler must not be nil")
	}
	if err := acquire(); err != nil {
		return err
	}

	cb := func(in []float32) {
		handler(in, len(in)/c.channels)
	}

	stream, err := portaudio.OpenDefaultStream(c.channels, 0, float64(c.sampleRate), c.framesPerBuffer, cb)
	if err != nil {
		_ = release()
		return fmt.Errorf("portaudio: open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = release()
		return fmt.Errorf("portaudio: start capture stream: %w", err)
	}

	c.mu.Lock()
	c.stream = stream
	c.stopped = false
	c.mu.Unlock()
	return nil
}

// Stop implements audio.FrameSource.
func (c *CaptureStream) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil || c.stopped {
		return nil
	}
	c.stopped = true

	var errs []error
	if err := c.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio: stop capture stream: %w", err))
	}
	if err := c.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio: close capture stream: %w", err))
	}
	if err := release(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Record captures a fixed-length mono clip from the default input device.
// Used by the receiver's startup level check.
func Record(ctx context.Context, sampleRate, channels, frames int) (*audio.Clip, error) {
	src, err := NewCaptureStream(sampleRate, channels, frames)
	if err != nil {
		return nil, err
	}

	samples := make([]float32, 0, frames*channels)
	done := make(chan struct{})
	var once sync.Once

	err = src.Start(func(frame []float32, _ int) {
		if len(samples) < cap(samples) {
			n := cap(samples) - len(samples)
			if n > len(frame) {
				n = len(frame)
			}
			samples = append(samples, frame[:n]...)
		}
		if len(samples) == cap(samples) {
			once.Do(func() { close(done) })
		}
	})
	if err != nil {
		return nil, err
	}
	defer src.Stop()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &audio.Clip{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}

// Compile-time assertion that Player satisfies audio.Player.
var _ audio.Player = (*Player)(nil)

// Player plays WAV artifacts on the default output device. Artifacts are read
// through the supplied filesystem so tests can run on an in-memory fs.
type Player struct {
	fs afero.Fs
}

// NewPlayer creates a Player reading artifacts from fs.
func NewPlayer(fs afero.Fs) *Player {
	return &Player{fs: fs}
}

// playChunk is the per-write buffer size in frames. Small enough that a
// cancelled context interrupts playback within ~100 ms at 44.1 kHz.
const playChunk = 4096

// Play implements audio.Player. It decodes the WAV at path and writes it to
// the output device in chunks, checking ctx between writes.
func (p *Player) Play(ctx context.Context, path string) error {
	f, err := p.fs.Open(path)
	if err != nil {
		return fmt.Errorf("portaudio: open artifact: %w", err)
	}
	defer f.Close()

	clip, err := audio.DecodeWAV(f)
	if err != nil {
		return err
	}

	if err := acquire(); err != nil {
		return err
	}
	defer release()

	out := make([]float32, playChunk*clip.Channels)
	stream, err := portaudio.OpenDefaultStream(0, clip.Channels, float64(clip.SampleRate), playChunk, &out)
	if err != nil {
		return fmt.Errorf("portaudio: open playback stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start playback stream: %w", err)
	}
	defer stream.Stop()

	for pos := 0; pos < len(clip.Samples); pos += len(out) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(out, clip.Samples[pos:])
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("portaudio: write playback buffer: %w", err)
		}
	}
	return nil
}
