// Package audio defines the PCM types flowing through the squawk pipeline and
// the device boundary interfaces (frame capture and artifact playback).
//
// Audio travels as float32 samples in [-1, 1], interleaved when multi-channel.
// A Frame is the ephemeral per-callback unit owned by the capture stream; a
// Clip is a bounded utterance assembled by the segmentation engine and owned
// by whoever dequeues it.
package audio

import (
	"context"
	"math"
	"time"
)

// FrameHandler is invoked once per device callback tick with the raw input
// frame and the per-channel sample count. The slice is only valid for the
// duration of the call — implementations that retain audio must copy it.
//
// Handlers run on the capture thread and must never block.
type FrameHandler func(frame []float32, frameCount int)

// FrameSource delivers fixed-size PCM frames from an input device.
type FrameSource interface {
	// Start opens the device and begins delivering frames to handler.
	// It returns once the stream is running; frames keep arriving until Stop.
	Start(handler FrameHandler) error

	// Stop halts frame delivery and releases the device.
	// Calling Stop more than once is safe and returns nil.
	Stop() error
}

// Player plays a synthesized audio artifact to the output device, blocking
// until playback completes or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Clip is one bounded utterance: the concatenation of all frames captured
// between a recording-start and recording-stop event, including pre-roll.
type Clip struct {
	// Samples is interleaved float32 PCM.
	Samples []float32

	// SampleRate in Hz.
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int
}

// Frames returns the number of per-channel sample ticks in the clip.
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the clip length at its nominal sample rate.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.Frames()) / float64(c.SampleRate) * float64(time.Second))
}

// RMS returns the root-mean-square energy of a frame. The zero frame (or an
// empty slice) has zero energy.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
