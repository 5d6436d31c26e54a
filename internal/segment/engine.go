// Package segment implements the voice activity segmentation state machine:
// it turns a continuous stream of PCM frames into bounded utterance clips
// using a thresholded RMS energy detector, a pre-roll ring so word onsets are
// not clipped, and min/max duration guards.
//
// The engine is driven from the real-time capture callback and therefore
// never blocks, performs no I/O, and hands completed utterances off through a
// bounded drop-on-full channel.
package segment

import (
	"log/slog"

	"github.com/varactor/squawk/pkg/audio"
)

// Config holds the segmentation thresholds. Durations are in seconds, matching
// the operator-facing configuration file.
type Config struct {
	// SampleRate is the configured capture rate in Hz. All duration math uses
	// this nominal rate, not wall time.
	SampleRate int

	// Channels is the interleaved channel count of incoming frames.
	Channels int

	// Threshold is the RMS energy above which a frame counts as speech.
	Threshold float64

	// SilenceDuration is the consecutive-silence time that ends a recording.
	SilenceDuration float64

	// MinDuration is the minimum recording length; stop conditions are not
	// honoured before it has elapsed.
	MinDuration float64

	// MaxDuration force-stops a recording regardless of silence.
	MaxDuration float64

	// PreRoll is the amount of audio retained from before the energy crossed
	// the threshold.
	PreRoll float64

	// QueueSize is the utterance channel capacity. When full, new utterances
	// are dropped with a warning.
	QueueSize int
}

// Engine is the Idle/Recording state machine. It is not safe for concurrent
// use: OnFrame must be called from a single goroutine (the capture callback),
// which is the only writer of engine state.
type Engine struct {
	cfg   Config
	muted func() bool

	preRoll   *frameRing
	recording bool
	frames    [][]float32
	silence   float64 // consecutive silence, seconds
	duration  float64 // current recording length, seconds

	utterances chan *audio.Clip
	onDrop     func()
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithMuteProbe installs the half-duplex mute check. When the probe reports
// true the engine skips the tick entirely — no energy computation, no buffer
// mutation — so the system never re-hears its own playback.
func WithMuteProbe(probe func() bool) Option {
	return func(e *Engine) { e.muted = probe }
}

// WithDropHook installs a callback invoked whenever a completed utterance is
// dropped because the queue is full. Used to feed the drop counter metric.
func WithDropHook(fn func()) Option {
	return func(e *Engine) { e.onDrop = fn }
}

// New creates an Engine with the given thresholds.
func New(cfg Config, opts ...Option) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	e := &Engine{
		cfg:        cfg,
		preRoll:    newFrameRing(int(cfg.PreRoll * float64(cfg.SampleRate))),
		utterances: make(chan *audio.Clip, cfg.QueueSize),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Utterances returns the channel of completed utterance clips. The channel is
// closed by Close.
func (e *Engine) Utterances() <-chan *audio.Clip { return e.utterances }

// Close closes the utterance channel. Call only after frame delivery has
// stopped.
func (e *Engine) Close() { close(e.utterances) }

// OnFrame advances the state machine by one capture tick. frame is owned by
// the caller for the duration of the call; the engine copies what it retains.
// frameCount is the per-channel sample count of the frame.
func (e *Engine) OnFrame(frame []float32, frameCount int) {
	if e.muted != nil && e.muted() {
		return
	}

	rms := audio.RMS(frame)
	e.preRoll.Push(frame, frameCount)

	if !e.recording && rms > e.cfg.Threshold {
		e.startRecording()
	}

	if e.recording {
		e.handleRecording(frame, rms, frameCount)
	}
}

// startRecording enters the Recording state, seeding the recording buffer
// with the entire pre-roll so the first word is not clipped.
func (e *Engine) startRecording() {
	e.recording = true
	e.frames = e.preRoll.Snapshot()
	e.silence = 0
	e.duration = 0
	slog.Debug("segment: recording started", "pre_roll_ticks", e.preRoll.Ticks())
}

// handleRecording appends the frame, advances the duration and silence
// counters, and emits the utterance when the stop condition holds.
func (e *Engine) handleRecording(frame []float32, rms float64, frameCount int) {
	cp := make([]float32, len(frame))
	copy(cp, frame)
	e.frames = append(e.frames, cp)

	delta := float64(frameCount) / float64(e.cfg.SampleRate)
	e.duration += delta
	if rms <= e.cfg.Threshold {
		e.silence += delta
	} else {
		e.silence = 0
	}

	if e.shouldStop() {
		e.stopRecording()
	}
}

// shouldStop reports whether the current recording satisfies the stop
// condition: enough trailing silence or the maximum length reached, and in
// either case at least the minimum length recorded.
func (e *Engine) shouldStop() bool {
	return (e.silence >= e.cfg.SilenceDuration || e.duration >= e.cfg.MaxDuration) &&
		e.duration >= e.cfg.MinDuration
}

// stopRecording concatenates the buffered frames into one Clip and hands it
// to the utterance queue. When the queue is full the clip is dropped — the
// capture callback must never block.
func (e *Engine) stopRecording() {
	e.recording = false

	total := 0
	for _, f := range e.frames {
		total += len(f)
	}
	samples := make([]float32, 0, total)
	for _, f := range e.frames {
		samples = append(samples, f...)
	}
	e.frames = nil

	clip := &audio.Clip{
		Samples:    samples,
		SampleRate: e.cfg.SampleRate,
		Channels:   e.cfg.Channels,
	}

	select {
	case e.utterances <- clip:
		slog.Debug("segment: utterance queued", "duration", clip.Duration())
	default:
		slog.Warn("segment: utterance queue full, dropping utterance",
			"duration", clip.Duration())
		if e.onDrop != nil {
			e.onDrop()
		}
	}
}
