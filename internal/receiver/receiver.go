// Package receiver wires the capture side of the loop: microphone frames
// through voice activity segmentation into transcribed records in the drop
// directory.
package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/varactor/squawk/internal/dropdir"
	"github.com/varactor/squawk/internal/lockfile"
	"github.com/varactor/squawk/internal/observe"
	"github.com/varactor/squawk/internal/segment"
	"github.com/varactor/squawk/pkg/audio"
	"github.com/varactor/squawk/pkg/provider/stt"
)

// ignoreList holds transcriptions that recognition backends produce for
// near-silence. Matches are logged and not persisted.
var ignoreList = map[string]struct{}{
	"":      {},
	".":     {},
	". . .": {},
	"you":   {},
}

// Config wires a Receiver's collaborators and tuning.
type Config struct {
	// Source delivers capture frames.
	Source audio.FrameSource

	// STT is the transcription collaborator.
	STT stt.Provider

	// Store is the drop directory records are written to.
	Store *dropdir.Store

	// Lock is the playback lock; while held, capture ticks are ignored.
	Lock *lockfile.Lock

	// Segment holds the segmentation thresholds.
	Segment segment.Config

	// Fs backs debug artifacts. Defaults to the OS filesystem.
	Fs afero.Fs

	// Debug enables per-utterance WAV dumps and the whole-session recording
	// under DebugDir.
	Debug bool

	// DebugDir is where debug recordings are written.
	DebugDir string

	// Metrics receives pipeline instrumentation. Defaults to
	// observe.DefaultMetrics().
	Metrics *observe.Metrics
}

// Receiver owns the capture loop and the transcription worker.
type Receiver struct {
	cfg    Config
	engine *segment.Engine
	now    func() time.Time

	done chan struct{}
}

// Option is a functional option for configuring a Receiver.
type Option func(*Receiver)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Receiver) { r.now = now }
}

// New creates a Receiver.
func New(cfg Config, opts ...Option) *Receiver {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	r := &Receiver{
		cfg:  cfg,
		now:  time.Now,
		done: make(chan struct{}),
	}

	segOpts := []segment.Option{
		segment.WithDropHook(func() {
			cfg.Metrics.Utterances.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("outcome", "dropped")))
		}),
	}
	if cfg.Lock != nil {
		segOpts = append(segOpts, segment.WithMuteProbe(cfg.Lock.Held))
	}
	r.engine = segment.New(cfg.Segment, segOpts...)

	for _, o := range opts {
		o(r)
	}
	return r
}

// Run captures until ctx is cancelled. It starts the frame source, feeds the
// segmentation engine from the capture callback, and transcribes completed
// utterances on its own goroutine so capture never waits on network I/O.
func (r *Receiver) Run(ctx context.Context) error {
	defer close(r.done)

	var recorder *sessionRecorder
	if r.cfg.Debug {
		var err error
		recorder, err = newSessionRecorder(r.cfg.Fs, r.cfg.DebugDir,
			r.cfg.Segment.SampleRate, r.cfg.Segment.Channels, r.now())
		if err != nil {
			return err
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				slog.Error("receiver: closing session recording", "error", err)
			}
		}()
	}

	muted := func() bool { return false }
	if r.cfg.Lock != nil {
		muted = r.cfg.Lock.Held
	}
	handler := func(frame []float32, frameCount int) {
		r.engine.OnFrame(frame, frameCount)
		if recorder != nil && !muted() {
			recorder.WriteFrame(frame)
		}
	}
	if err := r.cfg.Source.Start(handler); err != nil {
		return fmt.Errorf("receiver: starting capture: %w", err)
	}

	slog.Info("receiver: capturing",
		"sample_rate", r.cfg.Segment.SampleRate,
		"threshold", r.cfg.Segment.Threshold,
		"debug", r.cfg.Debug)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		for clip := range r.engine.Utterances() {
			r.processUtterance(ctx, clip)
		}
	}()

	<-ctx.Done()

	err := r.cfg.Source.Stop()
	r.engine.Close()
	<-workerDone
	slog.Info("receiver: stopped")
	if err != nil {
		return fmt.Errorf("receiver: stopping capture: %w", err)
	}
	return ctx.Err()
}

// Wait blocks until Run has returned. Test hook.
func (r *Receiver) Wait() { <-r.done }

// processUtterance transcribes one utterance and persists the record. A
// failed or filtered transcription drops the utterance; there are no
// retries.
func (r *Receiver) processUtterance(ctx context.Context, clip *audio.Clip) {
	wavData, err := audio.WAVBytes(clip)
	if err != nil {
		slog.Error("receiver: encoding utterance", "error", err)
		return
	}

	start := time.Now()
	text, err := r.cfg.STT.Transcribe(ctx, wavData)
	r.cfg.Metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		slog.Error("receiver: transcription failed", "error", err)
		r.cfg.Metrics.Transcripts.Add(ctx, 1,
			metric.WithAttributes(attribute.String("outcome", "failed")))
		r.cfg.Metrics.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", "stt"), attribute.String("kind", "transcribe")))
		return
	}

	if _, ignored := ignoreList[strings.ToLower(strings.TrimSpace(text))]; ignored {
		slog.Debug("receiver: transcription filtered", "text", text)
		r.cfg.Metrics.Transcripts.Add(ctx, 1,
			metric.WithAttributes(attribute.String("outcome", "filtered")))
		return
	}

	rec := dropdir.Record{
		Timestamp:     r.now().UTC(),
		Transcription: text,
	}
	if r.cfg.Debug {
		if path, err := r.dumpUtterance(rec.Timestamp, wavData); err != nil {
			slog.Error("receiver: utterance dump failed", "error", err)
		} else {
			rec.AudioFile = path
		}
	}

	if _, err := r.cfg.Store.Write(rec); err != nil {
		slog.Error("receiver: writing record", "error", err)
		return
	}
	slog.Info("receiver: transcription persisted",
		"text", text, "duration", clip.Duration())
	r.cfg.Metrics.Transcripts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", "persisted")))
}

// dumpUtterance writes the utterance WAV next to the session recording and
// returns its path.
func (r *Receiver) dumpUtterance(ts time.Time, wavData []byte) (string, error) {
	if err := r.cfg.Fs.MkdirAll(r.cfg.DebugDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(r.cfg.DebugDir,
		fmt.Sprintf("utterance_%s.wav", ts.Format("20060102T150405.000000000Z")))
	if err := afero.WriteFile(r.cfg.Fs, path, wavData, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
