// Package playback drains the response queue: it synthesizes each reply,
// asserts the half-duplex lock, plays the audio, and releases the lock in a
// guaranteed cleanup path so the receiver is never left muted.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/varactor/squawk/internal/dispatch"
	"github.com/varactor/squawk/internal/lockfile"
	"github.com/varactor/squawk/internal/observe"
	"github.com/varactor/squawk/pkg/audio"
	"github.com/varactor/squawk/pkg/provider/tts"
)

// Config wires a Worker's collaborators.
type Config struct {
	// TTS is the synthesis collaborator.
	TTS tts.Provider

	// Player renders synthesized audio to the output device.
	Player audio.Player

	// Lock is the half-duplex playback lock shared with the receiver.
	Lock *lockfile.Lock

	// Fs backs audio artifacts. Defaults to the OS filesystem.
	Fs afero.Fs

	// WorkDir is where synthesized audio artifacts are written.
	WorkDir string

	// KeepArtifacts retains synthesized audio files after playback for
	// debugging.
	KeepArtifacts bool

	// SettleDelay is the pause between playback finishing and the lock
	// clearing, letting trailing audio drain from the capture path.
	// Defaults to lockfile.SettleDelay.
	SettleDelay time.Duration

	// Metrics receives pipeline instrumentation. Defaults to
	// observe.DefaultMetrics().
	Metrics *observe.Metrics
}

// Worker plays responses one at a time, in queue order.
type Worker struct {
	cfg   Config
	sleep func(time.Duration)
	now   func() time.Time
}

// Option is a functional option for configuring a Worker.
type Option func(*Worker)

// WithSleep overrides the settle-delay sleep. Tests use this to avoid real
// waits.
func WithSleep(sleep func(time.Duration)) Option {
	return func(w *Worker) { w.sleep = sleep }
}

// WithClock overrides the time source used for artifact names.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// New creates a Worker.
func New(cfg Config, opts ...Option) *Worker {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = lockfile.SettleDelay
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	w := &Worker{cfg: cfg, sleep: time.Sleep, now: time.Now}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run drains responses until ctx is cancelled. Playback failures are logged
// and the loop continues with the next response.
func (w *Worker) Run(ctx context.Context, responses <-chan dispatch.Response) error {
	slog.Info("playback: worker started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("playback: worker stopped")
			return ctx.Err()
		case r := <-responses:
			if err := w.Play(ctx, r); err != nil {
				slog.Error("playback: response failed",
					"persona", r.Persona, "error", err)
			}
		}
	}
}

// Play synthesizes and plays one response behind the lock. The lock is
// released on every path out of the playback section, including player
// errors.
func (w *Worker) Play(ctx context.Context, r dispatch.Response) error {
	start := time.Now()
	audioData, err := w.cfg.TTS.Synthesize(ctx, r.Text, r.Voice)
	w.cfg.Metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		w.cfg.Metrics.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", w.cfg.TTS.Name()), attribute.String("kind", "synthesize")))
		return fmt.Errorf("playback: synthesize: %w", err)
	}

	path, err := w.writeArtifact(audioData)
	if err != nil {
		return err
	}
	defer w.cleanupArtifact(path)

	if err := w.cfg.Lock.Acquire(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	playStart := time.Now()
	defer func() {
		w.sleep(w.cfg.SettleDelay)
		if err := w.cfg.Lock.Release(); err != nil {
			slog.Error("playback: releasing lock", "error", err)
		}
		w.cfg.Metrics.PlaybackDuration.Record(ctx, time.Since(playStart).Seconds())
	}()

	slog.Info("playback: speaking", "persona", r.Persona, "voice", r.Voice)
	if err := w.cfg.Player.Play(ctx, path); err != nil {
		return fmt.Errorf("playback: play: %w", err)
	}
	return nil
}

func (w *Worker) writeArtifact(audioData []byte) (string, error) {
	if err := w.cfg.Fs.MkdirAll(w.cfg.WorkDir, 0o755); err != nil {
		return "", fmt.Errorf("playback: creating work dir: %w", err)
	}
	path := filepath.Join(w.cfg.WorkDir,
		fmt.Sprintf("response_%s.wav", w.now().UTC().Format("20060102T150405.000000000Z")))
	if err := afero.WriteFile(w.cfg.Fs, path, audioData, 0o644); err != nil {
		return "", fmt.Errorf("playback: writing artifact: %w", err)
	}
	return path, nil
}

func (w *Worker) cleanupArtifact(path string) {
	if w.cfg.KeepArtifacts {
		return
	}
	if err := w.cfg.Fs.Remove(path); err != nil {
		slog.Warn("playback: removing artifact", "path", path, "error", err)
	}
}
