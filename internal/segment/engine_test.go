package segment

import (
	"testing"
	"time"

	"github.com/varactor/squawk/pkg/audio"
)

// testConfig uses a 100 Hz sample rate with 10-sample frames so each tick is
// exactly 0.1 s, keeping the duration arithmetic in the tests legible.
func testConfig() Config {
	return Config{
		SampleRate:      100,
		Channels:        1,
		Threshold:       0.01,
		SilenceDuration: 0.3,
		MinDuration:     0.2,
		MaxDuration:     2.0,
		PreRoll:         0.2,
		QueueSize:       4,
	}
}

func loudFrame() []float32  { return frameOf(0.5, 10) }
func quietFrame() []float32 { return frameOf(0, 10) }

func feed(e *Engine, frame []float32, ticks int) {
	for i := 0; i < ticks; i++ {
		e.OnFrame(frame, len(frame))
	}
}

func drain(e *Engine) []*audio.Clip {
	var clips []*audio.Clip
	for {
		select {
		case c := <-e.Utterances():
			clips = append(clips, c)
		default:
			return clips
		}
	}
}

func TestEngineSilenceNeverEmits(t *testing.T) {
	t.Parallel()

	e := New(testConfig())
	feed(e, quietFrame(), 100)

	if clips := drain(e); len(clips) != 0 {
		t.Fatalf("sub-threshold input emitted %d utterances", len(clips))
	}
}

func TestEngineEmitsSingleUtteranceAfterBurst(t *testing.T) {
	t.Parallel()

	e := New(testConfig())
	feed(e, loudFrame(), 5)  // 0.5 s of speech
	feed(e, quietFrame(), 4) // 0.4 s of silence, crosses SilenceDuration

	clips := drain(e)
	if len(clips) != 1 {
		t.Fatalf("expected exactly 1 utterance, got %d", len(clips))
	}
	if d := clips[0].Duration(); d < 500*time.Millisecond {
		t.Errorf("utterance duration %v shorter than the spoken burst", d)
	}
	if clips[0].SampleRate != 100 || clips[0].Channels != 1 {
		t.Errorf("clip format %d Hz / %d ch, want 100 Hz / 1 ch",
			clips[0].SampleRate, clips[0].Channels)
	}
}

func TestEngineIncludesPreRoll(t *testing.T) {
	t.Parallel()

	e := New(testConfig())
	// Quiet lead-in fills the pre-roll ring before the burst.
	feed(e, quietFrame(), 10)
	feed(e, loudFrame(), 5)
	feed(e, quietFrame(), 4)

	clips := drain(e)
	if len(clips) != 1 {
		t.Fatalf("expected 1 utterance, got %d", len(clips))
	}
	// 5 loud + 4 trailing quiet ticks recorded, plus up to 0.2 s (2 ticks)
	// of pre-roll. The trigger frame also appears once via the pre-roll
	// snapshot, so the total stays within pre-roll + recorded + 1 tick.
	samples := len(clips[0].Samples)
	if samples < 9*10 {
		t.Errorf("utterance %d samples, shorter than the recorded span", samples)
	}
	if samples > (9+2+1)*10 {
		t.Errorf("utterance %d samples exceeds recording plus pre-roll bound", samples)
	}
}

func TestEngineMinDurationHoldsRecordingOpen(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinDuration = 1.0
	e := New(cfg)

	feed(e, loudFrame(), 2)  // 0.2 s burst
	feed(e, quietFrame(), 4) // silence threshold met, but min duration is not

	if clips := drain(e); len(clips) != 0 {
		t.Fatalf("utterance emitted before MinDuration elapsed")
	}

	// Keep feeding silence until the minimum is reached.
	feed(e, quietFrame(), 4)
	if clips := drain(e); len(clips) != 1 {
		t.Fatalf("expected utterance once MinDuration elapsed, got %d", len(clips))
	}
}

func TestEngineMaxDurationForceStops(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxDuration = 0.5
	e := New(cfg)

	// Continuous speech with no silence at all.
	feed(e, loudFrame(), 20)

	clips := drain(e)
	if len(clips) == 0 {
		t.Fatal("continuous speech never force-stopped at MaxDuration")
	}
	if d := clips[0].Duration(); d < 500*time.Millisecond {
		t.Errorf("force-stopped utterance duration %v below MaxDuration", d)
	}
}

func TestEngineMutedTicksAreSkipped(t *testing.T) {
	t.Parallel()

	muted := true
	e := New(testConfig(), WithMuteProbe(func() bool { return muted }))

	feed(e, loudFrame(), 10)
	if clips := drain(e); len(clips) != 0 {
		t.Fatal("muted engine emitted an utterance")
	}
	if e.preRoll.Ticks() != 0 {
		t.Error("muted ticks mutated the pre-roll buffer")
	}

	// Unmuting resumes normal segmentation with no residue from the muted
	// interval.
	muted = false
	feed(e, loudFrame(), 5)
	feed(e, quietFrame(), 4)

	clips := drain(e)
	if len(clips) != 1 {
		t.Fatalf("expected 1 utterance after unmute, got %d", len(clips))
	}
	if samples := len(clips[0].Samples); samples > (9+2+1)*10 {
		t.Errorf("utterance %d samples includes audio from the muted interval", samples)
	}
}

func TestEngineDropsUtteranceWhenQueueFull(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.QueueSize = 1
	var drops int
	e := New(cfg, WithDropHook(func() { drops++ }))

	for i := 0; i < 3; i++ {
		feed(e, loudFrame(), 5)
		feed(e, quietFrame(), 4)
	}

	if clips := drain(e); len(clips) != 1 {
		t.Fatalf("expected 1 queued utterance, got %d", len(clips))
	}
	if drops != 2 {
		t.Errorf("expected 2 dropped utterances, got %d", drops)
	}
}
