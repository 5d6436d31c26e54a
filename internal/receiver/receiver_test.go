package receiver

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/varactor/squawk/internal/dropdir"
	"github.com/varactor/squawk/internal/segment"
	audiomock "github.com/varactor/squawk/pkg/audio/mock"
	sttmock "github.com/varactor/squawk/pkg/provider/stt/mock"
)

func testSegmentConfig() segment.Config {
	return segment.Config{
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

// burstFrames yields one spoken burst followed by enough silence to close it.
func burstFrames() [][]float32 {
	var frames [][]float32
	for i := 0; i < 5; i++ {
		f := make([]float32, 10)
		for j := range f {
			f[j] = 0.5
		}
		frames = append(frames, f)
	}
	for i := 0; i < 4; i++ {
		frames = append(frames, make([]float32, 10))
	}
	return frames
}

type fixture struct {
	receiver *Receiver
	store    *dropdir.Store
	stt      *sttmock.Provider
	fs       afero.Fs
}

func newFixture(t *testing.T, sttp *sttmock.Provider, debug bool) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	store, err := dropdir.NewStore(fs, "/drop")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	f := &fixture{store: store, stt: sttp, fs: fs}
	f.receiver = New(Config{
		Source:   &audiomock.FrameSource{Frames: burstFrames(), Channels: 1},
		STT:      sttp,
		Store:    store,
		Segment:  testSegmentConfig(),
		Fs:       fs,
		Debug:    debug,
		DebugDir: "/debug",
	}, WithClock(func() time.Time {
		return time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	}))
	return f
}

// run feeds the scripted frames and waits for the worker to drain.
func (f *fixture) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.receiver.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: %v", err)
	}
}

func TestReceiverPersistsTranscription(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &sttmock.Provider{Text: "tower, radio check"}, false)
	f.run(t)

	pending, err := f.store.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 record, got %d", len(pending))
	}
	rec, err := f.store.Read(pending[0])
	if err != nil {
		t.Fatal(err)
	}
	if rec.Transcription != "tower, radio check" {
		t.Errorf("transcription %q", rec.Transcription)
	}
	if rec.AudioFile != "" {
		t.Errorf("audio file set without debug: %q", rec.AudioFile)
	}
	if f.stt.Calls() != 1 {
		t.Errorf("expected 1 transcription call, got %d", f.stt.Calls())
	}
}

func TestReceiverFiltersPlaceholderTranscripts(t *testing.T) {
	t.Parallel()

	// Matching is case-insensitive on purpose: recognition backends vary the
	// casing of their near-silence placeholders.
	for _, text := range []string{"", ".", ". . .", "you", " You ", "YOU"} {
		text := text
		t.Run("filter "+text, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, &sttmock.Provider{Text: text}, false)
			f.run(t)

			pending, err := f.store.Pending()
			if err != nil {
				t.Fatal(err)
			}
			if len(pending) != 0 {
				t.Errorf("placeholder %q persisted", text)
			}
		})
	}
}

func TestReceiverDropsUtteranceOnTranscriptionFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &sttmock.Provider{Err: errors.New("backend down")}, false)
	f.run(t)

	pending, err := f.store.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Error("failed transcription persisted a record")
	}
}

func TestReceiverDebugArtifacts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &sttmock.Provider{Text: "checking in"}, true)
	f.run(t)

	pending, err := f.store.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 record, got %d", len(pending))
	}
	rec, err := f.store.Read(pending[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(rec.AudioFile, "/debug/utterance_") {
		t.Errorf("audio file path %q", rec.AudioFile)
	}
	if ok, _ := afero.Exists(f.fs, rec.AudioFile); !ok {
		t.Error("utterance dump missing")
	}

	infos, err := afero.ReadDir(f.fs, "/debug")
	if err != nil {
		t.Fatal(err)
	}
	var sessionFound bool
	for _, fi := range infos {
		if strings.HasPrefix(fi.Name(), "session_") && strings.HasSuffix(fi.Name(), ".wav") {
			sessionFound = true
		}
	}
	if !sessionFound {
		t.Error("session recording missing")
	}
}
