package playback

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/varactor/squawk/internal/dispatch"
	"github.com/varactor/squawk/internal/lockfile"
	audiomock "github.com/varactor/squawk/pkg/audio/mock"
	ttsmock "github.com/varactor/squawk/pkg/provider/tts/mock"
)

func newWorker(t *testing.T, ttsp *ttsmock.Provider, player *audiomock.Player, keep bool) (*Worker, *lockfile.Lock, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	lock := lockfile.New(fs, "/run/playback.lock")
	w := New(Config{
		TTS:           ttsp,
		Player:        player,
		Lock:          lock,
		Fs:            fs,
		WorkDir:       "/tmp/squawk",
		KeepArtifacts: keep,
	}, WithSleep(func(time.Duration) {}))
	return w, lock, fs
}

func response() dispatch.Response {
	return dispatch.Response{Text: "Go ahead.", Voice: "onyx", Persona: "tower"}
}

func TestPlayHoldsLockDuringPlayback(t *testing.T) {
	t.Parallel()

	player := &audiomock.Player{}
	var heldDuringPlayback bool
	w, lock, _ := newWorker(t, &ttsmock.Provider{Audio: []byte("wav")}, player, false)
	player.BeforeReturn = func() { heldDuringPlayback = lock.Held() }

	if err := w.Play(context.Background(), response()); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if !heldDuringPlayback {
		t.Error("lock not held during playback")
	}
	if lock.Held() {
		t.Error("lock not released after playback")
	}
	if played := player.Played(); len(played) != 1 || !strings.HasPrefix(played[0], "/tmp/squawk/response_") {
		t.Errorf("played = %v", played)
	}
}

func TestPlayReleasesLockOnPlayerError(t *testing.T) {
	t.Parallel()

	player := &audiomock.Player{Err: errors.New("device gone")}
	w, lock, _ := newWorker(t, &ttsmock.Provider{Audio: []byte("wav")}, player, false)

	if err := w.Play(context.Background(), response()); err == nil {
		t.Fatal("expected player error")
	}
	if lock.Held() {
		t.Error("lock left held after player error")
	}
}

func TestPlaySynthesisFailureNeverTouchesLock(t *testing.T) {
	t.Parallel()

	player := &audiomock.Player{}
	w, lock, _ := newWorker(t, &ttsmock.Provider{Err: errors.New("api down")}, player, false)

	if err := w.Play(context.Background(), response()); err == nil {
		t.Fatal("expected synthesis error")
	}
	if lock.Held() {
		t.Error("lock held after synthesis failure")
	}
	if len(player.Played()) != 0 {
		t.Error("player invoked despite synthesis failure")
	}
}

func TestPlayArtifactRetention(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		keep bool
	}{
		{"deleted by default", false},
		{"kept when retention enabled", true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			player := &audiomock.Player{}
			w, _, fs := newWorker(t, &ttsmock.Provider{Audio: []byte("wav")}, player, tc.keep)

			if err := w.Play(context.Background(), response()); err != nil {
				t.Fatalf("Play: %v", err)
			}

			exists, err := afero.Exists(fs, player.Played()[0])
			if err != nil {
				t.Fatal(err)
			}
			if exists != tc.keep {
				t.Errorf("artifact exists = %v, want %v", exists, tc.keep)
			}
		})
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	player := &audiomock.Player{}
	w, _, _ := newWorker(t, &ttsmock.Provider{Audio: []byte("wav")}, player, false)

	responses := make(chan dispatch.Response, 1)
	responses <- response()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, responses) }()

	deadline := time.After(2 * time.Second)
	for len(player.Played()) == 0 {
		select {
		case <-deadline:
			t.Fatal("response never played")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
