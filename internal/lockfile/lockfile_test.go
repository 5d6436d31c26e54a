package lockfile

import (
	"testing"

	"github.com/spf13/afero"
)

func TestLockAcquireReleaseCycle(t *testing.T) {
	t.Parallel()

	l := New(afero.NewMemMapFs(), "/run/squawk/playback.lock")

	if l.Held() {
		t.Fatal("fresh lock reported held")
	}
	if err := l.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !l.Held() {
		t.Fatal("acquired lock reported not held")
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if l.Held() {
		t.Fatal("released lock reported held")
	}
}

func TestLockReleaseAbsentIsNoop(t *testing.T) {
	t.Parallel()

	l := New(afero.NewMemMapFs(), "/playback.lock")
	if err := l.Release(); err != nil {
		t.Fatalf("releasing absent lock: %v", err)
	}
}

func TestLockClearStale(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/playback.lock", []byte("12345\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(fs, "/playback.lock")
	l.ClearStale()

	if l.Held() {
		t.Fatal("stale lock survived ClearStale")
	}
}
