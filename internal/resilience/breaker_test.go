package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	llmmock "github.com/varactor/squawk/pkg/provider/llm/mock"
	sttmock "github.com/varactor/squawk/pkg/provider/stt/mock"
	ttsmock "github.com/varactor/squawk/pkg/provider/tts/mock"
)

var errBackend = errors.New("backend unavailable")

func TestBreakerDefaults(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test"})
	if b.maxFailures != defaultMaxFailures {
		t.Errorf("maxFailures = %d, want %d", b.maxFailures, defaultMaxFailures)
	}
	if b.resetTimeout != defaultResetTimeout {
		t.Errorf("resetTimeout = %v, want %v", b.resetTimeout, defaultResetTimeout)
	}
	if got := b.State(); got != StateClosed {
		t.Errorf("State() = %v, want closed", got)
	}
}

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 3})
	fail := func() error { return errBackend }

	for i := 0; i < 3; i++ {
		if err := b.Execute(fail); !errors.Is(err, errBackend) {
			t.Fatalf("Execute() #%d error = %v, want %v", i, err, errBackend)
		}
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("State() = %v, want open", got)
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Execute() error = %v, want ErrOpen", err)
	}
	if called {
		t.Error("fn was called while the breaker was open")
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 2})

	if err := b.Execute(func() error { return errBackend }); !errors.Is(err, errBackend) {
		t.Fatalf("Execute() error = %v", err)
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	// One more failure must not trip the breaker; the success reset the count.
	if err := b.Execute(func() error { return errBackend }); !errors.Is(err, errBackend) {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := b.State(); got != StateClosed {
		t.Errorf("State() = %v, want closed", got)
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1, ResetTimeout: time.Minute})
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }

	if err := b.Execute(func() error { return errBackend }); !errors.Is(err, errBackend) {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("State() = %v, want open", got)
	}

	clock = clock.Add(time.Minute)
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("State() = %v, want half-open", got)
	}

	// A failing probe re-opens immediately.
	if err := b.Execute(func() error { return errBackend }); !errors.Is(err, errBackend) {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("State() after failed probe = %v, want open", got)
	}

	// A successful probe closes the breaker again.
	clock = clock.Add(time.Minute)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := b.State(); got != StateClosed {
		t.Errorf("State() after successful probe = %v, want closed", got)
	}
}

func TestWrapSTT(t *testing.T) {
	t.Parallel()

	inner := &sttmock.Provider{Err: errBackend}
	wrapped := WrapSTT(inner, BreakerConfig{MaxFailures: 2})

	for i := 0; i < 2; i++ {
		if _, err := wrapped.Transcribe(context.Background(), []byte("wav")); !errors.Is(err, errBackend) {
			t.Fatalf("Transcribe() error = %v, want %v", err, errBackend)
		}
	}
	if _, err := wrapped.Transcribe(context.Background(), []byte("wav")); !errors.Is(err, ErrOpen) {
		t.Errorf("Transcribe() error = %v, want ErrOpen", err)
	}
	if got := inner.Calls(); got != 2 {
		t.Errorf("inner calls = %d, want 2", got)
	}
}

func TestWrapLLMPassesThrough(t *testing.T) {
	t.Parallel()

	inner := &llmmock.Provider{Reply: "roger"}
	wrapped := WrapLLM(inner, BreakerConfig{})

	reply, err := wrapped.Complete(context.Background(), nil)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "roger" {
		t.Errorf("Complete() = %q, want %q", reply, "roger")
	}
}

func TestWrapTTS(t *testing.T) {
	t.Parallel()

	inner := &ttsmock.Provider{ProviderName: "openai", Audio: []byte("wav")}
	wrapped := WrapTTS(inner, BreakerConfig{})

	if got := wrapped.Name(); got != "openai" {
		t.Errorf("Name() = %q, want %q", got, "openai")
	}
	audioData, err := wrapped.Synthesize(context.Background(), "radio check", "onyx")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audioData) != "wav" {
		t.Errorf("Synthesize() = %q, want %q", audioData, "wav")
	}
}
