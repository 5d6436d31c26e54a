package resilience

import (
	"context"

	"github.com/varactor/squawk/pkg/provider/llm"
	"github.com/varactor/squawk/pkg/provider/stt"
	"github.com/varactor/squawk/pkg/provider/tts"
)

var _ stt.Provider = (*STT)(nil)

// STT threads a transcription provider's calls through a circuit breaker.
type STT struct {
	inner   stt.Provider
	breaker *Breaker
}

// WrapSTT protects p with a breaker using the given config.
func WrapSTT(p stt.Provider, cfg BreakerConfig) *STT {
	if cfg.Name == "" {
		cfg.Name = "stt"
	}
	return &STT{inner: p, breaker: NewBreaker(cfg)}
}

func (s *STT) Transcribe(ctx context.Context, wavData []byte) (string, error) {
	var text string
	err := s.breaker.Execute(func() error {
		var err error
		text, err = s.inner.Transcribe(ctx, wavData)
		return err
	})
	return text, err
}

var _ llm.Provider = (*LLM)(nil)

// LLM threads a completion provider's calls through a circuit breaker.
type LLM struct {
	inner   llm.Provider
	breaker *Breaker
}

// WrapLLM protects p with a breaker using the given config.
func WrapLLM(p llm.Provider, cfg BreakerConfig) *LLM {
	if cfg.Name == "" {
		cfg.Name = "llm"
	}
	return &LLM{inner: p, breaker: NewBreaker(cfg)}
}

func (l *LLM) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	var reply string
	err := l.breaker.Execute(func() error {
		var err error
		reply, err = l.inner.Complete(ctx, messages)
		return err
	})
	return reply, err
}

var _ tts.Provider = (*TTS)(nil)

// TTS threads a synthesis provider's calls through a circuit breaker.
type TTS struct {
	inner   tts.Provider
	breaker *Breaker
}

// WrapTTS protects p with a breaker using the given config.
func WrapTTS(p tts.Provider, cfg BreakerConfig) *TTS {
	if cfg.Name == "" {
		cfg.Name = "tts"
	}
	return &TTS{inner: p, breaker: NewBreaker(cfg)}
}

func (t *TTS) Name() string { return t.inner.Name() }

func (t *TTS) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	var audioData []byte
	err := t.breaker.Execute(func() error {
		var err error
		audioData, err = t.inner.Synthesize(ctx, text, voice)
		return err
	})
	return audioData, err
}
