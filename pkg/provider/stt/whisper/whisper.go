// Package whisper provides an stt.Provider backed by the whisper.cpp CGO
// bindings, for fully local transcription without network round trips.
//
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/varactor/squawk/pkg/audio"
	"github.com/varactor/squawk/pkg/provider/stt"
)

// modelSampleRate is the input rate whisper.cpp models are trained on.
// Utterances captured at other rates are resampled before inference.
const modelSampleRate = 16000

const defaultLanguage = "en"

// Provider implements stt.Provider using a locally loaded whisper.cpp model.
// The model is loaded once and shared; each Transcribe call runs on its own
// whisper context, so concurrent calls are safe.
type Provider struct {
	model    whisperlib.Model
	language string
}

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the transcription language code (e.g. "en", "de").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// New loads the whisper.cpp model from modelPath. The caller must call Close
// when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements stt.Provider. The WAV payload is decoded, downmixed
// to mono, resampled to the model rate, and run through a fresh whisper
// context.
func (p *Provider) Transcribe(ctx context.Context, wavData []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}

	clip, err := audio.DecodeWAV(bytes.NewReader(wavData))
	if err != nil {
		return "", fmt.Errorf("whisper: decode utterance: %w", err)
	}
	samples := downmixMono(clip.Samples, clip.Channels)
	if clip.SampleRate != modelSampleRate {
		samples = resampleLinear(samples, clip.SampleRate, modelSampleRate)
	}

	// A whisper context is not safe for concurrent use; the shared model is.
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("whisper: failed to set language, using default",
			"language", p.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// downmixMono averages interleaved channels into one.
func downmixMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// resampleLinear converts samples from srcRate to dstRate by linear
// interpolation. Good enough for speech recognition input; not suitable for
// playback paths.
func resampleLinear(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(srcRate) / float64(dstRate)
	n := int(float64(len(samples)) / ratio)
	out := make([]float32, n)
	for i := range n {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}
