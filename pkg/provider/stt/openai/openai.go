// Package openai provides an stt.Provider backed by the OpenAI audio
// transcription API (Whisper and its successors).
package openai

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openailib "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/varactor/squawk/pkg/provider/stt"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "whisper-1"

// Provider implements stt.Provider using the OpenAI API.
type Provider struct {
	client   openailib.Client
	model    string
	language string
}

var _ stt.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithModel overrides the transcription model.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage pins the recognition language (ISO 639-1, e.g. "en").
// Unset lets the API auto-detect.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint, e.g. a
// local inference server.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.client = openailib.NewClient(option.WithBaseURL(url))
	}
}

// New creates a Provider. Without options the client reads OPENAI_API_KEY
// from the environment.
func New(opts ...Option) *Provider {
	p := &Provider{
		client: openailib.NewClient(),
		model:  DefaultModel,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, wavData []byte) (string, error) {
	params := openailib.AudioTranscriptionNewParams{
		Model: openailib.AudioModel(p.model),
		File:  openailib.File(bytes.NewReader(wavData), "utterance.wav", "audio/wav"),
	}
	if p.language != "" {
		params.Language = openailib.String(p.language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai stt: transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
