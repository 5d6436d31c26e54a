// Package openai provides a tts.Provider backed by the OpenAI speech API.
package openai

import (
	"context"
	"fmt"
	"io"

	openailib "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/varactor/squawk/pkg/provider/tts"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "tts-1"

// Provider implements tts.Provider using the OpenAI API.
type Provider struct {
	client openailib.Client
	model  string
	speed  float64
}

var _ tts.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithModel overrides the speech model.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithSpeed sets the playback speed multiplier in [0.25, 4.0].
func WithSpeed(speed float64) Option {
	return func(p *Provider) { p.speed = speed }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
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

// Name implements tts.Provider.
func (p *Provider) Name() string { return "openai" }

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	params := openailib.AudioSpeechNewParams{
		Model:          openailib.SpeechModel(p.model),
		Input:          text,
		Voice:          openailib.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openailib.AudioSpeechNewParamsResponseFormatWAV,
	}
	if p.speed != 0 {
		params.Speed = openailib.Float(p.speed)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read audio: %w", err)
	}
	return data, nil
}
