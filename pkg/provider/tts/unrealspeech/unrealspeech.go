// Package unrealspeech provides a tts.Provider backed by the UnrealSpeech
// HTTP API.
package unrealspeech

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/varactor/squawk/pkg/audio"
	"github.com/varactor/squawk/pkg/provider/tts"
)

const defaultEndpoint = "https://api.v8.unrealspeech.com/stream"

// outputRate is the sample rate of the /stream endpoint's PCM output.
const outputRate = 22050

// Provider implements tts.Provider using the UnrealSpeech /stream endpoint,
// which returns the complete audio body in one response.
type Provider struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithEndpoint overrides the API endpoint, e.g. for tests.
func WithEndpoint(url string) Option {
	return func(p *Provider) { p.endpoint = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("unrealspeech: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "unrealspeech" }

type streamRequest struct {
	Text    string `json:"Text"`
	VoiceID string `json:"VoiceId"`
	Codec   string `json:"Codec"`
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	body, err := json.Marshal(streamRequest{Text: text, VoiceID: voice, Codec: "pcm_s16le"})
	if err != nil {
		return nil, fmt.Errorf("unrealspeech: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unrealspeech: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unrealspeech: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unrealspeech: status %d: %s", resp.StatusCode, msg)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unrealspeech: read audio: %w", err)
	}
	return pcmToWAV(pcm)
}

// pcmToWAV wraps the raw 16-bit little-endian mono PCM response into a WAV
// container so playback gets a decodable artifact.
func pcmToWAV(pcm []byte) ([]byte, error) {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:i*2+2]))) / 32768.0
	}
	clip := &audio.Clip{Samples: samples, SampleRate: outputRate, Channels: 1}
	data, err := audio.WAVBytes(clip)
	if err != nil {
		return nil, fmt.Errorf("unrealspeech: encode wav: %w", err)
	}
	return data, nil
}
