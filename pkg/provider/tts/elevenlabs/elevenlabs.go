// Package elevenlabs provides a tts.Provider backed by the ElevenLabs
// streaming WebSocket API. The stream is drained to completion and wrapped as
// WAV, since playback only starts once the full response is synthesised.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/websocket"

	"github.com/varactor/squawk/pkg/audio"
	"github.com/varactor/squawk/pkg/provider/tts"
)

const (
	wsEndpointFmt = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"
	defaultModel  = "eleven_flash_v2_5"

	// pcm_44100 matches the capture rate so playback needs no resampling.
	outputFormat = "pcm_44100"
	outputRate   = 44100
)

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey string
	model  string
}

var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g. "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{apiKey: apiKey, model: defaultModel}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "elevenlabs" }

// ---- WebSocket message types ----

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key,omitempty"`
}

type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// Synthesize implements tts.Provider. It opens a stream-input WebSocket,
// sends the full text, flushes, and collects PCM until the final message.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		return nil, errors.New("elevenlabs: voice must not be empty")
	}

	wsURL := fmt.Sprintf(wsEndpointFmt, voice, p.model, outputFormat)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// ElevenLabs requires a non-empty first text value on the handshake.
	boi := textMessage{
		Text:          " ",
		VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
		XiAPIKey:      p.apiKey,
	}
	if err := writeJSON(ctx, conn, boi); err != nil {
		return nil, fmt.Errorf("elevenlabs: handshake: %w", err)
	}
	if err := writeJSON(ctx, conn, textMessage{Text: text + " "}); err != nil {
		return nil, fmt.Errorf("elevenlabs: send text: %w", err)
	}
	// Empty text closes the input and flushes remaining audio.
	if err := writeJSON(ctx, conn, textMessage{Text: ""}); err != nil {
		return nil, fmt.Errorf("elevenlabs: flush: %w", err)
	}

	var pcm []byte
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if len(pcm) > 0 {
				// The server closes the socket after the final chunk.
				break
			}
			return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: decode audio chunk: %w", err)
			}
			pcm = append(pcm, chunk...)
		}
		if resp.IsFinal {
			break
		}
	}

	if len(pcm) == 0 {
		return nil, errors.New("elevenlabs: no audio returned")
	}
	return pcmToWAV(pcm)
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// pcmToWAV wraps raw 16-bit little-endian mono PCM at the stream output rate
// into a WAV container.
func pcmToWAV(pcm []byte) ([]byte, error) {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:i*2+2]))) / 32768.0
	}
	clip := &audio.Clip{Samples: samples, SampleRate: outputRate, Channels: 1}
	data, err := audio.WAVBytes(clip)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: encode wav: %w", err)
	}
	return data, nil
}
