// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider renders one complete response into a playable WAV payload.
// Dispatch responses are short and are played strictly after generation, so
// the interface is batch rather than streaming.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Name identifies the backend, e.g. "openai" or "elevenlabs". Persona
	// profiles key their voice maps by this name.
	Name() string

	// Synthesize renders text spoken by the given voice identity and returns
	// complete WAV audio ready for playback.
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}
