// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider turns one complete utterance recording into text. Squawk
// segments audio before transcription, so the interface is batch rather than
// streaming: the receiver hands over a finished WAV clip and waits for the
// recognized text.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognizes the speech in a complete WAV-encoded utterance
	// and returns its text. An empty string with a nil error means the
	// provider heard nothing intelligible.
	//
	// Implementations must respect ctx cancellation.
	Transcribe(ctx context.Context, wavData []byte) (string, error)
}
