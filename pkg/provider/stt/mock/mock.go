// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider in unit tests to feed controlled transcriptions without a
// live recognition backend.
package mock

import (
	"context"
	"sync"

	"github.com/varactor/squawk/pkg/provider/stt"
)

// Provider is a mock implementation of stt.Provider. Configure the response
// fields before use; call records can be read back after the test.
type Provider struct {
	mu sync.Mutex

	// Texts is the sequence of transcriptions to return, one per call. When
	// exhausted, Transcribe returns Text.
	Texts []string

	// Text is the transcription returned once Texts is exhausted.
	Text string

	// Err, if non-nil, is returned by every Transcribe call.
	Err error

	calls int
	// Payloads records the WAV bytes of every Transcribe call in order.
	Payloads [][]byte
}

var _ stt.Provider = (*Provider)(nil)

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(_ context.Context, wavData []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Payloads = append(p.Payloads, wavData)
	call := p.calls
	p.calls++

	if p.Err != nil {
		return "", p.Err
	}
	if call < len(p.Texts) {
		return p.Texts[call], nil
	}
	return p.Text, nil
}

// Calls returns how many times Transcribe was invoked.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
