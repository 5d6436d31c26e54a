// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/varactor/squawk/pkg/provider/tts"
)

// SynthesizeCall records one invocation of Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice string
}

// Provider is a mock implementation of tts.Provider. Configure the response
// fields before use; call records can be read back after the test.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Audio is the payload returned by every Synthesize call.
	Audio []byte

	// Err, if non-nil, is returned by every Synthesize call.
	Err error

	calls []SynthesizeCall
}

var _ tts.Provider = (*Provider)(nil)

// Name implements tts.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(_ context.Context, text, voice string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, SynthesizeCall{Text: text, Voice: voice})
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Audio, nil
}

// Calls returns every Synthesize invocation in order.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.calls))
	copy(out, p.calls)
	return out
}
