// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify the exact conversation the dispatcher
// sends and to feed controlled replies without a live model.
package mock

import (
	"context"
	"sync"

	"github.com/varactor/squawk/pkg/provider/llm"
)

// CompleteCall records one invocation of Complete.
type CompleteCall struct {
	// Messages is the conversation passed to Complete.
	Messages []llm.Message
}

// Provider is a mock implementation of llm.Provider. Configure the response
// fields before use; call records can be read back after the test.
type Provider struct {
	mu sync.Mutex

	// Replies is the sequence of completions to return, one per call. When
	// exhausted, Complete returns Reply.
	Replies []string

	// Reply is the completion returned once Replies is exhausted.
	Reply string

	// Err, if non-nil, is returned by every Complete call.
	Err error

	calls []CompleteCall
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (p *Provider) Complete(_ context.Context, messages []llm.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)
	call := len(p.calls)
	p.calls = append(p.calls, CompleteCall{Messages: msgs})

	if p.Err != nil {
		return "", p.Err
	}
	if call < len(p.Replies) {
		return p.Replies[call], nil
	}
	return p.Reply, nil
}

// Calls returns every Complete invocation in order.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.calls))
	copy(out, p.calls)
	return out
}
