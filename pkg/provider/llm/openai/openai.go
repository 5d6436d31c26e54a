// Package openai provides an llm.Provider backed by the OpenAI chat
// completions API.
package openai

import (
	"context"
	"fmt"

	openailib "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/varactor/squawk/pkg/provider/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Provider implements llm.Provider using the OpenAI API.
type Provider struct {
	client      openailib.Client
	model       string
	temperature float64
}

var _ llm.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(p *Provider) { p.temperature = t }
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

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	params := openailib.ChatCompletionNewParams{
		Model:    openailib.ChatModel(p.model),
		Messages: convertMessages(messages),
	}
	if p.temperature != 0 {
		params.Temperature = openailib.Float(p.temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai llm: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func convertMessages(messages []llm.Message) []openailib.ChatCompletionMessageParamUnion {
	out := make([]openailib.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openailib.SystemMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, openailib.AssistantMessage(m.Content))
		default:
			out = append(out, openailib.UserMessage(m.Content))
		}
	}
	return out
}
