// Package llm defines the Provider interface for Large Language Model
// backends.
//
// Dispatch generation is conversational and synchronous: the dispatcher sends
// the rendered persona prompt plus conversation history and waits for one
// complete reply. Tool use is expressed in-band through the reply text, so
// the interface carries no structured tool-calling surface.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	// Role is one of RoleSystem, RoleUser, RoleAssistant.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends the ordered conversation to the model and returns the
	// full text of its reply.
	//
	// Implementations must respect ctx cancellation.
	Complete(ctx context.Context, messages []Message) (string, error)
}
