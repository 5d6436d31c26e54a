// Package dispatch implements the transmitter's conversation core: persona
// selection, bounded conversation history, the two-pass completion protocol,
// and the drop-directory poll loop that drives them.
package dispatch

import (
	"time"

	"github.com/varactor/squawk/pkg/provider/llm"
)

// entry is one retained conversation turn.
type entry struct {
	role    string
	content string
	at      time.Time
}

// History is the bounded conversation memory. Old turns expire by age and the
// remainder is capped by count, so prompts stay inside the model's useful
// context regardless of how long the channel stays busy.
//
// History is mutated only by the poll loop; it needs no locking.
type History struct {
	limit      int
	expiration time.Duration
	entries    []entry
}

// NewHistory creates a History keeping at most limit turns, each for at most
// expiration.
func NewHistory(limit int, expiration time.Duration) *History {
	return &History{limit: limit, expiration: expiration}
}

// Append records a turn and re-trims: expired turns go first, then the
// oldest beyond the count cap.
func (h *History) Append(role, content string, now time.Time) {
	h.entries = append(h.entries, entry{role: role, content: content, at: now})

	cutoff := now.Add(-h.expiration)
	i := 0
	for i < len(h.entries) && h.entries[i].at.Before(cutoff) {
		i++
	}
	h.entries = h.entries[i:]

	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// Messages returns the retained turns as an ordered conversation.
func (h *History) Messages() []llm.Message {
	out := make([]llm.Message, len(h.entries))
	for i, e := range h.entries {
		out[i] = llm.Message{Role: e.role, Content: e.content}
	}
	return out
}

// Len returns the number of retained turns.
func (h *History) Len() int { return len(h.entries) }
