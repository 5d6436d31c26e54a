package dispatch

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/varactor/squawk/internal/persona"
)

// echoMemory is how many recent spoken responses are remembered for
// self-echo suppression.
const echoMemory = 10

// Selector decides which persona, if any, answers a transcript. It carries
// the active-persona session state and the recent-response memory that
// suppresses feedback loops from imperfect lock timing.
//
// Selector is mutated only by the poll loop; it needs no locking.
type Selector struct {
	profile *persona.Profile
	timeout time.Duration
	pick    func(n int) int

	active          *persona.Persona
	lastInteraction time.Time

	recent []string
}

// SelectorOption is a functional option for configuring a Selector.
type SelectorOption func(*Selector)

// WithPicker overrides the random persona choice. pick receives the persona
// count and returns an index. Tests use this to make the fallback
// deterministic.
func WithPicker(pick func(n int) int) SelectorOption {
	return func(s *Selector) { s.pick = pick }
}

// NewSelector creates a Selector over the profile's personas. timeout is how
// long a conversation stays bound to the active persona without new
// interaction.
func NewSelector(profile *persona.Profile, timeout time.Duration, opts ...SelectorOption) *Selector {
	s := &Selector{
		profile: profile,
		timeout: timeout,
		pick:    rand.IntN,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Select returns the persona that should answer the transcript, or nil when
// nobody should. Decision order: self-echo suppression, explicit activation,
// session continuation, single-persona adoption, random fallback.
func (s *Selector) Select(transcription string, now time.Time) *persona.Persona {
	trimmed := strings.TrimSpace(transcription)
	for _, r := range s.recent {
		if trimmed == r {
			return nil
		}
	}

	if p := s.profile.Activated(transcription); p != nil {
		s.adopt(p, now)
		return p
	}

	if s.active != nil {
		if now.Sub(s.lastInteraction) <= s.timeout {
			s.lastInteraction = now
			return s.active
		}
		s.active = nil
	}

	if p := s.profile.Single(); p != nil {
		s.adopt(p, now)
		return p
	}

	// Multiple personas, none addressed: anyone might answer a radio call.
	personas := s.profile.Personas()
	if len(personas) > 0 {
		p := personas[s.pick(len(personas))]
		s.adopt(p, now)
		return p
	}
	return nil
}

func (s *Selector) adopt(p *persona.Persona, now time.Time) {
	s.active = p
	s.lastInteraction = now
}

// NoteResponse remembers a spoken response text for self-echo suppression.
func (s *Selector) NoteResponse(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	s.recent = append(s.recent, trimmed)
	if len(s.recent) > echoMemory {
		s.recent = s.recent[len(s.recent)-echoMemory:]
	}
}

// Active returns the currently bound persona, or nil.
func (s *Selector) Active() *persona.Persona { return s.active }
