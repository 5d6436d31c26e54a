// Package persona loads dispatcher persona profiles: JSON files describing a
// character's system prompt, per-provider voice identities, and the spoken
// phrases that activate it.
package persona

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultVoice is the voice identity used when a persona does not name one
// for the active synthesis provider.
const DefaultVoice = "alloy"

// militaryTimePlaceholder is substituted with the current HH:MM wall time
// when the prompt is rendered, so personas can reference "now" in character.
const militaryTimePlaceholder = "{military_time}"

// Persona is one loadable character definition.
type Persona struct {
	// Name is the persona identifier, derived from its filename.
	Name string `json:"-"`

	// Prompt is the system prompt template. It may contain the
	// {military_time} placeholder.
	Prompt string `json:"prompt"`

	// Voices maps synthesis provider names to voice identities.
	Voices map[string]string `json:"voices"`

	// ActivationPhrases are the spoken phrases that select this persona.
	// Matching is a case-insensitive substring test.
	ActivationPhrases []string `json:"activation_phrases"`
}

// Validate reports every structural problem with the persona at once.
func (p *Persona) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Prompt) == "" {
		errs = append(errs, fmt.Errorf("persona %s: prompt must not be empty", p.Name))
	}
	for i, phrase := range p.ActivationPhrases {
		if strings.TrimSpace(phrase) == "" {
			errs = append(errs, fmt.Errorf("persona %s: activation phrase %d is empty", p.Name, i))
		}
	}
	return errors.Join(errs...)
}

// RenderPrompt returns the system prompt with time placeholders substituted
// against now.
func (p *Persona) RenderPrompt(now time.Time) string {
	return strings.ReplaceAll(p.Prompt, militaryTimePlaceholder, now.Format("15:04"))
}

// VoiceFor returns the persona's voice for the named synthesis provider,
// falling back to DefaultVoice when none is configured.
func (p *Persona) VoiceFor(provider string) string {
	if v, ok := p.Voices[provider]; ok && v != "" {
		return v
	}
	return DefaultVoice
}

// Activates reports whether the transcription contains any of the persona's
// activation phrases, ignoring case.
func (p *Persona) Activates(transcription string) bool {
	lower := strings.ToLower(transcription)
	for _, phrase := range p.ActivationPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
