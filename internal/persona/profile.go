package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ErrEmptyProfile marks a profile directory with no loadable personas.
var ErrEmptyProfile = errors.New("persona: profile contains no personas")

// Profile is a loaded set of personas sharing one dispatcher.
type Profile struct {
	// Name is the profile identifier, derived from its directory name.
	Name string

	personas []*Persona
}

// LoadProfile reads every *.json persona definition under dir. Personas load
// in filename order so profiles behave the same across runs. An activation
// phrase already claimed by an earlier persona is logged and dropped from the
// later one.
func LoadProfile(fs afero.Fs, dir string) (*Profile, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("persona: reading profile %s: %w", dir, err)
	}

	var names []string
	for _, fi := range infos {
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), ".json") {
			continue
		}
		names = append(names, fi.Name())
	}
	sort.Strings(names)

	prof := &Profile{Name: filepath.Base(dir)}
	claimed := make(map[string]string) // lowercase phrase -> persona name
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("persona: reading %s: %w", path, err)
		}
		p := &Persona{Name: strings.TrimSuffix(name, ".json")}
		if err := json.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("persona: decoding %s: %w", path, err)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("persona: invalid %s: %w", path, err)
		}

		kept := p.ActivationPhrases[:0]
		for _, phrase := range p.ActivationPhrases {
			key := strings.ToLower(strings.TrimSpace(phrase))
			if owner, dup := claimed[key]; dup {
				slog.Warn("persona: duplicate activation phrase ignored",
					"phrase", phrase, "persona", p.Name, "claimed_by", owner)
				continue
			}
			claimed[key] = p.Name
			kept = append(kept, phrase)
		}
		p.ActivationPhrases = kept

		prof.personas = append(prof.personas, p)
	}

	if len(prof.personas) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyProfile, dir)
	}
	return prof, nil
}

// Personas returns the profile's personas in load order.
func (pr *Profile) Personas() []*Persona { return pr.personas }

// Single returns the profile's only persona, or nil when the profile holds
// more than one.
func (pr *Profile) Single() *Persona {
	if len(pr.personas) == 1 {
		return pr.personas[0]
	}
	return nil
}

// Activated returns the first persona whose activation phrases match the
// transcription, in load order.
func (pr *Profile) Activated(transcription string) *Persona {
	for _, p := range pr.personas {
		if p.Activates(transcription) {
			return p
		}
	}
	return nil
}
