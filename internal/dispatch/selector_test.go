package dispatch

import (
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/varactor/squawk/internal/persona"
)

func loadTestProfile(t *testing.T, personas map[string]string) *persona.Profile {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, body := range personas {
		if err := afero.WriteFile(fs, "/p/"+name+".json", []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	prof, err := persona.LoadProfile(fs, "/p")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	return prof
}

func twoPersonaProfile(t *testing.T) *persona.Profile {
	t.Helper()
	return loadTestProfile(t, map[string]string{
		"scout": `{"prompt":"scout","activation_phrases":["hey scout"]}`,
		"tower": `{"prompt":"tower","activation_phrases":["hey tower"]}`,
	})
}

func TestSelectorActivationPhraseWins(t *testing.T) {
	t.Parallel()

	s := NewSelector(twoPersonaProfile(t), 5*time.Minute)
	now := time.Now()

	p := s.Select("hey scout, you there?", now)
	if p == nil || p.Name != "scout" {
		t.Fatalf("activation phrase did not select scout, got %v", p)
	}
	if s.Active() != p {
		t.Error("activated persona not bound as active")
	}
}

func TestSelectorSessionContinuation(t *testing.T) {
	t.Parallel()

	s := NewSelector(twoPersonaProfile(t), 5*time.Minute)
	base := time.Now()

	s.Select("hey scout", base)
	p := s.Select("what do you see", base.Add(2*time.Minute))
	if p == nil || p.Name != "scout" {
		t.Fatalf("session did not continue with scout, got %v", p)
	}

	// Continuation refreshes the interaction clock.
	p = s.Select("and now", base.Add(6*time.Minute))
	if p == nil || p.Name != "scout" {
		t.Fatalf("refreshed session did not continue, got %v", p)
	}
}

func TestSelectorTimeoutFallsBackToRandom(t *testing.T) {
	t.Parallel()

	picked := -1
	s := NewSelector(twoPersonaProfile(t), 5*time.Minute,
		WithPicker(func(n int) int { picked = n; return 1 }))
	base := time.Now()

	s.Select("hey scout", base)
	p := s.Select("anyone out there", base.Add(10*time.Minute))
	if p == nil {
		t.Fatal("random fallback returned no persona")
	}
	if picked != 2 {
		t.Fatalf("picker not consulted over all personas, n=%d", picked)
	}
	if p.Name != "tower" {
		t.Errorf("picker index 1 should select tower, got %s", p.Name)
	}
}

func TestSelectorSinglePersonaAdoption(t *testing.T) {
	t.Parallel()

	prof := loadTestProfile(t, map[string]string{
		"solo": `{"prompt":"solo","activation_phrases":["hey solo"]}`,
	})
	s := NewSelector(prof, 5*time.Minute)

	p := s.Select("nothing in particular", time.Now())
	if p == nil || p.Name != "solo" {
		t.Fatalf("single persona not adopted, got %v", p)
	}
}

func TestSelectorSelfEchoSuppression(t *testing.T) {
	t.Parallel()

	s := NewSelector(twoPersonaProfile(t), 5*time.Minute)
	s.NoteResponse("Roger, holding position.")

	if p := s.Select("  Roger, holding position.  ", time.Now()); p != nil {
		t.Fatalf("self-echo selected persona %s", p.Name)
	}
	if p := s.Select("hey tower", time.Now()); p == nil || p.Name != "tower" {
		t.Error("non-echo transcript blocked after echo suppression")
	}
}

func TestSelectorEchoMemoryBounded(t *testing.T) {
	t.Parallel()

	s := NewSelector(twoPersonaProfile(t), 5*time.Minute)
	s.NoteResponse("oldest response")
	for i := 0; i < echoMemory; i++ {
		s.NoteResponse("filler")
	}

	// The oldest response has rolled out of the echo window.
	if p := s.Select("hey tower oldest response", time.Now()); p == nil {
		t.Error("expected persona for activation phrase transcript")
	}
	if p := s.Select("filler", time.Now()); p != nil {
		t.Errorf("recent response not suppressed, got %s", p.Name)
	}
}
