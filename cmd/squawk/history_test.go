package main

import (
	"strings"
	"testing"
	"time"

	"github.com/varactor/squawk/internal/archive"
)

func TestWriteExchanges(t *testing.T) {
	t.Parallel()

	exchanges := []archive.Exchange{
		{
			Profile:       "warehouse",
			Persona:       "tower",
			Transcription: "tower, radio check",
			Response:      "read you loud and clear",
			At:            time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
		},
	}

	var sb strings.Builder
	writeExchanges(&sb, exchanges)
	out := sb.String()

	for _, want := range []string{
		"[2026-08-31T10:00:00Z] warehouse/tower",
		"heard: tower, radio check",
		"said:  read you loud and clear",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteExchangesEmpty(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	writeExchanges(&sb, nil)
	if got := sb.String(); got != "no exchanges found\n" {
		t.Errorf("output %q", got)
	}
}
