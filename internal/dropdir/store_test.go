package dropdir

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(afero.NewMemMapFs(), "/var/lib/squawk/drop")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	rec := Record{
		Timestamp:     time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC),
		Transcription: "open the pod bay doors",
		AudioFile:     "/tmp/utterance.wav",
	}

	if _, err := s.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	names, err := s.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(names) != 1 {
		t.Fatalf("expected 1 pending record, got %d", len(names))
	}

	got, err := s.Read(names[0])
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Transcription != rec.Transcription {
		t.Errorf("transcription %q, want %q", got.Transcription, rec.Transcription)
	}
	if !got.Timestamp.Equal(rec.Timestamp) {
		t.Errorf("timestamp %v, want %v", got.Timestamp, rec.Timestamp)
	}
	if got.AudioFile != rec.AudioFile {
		t.Errorf("audio file %q, want %q", got.AudioFile, rec.AudioFile)
	}
}

func TestStorePendingSortsByTimestamp(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	// Written out of order on purpose.
	for _, offset := range []time.Duration{2 * time.Second, 0, time.Second} {
		rec := Record{Timestamp: base.Add(offset), Transcription: "x"}
		if _, err := s.Write(rec); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	names, err := s.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("expected 3 pending records, got %d", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("pending not sorted: %q before %q", names[i-1], names[i])
		}
	}
}

func TestStoreConsumeRemovesFromPending(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	rec := Record{Timestamp: time.Now().UTC(), Transcription: "hello"}
	if _, err := s.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := s.Consume(rec.Filename()); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	names, err := s.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("consumed record still pending: %v", names)
	}
}

func TestStoreIgnoresForeignFiles(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	s, err := NewStore(fs, "/drop")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := afero.WriteFile(fs, "/drop/notes.txt", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/drop/transcription_bad.json.tmp", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	names, err := s.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("foreign files listed as pending: %v", names)
	}
}

func TestStoreReadNaiveTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		timestamp string
		want      time.Time
	}{
		{
			name:      "offset-less seconds",
			timestamp: "2024-01-01T00:00:00",
			want:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "offset-less microseconds",
			timestamp: "2024-01-01T00:00:00.123456",
			want:      time.Date(2024, 1, 1, 0, 0, 0, 123456000, time.UTC),
		},
		{
			name:      "rfc3339",
			timestamp: "2024-01-01T00:00:00Z",
			want:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			s, err := NewStore(fs, "/drop")
			if err != nil {
				t.Fatalf("NewStore: %v", err)
			}
			name := "transcription_20240101T000000.000000000Z.json"
			body := `{"timestamp": "` + tt.timestamp + `", "transcription": "radio check"}`
			if err := afero.WriteFile(fs, "/drop/"+name, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}

			rec, err := s.Read(name)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if !rec.Timestamp.Equal(tt.want) {
				t.Errorf("timestamp %v, want %v", rec.Timestamp, tt.want)
			}
			if rec.Transcription != "radio check" {
				t.Errorf("transcription %q, want %q", rec.Transcription, "radio check")
			}
		})
	}
}

func TestStoreReadMalformed(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	s, err := NewStore(fs, "/drop")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	name := "transcription_20260314T120000.000000000Z.json"
	if err := afero.WriteFile(fs, "/drop/"+name, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Read(name); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
