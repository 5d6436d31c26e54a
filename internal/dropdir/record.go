// Package dropdir implements the filesystem hand-off between the receiver
// and transmitter processes: JSON transcription records written to a shared
// drop directory, consumed in timestamp order, and moved to a processed
// subdirectory once handled.
package dropdir

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayout produces lexically sortable UTC filenames, so directory
// order equals arrival order.
const timestampLayout = "20060102T150405.000000000Z"

// naiveLayout is ISO-8601 without a UTC offset, as external producers write
// it (e.g. "2024-01-01T00:00:00"). The fractional part is optional. Naive
// timestamps are taken as UTC.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Record is one transcribed utterance as exchanged through the drop
// directory.
type Record struct {
	// Timestamp is the capture time in UTC.
	Timestamp time.Time `json:"timestamp"`

	// Transcription is the recognized text.
	Transcription string `json:"transcription"`

	// ToolResponse carries a synthetic tool result injected by an external
	// producer, if any.
	ToolResponse string `json:"tool_response,omitempty"`

	// AudioFile is the path of the debug WAV dump for this utterance, if
	// dumps are enabled.
	AudioFile string `json:"audio_file,omitempty"`
}

// Filename returns the drop-directory filename for the record. Names sort
// lexically in timestamp order.
func (r Record) Filename() string {
	return fmt.Sprintf("transcription_%s.json", r.Timestamp.UTC().Format(timestampLayout))
}

// UnmarshalJSON accepts the timestamp both as RFC 3339 and as the naive
// ISO-8601 form without an offset.
func (r *Record) UnmarshalJSON(data []byte) error {
	type alias Record
	aux := struct {
		Timestamp string `json:"timestamp"`
		*alias
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timestamp == "" {
		return nil
	}
	ts, err := parseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}
	r.Timestamp = ts
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(naiveLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("dropdir: parsing timestamp %q: %w", s, err)
	}
	return ts, nil
}
