package audio

import (
	"bytes"
	"math"
	"testing"
	"time"
)

func TestRMS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{name: "empty", samples: nil, want: 0},
		{name: "silence", samples: make([]float32, 512), want: 0},
		{name: "full scale", samples: []float32{1, -1, 1, -1}, want: 1},
		{name: "half scale", samples: []float32{0.5, -0.5}, want: 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := RMS(tt.samples)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("RMS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClipDuration(t *testing.T) {
	t.Parallel()

	clip := &Clip{
		Samples:    make([]float32, 44100*2), // 1 s of stereo
		SampleRate: 44100,
		Channels:   2,
	}
	if got := clip.Duration(); got != time.Second {
		t.Errorf("Duration() = %v, want 1s", got)
	}
	if got := clip.Frames(); got != 44100 {
		t.Errorf("Frames() = %d, want 44100", got)
	}
}

func TestEncodeDecodeWAVRoundTrip(t *testing.T) {
	t.Parallel()

	in := &Clip{
		SampleRate: 16000,
		Channels:   1,
		Samples:    make([]float32, 1600),
	}
	// A ramp so sample positions are distinguishable after the int16 trip.
	for i := range in.Samples {
		in.Samples[i] = float32(i%100) / 200
	}

	data, err := WAVBytes(in)
	if err != nil {
		t.Fatalf("WAVBytes: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("WAVBytes returned empty payload")
	}

	out, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if out.SampleRate != in.SampleRate {
		t.Errorf("sample rate = %d, want %d", out.SampleRate, in.SampleRate)
	}
	if out.Channels != in.Channels {
		t.Errorf("channels = %d, want %d", out.Channels, in.Channels)
	}
	if len(out.Samples) != len(in.Samples) {
		t.Fatalf("sample count = %d, want %d", len(out.Samples), len(in.Samples))
	}
	// 16-bit quantisation allows ~1/32767 of error per sample.
	for i := range in.Samples {
		if math.Abs(float64(out.Samples[i]-in.Samples[i])) > 1.0/32000 {
			t.Fatalf("sample %d = %v, want ~%v", i, out.Samples[i], in.Samples[i])
		}
	}
}

func TestEncodeWAVClampsOverdrive(t *testing.T) {
	t.Parallel()

	clip := &Clip{
		SampleRate: 8000,
		Channels:   1,
		Samples:    []float32{2.5, -3.0, 0},
	}
	data, err := WAVBytes(clip)
	if err != nil {
		t.Fatalf("WAVBytes: %v", err)
	}
	out, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if out.Samples[0] < 0.99 || out.Samples[0] > 1.01 {
		t.Errorf("overdriven sample decoded as %v, want ~1", out.Samples[0])
	}
	if out.Samples[1] > -0.99 {
		t.Errorf("negative overdrive decoded as %v, want ~-1", out.Samples[1])
	}
}

func TestEncodeWAVRejectsBadFormat(t *testing.T) {
	t.Parallel()

	var ws sliceWriteSeeker
	if err := EncodeWAV(&ws, &Clip{SampleRate: 0, Channels: 1}); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if err := EncodeWAV(&ws, &Clip{SampleRate: 16000, Channels: 0}); err == nil {
		t.Error("expected error for zero channels")
	}
}
