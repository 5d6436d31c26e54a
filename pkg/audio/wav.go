package audio

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavBitDepth is the sample width used for all encoded artifacts. STT and TTS
// collaborators expect 16-bit signed little-endian PCM.
const wavBitDepth = 16

// EncodeWAV writes clip as a 16-bit PCM WAV to ws. Float samples are clamped
// to [-1, 1] before conversion so an overdriven capture cannot wrap around.
func EncodeWAV(ws io.WriteSeeker, clip *Clip) error {
	if clip.SampleRate <= 0 {
		return fmt.Errorf("audio: encode wav: sample rate %d is invalid", clip.SampleRate)
	}
	if clip.Channels <= 0 {
		return fmt.Errorf("audio: encode wav: channel count %d is invalid", clip.Channels)
	}

	enc := wav.NewEncoder(ws, clip.SampleRate, wavBitDepth, clip.Channels, 1)

	data := make([]int, len(clip.Samples))
	for i, s := range clip.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: clip.Channels,
			SampleRate:  clip.SampleRate,
		},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalise wav: %w", err)
	}
	return nil
}

// WAVBytes encodes clip as an in-memory WAV file, suitable for upload to a
// transcription collaborator.
func WAVBytes(clip *Clip) ([]byte, error) {
	var ws sliceWriteSeeker
	if err := EncodeWAV(&ws, clip); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// DecodeWAV reads a 16-bit PCM WAV from rs into a Clip.
func DecodeWAV(rs io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(rs)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: decode wav: %w", err)
	}
	if buf.Format == nil {
		return nil, fmt.Errorf("audio: decode wav: missing format chunk")
	}

	f32 := buf.AsFloat32Buffer()
	return &Clip{
		Samples:    f32.Data,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

// sliceWriteSeeker is a minimal in-memory io.WriteSeeker for the WAV encoder,
// which seeks back to patch the RIFF header on Close.
type sliceWriteSeeker struct {
	buf []byte
	pos int
}

func (s *sliceWriteSeeker) Write(p []byte) (int, error) {
	if need := s.pos + len(p); need > len(s.buf) {
		grown := make([]byte, need)
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[s.pos:], p)
	s.pos += len(p)
	return len(p), nil
}

func (s *sliceWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(s.pos) + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("audio: invalid seek whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("audio: negative seek position %d", abs)
	}
	s.pos = int(abs)
	return abs, nil
}
