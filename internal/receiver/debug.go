package receiver

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	wave "github.com/zenwerk/go-wave"
)

// recorderQueue bounds frames buffered ahead of the writer goroutine. When
// the writer falls behind, newer frames are dropped rather than stalling the
// capture callback.
const recorderQueue = 256

// sessionRecorder streams captured frames into one WAV file for the whole
// receiver session. Debug only. Frames are handed off on a bounded queue and
// written on a dedicated goroutine; the capture callback never touches the
// file. Ticks captured while the playback lock is held are not enqueued, so
// playback intervals appear as gaps.
type sessionRecorder struct {
	writer *wave.Writer
	frames chan []float32
	done   chan struct{}
}

func newSessionRecorder(fs afero.Fs, dir string, sampleRate, channels int, start time.Time) (*sessionRecorder, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("receiver: creating debug dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("session_%s.wav", start.UTC().Format("20060102T150405Z")))
	file, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("receiver: creating session recording %s: %w", path, err)
	}

	writer, err := wave.NewWriter(wave.WriterParam{
		Out:           file,
		Channel:       channels,
		SampleRate:    sampleRate,
		BitsPerSample: 16,
	})
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("receiver: creating wave writer: %w", err)
	}

	r := &sessionRecorder{
		writer: writer,
		frames: make(chan []float32, recorderQueue),
		done:   make(chan struct{}),
	}
	go r.writeLoop()
	return r, nil
}

func (r *sessionRecorder) writeLoop() {
	defer close(r.done)
	for frame := range r.frames {
		samples := make([]int16, len(frame))
		for i, s := range frame {
			if s > 1 {
				s = 1
			} else if s < -1 {
				s = -1
			}
			samples[i] = int16(s * 32767)
		}
		if _, err := r.writer.WriteSample16(samples); err != nil {
			slog.Error("receiver: session recording write failed", "error", err)
		}
	}
}

// WriteFrame enqueues a copy of one captured frame. It never blocks; when
// the queue is full the frame is dropped.
func (r *sessionRecorder) WriteFrame(frame []float32) {
	buf := make([]float32, len(frame))
	copy(buf, frame)
	select {
	case r.frames <- buf:
	default:
		slog.Warn("receiver: session recording queue full, dropping frame")
	}
}

// Close drains pending frames and finalizes the WAV header. The writer
// closes the underlying file. Call only after frame delivery has stopped.
func (r *sessionRecorder) Close() error {
	close(r.frames)
	<-r.done
	return r.writer.Close()
}
