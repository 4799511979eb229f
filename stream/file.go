package stream

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/garlicgarrison/go-emotion-recorder/codec"
)

// FileSource replays a wav file as if it were being captured. Elapsed time is
// derived from the number of samples handed out, so a file is segmented the
// same way regardless of how fast it is read. With Realtime set, Read also
// sleeps for the duration of each chunk.
type FileSource struct {
	Path            string
	FramesPerBuffer int
	Realtime        bool

	wav *codec.WAVFile
	pos int
}

func NewFileSource(path string, framesPerBuffer int, realtime bool) *FileSource {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	return &FileSource{
		Path:            path,
		FramesPerBuffer: framesPerBuffer,
		Realtime:        realtime,
	}
}

func (f *FileSource) Start() error {
	fd, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCapture, err)
	}
	defer fd.Close()

	wav, err := codec.DecodeWAV(fd)
	if err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrCapture, f.Path, err)
	}

	f.wav = wav
	f.pos = 0
	return nil
}

func (f *FileSource) Format() codec.Format {
	if f.wav == nil {
		return codec.Format{}
	}
	return f.wav.Format
}

// Duration is the length of the decoded file; zero before Start.
func (f *FileSource) Duration() time.Duration {
	if f.wav == nil {
		return 0
	}
	return f.elapsed(len(f.wav.Data))
}

func (f *FileSource) Read(ctx context.Context) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}
	if f.wav == nil {
		return Chunk{}, ErrClosed
	}
	if f.pos >= len(f.wav.Data) {
		return Chunk{}, io.EOF
	}

	end := min(f.pos+f.FramesPerBuffer*f.wav.Format.Channels, len(f.wav.Data))
	samples := f.wav.Data[f.pos:end]
	f.pos = end

	chunk := Chunk{Samples: samples, Elapsed: f.elapsed(end)}
	if f.Realtime {
		t := time.NewTimer(f.elapsed(len(samples)))
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Chunk{}, ctx.Err()
		case <-t.C:
		}
	}
	return chunk, nil
}

func (f *FileSource) Close() error {
	f.wav = nil
	return nil
}

func (f *FileSource) elapsed(samples int) time.Duration {
	frames := samples / f.wav.Format.Channels
	return time.Duration(frames) * time.Second / time.Duration(f.wav.Format.SampleRate)
}
