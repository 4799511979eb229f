package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

var (
	ErrInvalidWAV     = errors.New("invalid wav file")
	ErrUnsupportedWAV = errors.New("unsupported wav encoding")
	ErrEmptyStream    = errors.New("empty sample stream")
)

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	BitsPerSample     = 16

	pcmFormat = 1
)

// Format is the sample rate and channel count of interleaved PCM16 audio.
type Format struct {
	SampleRate int
	Channels   int
}

func DefaultFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
	}
}

func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0
}

func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// WAVFile holds interleaved 16-bit PCM and the format it was recorded in.
type WAVFile struct {
	Format Format
	Data   []int16
}

func NewDefaultWAV(stream []int16) *WAVFile {
	return &WAVFile{
		Format: DefaultFormat(),
		Data:   stream,
	}
}

// EncodeWAV writes a complete RIFF/WAVE file, header included, so every
// buffer it returns can be played or uploaded on its own.
func (f *WAVFile) EncodeWAV() (*bytes.Buffer, error) {
	if !f.Format.Valid() {
		return nil, fmt.Errorf("%w: format %+v", ErrUnsupportedWAV, f.Format)
	}
	if len(f.Data) == 0 {
		return nil, ErrEmptyStream
	}

	ws := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(ws, f.Format.SampleRate, BitsPerSample, f.Format.Channels, pcmFormat)

	data := make([]int, len(f.Data))
	for i, s := range f.Data {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: f.Format.Channels,
			SampleRate:  f.Format.SampleRate,
		},
		Data:           data,
		SourceBitDepth: BitsPerSample,
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	out := &bytes.Buffer{}
	if _, err := out.ReadFrom(ws.BytesReader()); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeWAV reads a PCM wav of 16, 24 or 32 bits and normalizes the samples
// to 16 bits.
func DecodeWAV(r io.ReadSeeker) (*WAVFile, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if d.WavAudioFormat != pcmFormat {
		return nil, fmt.Errorf("%w: audio format %d", ErrUnsupportedWAV, d.WavAudioFormat)
	}

	shift := 0
	switch d.BitDepth {
	case 16:
	case 24:
		shift = 8
	case 32:
		shift = 16
	default:
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedWAV, d.BitDepth)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	data := make([]int16, len(buf.Data))
	for i, s := range buf.Data {
		data[i] = int16(s >> shift)
	}

	return &WAVFile{
		Format: Format{
			SampleRate: int(d.SampleRate),
			Channels:   int(d.NumChans),
		},
		Data: data,
	}, nil
}

// Downmix averages interleaved channels into a single mono channel.
func Downmix(pcm []int16, channels int) []int16 {
	if channels <= 1 {
		return pcm
	}

	frames := len(pcm) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += int(pcm[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}
