package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	soxr "github.com/zaf/resample"
)

// Resample converts interleaved PCM16 from one sample rate to another using
// libsoxr. The channel count is preserved.
func Resample(pcm []int16, from, to Format) ([]int16, error) {
	if from.SampleRate == to.SampleRate || len(pcm) == 0 {
		return pcm, nil
	}

	var out bytes.Buffer
	r, err := soxr.New(&out, float64(from.SampleRate), float64(to.SampleRate), from.Channels, soxr.I16, soxr.MediumQ)
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}

	if _, err = r.Write(pcmToBytes(pcm)); err != nil {
		r.Close()
		return nil, fmt.Errorf("resample %s -> %dHz: %w", from, to.SampleRate, err)
	}
	// Close flushes the samples still held by the filter.
	if err = r.Close(); err != nil {
		return nil, fmt.Errorf("flush resampler: %w", err)
	}

	return bytesToPCM(out.Bytes()), nil
}

// WAVEncoder turns raw capture samples into a self-contained wav clip in the
// Out format: downmix, resample, then encode.
type WAVEncoder struct {
	In  Format
	Out Format
}

func NewWAVEncoder(in, out Format) *WAVEncoder {
	return &WAVEncoder{In: in, Out: out}
}

func (e *WAVEncoder) Encode(samples []int16) ([]byte, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyStream
	}

	pcm := samples
	channels := e.In.Channels
	if e.Out.Channels == 1 && channels > 1 {
		pcm = Downmix(pcm, channels)
		channels = 1
	}
	if channels != e.Out.Channels {
		return nil, fmt.Errorf("%w: cannot map %d channels to %d", ErrUnsupportedWAV, channels, e.Out.Channels)
	}

	pcm, err := Resample(pcm, Format{SampleRate: e.In.SampleRate, Channels: channels}, e.Out)
	if err != nil {
		return nil, err
	}

	buf, err := (&WAVFile{Format: e.Out, Data: pcm}).EncodeWAV()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pcmToBytes(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func bytesToPCM(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
