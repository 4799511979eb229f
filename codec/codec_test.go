package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// middle c
func getTestData(seconds float64, rate int) []int16 {
	amplitude := float64(1<<15 - 1)
	freq := 261.63

	numSamples := int(float64(rate) * seconds)
	testData := make([]int16, numSamples)
	for i := 0; i < numSamples; i++ {
		t := float64(i) / float64(rate)
		testData[i] = int16(amplitude * math.Sin(2*math.Pi*freq*t))
	}

	return testData
}

func TestEncodeDecodeWAV(t *testing.T) {
	waves := getTestData(2, DefaultSampleRate)

	wav := NewDefaultWAV(waves)
	b, err := wav.EncodeWAV()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wav_test.wav")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))

	wavBytes, err := os.ReadFile(path)
	require.NoError(t, err)

	// 44 byte canonical header + 2 bytes per sample
	assert.Equal(t, 44+2*len(waves), len(wavBytes))
	assert.Equal(t, "RIFF", string(wavBytes[0:4]))
	assert.Equal(t, "WAVE", string(wavBytes[8:12]))

	decoded, err := DecodeWAV(bytes.NewReader(wavBytes))
	require.NoError(t, err)
	assert.Equal(t, wav, decoded)
}

func TestEncodeEmpty(t *testing.T) {
	_, err := NewDefaultWAV(nil).EncodeWAV()
	assert.ErrorIs(t, err, ErrEmptyStream)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := DecodeWAV(bytes.NewReader([]byte("definitely not a riff file")))
	assert.ErrorIs(t, err, ErrInvalidWAV)
}

func TestEachEncodeIsSelfContained(t *testing.T) {
	enc := NewWAVEncoder(DefaultFormat(), DefaultFormat())
	first, err := enc.Encode(getTestData(1, DefaultSampleRate))
	require.NoError(t, err)
	second, err := enc.Encode(getTestData(0.5, DefaultSampleRate))
	require.NoError(t, err)

	for _, clip := range [][]byte{first, second} {
		f, err := DecodeWAV(bytes.NewReader(clip))
		require.NoError(t, err)
		assert.Equal(t, DefaultFormat(), f.Format)
	}
}

func TestEncoderDownmixesStereo(t *testing.T) {
	stereo := []int16{100, 300, -50, -150, 0, 10}
	enc := NewWAVEncoder(Format{SampleRate: DefaultSampleRate, Channels: 2}, DefaultFormat())

	clip, err := enc.Encode(stereo)
	require.NoError(t, err)

	f, err := DecodeWAV(bytes.NewReader(clip))
	require.NoError(t, err)
	assert.Equal(t, []int16{200, -100, 5}, f.Data)
}

func TestDownmix(t *testing.T) {
	assert.Equal(t, []int16{1, 2}, Downmix([]int16{1, 2}, 1))
	assert.Equal(t, []int16{15, -5}, Downmix([]int16{10, 20, -10, 0}, 2))
}

func TestEncodeWAVPatchesChunkSizes(t *testing.T) {
	buf, err := NewDefaultWAV(make([]int16, 1600)).EncodeWAV()
	require.NoError(t, err)

	b := buf.Bytes()
	require.Len(t, b, 44+3200)
	assert.Equal(t, "RIFF", string(b[0:4]))
	assert.Equal(t, uint32(len(b)-8), binary.LittleEndian.Uint32(b[4:8]))
	assert.Equal(t, "data", string(b[36:40]))
	assert.Equal(t, uint32(3200), binary.LittleEndian.Uint32(b[40:44]))
}
