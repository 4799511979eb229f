package activity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// middle c
func getTestData(amplitude float64, samples int) []int16 {
	freq := 261.63
	data := make([]int16, samples)
	for i := range data {
		t := float64(i) / 16000
		data[i] = int16(amplitude * math.Sin(2*math.Pi*freq*t))
	}
	return data
}

func TestDetectSpeech(t *testing.T) {
	d := NewDetector(DefaultConfig())

	assert.True(t, d.IsSpeech(getTestData(1<<14, 16000)))
	assert.Equal(t, DefaultAmbient, d.Ambient(), "speech must not move the noise floor")
}

func TestDetectSilence(t *testing.T) {
	d := NewDetector(DefaultConfig())

	assert.Equal(t, SilenceDetection, d.Detect(getTestData(100, 16000)))
	assert.Less(t, d.Ambient(), DefaultAmbient)
	assert.Equal(t, SilenceDetection, d.Detect(nil))
}

func TestAmbientAdapts(t *testing.T) {
	d := NewDetector(DefaultConfig())

	// against a quiet floor a steady tone is speech
	loud := getTestData(2000, 16000)
	assert.True(t, d.IsSpeech(loud))

	// once the floor has caught up with it, it is not
	d = NewDetector(Config{Ambient: 1000, SpeechMultiplier: 2, SilenceMultiplier: 1, AmbientWeight: 1})
	assert.False(t, d.IsSpeech(loud))
	assert.InDelta(t, 2000/math.Sqrt2, d.Ambient(), 5)
	assert.False(t, d.IsSpeech(loud))
}

func TestDefaultsApplied(t *testing.T) {
	d := NewDetector(Config{})
	assert.Equal(t, DefaultConfig(), d.cfg)
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 3.0, rms([]int16{3, -3, 3, -3}))
}
