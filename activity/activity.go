// Package activity is an energy based speech detector used to skip clips
// that contain nothing but room noise.
package activity

import (
	"math"
	"sync"
)

type Detection string

const (
	DefaultAmbient           = 300.0
	DefaultSpeechMultiplier  = 2.0
	DefaultSilenceMultiplier = 1.0 // max: 1

	// weight of a new silent block in the ambient average, max: 1
	DefaultAmbientWeight = 0.3

	SpeechDetection  Detection = "speech"
	SilenceDetection Detection = "silence"
	UnsureDetection  Detection = "unsure"
)

type Config struct {
	Ambient           float64 `mapstructure:"ambient" yaml:"ambient" validate:"gt=0"`
	SpeechMultiplier  float64 `mapstructure:"speech_multiplier" yaml:"speech_multiplier" validate:"gte=1"`
	SilenceMultiplier float64 `mapstructure:"silence_multiplier" yaml:"silence_multiplier" validate:"gt=0,lte=1"`
	AmbientWeight     float64 `mapstructure:"ambient_weight" yaml:"ambient_weight" validate:"gte=0,lte=1"`
}

func DefaultConfig() Config {
	return Config{
		Ambient:           DefaultAmbient,
		SpeechMultiplier:  DefaultSpeechMultiplier,
		SilenceMultiplier: DefaultSilenceMultiplier,
		AmbientWeight:     DefaultAmbientWeight,
	}
}

// Detector compares the RMS energy of a block against a running average of
// ambient noise. The average is weighted towards recent non-speech blocks.
type Detector struct {
	cfg Config

	mu      sync.Mutex
	ambient float64
}

func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Ambient <= 0 {
		cfg.Ambient = def.Ambient
	}
	if cfg.SpeechMultiplier <= 0 {
		cfg.SpeechMultiplier = def.SpeechMultiplier
	}
	if cfg.SilenceMultiplier <= 0 || cfg.SilenceMultiplier > 1 {
		cfg.SilenceMultiplier = def.SilenceMultiplier
	}
	if cfg.AmbientWeight < 0 || cfg.AmbientWeight > 1 {
		cfg.AmbientWeight = def.AmbientWeight
	}
	return &Detector{cfg: cfg, ambient: cfg.Ambient}
}

// Detect classifies a block. Blocks that are not speech feed the ambient
// average, so the threshold follows the room.
func (d *Detector) Detect(samples []int16) Detection {
	if len(samples) == 0 {
		return SilenceDetection
	}
	energy := rms(samples)

	d.mu.Lock()
	defer d.mu.Unlock()

	if energy > d.ambient*d.cfg.SpeechMultiplier {
		return SpeechDetection
	}
	d.ambient = d.ambient*(1-d.cfg.AmbientWeight) + energy*d.cfg.AmbientWeight

	if energy <= d.ambient*d.cfg.SilenceMultiplier {
		return SilenceDetection
	}
	return UnsureDetection
}

// IsSpeech reports whether the block is loud enough to be worth analyzing.
func (d *Detector) IsSpeech(samples []int16) bool {
	return d.Detect(samples) == SpeechDetection
}

// Ambient is the current noise floor estimate.
func (d *Detector) Ambient() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ambient
}

func rms(samples []int16) float64 {
	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
