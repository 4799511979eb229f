// Package config loads emorec settings from a YAML file, a .env file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/garlicgarrison/go-emotion-recorder/activity"
	"github.com/garlicgarrison/go-emotion-recorder/emotion"
	"github.com/garlicgarrison/go-emotion-recorder/inference"
	"github.com/garlicgarrison/go-emotion-recorder/logging"
	"github.com/garlicgarrison/go-emotion-recorder/recorder"
	"github.com/garlicgarrison/go-emotion-recorder/report"
	"github.com/garlicgarrison/go-emotion-recorder/segment"
	"github.com/garlicgarrison/go-emotion-recorder/stream"
)

const (
	EnvPrefix  = "EMOREC"
	configName = "emorec"
	redacted   = "********"
)

var (
	ErrMissingEndpoint = inference.ErrMissingEndpoint
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// aliases lets the variables used by existing deployments of the web client
// keep working.
var aliases = map[string][]string{
	"inference.endpoint": {"HF_ENDPOINT", "NEXT_PUBLIC_HF_ENDPOINT"},
	"inference.token":    {"HF_API_KEY", "NEXT_PUBLIC_HF_API_KEY"},
}

type CaptureConfig struct {
	SampleRate      int `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gt=0"`
	Channels        int `mapstructure:"channels" yaml:"channels" validate:"gt=0,lte=2"`
	FramesPerBuffer int `mapstructure:"frames_per_buffer" yaml:"frames_per_buffer" validate:"gt=0"`
}

// Stream converts the capture settings for the microphone.
func (c CaptureConfig) Stream() *stream.StreamConfig {
	return &stream.StreamConfig{
		SampleRate:      float64(c.SampleRate),
		InputChannels:   c.Channels,
		FramesPerBuffer: c.FramesPerBuffer,
	}
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr" validate:"required_if=Enabled true"`
}

type Config struct {
	Inference inference.Config `mapstructure:"inference" yaml:"inference"`
	Capture   CaptureConfig    `mapstructure:"capture" yaml:"capture"`
	Segment   segment.Config   `mapstructure:"segment" yaml:"segment"`
	Aggregate emotion.Config   `mapstructure:"aggregate" yaml:"aggregate"`
	Session   recorder.Config  `mapstructure:"session" yaml:"session"`
	Activity  activity.Config  `mapstructure:"activity" yaml:"activity"`
	Report    report.Config    `mapstructure:"report" yaml:"report"`
	Log       logging.Config   `mapstructure:"log" yaml:"log"`
	Metrics   MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

func setDefaults(v *viper.Viper) {
	inf := inference.DefaultConfig()
	v.SetDefault("inference.endpoint", "")
	v.SetDefault("inference.token", "")
	v.SetDefault("inference.timeout", inf.Timeout)
	v.SetDefault("inference.content_type", inf.ContentType)
	v.SetDefault("inference.valence_index", inf.ValenceIndex)
	v.SetDefault("inference.arousal_index", inf.ArousalIndex)

	v.SetDefault("capture.sample_rate", stream.DefaultSampleRate)
	v.SetDefault("capture.channels", stream.DefaultInputChannels)
	v.SetDefault("capture.frames_per_buffer", stream.DefaultFramesPerBuffer)

	v.SetDefault("segment.clip_duration", segment.DefaultClipDuration)
	v.SetDefault("segment.min_tail", segment.DefaultMinTail)

	v.SetDefault("aggregate.window", emotion.DefaultWindow)
	v.SetDefault("aggregate.top_n", emotion.DefaultTopN)
	v.SetDefault("aggregate.trail_limit", emotion.DefaultTrailLimit)

	sess := recorder.DefaultConfig()
	v.SetDefault("session.max_in_flight", sess.MaxInFlight)
	v.SetDefault("session.drain_timeout", sess.DrainTimeout)
	v.SetDefault("session.skip_silent", false)
	v.SetDefault("session.target_sample_rate", sess.TargetSampleRate)

	act := activity.DefaultConfig()
	v.SetDefault("activity.ambient", act.Ambient)
	v.SetDefault("activity.speech_multiplier", act.SpeechMultiplier)
	v.SetDefault("activity.silence_multiplier", act.SilenceMultiplier)
	v.SetDefault("activity.ambient_weight", act.AmbientWeight)

	v.SetDefault("report.output_dir", "")
	v.SetDefault("report.save_clips", false)

	lg := logging.DefaultConfig()
	v.SetDefault("log.level", lg.Level)
	v.SetDefault("log.format", lg.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", lg.MaxSizeMB)
	v.SetDefault("log.max_backups", lg.MaxBackups)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9464")
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range aliases {
		env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, env}, names...)...); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// LoadDotEnv exports the variables in the given .env files, or ./.env when
// none are named. Missing files are not an error; variables already set in
// the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads path, or ./emorec.yaml when path is empty and the file exists,
// then applies the environment. The result is not validated.
func Load(path string) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return decode(v)
}

// LoadFromReader reads YAML from r, then applies the environment.
func LoadFromReader(r io.Reader) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section. A missing endpoint is reported as
// ErrMissingEndpoint so callers can fail before touching the microphone.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Inference.Endpoint) == "" {
		return ErrMissingEndpoint
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// YAML renders the effective configuration with the token hidden.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	if out.Inference.Token != "" {
		out.Inference.Token = redacted
	}
	return yaml.Marshal(out)
}
