package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sample = `
inference:
  endpoint: https://example.endpoints.huggingface.cloud
  token: hf_secret
  arousal_index: 8
  valence_index: 9
segment:
  clip_duration: 5s
aggregate:
  top_n: 5
session:
  skip_silent: true
report:
  output_dir: ./sessions
  save_clips: true
`

func TestDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Segment.ClipDuration)
	assert.Equal(t, 500*time.Millisecond, cfg.Segment.MinTail)
	assert.Equal(t, 5*time.Second, cfg.Aggregate.Window)
	assert.Equal(t, 3, cfg.Aggregate.TopN)
	assert.Equal(t, 100, cfg.Aggregate.TrailLimit)
	assert.Equal(t, -1, cfg.Inference.ArousalIndex)
	assert.Equal(t, "audio/wav", cfg.Inference.ContentType)
	assert.Equal(t, 16000, cfg.Session.TargetSampleRate)
	assert.Equal(t, 10*time.Second, cfg.Session.DrainTimeout)
	assert.Equal(t, 44100, cfg.Capture.SampleRate)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Metrics.Enabled)

	assert.ErrorIs(t, cfg.Validate(), ErrMissingEndpoint)
}

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "hf_secret", cfg.Inference.Token)
	assert.Equal(t, 8, cfg.Inference.ArousalIndex)
	assert.Equal(t, 9, cfg.Inference.ValenceIndex)
	assert.Equal(t, 5*time.Second, cfg.Segment.ClipDuration)
	assert.Equal(t, 5, cfg.Aggregate.TopN)
	assert.True(t, cfg.Session.SkipSilent)
	assert.True(t, cfg.Report.Enabled())
	assert.True(t, cfg.Report.SaveClips)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HF_ENDPOINT", "http://alias.local/model")
	t.Setenv("HF_API_KEY", "from_alias")
	t.Setenv("EMOREC_SESSION_MAX_IN_FLIGHT", "7")
	t.Setenv("EMOREC_SEGMENT_CLIP_DURATION", "4s")

	cfg, err := LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://alias.local/model", cfg.Inference.Endpoint)
	assert.Equal(t, "from_alias", cfg.Inference.Token)
	assert.Equal(t, 7, cfg.Session.MaxInFlight)
	assert.Equal(t, 4*time.Second, cfg.Segment.ClipDuration)

	// the prefixed name wins over the alias
	t.Setenv("EMOREC_INFERENCE_ENDPOINT", "http://prefixed.local/model")
	cfg, err = LoadFromReader(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, "http://prefixed.local/model", cfg.Inference.Endpoint)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emorec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.endpoints.huggingface.cloud", cfg.Inference.Endpoint)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	const key = "EMOREC_INFERENCE_TOKEN"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from_dotenv\n"), 0o644))

	require.NoError(t, LoadDotEnv(path))
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))

	cfg, err := LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "from_dotenv", cfg.Inference.Token)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad endpoint", yaml: "inference: {endpoint: not a url}"},
		{name: "zero in flight", yaml: "inference: {endpoint: http://x.local}\nsession: {max_in_flight: 0}"},
		{name: "negative clip", yaml: "inference: {endpoint: http://x.local}\nsegment: {clip_duration: -1s}"},
		{name: "unknown log level", yaml: "inference: {endpoint: http://x.local}\nlog: {level: loud}"},
		{name: "metrics without addr", yaml: "inference: {endpoint: http://x.local}\nmetrics: {enabled: true, addr: \"\"}"},
		{name: "three channels", yaml: "inference: {endpoint: http://x.local}\ncapture: {channels: 3}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromReader(strings.NewReader(tt.yaml))
			require.NoError(t, err)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestYAMLRedactsToken(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(sample))
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hf_secret")
	assert.Contains(t, string(out), redacted)
	assert.Equal(t, "hf_secret", cfg.Inference.Token, "the loaded config keeps the token")

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Contains(t, back, "inference")
	assert.Contains(t, back, "segment")
}
