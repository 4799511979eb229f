package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garlicgarrison/go-emotion-recorder/emotion"
	"github.com/garlicgarrison/go-emotion-recorder/logging"
	"github.com/garlicgarrison/go-emotion-recorder/segment"
)

func TestStore(t *testing.T) {
	root := t.TempDir()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	id := NewSessionID()

	s, err := Open(Config{OutputDir: root, SaveClips: true}, id, started, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "session_20240501-120000_"+id[:8]), s.Dir())
	s.Describe("microphone", "http://localhost/model")

	clips := []segment.Clip{
		{Index: 0, Audio: []byte("RIFF0"), Start: 0, End: 3 * time.Second},
		{Index: 1, Audio: []byte("RIFF1"), Start: 3 * time.Second, End: 6 * time.Second},
	}

	// the second clip comes back first
	rec := NewClipRecord(clips[1], started.Add(7*time.Second))
	rec.Result = &emotion.Result{Scores: []emotion.Score{{Label: "sad", Score: 0.9}}}
	rec.File, err = s.SaveClip(clips[1])
	require.NoError(t, err)
	s.Record(rec)

	rec = NewClipRecord(clips[0], started.Add(8*time.Second))
	rec.Error = "inference endpoint responded 503 Service Unavailable"
	rec.File, err = s.SaveClip(clips[0])
	require.NoError(t, err)
	s.Record(rec)

	final := emotion.Snapshot{Top: []emotion.Share{{Label: "sad", Percent: 100}}}
	path, err := s.Finish(started.Add(10*time.Second), final)
	require.NoError(t, err)
	assert.FileExists(t, path)

	audio, err := os.ReadFile(filepath.Join(s.Dir(), "clips", "clip_0001_3.0-6.0.wav"))
	require.NoError(t, err)
	assert.Equal(t, "RIFF1", string(audio))

	got, err := Load(s.Dir())
	require.NoError(t, err)
	assert.Equal(t, id, got.SessionID)
	assert.Equal(t, "microphone", got.Source)
	assert.Equal(t, 10.0, got.Duration)
	require.Len(t, got.Clips, 2)
	assert.Equal(t, 0, got.Clips[0].Index)
	assert.True(t, strings.HasPrefix(got.Clips[0].Error, "inference"))
	assert.Equal(t, 1, got.Clips[1].Index)
	assert.Equal(t, 3.0, got.Clips[1].Start)
	assert.Equal(t, "sad", got.Clips[1].Result.Scores[0].Label)
	assert.Equal(t, final.Top, got.Final.Top)
}

func TestStoreWithoutClips(t *testing.T) {
	s, err := Open(Config{OutputDir: t.TempDir()}, "abc", time.Now(), nil)
	require.NoError(t, err)

	file, err := s.SaveClip(segment.Clip{Audio: []byte("x"), End: time.Second})
	require.NoError(t, err)
	assert.Empty(t, file)
	assert.NoDirExists(t, filepath.Join(s.Dir(), "clips"))
}

func TestDisabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	_, err := Open(Config{}, "abc", time.Now(), nil)
	assert.Error(t, err)
}
