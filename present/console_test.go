package present

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/garlicgarrison/go-emotion-recorder/emotion"
	"github.com/garlicgarrison/go-emotion-recorder/recorder"
)

func init() {
	color.NoColor = true
}

func TestEmoji(t *testing.T) {
	assert.Equal(t, "😊", Emoji("happy"))
	assert.Equal(t, "😲", Emoji("Surprised"))
	assert.Equal(t, "😨", Emoji("fear"))
	assert.Equal(t, unknownEmoji, Emoji("bored"))
	assert.Equal(t, unknownEmoji, Emoji(""))
}

func TestClock(t *testing.T) {
	assert.Equal(t, "00:00", Clock(0))
	assert.Equal(t, "00:59", Clock(59900*time.Millisecond))
	assert.Equal(t, "02:05", Clock(125*time.Second))
}

func TestOnSnapshot(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false)

	clip := recorder.ClipInfo{Index: 1, Start: 3 * time.Second, End: 6 * time.Second}
	c.OnSnapshot(clip, emotion.Snapshot{
		Top: []emotion.Share{
			{Label: "happy", Percent: 66.7},
			{Label: "sad", Percent: 33.3},
		},
		Latest: &emotion.Point{Valence: 0.6, Arousal: 0.4, New: true},
		Trail:  make([]emotion.Point, 3),
	})

	out := buf.String()
	assert.Contains(t, out, "clip 1 [3.0s-6.0s)  😊 happy\n")
	assert.Contains(t, out, "happy       66.7% █████████████\n")
	assert.Contains(t, out, "sad         33.3% ██████\n")
	assert.Contains(t, out, "valence 0.60  arousal 0.40  (trail 3)\n")
}

func TestOnErrorAndHeartbeat(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)

	c.OnDuration(65 * time.Second)
	c.OnError(recorder.ClipInfo{Index: 2, Start: 6 * time.Second, End: 9 * time.Second}, errors.New("503"))

	assert.Equal(t, "recording 01:05\nclip 2 [6.0s-9.0s)  skipped: 503\n", buf.String())

	buf.Reset()
	NewConsole(&buf, false).OnDuration(time.Second)
	assert.Empty(t, buf.String())
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false)

	c.Summary(10*time.Second, emotion.Snapshot{}, "")
	assert.Equal(t, "session 00:10\n  no emotions detected\n", buf.String())

	buf.Reset()
	c.Summary(10*time.Second, emotion.Snapshot{Top: []emotion.Share{{Label: "angry", Percent: 100}}}, "/tmp/out")
	assert.Contains(t, buf.String(), "angry")
	assert.Contains(t, buf.String(), "report: /tmp/out\n")
}
