// Package present renders a running session to the terminal.
package present

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/garlicgarrison/go-emotion-recorder/emotion"
	"github.com/garlicgarrison/go-emotion-recorder/recorder"
)

const unknownEmoji = "🎭"

var emojis = map[string]string{
	"happy":     "😊",
	"sad":       "😢",
	"angry":     "😠",
	"neutral":   "😐",
	"surprise":  "😲",
	"surprised": "😲",
	"fear":      "😨",
	"fearful":   "😨",
	"contempt":  "😒",
	"disgusted": "🤢",
}

// Emoji returns the face for a label.
func Emoji(label string) string {
	if e, ok := emojis[strings.ToLower(label)]; ok {
		return e
	}
	return unknownEmoji
}

var _ recorder.Sink = (*Console)(nil)

// Console writes one block per analyzed clip and a heartbeat line with the
// recording time.
type Console struct {
	w         io.Writer
	heartbeat bool

	mu sync.Mutex

	title  *color.Color
	label  *color.Color
	latest *color.Color
	faint  *color.Color
	fail   *color.Color
}

// NewConsole writes to w. With heartbeat off, OnDuration prints nothing.
func NewConsole(w io.Writer, heartbeat bool) *Console {
	return &Console{
		w:         w,
		heartbeat: heartbeat,
		title:     color.New(color.Bold),
		label:     color.New(color.FgCyan),
		latest:    color.New(color.FgGreen, color.Bold),
		faint:     color.New(color.Faint),
		fail:      color.New(color.FgRed),
	}
}

func (c *Console) OnDuration(elapsed time.Duration) {
	if !c.heartbeat {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faint.Fprintf(c.w, "recording %s\n", Clock(elapsed))
}

func (c *Console) OnSnapshot(clip recorder.ClipInfo, snap emotion.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	top := snap.Dominant()
	c.title.Fprintf(c.w, "%s  %s %s\n", clip, Emoji(top), top)
	c.writeSnapshot(snap)
}

func (c *Console) OnError(clip recorder.ClipInfo, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail.Fprintf(c.w, "%s  skipped: %v\n", clip, err)
}

// Summary prints the final view of a stopped session.
func (c *Console) Summary(elapsed time.Duration, snap emotion.Snapshot, reportDir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.title.Fprintf(c.w, "session %s\n", Clock(elapsed))
	if len(snap.Top) == 0 && snap.Latest == nil {
		c.faint.Fprintln(c.w, "  no emotions detected")
	} else {
		c.writeSnapshot(snap)
	}
	if reportDir != "" {
		fmt.Fprintf(c.w, "  report: %s\n", reportDir)
	}
}

func (c *Console) writeSnapshot(snap emotion.Snapshot) {
	for _, s := range snap.Top {
		fmt.Fprintf(c.w, "  %s %s %5.1f%% %s\n",
			Emoji(s.Label), c.label.Sprintf("%-10s", s.Label), s.Percent, bar(s.Percent))
	}
	if snap.Latest != nil {
		c.latest.Fprintf(c.w, "  valence %.2f  arousal %.2f", snap.Latest.Valence, snap.Latest.Arousal)
		c.faint.Fprintf(c.w, "  (trail %d)\n", len(snap.Trail))
	}
}

// Clock formats a duration as mm:ss.
func Clock(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func bar(percent float64) string {
	n := int(percent / 5)
	if n < 0 {
		n = 0
	}
	return strings.Repeat("█", n)
}
