// Package segment slices a continuous capture into fixed-length,
// independently playable clips.
package segment

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/garlicgarrison/go-emotion-recorder/codec"
	"github.com/garlicgarrison/go-emotion-recorder/logging"
)

const (
	DefaultClipDuration = 3 * time.Second
	DefaultMinTail      = 500 * time.Millisecond
)

var (
	ErrClosed               = errors.New("segmenter closed")
	ErrInvalidSegmentConfig = errors.New("invalid segment config")
)

// Encoder turns the raw samples of one window into a self-contained clip.
type Encoder interface {
	Encode(samples []int16) ([]byte, error)
}

type Config struct {
	ClipDuration time.Duration `mapstructure:"clip_duration" yaml:"clip_duration" validate:"gt=0"`
	// MinTail is the shortest remainder still emitted as a clip on Close.
	MinTail time.Duration `mapstructure:"min_tail" yaml:"min_tail" validate:"gte=0"`
	// Format is the layout of the samples passed to Feed.
	Format codec.Format `mapstructure:"-" yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		ClipDuration: DefaultClipDuration,
		MinTail:      DefaultMinTail,
		Format:       codec.DefaultFormat(),
	}
}

// Clip covers [Start, End) of the capture. Audio is a complete wav file.
type Clip struct {
	Index int
	Audio []byte
	Start time.Duration
	End   time.Duration
}

func (c Clip) Duration() time.Duration {
	return c.End - c.Start
}

func (c Clip) String() string {
	return fmt.Sprintf("clip %d [%.1fs-%.1fs)", c.Index, c.Start.Seconds(), c.End.Seconds())
}

// Filename is the name a clip is saved under.
func (c Clip) Filename() string {
	return fmt.Sprintf("clip_%04d_%.1f-%.1f.wav", c.Index, c.Start.Seconds(), c.End.Seconds())
}

type window struct {
	index      int
	start, end time.Duration
	samples    []int16
}

// Segmenter accumulates samples and finalizes a clip each time the capture
// crosses a window boundary. Every boundary is finalized at most once: the
// watermark only moves forward and only one finalize runs at a time.
type Segmenter struct {
	cfg Config
	enc Encoder
	log logrus.FieldLogger

	// OnDrop, when set, is called for every window whose encoding failed.
	OnDrop func(index int, err error)
	// OnShortTail, when set, is called on Close when the remainder is shorter
	// than MinTail and discarded.
	OnShortTail func(index int, tail time.Duration)

	mu         sync.Mutex
	idle       *sync.Cond
	buffer     []int16
	watermark  int
	finalizing bool
	closed     bool
}

func New(cfg Config, enc Encoder, log logrus.FieldLogger) (*Segmenter, error) {
	if cfg.ClipDuration <= 0 || !cfg.Format.Valid() || enc == nil {
		return nil, fmt.Errorf("%w: clip duration %s, format %+v", ErrInvalidSegmentConfig, cfg.ClipDuration, cfg.Format)
	}
	if cfg.MinTail < 0 {
		cfg.MinTail = 0
	}

	s := &Segmenter{
		cfg: cfg,
		enc: enc,
		log: logging.For(log, logging.CategorySegment),
	}
	s.idle = sync.NewCond(&s.mu)
	return s, nil
}

// Watermark is the number of boundaries finalized so far.
func (s *Segmenter) Watermark() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}

// Feed appends samples captured up to elapsed and returns the clips for every
// boundary crossed since the last call. A boundary crossed while another Feed
// is still encoding is picked up by the next call.
func (s *Segmenter) Feed(samples []int16, elapsed time.Duration) ([]Clip, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.buffer = append(s.buffer, samples...)
	if s.finalizing {
		s.mu.Unlock()
		return nil, nil
	}

	pending := s.cut(s.boundary(elapsed))
	if len(pending) == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	s.finalizing = true
	s.mu.Unlock()

	defer s.release()
	return s.encode(pending), nil
}

// Close finalizes any boundary still pending and, when at least MinTail has
// been captured since the last one, a final partial clip ending at elapsed.
// Feed and Close return ErrClosed afterwards.
func (s *Segmenter) Close(elapsed time.Duration) ([]Clip, error) {
	s.mu.Lock()
	for s.finalizing {
		s.idle.Wait()
	}
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.closed = true

	pending := s.cut(s.boundary(elapsed))
	start := time.Duration(s.watermark) * s.cfg.ClipDuration
	if len(s.buffer) > 0 && elapsed-start >= s.cfg.MinTail {
		pending = append(pending, window{
			index:   s.watermark,
			start:   start,
			end:     elapsed,
			samples: s.buffer,
		})
	} else if len(s.buffer) > 0 {
		s.log.WithField("tail", elapsed-start).Debug("tail shorter than minimum, discarding")
		short := s.watermark
		defer func() {
			if s.OnShortTail != nil {
				s.OnShortTail(short, elapsed-start)
			}
		}()
	}
	s.buffer = nil

	if len(pending) == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	s.finalizing = true
	s.mu.Unlock()

	defer s.release()
	return s.encode(pending), nil
}

func (s *Segmenter) boundary(elapsed time.Duration) int {
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / s.cfg.ClipDuration)
}

// cut removes the windows in (watermark, k] from the buffer and advances the
// watermark. A window never takes more than one window of samples; anything
// beyond that stays buffered for the next window or the tail.
func (s *Segmenter) cut(k int) []window {
	if k <= s.watermark {
		return nil
	}

	per := s.windowSamples()
	var out []window
	for s.watermark < k {
		n := min(len(s.buffer), per)

		out = append(out, window{
			index:   s.watermark,
			start:   time.Duration(s.watermark) * s.cfg.ClipDuration,
			end:     time.Duration(s.watermark+1) * s.cfg.ClipDuration,
			samples: append([]int16(nil), s.buffer[:n]...),
		})
		s.buffer = s.buffer[n:]
		s.watermark++
	}
	if len(s.buffer) == 0 {
		s.buffer = nil
	}
	return out
}

func (s *Segmenter) windowSamples() int {
	frames := int(s.cfg.ClipDuration * time.Duration(s.cfg.Format.SampleRate) / time.Second)
	return frames * s.cfg.Format.Channels
}

func (s *Segmenter) encode(pending []window) []Clip {
	clips := make([]Clip, 0, len(pending))
	for _, w := range pending {
		audio, err := s.enc.Encode(w.samples)
		if err != nil {
			s.log.WithError(err).WithField("clip", w.index).Warn("dropping window, encoding failed")
			if s.OnDrop != nil {
				s.OnDrop(w.index, err)
			}
			continue
		}

		clip := Clip{Index: w.index, Audio: audio, Start: w.start, End: w.end}
		s.log.WithField("clip", clip.String()).Debug("finalized")
		clips = append(clips, clip)
	}
	return clips
}

func (s *Segmenter) release() {
	s.mu.Lock()
	s.finalizing = false
	s.idle.Broadcast()
	s.mu.Unlock()
}
