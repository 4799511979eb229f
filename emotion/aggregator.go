// Package emotion turns per-clip recognition results into a rolling ranked
// view of the speaker's emotions and a valence/arousal trail.
package emotion

import (
	"math"
	"sort"
	"sync"
	"time"
)

const (
	DefaultWindow     = 5 * time.Second
	DefaultTopN       = 3
	DefaultTrailLimit = 100
)

type Config struct {
	// Window is how long a history entry keeps contributing. An entry
	// exactly Window old still counts.
	Window time.Duration `mapstructure:"window" yaml:"window" validate:"gt=0"`
	TopN   int           `mapstructure:"top_n" yaml:"top_n" validate:"gt=0"`
	// TrailLimit caps the number of retained VAD points; 0 keeps every
	// point for the whole session.
	TrailLimit int `mapstructure:"trail_limit" yaml:"trail_limit" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		Window:     DefaultWindow,
		TopN:       DefaultTopN,
		TrailLimit: DefaultTrailLimit,
	}
}

type entry struct {
	label     string
	score     float64
	timestamp time.Time
}

// Aggregator keeps the rolling history. It is safe for concurrent use; results
// are ordered by the time they are processed, not by clip order.
//
// OnResult is not idempotent: delivering the same result twice counts it
// twice.
type Aggregator struct {
	cfg Config

	mu      sync.Mutex
	history []entry
	trail   []Point
	closed  bool
}

func NewAggregator(cfg Config) *Aggregator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.TrailLimit < 0 {
		cfg.TrailLimit = 0
	}
	return &Aggregator{cfg: cfg}
}

// OnResult folds r into the history at time now and returns the updated view.
// After Close it ignores r and returns an empty Snapshot.
func (a *Aggregator) OnResult(r Result, now time.Time) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return Snapshot{}
	}

	for _, s := range r.Scores {
		a.history = append(a.history, entry{label: s.Label, score: s.Score, timestamp: now})
	}
	a.prune(now)

	if r.VAD != nil {
		for i := range a.trail {
			a.trail[i].New = false
		}
		a.trail = append(a.trail, Point{
			Valence:   clamp(r.VAD.Valence),
			Arousal:   clamp(r.VAD.Arousal),
			New:       true,
			Timestamp: now,
		})
		if a.cfg.TrailLimit > 0 && len(a.trail) > a.cfg.TrailLimit {
			a.trail = append(a.trail[:0:0], a.trail[len(a.trail)-a.cfg.TrailLimit:]...)
		}
	}

	return a.snapshot()
}

// Snapshot returns the current view without pruning or adding anything.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

// Reset drops all history and the VAD trail and accepts results again.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
	a.trail = nil
	a.closed = false
}

// Close drops all state; results delivered afterwards are ignored until the
// next Reset.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
	a.trail = nil
	a.closed = true
}

func (a *Aggregator) prune(now time.Time) {
	kept := a.history[:0]
	for _, e := range a.history {
		if now.Sub(e.timestamp) <= a.cfg.Window {
			kept = append(kept, e)
		}
	}
	a.history = kept
}

func (a *Aggregator) snapshot() Snapshot {
	snap := Snapshot{Top: topN(a.history, a.cfg.TopN)}
	if n := len(a.trail); n > 0 {
		snap.Trail = append([]Point(nil), a.trail...)
		latest := snap.Trail[n-1]
		snap.Latest = &latest
	}
	return snap
}

// topN sums scores by label, converts the sums to percentages of the total
// and returns the n largest, rounded to one decimal. Labels with equal
// percentages keep the order in which they were first seen. When every score
// is zero all percentages are zero.
func topN(history []entry, n int) []Share {
	if len(history) == 0 || n <= 0 {
		return nil
	}

	sums := map[string]float64{}
	var order []string
	total := 0.0
	for _, e := range history {
		if _, ok := sums[e.label]; !ok {
			order = append(order, e.label)
		}
		sums[e.label] += e.score
		total += e.score
	}

	shares := make([]Share, len(order))
	for i, label := range order {
		pct := 0.0
		if total != 0 {
			pct = sums[label] / total * 100
		}
		shares[i] = Share{Label: label, Percent: pct}
	}

	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].Percent > shares[j].Percent
	})

	if len(shares) > n {
		shares = shares[:n]
	}
	for i := range shares {
		shares[i].Percent = math.Round(shares[i].Percent*10) / 10
	}
	return shares
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
