// Package report persists a recording session: the clips that were sent for
// analysis and a JSON summary of what came back.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/garlicgarrison/go-emotion-recorder/emotion"
	"github.com/garlicgarrison/go-emotion-recorder/logging"
	"github.com/garlicgarrison/go-emotion-recorder/segment"
)

const (
	summaryFile = "session.json"
	clipsDir    = "clips"
)

type Config struct {
	// OutputDir is the parent of every session directory. Empty disables
	// reports.
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	SaveClips bool   `mapstructure:"save_clips" yaml:"save_clips"`
}

func (c Config) Enabled() bool {
	return c.OutputDir != ""
}

// ClipRecord is the outcome of one clip.
type ClipRecord struct {
	Index   int             `json:"index"`
	Start   float64         `json:"start_s"`
	End     float64         `json:"end_s"`
	File    string          `json:"file,omitempty"`
	Result  *emotion.Result `json:"result,omitempty"`
	Dropped string          `json:"dropped,omitempty"`
	Error   string          `json:"error,omitempty"`
	At      time.Time       `json:"at"`
}

func NewClipRecord(c segment.Clip, at time.Time) ClipRecord {
	return ClipRecord{
		Index: c.Index,
		Start: c.Start.Seconds(),
		End:   c.End.Seconds(),
		At:    at,
	}
}

// Summary is written to session.json when the session stops.
type Summary struct {
	SessionID string           `json:"session_id"`
	Source    string           `json:"source"`
	Endpoint  string           `json:"endpoint"`
	StartedAt time.Time        `json:"started_at"`
	StoppedAt time.Time        `json:"stopped_at"`
	Duration  float64          `json:"duration_s"`
	Clips     []ClipRecord     `json:"clips"`
	Final     emotion.Snapshot `json:"final"`
}

type Store struct {
	cfg Config
	dir string
	log logrus.FieldLogger

	mu      sync.Mutex
	summary Summary
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// Open creates <OutputDir>/session_<timestamp>_<id prefix>/ and, when clips
// are kept, its clips/ subdirectory.
func Open(cfg Config, id string, started time.Time, log logrus.FieldLogger) (*Store, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("report output directory is not configured")
	}

	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	dir := filepath.Join(cfg.OutputDir, fmt.Sprintf("session_%s_%s", started.Format("20060102-150405"), short))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	if cfg.SaveClips {
		if err := os.MkdirAll(filepath.Join(dir, clipsDir), 0o755); err != nil {
			return nil, fmt.Errorf("create clips dir: %w", err)
		}
	}

	return &Store{
		cfg: cfg,
		dir: dir,
		log: logging.For(log, logging.CategoryReport).WithField("session", id),
		summary: Summary{
			SessionID: id,
			StartedAt: started,
		},
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Describe sets the source and endpoint recorded in the summary.
func (s *Store) Describe(source, endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.Source = source
	s.summary.Endpoint = endpoint
}

// SaveClip writes the clip audio when clips are kept and returns its path
// relative to the session directory, or "" when they are not.
func (s *Store) SaveClip(c segment.Clip) (string, error) {
	if !s.cfg.SaveClips {
		return "", nil
	}

	rel := filepath.Join(clipsDir, c.Filename())
	if err := os.WriteFile(filepath.Join(s.dir, rel), c.Audio, 0o644); err != nil {
		return "", fmt.Errorf("save %s: %w", c, err)
	}
	return rel, nil
}

// Record adds the outcome of one clip. Clips may be recorded in any order.
func (s *Store) Record(rec ClipRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.Clips = append(s.summary.Clips, rec)
}

// Finish writes session.json and returns its path.
func (s *Store) Finish(stopped time.Time, final emotion.Snapshot) (string, error) {
	s.mu.Lock()
	summary := s.summary
	summary.Clips = append([]ClipRecord(nil), s.summary.Clips...)
	s.mu.Unlock()

	sort.SliceStable(summary.Clips, func(i, j int) bool {
		return summary.Clips[i].Index < summary.Clips[j].Index
	})
	summary.StoppedAt = stopped
	summary.Duration = stopped.Sub(summary.StartedAt).Seconds()
	summary.Final = final

	path := filepath.Join(s.dir, summaryFile)
	if err := writeJSON(path, summary); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"path":  path,
		"clips": len(summary.Clips),
	}).Info("session report written")
	return path, nil
}

// Load reads a summary back from a session directory.
func Load(dir string) (*Summary, error) {
	b, err := os.ReadFile(filepath.Join(dir, summaryFile))
	if err != nil {
		return nil, err
	}
	var out Summary
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", summaryFile, err)
	}
	return &out, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
