// Package recorder runs a recording session: capture, segmentation,
// inference and aggregation, and the teardown that ties them together.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/garlicgarrison/go-emotion-recorder/activity"
	"github.com/garlicgarrison/go-emotion-recorder/codec"
	"github.com/garlicgarrison/go-emotion-recorder/emotion"
	"github.com/garlicgarrison/go-emotion-recorder/logging"
	"github.com/garlicgarrison/go-emotion-recorder/observe"
	"github.com/garlicgarrison/go-emotion-recorder/report"
	"github.com/garlicgarrison/go-emotion-recorder/segment"
	"github.com/garlicgarrison/go-emotion-recorder/stream"
)

const (
	DefaultMaxInFlight  = 4
	DefaultDrainTimeout = 10 * time.Second
	DefaultTickInterval = time.Second
)

var (
	ErrInvalidRecorderConfig = errors.New("invalid config")
	ErrSessionDone           = errors.New("session already ran")
)

// Analyzer scores one wav clip.
type Analyzer interface {
	Analyze(ctx context.Context, wav []byte) (emotion.Result, error)
}

// ClipInfo identifies a clip without its audio.
type ClipInfo struct {
	Index int
	Start time.Duration
	End   time.Duration
}

func (c ClipInfo) String() string {
	return fmt.Sprintf("clip %d [%.1fs-%.1fs)", c.Index, c.Start.Seconds(), c.End.Seconds())
}

// Sink receives everything a user should see while a session runs. Methods
// may be called from several goroutines.
type Sink interface {
	OnDuration(elapsed time.Duration)
	OnSnapshot(clip ClipInfo, snap emotion.Snapshot)
	OnError(clip ClipInfo, err error)
}

type Config struct {
	// MaxInFlight bounds concurrent inference calls. Clips beyond it wait
	// their turn; capture never blocks on the network.
	MaxInFlight int `mapstructure:"max_in_flight" yaml:"max_in_flight" validate:"gt=0"`
	// DrainTimeout is how long Run waits for outstanding analyses after
	// capture stops. Anything later is ignored.
	DrainTimeout time.Duration `mapstructure:"drain_timeout" yaml:"drain_timeout" validate:"gte=0"`
	// SkipSilent drops clips the activity detector does not hear speech in.
	SkipSilent bool `mapstructure:"skip_silent" yaml:"skip_silent"`
	// TargetSampleRate is the rate clips are encoded at.
	TargetSampleRate int           `mapstructure:"target_sample_rate" yaml:"target_sample_rate" validate:"gt=0"`
	TickInterval     time.Duration `mapstructure:"-" yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		MaxInFlight:      DefaultMaxInFlight,
		DrainTimeout:     DefaultDrainTimeout,
		TargetSampleRate: codec.DefaultSampleRate,
		TickInterval:     DefaultTickInterval,
	}
}

type Option func(*Session)

func WithSink(sink Sink) Option {
	return func(s *Session) { s.sink = sink }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Session) { s.log = logging.For(log, logging.CategorySession) }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithReport writes a session directory when cfg is enabled.
func WithReport(cfg report.Config) Option {
	return func(s *Session) { s.reportCfg = cfg }
}

// WithActivity overrides the silence detector settings used by SkipSilent.
func WithActivity(cfg activity.Config) Option {
	return func(s *Session) { s.activityCfg = cfg }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLabel names the source and the endpoint in the report.
func WithLabel(source, endpoint string) Option {
	return func(s *Session) {
		s.label = source
		s.endpoint = endpoint
	}
}

// Session owns every resource of one recording and releases them on every
// exit path.
type Session struct {
	ID string

	cfg         Config
	segCfg      segment.Config
	src         stream.Source
	analyzer    Analyzer
	agg         *emotion.Aggregator
	sink        Sink
	log         logrus.FieldLogger
	capLog      logrus.FieldLogger
	aggLog      logrus.FieldLogger
	metrics     *observe.Metrics
	reportCfg   report.Config
	activityCfg activity.Config
	now         func() time.Time
	label       string
	endpoint    string

	store    *report.Store
	detector *activity.Detector
	sem      *semaphore.Weighted
	inflight sync.WaitGroup

	// mu orders result delivery against stop
	mu      sync.Mutex
	stopped bool
	final   emotion.Snapshot

	elapsed   atomic.Int64
	ran       atomic.Bool
	closeOnce sync.Once
}

func NewSession(cfg Config, segCfg segment.Config, src stream.Source, analyzer Analyzer, agg *emotion.Aggregator, opts ...Option) (*Session, error) {
	if src == nil || analyzer == nil || agg == nil {
		return nil, ErrInvalidRecorderConfig
	}
	if segCfg.ClipDuration <= 0 {
		return nil, fmt.Errorf("%w: clip duration %s", ErrInvalidRecorderConfig, segCfg.ClipDuration)
	}

	def := DefaultConfig()
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = def.MaxInFlight
	}
	if cfg.DrainTimeout < 0 {
		cfg.DrainTimeout = 0
	}
	if cfg.TargetSampleRate <= 0 {
		cfg.TargetSampleRate = def.TargetSampleRate
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}

	s := &Session{
		ID:          report.NewSessionID(),
		cfg:         cfg,
		segCfg:      segCfg,
		src:         src,
		analyzer:    analyzer,
		agg:         agg,
		sink:        nopSink{},
		log:         logging.For(nil, logging.CategorySession),
		metrics:     observe.Noop(),
		activityCfg: activity.DefaultConfig(),
		now:         time.Now,
		label:       "microphone",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("session", s.ID)
	s.capLog = logging.For(s.log, logging.CategoryCapture)
	s.aggLog = logging.For(s.log, logging.CategoryAggregate)
	return s, nil
}

// Final is the aggregate view at the moment the session stopped.
func (s *Session) Final() emotion.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final
}

// ReportDir is the session directory, or "" when reports are disabled.
func (s *Session) ReportDir() string {
	if s.store == nil {
		return ""
	}
	return s.store.Dir()
}

// Run records until ctx is canceled or the source runs dry, then finalizes
// the tail clip, releases the source and waits up to DrainTimeout for
// outstanding analyses. Capture failures abort the session and are returned
// wrapped in stream.ErrCapture.
//
// A Session runs once; later calls return ErrSessionDone without touching
// the source.
func (s *Session) Run(ctx context.Context) error {
	if !s.ran.CompareAndSwap(false, true) {
		return ErrSessionDone
	}
	s.agg.Reset()

	if err := s.src.Start(); err != nil {
		return err
	}
	defer s.closeSource()

	format := s.src.Format()
	segCfg := s.segCfg
	segCfg.Format = format
	enc := codec.NewWAVEncoder(format, codec.Format{SampleRate: s.cfg.TargetSampleRate, Channels: 1})
	seg, err := segment.New(segCfg, enc, s.log)
	if err != nil {
		return err
	}
	seg.OnDrop = func(index int, err error) {
		s.metrics.RecordDrop(ctx, observe.DropEncode)
		s.record(report.ClipRecord{Index: index, Dropped: observe.DropEncode, Error: err.Error(), At: s.now()})
	}
	seg.OnShortTail = func(index int, tail time.Duration) {
		s.metrics.RecordDrop(ctx, observe.DropShortEnd)
		start := time.Duration(index) * segCfg.ClipDuration
		s.record(report.ClipRecord{
			Index:   index,
			Start:   start.Seconds(),
			End:     (start + tail).Seconds(),
			Dropped: observe.DropShortEnd,
			At:      s.now(),
		})
	}

	started := s.now()
	if s.reportCfg.Enabled() {
		if s.store, err = report.Open(s.reportCfg, s.ID, started, s.log); err != nil {
			return err
		}
		s.store.Describe(s.label, s.endpoint)
	}
	if s.cfg.SkipSilent {
		s.detector = activity.NewDetector(s.activityCfg)
	}
	s.sem = semaphore.NewWeighted(int64(s.cfg.MaxInFlight))

	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	// analyses outlive the capture context so they can drain after a stop
	inferCtx, cancelInfer := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelInfer()

	s.log.WithFields(logrus.Fields{
		"format":        format.String(),
		"clip_duration": segCfg.ClipDuration,
	}).Info("recording started")

	captureCtx, stopCapture := context.WithCancel(ctx)
	defer stopCapture()
	g, gctx := errgroup.WithContext(captureCtx)

	g.Go(func() error {
		defer stopCapture()
		for {
			chunk, err := s.src.Read(gctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					s.capLog.Debug("source exhausted")
					return nil
				}
				if gctx.Err() != nil {
					return nil
				}
				return err
			}

			s.elapsed.Store(int64(chunk.Elapsed))
			clips, err := seg.Feed(chunk.Samples, chunk.Elapsed)
			if err != nil {
				return err
			}
			for _, clip := range clips {
				s.dispatch(inferCtx, clip)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.sink.OnDuration(time.Duration(s.elapsed.Load()))
			}
		}
	})

	captureErr := g.Wait()
	end := time.Duration(s.elapsed.Load())

	if captureErr == nil {
		tail, err := seg.Close(end)
		if err != nil {
			s.log.WithError(err).Warn("closing segmenter")
		}
		for _, clip := range tail {
			s.dispatch(inferCtx, clip)
		}
	} else {
		s.capLog.WithError(captureErr).Error("capture failed, aborting session")
		cancelInfer()
	}
	s.closeSource()

	s.drain()

	s.mu.Lock()
	s.stopped = true
	s.final = s.agg.Snapshot()
	final := s.final
	s.mu.Unlock()
	cancelInfer()
	s.agg.Close()

	s.sink.OnDuration(end)
	if s.store != nil {
		if _, err := s.store.Finish(s.now(), final); err != nil {
			s.log.WithError(err).Error("writing session report")
		}
	}

	s.log.WithFields(logrus.Fields{
		"elapsed":  end,
		"dominant": final.Dominant(),
	}).Info("recording stopped")
	return captureErr
}

func (s *Session) closeSource() {
	s.closeOnce.Do(func() {
		if err := s.src.Close(); err != nil {
			s.capLog.WithError(err).Warn("releasing source")
		}
	})
}

func (s *Session) drain() {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.cfg.DrainTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.log.WithField("timeout", s.cfg.DrainTimeout).Warn("analyses still running, ignoring their results")
	}
}

// dispatch hands a clip to its own goroutine; the semaphore limits how many
// of them talk to the endpoint at once.
func (s *Session) dispatch(ctx context.Context, clip segment.Clip) {
	info := ClipInfo{Index: clip.Index, Start: clip.Start, End: clip.End}
	s.metrics.ClipsEmitted.Add(ctx, 1)
	s.metrics.ClipDuration.Record(ctx, clip.Duration().Seconds())

	rec := report.NewClipRecord(clip, s.now())
	if s.store != nil {
		file, err := s.store.SaveClip(clip)
		if err != nil {
			s.log.WithError(err).Warn("saving clip")
		}
		rec.File = file
	}

	if s.detector != nil && !s.hasSpeech(clip) {
		s.log.WithField("clip", info.String()).Debug("no speech, skipping")
		s.metrics.RecordDrop(ctx, observe.DropSilent)
		rec.Dropped = observe.DropSilent
		s.record(rec)
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.analyze(ctx, clip, info, rec)
	}()
}

func (s *Session) analyze(ctx context.Context, clip segment.Clip, info ClipInfo, rec report.ClipRecord) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.metrics.RecordDrop(context.WithoutCancel(ctx), observe.DropLate)
		return
	}
	defer s.sem.Release(1)

	s.metrics.InFlight.Add(ctx, 1)
	defer s.metrics.InFlight.Add(context.WithoutCancel(ctx), -1)

	start := time.Now()
	res, err := s.analyzer.Analyze(ctx, clip.Audio)
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordInference(context.WithoutCancel(ctx), time.Since(start).Seconds(), status)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.log.WithField("clip", info.String()).Debug("result arrived after stop, ignoring")
		s.metrics.RecordDrop(context.WithoutCancel(ctx), observe.DropLate)
		return
	}

	rec.At = s.now()
	if err != nil {
		s.log.WithError(err).WithField("clip", info.String()).Warn("analysis failed")
		s.metrics.RecordDrop(ctx, observe.DropError)
		rec.Error = err.Error()
		s.record(rec)
		s.sink.OnError(info, err)
		return
	}

	snap := s.agg.OnResult(res, rec.At)
	s.aggLog.WithFields(logrus.Fields{
		"clip":     info.String(),
		"dominant": snap.Dominant(),
	}).Debug("snapshot updated")
	rec.Result = &res
	s.record(rec)
	s.sink.OnSnapshot(info, snap)
}

func (s *Session) hasSpeech(clip segment.Clip) bool {
	w, err := codec.DecodeWAV(bytes.NewReader(clip.Audio))
	if err != nil {
		// let the endpoint decide
		return true
	}
	return s.detector.IsSpeech(w.Data)
}

func (s *Session) record(rec report.ClipRecord) {
	if s.store != nil {
		s.store.Record(rec)
	}
}

type nopSink struct{}

func (nopSink) OnDuration(time.Duration)              {}
func (nopSink) OnSnapshot(ClipInfo, emotion.Snapshot) {}
func (nopSink) OnError(ClipInfo, error)               {}
