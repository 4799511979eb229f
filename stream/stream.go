package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/garlicgarrison/go-emotion-recorder/codec"
)

const (
	DefaultInputChannels   = 1
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 1024
)

var (
	// ErrCapture wraps every failure to acquire or read a capture device.
	ErrCapture = errors.New("audio capture failed")
	ErrClosed  = errors.New("stream closed")
)

// Chunk is one block of interleaved PCM16 samples. Elapsed is the capture
// time at the end of the block, measured from Start.
type Chunk struct {
	Samples []int16
	Elapsed time.Duration
}

// Source is anything that can be recorded from.
type Source interface {
	Start() error
	// Read blocks until the next chunk is available. It returns io.EOF once a
	// finite source is exhausted.
	Read(ctx context.Context) (Chunk, error)
	Format() codec.Format
	Close() error
}

var (
	_ Source = (*Microphone)(nil)
	_ Source = (*FileSource)(nil)
)

type StreamConfig struct {
	SampleRate      float64
	InputChannels   int
	FramesPerBuffer int
}

func DefaultStreamConfig() *StreamConfig {
	return &StreamConfig{
		SampleRate:      DefaultSampleRate,
		InputChannels:   DefaultInputChannels,
		FramesPerBuffer: DefaultFramesPerBuffer,
	}
}

// Microphone reads the default portaudio input device.
type Microphone struct {
	cfg     *StreamConfig
	stream  *portaudio.Stream
	mutex   sync.Mutex
	buffer  []int16
	started time.Time
	open    bool
}

func NewMicrophone(cfg *StreamConfig) *Microphone {
	if cfg == nil {
		cfg = DefaultStreamConfig()
	}
	return &Microphone{
		cfg:    cfg,
		buffer: make([]int16, cfg.FramesPerBuffer*cfg.InputChannels),
	}
}

func (m *Microphone) Format() codec.Format {
	return codec.Format{
		SampleRate: int(m.cfg.SampleRate),
		Channels:   m.cfg.InputChannels,
	}
}

func (m *Microphone) Start() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.open {
		return nil
	}

	err := portaudio.Initialize()
	if err != nil {
		return fmt.Errorf("%w: initialize portaudio: %v", ErrCapture, err)
	}

	stream, err := portaudio.OpenDefaultStream(
		m.cfg.InputChannels,
		0,
		m.cfg.SampleRate,
		m.cfg.FramesPerBuffer,
		m.buffer,
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: open input stream: %v", ErrCapture, err)
	}

	err = stream.Start()
	if err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("%w: start input stream: %v", ErrCapture, err)
	}

	m.stream = stream
	m.started = time.Now()
	m.open = true
	return nil
}

func (m *Microphone) Read(ctx context.Context) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.open {
		return Chunk{}, ErrClosed
	}

	err := m.stream.Read()
	// an overflow only means we lost a few frames; the buffer is still valid
	if err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return Chunk{}, fmt.Errorf("%w: read: %v", ErrCapture, err)
	}

	toRet := make([]int16, len(m.buffer))
	copy(toRet, m.buffer)
	return Chunk{Samples: toRet, Elapsed: time.Since(m.started)}, nil
}

// Close stops the device and releases portaudio. It is safe to call more
// than once.
func (m *Microphone) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.open {
		return nil
	}
	m.open = false

	stopErr := m.stream.Stop()
	closeErr := m.stream.Close()
	termErr := portaudio.Terminate()
	return errors.Join(stopErr, closeErr, termErr)
}
