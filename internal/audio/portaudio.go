package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// chunkBacklog is how many callback chunks may wait for the analyzer
// before new ones are dropped
const chunkBacklog = 64

// PortAudioCapturer implements audio capture using PortAudio
type PortAudioCapturer struct {
	mu            sync.Mutex
	isCapturing   bool
	stream        *portaudio.Stream
	chunks        chan []float32
	framesPerCall int
	sampleRate    int
	channels      int
	amplification float32 // Audio signal amplification factor
	dropped       atomic.Uint64
	closeOnce     sync.Once
	logger        *slog.Logger
}

// NewPortAudioCapturer initialises PortAudio for capture from the default
// input device. framesPerCall is the callback block size and need not
// match the analysis frame length.
func NewPortAudioCapturer(framesPerCall, sampleRate, channels int, logger *slog.Logger) (*PortAudioCapturer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialise portaudio: %v", ErrInputUnavailable, err)
	}

	return &PortAudioCapturer{
		framesPerCall: framesPerCall,
		sampleRate:    sampleRate,
		channels:      channels,
		amplification: 1.0,
		logger:        logger,
	}, nil
}

// Start opens the default input stream and begins delivering chunks
func (c *PortAudioCapturer) Start(ctx context.Context) (<-chan []float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isCapturing {
		return nil, ErrAlreadyStarted
	}

	c.chunks = make(chan []float32, chunkBacklog)

	stream, err := portaudio.OpenDefaultStream(
		c.channels, // input channels
		0,          // output channels (we don't need output)
		float64(c.sampleRate),
		c.framesPerCall,
		c.processAudio,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: open input stream: %v", ErrInputUnavailable, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: start input stream: %v", ErrInputUnavailable, err)
	}

	c.stream = stream
	c.isCapturing = true
	c.logger.Info("audio capture started",
		"sample_rate", c.sampleRate,
		"channels", c.channels,
		"frames_per_call", c.framesPerCall,
	)

	go func() {
		<-ctx.Done()
		if err := c.Close(); err != nil {
			c.logger.Warn("audio capture close", "err", err)
		}
	}()

	return c.chunks, nil
}

// processAudio is the PortAudio callback. It runs on the audio thread and
// must not block, so a lagging consumer loses chunks instead.
func (c *PortAudioCapturer) processAudio(in, _ []float32) {
	c.mu.Lock()
	gain := c.amplification
	c.mu.Unlock()

	chunk := downmix(in, c.channels, gain)
	select {
	case c.chunks <- chunk:
	default:
		c.dropped.Add(1)
	}
}

// Close stops the stream and terminates PortAudio. The chunk channel is
// closed once the callback can no longer run.
func (c *PortAudioCapturer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		stream := c.stream
		capturing := c.isCapturing
		c.isCapturing = false
		c.mu.Unlock()

		if capturing {
			err = errors.Join(stream.Stop(), stream.Close())
			close(c.chunks)
		}
		err = errors.Join(err, portaudio.Terminate())

		if n := c.dropped.Load(); n > 0 {
			c.logger.Warn("audio chunks dropped", "count", n)
		}
	})
	return err
}

// SampleRate returns the capture sample rate
func (c *PortAudioCapturer) SampleRate() int {
	return c.sampleRate
}

// IsCapturing returns true if currently capturing audio
func (c *PortAudioCapturer) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCapturing
}

// Dropped returns how many chunks were discarded because the consumer
// fell behind
func (c *PortAudioCapturer) Dropped() uint64 {
	return c.dropped.Load()
}

// SetAmplification sets the audio amplification factor
func (c *PortAudioCapturer) SetAmplification(factor float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Ensure amplification is positive
	if factor < 0.1 {
		factor = 0.1
	}

	c.amplification = factor
}
