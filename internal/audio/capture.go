package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	subscriberBufferFrames = 50
	statsInterval          = 30 * time.Second
)

// Capture reads fixed-size frames from a Source on a single goroutine and
// hands them to the current subscriber. Frames read while nobody is
// subscribed, or while the subscriber is behind, are dropped.
type Capture struct {
	source     Source
	frameBytes int

	mu   sync.Mutex
	sub  chan []byte
	done chan struct{}

	readFrames    atomic.Int64
	droppedFrames atomic.Int64
}

func NewCapture(source Source, frameBytes int) *Capture {
	return &Capture{
		source:     source,
		frameBytes: frameBytes,
		done:       make(chan struct{}),
	}
}

// FrameBytes returns the size of a frame for the given format and duration.
func FrameBytes(sampleRate, channels int, frame time.Duration) int {
	samples := int(int64(sampleRate) * int64(frame) / int64(time.Second))
	return samples * channels * 2
}

func (c *Capture) Run(ctx context.Context) error {
	defer close(c.done)
	go func() {
		<-ctx.Done()
		_ = c.source.Close()
	}()

	lastStats := time.Now()
	for {
		buf := make([]byte, c.frameBytes)
		n, err := c.source.ReadPCM(buf)
		if n > 0 {
			c.readFrames.Add(1)
			c.offer(buf[:n])
		}
		if time.Since(lastStats) >= statsInterval {
			slog.Info("audio capture stats", "read_frames", c.readFrames.Load(), "dropped_frames", c.droppedFrames.Load())
			lastStats = time.Now()
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			slog.Info("audio capture stopped", "reason", ctx.Err().Error())
			return nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			slog.Info("audio input ended", "read_frames", c.readFrames.Load())
			return nil
		}
		return fmt.Errorf("read audio: %w", err)
	}
}

// Subscribe replaces the current subscriber. The returned cancel function
// detaches the subscription if it is still the current one.
func (c *Capture) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBufferFrames)
	c.mu.Lock()
	c.sub = ch
	c.mu.Unlock()
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.sub == ch {
			c.sub = nil
		}
	}
}

// Done is closed when the input has ended.
func (c *Capture) Done() <-chan struct{} {
	return c.done
}

func (c *Capture) offer(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil {
		c.droppedFrames.Add(1)
		return
	}
	select {
	case c.sub <- frame:
	default:
		c.droppedFrames.Add(1)
	}
}
