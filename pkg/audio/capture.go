package audio

import (
	"context"
	"errors"
	"io"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultFrameSamples is 20ms of 16kHz audio.
const DefaultFrameSamples = model.CaptureSampleRate / 50

// EpochSource is the view of the interruption guard used by capture.
type EpochSource interface {
	Current() uint64
	IsCurrent(epoch uint64) bool
}

// FrameSender forwards a captured frame to the model.
type FrameSender func(ctx context.Context, frame *model.Frame) error

// Capture reads the microphone in fixed frames and forwards them while
// their epoch is current.
type Capture struct {
	mic     io.Reader
	guard   EpochSource
	send    FrameSender
	gate    *NoiseGate
	samples int

	playing func() bool
	volume  func(float64)
	gated   func()
	smooth  Smoother
}

// CaptureOption is a functional option for Capture
type CaptureOption func(*Capture)

func WithGate(g *NoiseGate) CaptureOption {
	return func(c *Capture) {
		c.gate = g
	}
}

func WithFrameSamples(n int) CaptureOption {
	return func(c *Capture) {
		if n > 0 {
			c.samples = n
		}
	}
}

// WithPlaybackActive tells the gate whether model audio is currently playing.
func WithPlaybackActive(f func() bool) CaptureOption {
	return func(c *Capture) {
		c.playing = f
	}
}

// WithVolume receives the smoothed input level of every frame.
func WithVolume(f func(float64)) CaptureOption {
	return func(c *Capture) {
		c.volume = f
	}
}

// WithGatedHook is called for every frame replaced by silence.
func WithGatedHook(f func()) CaptureOption {
	return func(c *Capture) {
		c.gated = f
	}
}

// NewCapture creates a capture loop over mic (16kHz mono PCM16LE).
func NewCapture(mic io.Reader, guard EpochSource, send FrameSender, opts ...CaptureOption) *Capture {
	c := &Capture{
		mic:     mic,
		guard:   guard,
		send:    send,
		gate:    NewNoiseGate(),
		samples: DefaultFrameSamples,
		playing: func() bool { return false },
		volume:  func(float64) {},
		gated:   func() {},
		smooth:  Smoother{Alpha: 0.3},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run reads until the microphone closes or ctx is cancelled. Frames below
// the gate are sent as silence so the model still sees a continuous stream.
// Frames whose epoch advanced before sending are dropped.
func (c *Capture) Run(ctx context.Context) error {
	buf := make([]byte, c.samples*2)

	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := io.ReadFull(c.mic, buf); err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return goerr.Wrap(model.ErrDevice, "failed to read microphone", goerr.V("cause", err.Error()))
		}

		frame := &model.Frame{
			Samples: DecodePCM16(buf),
			Epoch:   c.guard.Current(),
		}

		level := RMS(frame.Samples)
		c.volume(c.smooth.Update(level))

		if !c.gate.Open(level, c.playing()) {
			clear(frame.Samples)
			c.gated()
		}

		if !c.guard.IsCurrent(frame.Epoch) {
			continue
		}
		if err := c.send(ctx, frame); err != nil {
			return err
		}
	}
}
