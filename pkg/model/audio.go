package model

import "time"

const (
	// CaptureSampleRate is the rate of outbound microphone frames (mono PCM16).
	CaptureSampleRate = 16000
	// PlaybackSampleRate is the rate of decoded model audio (mono PCM16).
	PlaybackSampleRate = 24000

	CaptureMIMEType = "audio/pcm;rate=16000"
)

// Frame is a block of captured samples tagged with the epoch it was read under.
type Frame struct {
	Samples []int16
	Epoch   uint64
}

// AudioChunk is decoded model audio waiting for playback.
type AudioChunk struct {
	Samples      []int16
	SampleRateHz int
	OriginEpoch  uint64
}

// Duration returns the playback length of the chunk.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRateHz <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRateHz)
}
