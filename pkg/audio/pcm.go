package audio

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// DecodePCM16 converts little-endian 16-bit PCM bytes to samples. A trailing
// odd byte is ignored.
func DecodePCM16(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

// EncodePCM16 converts samples to little-endian 16-bit PCM bytes.
func EncodePCM16(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

// RMS returns the root mean square level of samples normalized to 0..1.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Min(1, math.Sqrt(sum/float64(len(samples))))
}

// RateFromMIME extracts the rate parameter of "audio/pcm;rate=24000".
// Zero means the MIME type carried no rate.
func RateFromMIME(mime string) int {
	for _, param := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if ok && strings.EqualFold(k, "rate") {
			if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return 0
}

// Resample converts mono samples between rates with linear interpolation.
func Resample(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}

	n := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]int16, n)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = int16(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
	}
	return out
}

// DecodeChunk turns an inbound audio payload into a playback chunk at
// model.PlaybackSampleRate.
func DecodeChunk(data []byte, mime string, epoch uint64) (*model.AudioChunk, error) {
	if len(data) == 0 {
		return nil, goerr.New("empty audio payload")
	}
	if mime != "" && !strings.HasPrefix(strings.ToLower(mime), "audio/pcm") && !strings.HasPrefix(strings.ToLower(mime), "audio/l16") {
		return nil, goerr.New("unsupported audio encoding", goerr.V("mime", mime))
	}

	rate := RateFromMIME(mime)
	if rate == 0 {
		rate = model.PlaybackSampleRate
	}

	return &model.AudioChunk{
		Samples:      Resample(DecodePCM16(data), rate, model.PlaybackSampleRate),
		SampleRateHz: model.PlaybackSampleRate,
		OriginEpoch:  epoch,
	}, nil
}
