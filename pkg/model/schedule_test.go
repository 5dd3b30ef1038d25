package model_test

import (
	"testing"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestDefaultBusinessHours(t *testing.T) {
	p := model.DefaultBusinessHours(nil)

	// 2025-06-02 is a Monday
	gt.True(t, p.Allows(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)))
	gt.True(t, p.Allows(time.Date(2025, 6, 2, 17, 59, 0, 0, time.UTC)))
	gt.False(t, p.Allows(time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)))
	gt.False(t, p.Allows(time.Date(2025, 6, 2, 8, 59, 0, 0, time.UTC)))

	// Saturday open, Sunday closed
	gt.True(t, p.Allows(time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)))
	gt.False(t, p.Allows(time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC)))
	gt.A(t, p.Weekdays()).Length(6)
}

func TestBusyIntervalOverlaps(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	busy := model.BusyInterval{Start: base, End: base.Add(time.Hour)}

	gt.True(t, busy.Overlaps(base.Add(30*time.Minute), base.Add(90*time.Minute)))
	gt.True(t, busy.Overlaps(base.Add(-30*time.Minute), base.Add(30*time.Minute)))
	gt.False(t, busy.Overlaps(base.Add(time.Hour), base.Add(2*time.Hour)))
	gt.False(t, busy.Overlaps(base.Add(-time.Hour), base))
}

func TestAudioChunkDuration(t *testing.T) {
	chunk := &model.AudioChunk{Samples: make([]int16, 2400), SampleRateHz: model.PlaybackSampleRate}
	gt.Equal(t, chunk.Duration(), 100*time.Millisecond)

	empty := &model.AudioChunk{}
	gt.Equal(t, empty.Duration(), time.Duration(0))
}
