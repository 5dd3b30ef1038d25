package audio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultLead delays the first chunk of a run so the first syllable is not clipped.
const DefaultLead = 100 * time.Millisecond

// Scheduled is a chunk placed on the playback timeline.
type Scheduled struct {
	Chunk *model.AudioChunk
	Start time.Time
	End   time.Time
}

// PlaybackQueue places chunks back to back on a timeline. For every pair of
// consecutive chunks Start[i+1] >= Start[i]+Duration[i], and a chunk that
// starts a new run never starts before now+lead.
type PlaybackQueue struct {
	mu        sync.Mutex
	lead      time.Duration
	nextStart time.Time
	items     []*Scheduled
	cursor    int

	ready   chan struct{}
	flushed chan struct{}
}

// NewPlaybackQueue creates a queue with the given lead buffer.
func NewPlaybackQueue(lead time.Duration) *PlaybackQueue {
	if lead <= 0 {
		lead = DefaultLead
	}
	return &PlaybackQueue{
		lead:    lead,
		ready:   make(chan struct{}, 1),
		flushed: make(chan struct{}),
	}
}

// Schedule appends chunk to the timeline and returns its start time.
func (q *PlaybackQueue) Schedule(chunk *model.AudioChunk, now time.Time) time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.prune(now)

	start := q.nextStart
	if len(q.items) == 0 {
		if earliest := now.Add(q.lead); start.Before(earliest) {
			start = earliest
		}
	}

	item := &Scheduled{Chunk: chunk, Start: start, End: start.Add(chunk.Duration())}
	q.items = append(q.items, item)
	q.nextStart = item.End

	select {
	case q.ready <- struct{}{}:
	default:
	}

	return start
}

// Flush stops every scheduled and playing chunk and resets the next start
// time to now. It returns how many chunks were discarded.
func (q *PlaybackQueue) Flush(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	q.cursor = 0
	q.nextStart = now
	close(q.flushed)
	q.flushed = make(chan struct{})
	return n
}

// Active reports whether any chunk is still scheduled to sound at now.
func (q *PlaybackQueue) Active(now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prune(now)
	return len(q.items) > 0
}

// NextStart returns where the next chunk would be placed.
func (q *PlaybackQueue) NextStart() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.nextStart
}

// Len returns the number of chunks still on the timeline.
func (q *PlaybackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// prune drops chunks that finished and were already handed to the player.
func (q *PlaybackQueue) prune(now time.Time) {
	drop := 0
	for drop < q.cursor && !q.items[drop].End.After(now) {
		drop++
	}
	if drop > 0 {
		q.items = q.items[drop:]
		q.cursor -= drop
	}
}

// next blocks until a chunk is available for the player. The returned
// channel is closed if the queue is flushed after the chunk was taken.
func (q *PlaybackQueue) next(ctx context.Context) (*Scheduled, <-chan struct{}, error) {
	for {
		q.mu.Lock()
		if q.cursor < len(q.items) {
			item := q.items[q.cursor]
			q.cursor++
			flushed := q.flushed
			q.mu.Unlock()
			return item, flushed, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-q.ready:
		}
	}
}

// Speaker consumes 24kHz mono PCM16LE. Reset discards audio the device has
// buffered but not yet played.
type Speaker interface {
	io.Writer
	Reset() error
}

// Player writes scheduled chunks to a speaker at their start times.
type Player struct {
	queue   *PlaybackQueue
	speaker Speaker
	now     func() time.Time
}

// NewPlayer creates a player draining queue into speaker.
func NewPlayer(queue *PlaybackQueue, speaker Speaker, now func() time.Time) *Player {
	if now == nil {
		now = time.Now
	}
	return &Player{queue: queue, speaker: speaker, now: now}
}

// Run plays chunks until ctx is cancelled or the speaker fails.
func (p *Player) Run(ctx context.Context) error {
	for {
		item, flushed, err := p.queue.next(ctx)
		if err != nil {
			return nil
		}

		if wait := item.Start.Sub(p.now()); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-flushed:
				timer.Stop()
				continue
			case <-timer.C:
			}
		}

		select {
		case <-flushed:
			continue
		default:
		}

		if _, err := p.speaker.Write(EncodePCM16(item.Chunk.Samples)); err != nil {
			return goerr.Wrap(model.ErrDevice, "failed to write to speaker", goerr.V("cause", err.Error()))
		}
	}
}

// Interrupt flushes the queue and drops audio already handed to the speaker.
func (p *Player) Interrupt() (int, error) {
	n := p.queue.Flush(p.now())
	if err := p.speaker.Reset(); err != nil {
		return n, goerr.Wrap(model.ErrDevice, "failed to reset speaker", goerr.V("cause", err.Error()))
	}
	return n, nil
}
