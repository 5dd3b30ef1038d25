package call

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/adapter"
	"github.com/alokranjan04/admin-voice-agent/pkg/audio"
	"github.com/alokranjan04/admin-voice-agent/pkg/model"
)

// Session is one call from Connecting until it ends. Its resources are
// released exactly once, by whichever of disconnect, replacement or
// transport failure happens first.
type Session struct {
	ID        model.SessionID
	Profile   string
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    atomic.Bool
	resources []io.Closer
	entries   []*model.LogEntry
	bookings  int
	endedAt   time.Time
	endReason string

	channel    adapter.LiveSession
	queue      *audio.PlaybackQueue
	player     *audio.Player
	decoder    *audio.Decoder
	dispatcher *Dispatcher

	// serializes epoch checks on decoded audio against interruptions
	playMu sync.Mutex

	// only touched by the receive goroutine
	userText  strings.Builder
	modelText strings.Builder

	wg   sync.WaitGroup
	done chan struct{}
}

func newSession(ctx context.Context, profile *model.BusinessProfile, now time.Time) *Session {
	s := &Session{
		ID:        model.NewSessionID(),
		Profile:   profile.Name,
		StartedAt: now,
		done:      make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	return s
}

// Done is closed once every goroutine of the session has stopped and its
// call log has been persisted.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// EndReason is empty until the session ends.
func (s *Session) EndReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endReason
}

// hold registers a resource for release on close. It returns false if the
// session already ended, in which case the caller owns r.
func (s *Session) hold(r io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.resources = append(s.resources, r)
	return true
}

// close releases resources in reverse acquisition order. Only the first
// call has effect.
func (s *Session) close(reason string, now time.Time) bool {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return false
	}
	s.closed.Store(true)
	s.endReason = reason
	s.endedAt = now
	resources := s.resources
	s.resources = nil
	s.mu.Unlock()

	s.cancel()
	for _, r := range slices.Backward(resources) {
		_ = r.Close()
	}
	return true
}

func (s *Session) goRun(f func(ctx context.Context) error, onErr func(error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := f(s.ctx); err != nil && onErr != nil && !s.closed.Load() {
			onErr(err)
		}
	}()
}

func (s *Session) append(entry *model.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *Session) addBooking() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings++
}

// CallLog snapshots the session for persistence.
func (s *Session) CallLog() *model.CallLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &model.CallLog{
		SessionID:    s.ID,
		Profile:      s.Profile,
		StartedAt:    s.StartedAt,
		EndedAt:      s.endedAt,
		EndReason:    s.endReason,
		Entries:      slices.Clone(s.entries),
		BookingCount: s.bookings,
	}
}

// sessionGuard is current only while the session is open and the epoch
// has not moved.
type sessionGuard struct {
	guard *Guard
	s     *Session
}

func (g sessionGuard) Current() uint64 {
	return g.guard.Current()
}

func (g sessionGuard) IsCurrent(epoch uint64) bool {
	return !g.s.closed.Load() && g.guard.IsCurrent(epoch)
}
