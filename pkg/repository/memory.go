package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
)

// Memory keeps everything in process. Used when no database is configured.
type Memory struct {
	mu       sync.RWMutex
	bookings map[model.BookingID]*model.BookingRecord
	calls    map[model.SessionID]*model.CallLog
}

func NewMemory() *Memory {
	return &Memory{
		bookings: make(map[model.BookingID]*model.BookingRecord),
		calls:    make(map[model.SessionID]*model.CallLog),
	}
}

func (r *Memory) PutBooking(ctx context.Context, booking *model.BookingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[booking.ID]; ok {
		return nil
	}
	copied := *booking
	r.bookings[booking.ID] = &copied
	return nil
}

func (r *Memory) ListBookings(ctx context.Context, limit int) ([]*model.BookingRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	r.mu.RLock()
	out := make([]*model.BookingRecord, 0, len(r.bookings))
	for _, b := range r.bookings {
		copied := *b
		out = append(out, &copied)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Memory) PutCallLog(ctx context.Context, log *model.CallLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *log
	r.calls[log.SessionID] = &copied
	return nil
}

func (r *Memory) GetCallLog(ctx context.Context, id model.SessionID) (*model.CallLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	log, ok := r.calls[id]
	if !ok {
		return nil, nil
	}
	copied := *log
	return &copied, nil
}
