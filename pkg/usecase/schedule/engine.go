package schedule

import (
	"context"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
)

// BusyIntervalSource returns committed ranges overlapping [start, end).
type BusyIntervalSource interface {
	Busy(ctx context.Context, start, end time.Time) ([]model.BusyInterval, error)
}

// BookingSink writes a booking to the external calendar and returns its reference.
type BookingSink interface {
	Create(ctx context.Context, booking *model.BookingRecord) (string, error)
}

// BookingRepository keeps a copy of committed bookings.
type BookingRepository interface {
	PutBooking(ctx context.Context, booking *model.BookingRecord) error
}

// BookingPolicy returns deny reasons for a booking that is about to be written.
type BookingPolicy interface {
	Deny(ctx context.Context, booking *model.BookingRecord) ([]string, error)
}

const (
	DefaultMaxResults      = 5
	DefaultSearchDays      = 7
	DefaultStep            = 2 * time.Hour
	DefaultSlotDuration    = 60 * time.Minute
	DefaultProviderTimeout = 15 * time.Second
)

// Engine answers availability questions and commits bookings against a
// business-hours policy and an external calendar. Busy intervals are fetched
// on every call and never cached.
type Engine struct {
	policy model.BusinessHoursPolicy
	source BusyIntervalSource
	sink   BookingSink

	repo  BookingRepository
	admit BookingPolicy

	now          func() time.Time
	slotDuration time.Duration
	step         time.Duration
	searchDays   int
	maxResults   int
	timeout      time.Duration
}

// Option is a functional option for Engine
type Option func(*Engine)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithSlotDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.slotDuration = d
		}
	}
}

func WithStep(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.step = d
		}
	}
}

func WithMaxResults(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxResults = n
		}
	}
}

// WithProviderTimeout bounds each Busy and Create call.
func WithProviderTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRepository stores every committed booking.
func WithRepository(repo BookingRepository) Option {
	return func(e *Engine) {
		e.repo = repo
	}
}

// WithBookingPolicy evaluates the admission policy before a booking is written.
func WithBookingPolicy(p BookingPolicy) Option {
	return func(e *Engine) {
		e.admit = p
	}
}

// New creates a scheduling engine. The source and sink are required.
func New(policy model.BusinessHoursPolicy, source BusyIntervalSource, sink BookingSink, opts ...Option) *Engine {
	e := &Engine{
		policy:       policy,
		source:       source,
		sink:         sink,
		now:          time.Now,
		slotDuration: DefaultSlotDuration,
		step:         DefaultStep,
		searchDays:   DefaultSearchDays,
		maxResults:   DefaultMaxResults,
		timeout:      DefaultProviderTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Policy returns the business-hours policy the engine runs with.
func (e *Engine) Policy() model.BusinessHoursPolicy {
	return e.policy
}

// Now returns the engine clock in policy time.
func (e *Engine) Now() time.Time {
	return e.now().In(e.policy.Loc())
}

func (e *Engine) busy(ctx context.Context, start, end time.Time) ([]model.BusyInterval, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.source.Busy(ctx, start, end)
}

func overlapsAny(busy []model.BusyInterval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}
