package model

import (
	"time"

	"github.com/google/uuid"
)

// BusinessHoursPolicy decides which instants are inside opening hours.
type BusinessHoursPolicy struct {
	AllowedWeekdays [7]bool // indexed by time.Weekday
	StartHour       float64
	EndHour         float64
	Location        *time.Location
}

// DefaultBusinessHours is Monday to Saturday, 09:00 to 18:00.
func DefaultBusinessHours(loc *time.Location) BusinessHoursPolicy {
	if loc == nil {
		loc = time.UTC
	}
	p := BusinessHoursPolicy{StartHour: 9, EndHour: 18, Location: loc}
	for d := time.Monday; d <= time.Saturday; d++ {
		p.AllowedWeekdays[d] = true
	}
	return p
}

// Loc returns the policy location, UTC when unset.
func (p BusinessHoursPolicy) Loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// AllowsDay reports whether the weekday of t (in policy time) is open.
func (p BusinessHoursPolicy) AllowsDay(t time.Time) bool {
	return p.AllowedWeekdays[t.In(p.Loc()).Weekday()]
}

// Allows reports whether t falls on an allowed weekday and within [StartHour, EndHour).
func (p BusinessHoursPolicy) Allows(t time.Time) bool {
	local := t.In(p.Loc())
	if !p.AllowedWeekdays[local.Weekday()] {
		return false
	}
	h := float64(local.Hour()) + float64(local.Minute())/60 + float64(local.Second())/3600
	return h >= p.StartHour && h < p.EndHour
}

// Weekdays returns the allowed weekdays in order.
func (p BusinessHoursPolicy) Weekdays() []time.Weekday {
	var days []time.Weekday
	for d, ok := range p.AllowedWeekdays {
		if ok {
			days = append(days, time.Weekday(d))
		}
	}
	return days
}

// BusyInterval is a committed range reported by the calendar provider.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether [start, end) intersects the interval.
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && b.Start.Before(end)
}

// SlotCandidate is a computed, bookable window that is not committed yet.
type SlotCandidate struct {
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

// End returns the end of the slot.
func (s SlotCandidate) End() time.Time {
	return s.Start.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

type BookingID string

// NewBookingID generates a new unique BookingID
func NewBookingID() BookingID {
	return BookingID(uuid.New().String())
}

func (x BookingID) String() string {
	return string(x)
}

// BookingRecord is created once by a commit and never mutated afterwards.
type BookingRecord struct {
	ID           BookingID `json:"id" firestore:"id"`
	SessionID    SessionID `json:"session_id,omitempty" firestore:"session_id"`
	CustomerName string    `json:"customer_name" firestore:"customer_name"`
	Phone        string    `json:"phone" firestore:"phone"`
	Email        string    `json:"email" firestore:"email"`
	Service      string    `json:"service" firestore:"service"`
	Start        time.Time `json:"start" firestore:"start"`
	End          time.Time `json:"end" firestore:"end"`
	ExternalRef  string    `json:"external_ref" firestore:"external_ref"`
	CreatedAt    time.Time `json:"created_at" firestore:"created_at"`
}
