package repository

import (
	"context"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
)

// Repository persists committed bookings and finished call logs
type Repository interface {
	// PutBooking saves a booking. Saving the same ID twice keeps the first copy.
	PutBooking(ctx context.Context, booking *model.BookingRecord) error

	// ListBookings returns the most recent bookings by start time, newest first
	ListBookings(ctx context.Context, limit int) ([]*model.BookingRecord, error)

	// PutCallLog saves or replaces the log of a session
	PutCallLog(ctx context.Context, log *model.CallLog) error

	// GetCallLog returns nil without error when the session is unknown
	GetCallLog(ctx context.Context, id model.SessionID) (*model.CallLog, error)
}

const DefaultListLimit = 50
