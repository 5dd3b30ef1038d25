package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/utils/logging"
)

// BookingRequest carries the createBooking arguments.
type BookingRequest struct {
	Name      string
	Phone     string
	Email     string
	Service   string
	Date      string
	Time      string
	SessionID model.SessionID
}

const (
	BookingErrMissingFields    = "missing_fields"
	BookingErrInvalidTime      = "invalid_time"
	BookingErrOutsideHours     = "outside_hours"
	BookingErrInPast           = "in_past"
	BookingErrSlotUnavailable  = "slot_unavailable"
	BookingErrAvailabilityDown = "availability_check_failed"
	BookingErrRejected         = "rejected_by_policy"
	BookingErrWriteFailed      = "booking_failed"
	BookingErrInternal         = "internal_error"
)

// BookingResult is exactly one of {Success, ExternalRef} or {!Success, Error}.
type BookingResult struct {
	Success     bool                 `json:"success"`
	ExternalRef string               `json:"external_ref,omitempty"`
	Error       string               `json:"error,omitempty"`
	Detail      string               `json:"detail,omitempty"`
	NextAction  model.NextAction     `json:"next_action,omitempty"`
	NeedsReauth bool                 `json:"needs_reauth,omitempty"`
	Booking     *model.BookingRecord `json:"booking,omitempty"`
}

func bookingFailure(code, detail string) *BookingResult {
	metricBookings.WithLabelValues(code).Inc()
	return &BookingResult{Success: false, Error: code, Detail: detail}
}

func (x BookingRequest) missing() []string {
	var fields []string
	if strings.TrimSpace(x.Name) == "" {
		fields = append(fields, "name")
	}
	if strings.TrimSpace(x.Phone) == "" && strings.TrimSpace(x.Email) == "" {
		fields = append(fields, "phone or email")
	}
	if strings.TrimSpace(x.Date) == "" {
		fields = append(fields, "date")
	}
	if strings.TrimSpace(x.Time) == "" {
		fields = append(fields, "time")
	}
	return fields
}

// CreateBooking validates the request, re-checks the slot against fresh busy
// intervals and writes it to the sink. It never panics and never reports
// success unless the sink returned a reference.
func (e *Engine) CreateBooking(ctx context.Context, req BookingRequest) (result *BookingResult) {
	logger := logging.From(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("booking panicked", "panic", r)
			result = bookingFailure(BookingErrInternal, fmt.Sprint(r))
		}
	}()

	if fields := req.missing(); len(fields) > 0 {
		r := bookingFailure(BookingErrMissingFields, strings.Join(fields, ", "))
		if fields[0] == "name" {
			r.NextAction = model.NextActionAskForName
		}
		return r
	}

	now := e.Now()
	start, err := ParseDateTime(req.Date, req.Time, e.policy.Loc(), now)
	if err != nil {
		return bookingFailure(BookingErrInvalidTime, err.Error())
	}
	if !e.policy.Allows(start) {
		r := bookingFailure(BookingErrOutsideHours, start.Format("Monday 2006-01-02 15:04"))
		r.NextAction = model.NextActionOfferAlternatives
		return r
	}
	if start.Before(now) {
		r := bookingFailure(BookingErrInPast, start.Format("2006-01-02 15:04"))
		r.NextAction = model.NextActionOfferAlternatives
		return r
	}

	booking := &model.BookingRecord{
		ID:           model.NewBookingID(),
		SessionID:    req.SessionID,
		CustomerName: strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		Email:        strings.TrimSpace(req.Email),
		Service:      strings.TrimSpace(req.Service),
		Start:        start,
		End:          start.Add(e.slotDuration),
	}

	if e.admit != nil {
		denies, err := e.admit.Deny(ctx, booking)
		if err != nil {
			logger.Error("booking policy evaluation failed", "error", err)
			return bookingFailure(BookingErrRejected, "policy evaluation failed")
		}
		if len(denies) > 0 {
			return bookingFailure(BookingErrRejected, strings.Join(denies, "; "))
		}
	}

	// Fresh conflict check right before the write. A failed lookup fails closed.
	busy, err := e.busy(ctx, booking.Start, booking.End)
	if err != nil {
		metricProviderFailures.WithLabelValues("booking_check").Inc()
		logger.Error("conflict check failed", "error", err)
		r := bookingFailure(BookingErrAvailabilityDown, "could not verify the slot")
		r.NeedsReauth = errors.Is(err, model.ErrProviderAuth)
		return r
	}
	if overlapsAny(busy, booking.Start, booking.End) {
		r := bookingFailure(BookingErrSlotUnavailable, booking.Start.Format("2006-01-02 15:04"))
		r.NextAction = model.NextActionOfferAlternatives
		return r
	}

	ref, err := e.create(ctx, booking)
	if err != nil {
		metricProviderFailures.WithLabelValues("booking_write").Inc()
		logger.Error("booking write failed", "error", err)
		r := bookingFailure(BookingErrWriteFailed, "the calendar did not accept the booking")
		r.NeedsReauth = errors.Is(err, model.ErrProviderAuth)
		return r
	}
	if ref == "" {
		return bookingFailure(BookingErrWriteFailed, "the calendar returned no reference")
	}

	booking.ExternalRef = ref
	booking.CreatedAt = e.Now()

	if e.repo != nil {
		if err := e.repo.PutBooking(ctx, booking); err != nil {
			logger.Warn("failed to store booking record", "booking_id", booking.ID, "error", err)
		}
	}

	metricBookings.WithLabelValues("success").Inc()
	logger.Info("booking created", "booking_id", booking.ID, "ref", ref, "start", booking.Start)

	return &BookingResult{
		Success:     true,
		ExternalRef: ref,
		Booking:     booking,
	}
}

func (e *Engine) create(ctx context.Context, booking *model.BookingRecord) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.sink.Create(ctx, booking)
}
