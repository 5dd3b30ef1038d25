package policy_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/policy"
	"github.com/m-mizutani/gt"
)

func writePolicy(t *testing.T, content string) string {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "booking.rego"), []byte(content), 0600))
	return dir
}

func booking(service string, start time.Time) *model.BookingRecord {
	return &model.BookingRecord{
		ID:           model.NewBookingID(),
		CustomerName: "Ada",
		Phone:        "555-0100",
		Service:      service,
		Start:        start,
		End:          start.Add(time.Hour),
	}
}

func TestBookingPolicy(t *testing.T) {
	dir := writePolicy(t, `package booking

deny contains msg if {
	input.service == "Surgery"
	msg := "surgery cannot be booked by phone"
}

deny contains msg if {
	input.weekday == "Saturday"
	input.hour >= 13
	msg := "saturday afternoons are reserved"
}
`)

	p, err := policy.Load(context.Background(), dir)
	gt.NoError(t, err)
	gt.A(t, p.Files()).Length(1)

	monday := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 6, 6, 14, 0, 0, 0, time.UTC)

	testCases := map[string]struct {
		booking *model.BookingRecord
		reasons []string
	}{
		"admitted": {
			booking: booking("Consultation", monday),
			reasons: []string{},
		},
		"service denied": {
			booking: booking("Surgery", monday),
			reasons: []string{"surgery cannot be booked by phone"},
		},
		"two reasons": {
			booking: booking("Surgery", saturday),
			reasons: []string{"saturday afternoons are reserved", "surgery cannot be booked by phone"},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			reasons, err := p.Deny(context.Background(), tc.booking)
			gt.NoError(t, err)
			gt.A(t, reasons).Length(len(tc.reasons))
			for i := range tc.reasons {
				gt.Equal(t, reasons[i], tc.reasons[i])
			}
		})
	}
}

func TestLoadWithoutPolicies(t *testing.T) {
	p, err := policy.Load(context.Background(), "")
	gt.NoError(t, err)
	reasons, err := p.Deny(context.Background(), booking("Any", time.Now()))
	gt.NoError(t, err)
	gt.A(t, reasons).Length(0)

	p, err = policy.Load(context.Background(), t.TempDir())
	gt.NoError(t, err)
	reasons, err = p.Deny(context.Background(), booking("Any", time.Now()))
	gt.NoError(t, err)
	gt.A(t, reasons).Length(0)
}

func TestLoadInvalidPolicy(t *testing.T) {
	dir := writePolicy(t, "package booking\n\ndeny contains msg if {")
	_, err := policy.Load(context.Background(), dir)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrConfiguration))
}

func TestInput(t *testing.T) {
	start := time.Date(2026, 6, 1, 14, 30, 0, 0, time.UTC)
	in := policy.Input(booking("Consultation", start))
	gt.Equal(t, in["weekday"], any("Monday"))
	gt.Equal(t, in["hour"], any(14))
	gt.Equal(t, in["duration_minutes"], any(60))
	gt.Equal(t, in["date"], any("2026-06-01"))
}
