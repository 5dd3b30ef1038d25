package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/utils/logging"
)

const (
	ReasonOutsideHours = "outside_hours"
	ReasonBusy         = "busy"
	ReasonInPast       = "in_past"
)

// CheckResult is the answer to a single availability question.
type CheckResult struct {
	Available  bool             `json:"available"`
	Reason     string           `json:"reason,omitempty"`
	Start      time.Time        `json:"start"`
	NextAction model.NextAction `json:"next_action,omitempty"`
	// Assumed is set when the provider could not be reached and the slot is
	// reported available without busy data.
	Assumed     bool `json:"assumed,omitempty"`
	NeedsReauth bool `json:"needs_reauth,omitempty"`
}

// CheckAvailability answers whether date/time can be booked. Hours are
// checked before the provider is queried. Provider failures fail open.
func (e *Engine) CheckAvailability(ctx context.Context, date, clock string) (*CheckResult, error) {
	now := e.Now()
	start, err := ParseDateTime(date, clock, e.policy.Loc(), now)
	if err != nil {
		return nil, err
	}

	if !e.policy.Allows(start) {
		metricOutsideHours.Inc()
		return &CheckResult{
			Available:  false,
			Reason:     ReasonOutsideHours,
			Start:      start,
			NextAction: model.NextActionOfferAlternatives,
		}, nil
	}

	if start.Before(now) {
		return &CheckResult{
			Available:  false,
			Reason:     ReasonInPast,
			Start:      start,
			NextAction: model.NextActionOfferAlternatives,
		}, nil
	}

	end := start.Add(e.slotDuration)
	busy, err := e.busy(ctx, start, end)
	if err != nil {
		metricProviderFailures.WithLabelValues("check").Inc()
		logging.From(ctx).Warn("busy interval lookup failed, assuming available",
			"start", start, "error", err)
		return &CheckResult{
			Available:   true,
			Start:       start,
			NextAction:  model.NextActionAskForName,
			Assumed:     true,
			NeedsReauth: errors.Is(err, model.ErrProviderAuth),
		}, nil
	}

	if overlapsAny(busy, start, end) {
		return &CheckResult{
			Available:  false,
			Reason:     ReasonBusy,
			Start:      start,
			NextAction: model.NextActionOfferAlternatives,
		}, nil
	}

	return &CheckResult{
		Available:  true,
		Start:      start,
		NextAction: model.NextActionAskForName,
	}, nil
}
