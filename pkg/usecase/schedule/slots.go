package schedule

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/utils/logging"
)

// SlotsResult lists open candidates. An empty list is a valid answer.
type SlotsResult struct {
	Slots       []model.SlotCandidate `json:"slots"`
	NextAction  model.NextAction      `json:"next_action"`
	Assumed     bool                  `json:"assumed,omitempty"`
	NeedsReauth bool                  `json:"needs_reauth,omitempty"`
}

const minutesPerDay = 24 * 60

// FindAvailableSlots scans forward from date for up to searchDays days at a
// fixed step inside policy hours and returns at most maxResults candidates.
// Candidates before now, on closed days or overlapping a busy interval are
// skipped. Provider failures fail open.
func (e *Engine) FindAvailableSlots(ctx context.Context, date string) *SlotsResult {
	now := e.Now()
	loc := e.policy.Loc()

	from := normalizeDate(date, loc, now)
	dayStart := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	horizon := dayStart.AddDate(0, 0, e.searchDays)

	scanFrom := from
	if scanFrom.Before(now) {
		scanFrom = now
	}

	result := &SlotsResult{Slots: []model.SlotCandidate{}}
	if !scanFrom.Before(horizon) {
		result.NextAction = model.NextActionOfferAlternatives
		return result
	}

	busy, err := e.busy(ctx, scanFrom, horizon)
	if err != nil {
		metricProviderFailures.WithLabelValues("slots").Inc()
		logging.From(ctx).Warn("busy interval lookup failed, listing slots without calendar data",
			"from", scanFrom, "error", err)
		busy = nil
		result.Assumed = true
		result.NeedsReauth = errors.Is(err, model.ErrProviderAuth)
	}

	minutes := int(e.slotDuration / time.Minute)
	openMin := int(math.Round(e.policy.StartHour * 60))
	stepMin := max(int(e.step/time.Minute), 1)
	for day := 0; day < e.searchDays && len(result.Slots) < e.maxResults; day++ {
		d := dayStart.AddDate(0, 0, day)
		if !e.policy.AllowsDay(d) {
			continue
		}

		// Walk the wall clock; elapsed time from midnight is off by an hour on DST days.
		for m := openMin; m < minutesPerDay && len(result.Slots) < e.maxResults; m += stepMin {
			t := time.Date(d.Year(), d.Month(), d.Day(), m/60, m%60, 0, 0, loc)
			if !e.policy.Allows(t) {
				break
			}
			if t.Before(scanFrom) {
				continue
			}
			if overlapsAny(busy, t, t.Add(e.slotDuration)) {
				continue
			}
			result.Slots = append(result.Slots, model.SlotCandidate{Start: t, DurationMinutes: minutes})
		}
	}

	if len(result.Slots) > 0 {
		result.NextAction = model.NextActionAskForName
	} else {
		result.NextAction = model.NextActionOfferAlternatives
	}
	return result
}
