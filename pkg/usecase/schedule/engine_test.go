package schedule_test

import (
	"context"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/usecase/schedule"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

// Mock busy interval source
type mockSource struct {
	mu    sync.Mutex
	busy  []model.BusyInterval
	err   error
	calls int
}

func (m *mockSource) Busy(ctx context.Context, start, end time.Time) ([]model.BusyInterval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.busy, nil
}

func (m *mockSource) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Mock booking sink
type mockSink struct {
	ref     string
	err     error
	panics  bool
	created []*model.BookingRecord
}

func (m *mockSink) Create(ctx context.Context, booking *model.BookingRecord) (string, error) {
	if m.panics {
		panic("sink exploded")
	}
	if m.err != nil {
		return "", m.err
	}
	m.created = append(m.created, booking)
	return m.ref, nil
}

type mockRepo struct {
	bookings []*model.BookingRecord
}

func (m *mockRepo) PutBooking(ctx context.Context, booking *model.BookingRecord) error {
	m.bookings = append(m.bookings, booking)
	return nil
}

type denyAll struct{ reason string }

func (d denyAll) Deny(ctx context.Context, booking *model.BookingRecord) ([]string, error) {
	return []string{d.reason}, nil
}

// 2026-06-01 is a Monday
var monday8am = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func weekdayPolicy() model.BusinessHoursPolicy {
	return schedule.ParseBusinessHours("9:00 AM - 5:00 PM", weekdays, "UTC")
}

func newEngine(src *mockSource, sink *mockSink, now time.Time, opts ...schedule.Option) *schedule.Engine {
	opts = append([]schedule.Option{schedule.WithClock(func() time.Time { return now })}, opts...)
	return schedule.New(weekdayPolicy(), src, sink, opts...)
}

func TestCheckAvailabilityOutsideHoursSkipsProvider(t *testing.T) {
	src := &mockSource{}
	engine := newEngine(src, &mockSink{}, monday8am)

	// Tuesday 20:00
	resp, err := engine.CheckAvailability(context.Background(), "2026-06-02", "20:00")
	gt.NoError(t, err)
	gt.False(t, resp.Available)
	gt.Equal(t, resp.Reason, schedule.ReasonOutsideHours)
	gt.Equal(t, resp.NextAction, model.NextActionOfferAlternatives)
	gt.Equal(t, src.CallCount(), 0)

	// Sunday inside the clock hours is still closed
	resp, err = engine.CheckAvailability(context.Background(), "2026-06-07", "10:00")
	gt.NoError(t, err)
	gt.Equal(t, resp.Reason, schedule.ReasonOutsideHours)
	gt.Equal(t, src.CallCount(), 0)
}

func TestCheckAvailability(t *testing.T) {
	tuesday10 := time.Date(2026, 6, 2, 10, 0, 0, 0, time.UTC)

	t.Run("free", func(t *testing.T) {
		src := &mockSource{}
		engine := newEngine(src, &mockSink{}, monday8am)

		resp, err := engine.CheckAvailability(context.Background(), "2024-06-02", "2 PM")
		gt.NoError(t, err)
		gt.True(t, resp.Available)
		gt.Equal(t, resp.NextAction, model.NextActionAskForName)
		gt.True(t, resp.Start.Equal(time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)))
		gt.Equal(t, src.CallCount(), 1)
	})

	t.Run("busy overlap", func(t *testing.T) {
		src := &mockSource{busy: []model.BusyInterval{{Start: tuesday10, End: tuesday10.Add(time.Hour)}}}
		engine := newEngine(src, &mockSink{}, monday8am)

		resp, err := engine.CheckAvailability(context.Background(), "2026-06-02", "10:30")
		gt.NoError(t, err)
		gt.False(t, resp.Available)
		gt.Equal(t, resp.Reason, schedule.ReasonBusy)
		gt.Equal(t, resp.NextAction, model.NextActionOfferAlternatives)
	})

	t.Run("adjacent busy is free", func(t *testing.T) {
		src := &mockSource{busy: []model.BusyInterval{{Start: tuesday10, End: tuesday10.Add(time.Hour)}}}
		engine := newEngine(src, &mockSink{}, monday8am)

		resp, err := engine.CheckAvailability(context.Background(), "2026-06-02", "11:00")
		gt.NoError(t, err)
		gt.True(t, resp.Available)
	})

	t.Run("provider failure fails open", func(t *testing.T) {
		src := &mockSource{err: goerr.New("calendar down")}
		engine := newEngine(src, &mockSink{}, monday8am)

		resp, err := engine.CheckAvailability(context.Background(), "2026-06-02", "10:00")
		gt.NoError(t, err)
		gt.True(t, resp.Available)
		gt.True(t, resp.Assumed)
		gt.False(t, resp.NeedsReauth)
	})

	t.Run("auth failure flags reauth", func(t *testing.T) {
		src := &mockSource{err: goerr.Wrap(model.ErrProviderAuth, "calendar rejected token")}
		engine := newEngine(src, &mockSink{}, monday8am)

		resp, err := engine.CheckAvailability(context.Background(), "2026-06-02", "10:00")
		gt.NoError(t, err)
		gt.True(t, resp.Available)
		gt.True(t, resp.NeedsReauth)
	})

	t.Run("past", func(t *testing.T) {
		src := &mockSource{}
		now := time.Date(2026, 6, 2, 12, 0, 0, 0, time.UTC)
		engine := newEngine(src, &mockSink{}, now)

		resp, err := engine.CheckAvailability(context.Background(), "2026-06-02", "10:00")
		gt.NoError(t, err)
		gt.False(t, resp.Available)
		gt.Equal(t, resp.Reason, schedule.ReasonInPast)
		gt.Equal(t, src.CallCount(), 0)
	})

	t.Run("invalid time", func(t *testing.T) {
		engine := newEngine(&mockSource{}, &mockSink{}, monday8am)
		_, err := engine.CheckAvailability(context.Background(), "2026-06-02", "whenever")
		gt.Error(t, err)
	})
}

func TestFindAvailableSlotsCap(t *testing.T) {
	src := &mockSource{}
	engine := newEngine(src, &mockSink{}, monday8am)

	resp := engine.FindAvailableSlots(context.Background(), "2026-06-01")
	gt.A(t, resp.Slots).Length(schedule.DefaultMaxResults)
	gt.Equal(t, resp.NextAction, model.NextActionAskForName)
	gt.Equal(t, src.CallCount(), 1)

	expected := []time.Time{
		time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 1, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC),
	}
	for i, slot := range resp.Slots {
		gt.True(t, slot.Start.Equal(expected[i])).Describe(slot.Start.String())
		gt.False(t, slot.Start.Before(monday8am))
		gt.Equal(t, slot.DurationMinutes, 60)
	}
}

func TestFindAvailableSlotsMaxResults(t *testing.T) {
	engine := newEngine(&mockSource{}, &mockSink{}, monday8am, schedule.WithMaxResults(2))
	resp := engine.FindAvailableSlots(context.Background(), "2026-06-01")
	gt.A(t, resp.Slots).Length(2)
}

func TestFindAvailableSlotsSkipsClosedDays(t *testing.T) {
	engine := newEngine(&mockSource{}, &mockSink{}, monday8am)

	// Saturday 2026-06-06
	resp := engine.FindAvailableSlots(context.Background(), "2026-06-06")
	gt.A(t, resp.Slots).Longer(0)
	for _, slot := range resp.Slots {
		wd := slot.Start.Weekday()
		gt.True(t, wd != time.Saturday && wd != time.Sunday).Describe(slot.Start.String())
	}
	gt.True(t, resp.Slots[0].Start.Equal(time.Date(2026, 6, 8, 9, 0, 0, 0, time.UTC)))
}

func TestFindAvailableSlotsSkipsPastAndBusy(t *testing.T) {
	noon := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	busy13 := time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC)
	src := &mockSource{busy: []model.BusyInterval{{Start: busy13, End: busy13.Add(30 * time.Minute)}}}
	engine := newEngine(src, &mockSink{}, noon)

	resp := engine.FindAvailableSlots(context.Background(), "2026-06-01")
	gt.A(t, resp.Slots).Length(5)
	gt.True(t, resp.Slots[0].Start.Equal(time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)))
	for _, slot := range resp.Slots {
		gt.False(t, slot.Start.Before(noon))
	}
}

func TestFindAvailableSlotsEmptyIsValid(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	src := &mockSource{busy: []model.BusyInterval{{Start: start, End: start.AddDate(0, 0, 8)}}}
	engine := newEngine(src, &mockSink{}, monday8am)

	resp := engine.FindAvailableSlots(context.Background(), "2026-06-01")
	gt.A(t, resp.Slots).Length(0)
	gt.Equal(t, resp.NextAction, model.NextActionOfferAlternatives)
	gt.False(t, resp.Assumed)
}

func TestFindAvailableSlotsFailOpen(t *testing.T) {
	src := &mockSource{err: goerr.New("timeout")}
	engine := newEngine(src, &mockSink{}, monday8am)

	resp := engine.FindAvailableSlots(context.Background(), "2026-06-01")
	gt.A(t, resp.Slots).Length(5)
	gt.True(t, resp.Assumed)
}

func TestFindAvailableSlotsAcrossDSTChanges(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	gt.NoError(t, err)
	policy := schedule.ParseBusinessHours("9:00 AM - 5:00 PM", []string{"Mon-Sun"}, "Europe/London")

	testCases := map[string]struct {
		date string
		now  time.Time
	}{
		"fall back": {
			date: "2026-10-25",
			now:  time.Date(2026, 10, 24, 20, 0, 0, 0, time.UTC),
		},
		"spring forward": {
			date: "2026-03-29",
			now:  time.Date(2026, 3, 28, 20, 0, 0, 0, time.UTC),
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			engine := schedule.New(policy, &mockSource{}, &mockSink{},
				schedule.WithClock(func() time.Time { return tc.now }))

			resp := engine.FindAvailableSlots(context.Background(), tc.date)
			gt.A(t, resp.Slots).Length(schedule.DefaultMaxResults)

			day, err := time.ParseInLocation(schedule.DateLayout, tc.date, london)
			gt.NoError(t, err)
			var expected []time.Time
			for _, h := range []int{9, 11, 13, 15} {
				expected = append(expected, time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, london))
			}
			expected = append(expected, time.Date(day.Year(), day.Month(), day.Day()+1, 9, 0, 0, 0, london))

			for i, slot := range resp.Slots {
				gt.True(t, slot.Start.Equal(expected[i])).Describe(slot.Start.In(london).String())
			}
		})
	}
}

func TestCreateBooking(t *testing.T) {
	req := schedule.BookingRequest{
		Name:    "Ada Lovelace",
		Phone:   "+1 555 0100",
		Email:   "ada@example.com",
		Service: "cleaning",
		Date:    "2025-06-02",
		Time:    "10:00",
	}

	t.Run("success", func(t *testing.T) {
		src := &mockSource{}
		sink := &mockSink{ref: "evt-1"}
		repo := &mockRepo{}
		engine := newEngine(src, sink, monday8am, schedule.WithRepository(repo))

		resp := engine.CreateBooking(context.Background(), req)
		gt.True(t, resp.Success)
		gt.Equal(t, resp.ExternalRef, "evt-1")
		gt.Equal(t, resp.Error, "")
		gt.A(t, sink.created).Length(1)
		gt.A(t, repo.bookings).Length(1)
		gt.Equal(t, src.CallCount(), 1)

		b := sink.created[0]
		gt.Equal(t, b.CustomerName, "Ada Lovelace")
		gt.True(t, b.Start.Equal(time.Date(2026, 6, 2, 10, 0, 0, 0, time.UTC)))
		gt.True(t, b.End.Equal(time.Date(2026, 6, 2, 11, 0, 0, 0, time.UTC)))
		gt.Equal(t, repo.bookings[0].ExternalRef, "evt-1")
	})

	t.Run("conflict found at commit", func(t *testing.T) {
		busy := time.Date(2026, 6, 2, 10, 30, 0, 0, time.UTC)
		src := &mockSource{busy: []model.BusyInterval{{Start: busy, End: busy.Add(15 * time.Minute)}}}
		sink := &mockSink{ref: "evt-1"}
		engine := newEngine(src, sink, monday8am)

		resp := engine.CreateBooking(context.Background(), req)
		gt.False(t, resp.Success)
		gt.Equal(t, resp.Error, schedule.BookingErrSlotUnavailable)
		gt.Equal(t, resp.NextAction, model.NextActionOfferAlternatives)
		gt.A(t, sink.created).Length(0)
	})

	t.Run("conflict check failure fails closed", func(t *testing.T) {
		src := &mockSource{err: goerr.Wrap(model.ErrProviderAuth, "expired")}
		sink := &mockSink{ref: "evt-1"}
		engine := newEngine(src, sink, monday8am)

		resp := engine.CreateBooking(context.Background(), req)
		gt.False(t, resp.Success)
		gt.Equal(t, resp.Error, schedule.BookingErrAvailabilityDown)
		gt.True(t, resp.NeedsReauth)
		gt.A(t, sink.created).Length(0)
	})

	t.Run("missing fields", func(t *testing.T) {
		engine := newEngine(&mockSource{}, &mockSink{ref: "evt-1"}, monday8am)
		resp := engine.CreateBooking(context.Background(), schedule.BookingRequest{Date: "2026-06-02", Time: "10:00"})
		gt.False(t, resp.Success)
		gt.Equal(t, resp.Error, schedule.BookingErrMissingFields)
		gt.S(t, resp.Detail).Contains("name")
		gt.Equal(t, resp.NextAction, model.NextActionAskForName)
	})

	t.Run("outside hours", func(t *testing.T) {
		src := &mockSource{}
		engine := newEngine(src, &mockSink{ref: "evt-1"}, monday8am)
		r := req
		r.Time = "7 PM"
		resp := engine.CreateBooking(context.Background(), r)
		gt.False(t, resp.Success)
		gt.Equal(t, resp.Error, schedule.BookingErrOutsideHours)
		gt.Equal(t, src.CallCount(), 0)
	})

	t.Run("policy deny", func(t *testing.T) {
		sink := &mockSink{ref: "evt-1"}
		engine := newEngine(&mockSource{}, sink, monday8am, schedule.WithBookingPolicy(denyAll{reason: "service not offered"}))
		resp := engine.CreateBooking(context.Background(), req)
		gt.False(t, resp.Success)
		gt.Equal(t, resp.Error, schedule.BookingErrRejected)
		gt.S(t, resp.Detail).Contains("service not offered")
		gt.A(t, sink.created).Length(0)
	})
}

func TestCreateBookingNeverDrops(t *testing.T) {
	req := schedule.BookingRequest{
		Name: "Grace Hopper", Phone: "555-0101", Service: "checkup", Date: "2026-06-03", Time: "1 PM",
	}

	sinks := map[string]*mockSink{
		"ok":        {ref: "evt-9"},
		"error":     {err: goerr.New("write failed")},
		"auth":      {err: goerr.Wrap(model.ErrProviderAuth, "forbidden")},
		"panic":     {panics: true},
		"empty ref": {ref: ""},
	}

	for name, sink := range sinks {
		t.Run(name, func(t *testing.T) {
			engine := newEngine(&mockSource{}, sink, monday8am)
			resp := engine.CreateBooking(context.Background(), req)
			gt.V(t, resp).NotNil()

			if resp.Success {
				gt.True(t, resp.ExternalRef != "")
				gt.Equal(t, resp.Error, "")
			} else {
				gt.True(t, resp.Error != "")
				gt.Equal(t, resp.ExternalRef, "")
			}
		})
	}
}
