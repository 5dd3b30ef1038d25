package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Calendar reads busy intervals from and writes bookings to a Google Calendar.
type Calendar struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
}

// NewCalendar builds a calendar client from auth. A user token is preferred,
// then a service credentials file, then application default credentials.
func NewCalendar(ctx context.Context, auth model.AuthContext, calendarID string, loc *time.Location) (*Calendar, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	switch {
	case auth.UserToken():
		opts = append(opts, option.WithHTTPClient(userClient(ctx, auth)))
	case auth.CredentialsFile != "":
		opts = append(opts,
			option.WithCredentialsFile(auth.CredentialsFile),
			option.WithScopes(calendar.CalendarEventsScope, calendar.CalendarReadonlyScope),
		)
	default:
		opts = append(opts, option.WithScopes(calendar.CalendarEventsScope, calendar.CalendarReadonlyScope))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(model.ErrConfiguration, "failed to create calendar service", goerr.V("cause", err.Error()))
	}
	return NewCalendarWithService(svc, calendarID, loc), nil
}

// NewCalendarWithService wraps an existing service.
func NewCalendarWithService(svc *calendar.Service, calendarID string, loc *time.Location) *Calendar {
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{svc: svc, calendarID: calendarID, loc: loc}
}

func userClient(ctx context.Context, auth model.AuthContext) *http.Client {
	token := &oauth2.Token{
		AccessToken:  auth.AccessToken,
		RefreshToken: auth.RefreshToken,
		TokenType:    "Bearer",
	}
	// the client outlives the request that created it
	ctx = context.WithoutCancel(ctx)

	if auth.ClientID != "" && auth.RefreshToken != "" {
		cfg := &oauth2.Config{
			ClientID:     auth.ClientID,
			ClientSecret: auth.ClientSecret,
			Scopes:       []string{calendar.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		}
		return cfg.Client(ctx, token)
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
}

func (x *Calendar) Busy(ctx context.Context, start, end time.Time) ([]model.BusyInterval, error) {
	resp, err := x.svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin:  start.Format(time.RFC3339),
		TimeMax:  end.Format(time.RFC3339),
		TimeZone: x.loc.String(),
		Items:    []*calendar.FreeBusyRequestItem{{Id: x.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, providerError(err, "failed to query free/busy", x.calendarID)
	}

	cal, ok := resp.Calendars[x.calendarID]
	if !ok {
		return nil, goerr.New("calendar missing from free/busy response", goerr.V("calendar_id", x.calendarID))
	}
	if len(cal.Errors) > 0 {
		reasons := make([]string, 0, len(cal.Errors))
		for _, e := range cal.Errors {
			reasons = append(reasons, e.Reason)
		}
		base := goerr.New("free/busy returned errors")
		if containsAny(reasons, "notFound", "forbidden") {
			base = model.ErrProviderAuth
		}
		return nil, goerr.Wrap(base, "calendar rejected free/busy query",
			goerr.V("calendar_id", x.calendarID),
			goerr.V("reasons", strings.Join(reasons, ",")))
	}

	busy := make([]model.BusyInterval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		s, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid busy start", goerr.V("start", p.Start))
		}
		e, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid busy end", goerr.V("end", p.End))
		}
		busy = append(busy, model.BusyInterval{Start: s, End: e})
	}
	return busy, nil
}

func (x *Calendar) Create(ctx context.Context, booking *model.BookingRecord) (string, error) {
	summary := booking.Service
	if summary == "" {
		summary = "Appointment"
	}

	var desc []string
	desc = append(desc, "Customer: "+booking.CustomerName)
	if booking.Phone != "" {
		desc = append(desc, "Phone: "+booking.Phone)
	}
	if booking.Email != "" {
		desc = append(desc, "Email: "+booking.Email)
	}
	desc = append(desc, "Booking: "+booking.ID.String())

	event := &calendar.Event{
		Summary:     fmt.Sprintf("%s - %s", summary, booking.CustomerName),
		Description: strings.Join(desc, "\n"),
		Start: &calendar.EventDateTime{
			DateTime: booking.Start.In(x.loc).Format(time.RFC3339),
			TimeZone: x.loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: booking.End.In(x.loc).Format(time.RFC3339),
			TimeZone: x.loc.String(),
		},
	}
	if booking.Email != "" {
		event.Attendees = []*calendar.EventAttendee{{Email: booking.Email, DisplayName: booking.CustomerName}}
	}

	created, err := x.svc.Events.Insert(x.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", providerError(err, "failed to insert event", x.calendarID)
	}
	return created.Id, nil
}

// providerError maps rejected credentials to ErrProviderAuth.
func providerError(err error, msg, calendarID string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
		return goerr.Wrap(model.ErrProviderAuth, msg,
			goerr.V("calendar_id", calendarID),
			goerr.V("status", apiErr.Code),
			goerr.V("cause", apiErr.Message))
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return goerr.Wrap(model.ErrProviderAuth, msg,
			goerr.V("calendar_id", calendarID),
			goerr.V("cause", retrieveErr.Error()))
	}
	return goerr.Wrap(err, msg, goerr.V("calendar_id", calendarID))
}

func containsAny(values []string, targets ...string) bool {
	for _, v := range values {
		for _, t := range targets {
			if v == t {
				return true
			}
		}
	}
	return false
}
