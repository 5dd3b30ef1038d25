package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/tool"
	"github.com/alokranjan04/admin-voice-agent/pkg/usecase/schedule"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Scheduler is the scheduling engine as seen by the tool.
type Scheduler interface {
	CheckAvailability(ctx context.Context, date, clock string) (*schedule.CheckResult, error)
	FindAvailableSlots(ctx context.Context, date string) *schedule.SlotsResult
	CreateBooking(ctx context.Context, req schedule.BookingRequest) *schedule.BookingResult
	Now() time.Time
}

type checkAvailabilityInput struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type findAvailableSlotsInput struct {
	Date string `json:"date"`
}

type createBookingInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time"`
}

// Tool exposes checkAvailability, findAvailableSlots and createBooking.
type Tool struct {
	engine   Scheduler
	services []string
}

var _ tool.Tool = (*Tool)(nil)

// Option is a functional option for Tool
type Option func(*Tool)

// WithServices lists the services the caller may book.
func WithServices(services []string) Option {
	return func(x *Tool) {
		x.services = services
	}
}

// New creates the scheduling tool over engine
func New(engine Scheduler, opts ...Option) *Tool {
	x := &Tool{engine: engine}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func dateSchema() *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeString,
		Description: "Date in YYYY-MM-DD format",
	}
}

// Spec returns the function declarations for the three scheduling functions
func (x *Tool) Spec() *genai.Tool {
	service := &genai.Schema{
		Type:        genai.TypeString,
		Description: "Service the caller wants to book",
	}
	if len(x.services) > 0 {
		service.Enum = x.services
	}

	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        model.ToolCheckAvailability,
				Description: "Check whether a specific date and time can be booked",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"date": dateSchema(),
						"time": {
							Type:        genai.TypeString,
							Description: "Time of day, e.g. 14:00 or 2 PM",
						},
					},
					Required: []string{"date", "time"},
				},
			},
			{
				Name:        model.ToolFindAvailableSlots,
				Description: "List up to five open appointment slots starting from a date",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"date": dateSchema(),
					},
					Required: []string{"date"},
				},
			},
			{
				Name:        model.ToolCreateBooking,
				Description: "Book an appointment once the caller confirmed the slot and gave their details",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name": {
							Type:        genai.TypeString,
							Description: "Caller's full name",
						},
						"phone": {
							Type:        genai.TypeString,
							Description: "Caller's phone number",
						},
						"email": {
							Type:        genai.TypeString,
							Description: "Caller's email address",
						},
						"service": service,
						"date":    dateSchema(),
						"time": {
							Type:        genai.TypeString,
							Description: "Time of day, e.g. 14:00 or 2 PM",
						},
					},
					Required: []string{"name", "phone", "email", "service", "date", "time"},
				},
			},
		},
	}
}

// Prompt returns the nextAction contract the model must follow
func (x *Tool) Prompt(ctx context.Context) string {
	today := x.engine.Now()
	normalized := schedule.NormalizeTime(today, today.Location())

	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s. Always use the year %d when calling scheduling functions.\n",
		normalized.Format("Monday, January 2, 2006"), schedule.ReferenceYear)
	b.WriteString("Every scheduling result has a status (success, unavailable or error) and may carry a nextAction.\n")
	b.WriteString("- nextAction=ask_for_name: the slot is open. Ask for the caller's name, phone and email before calling createBooking.\n")
	b.WriteString("- nextAction=offer_alternatives: the slot is not possible. Call findAvailableSlots and offer what it returns.\n")
	b.WriteString("- needsReauth=true: tell the caller the calendar connection needs an operator and a human will follow up.\n")
	b.WriteString("Never tell the caller a booking is confirmed unless createBooking returned status=success.")
	if len(x.services) > 0 {
		fmt.Fprintf(&b, "\nBookable services: %s.", strings.Join(x.services, ", "))
	}
	return b.String()
}

// Execute runs one of the scheduling functions
func (x *Tool) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	var (
		resp map[string]any
		err  error
	)

	switch fc.Name {
	case model.ToolCheckAvailability:
		var input checkAvailabilityInput
		if err := decodeArgs(fc.Args, &input); err != nil {
			return nil, err
		}
		resp, err = x.checkAvailability(ctx, input)

	case model.ToolFindAvailableSlots:
		var input findAvailableSlotsInput
		if err := decodeArgs(fc.Args, &input); err != nil {
			return nil, err
		}
		resp = x.findAvailableSlots(ctx, input)

	case model.ToolCreateBooking:
		var input createBookingInput
		if err := decodeArgs(fc.Args, &input); err != nil {
			return nil, err
		}
		resp = x.createBooking(ctx, input)

	default:
		return nil, goerr.New("unknown scheduling function", goerr.V("name", fc.Name))
	}

	if err != nil {
		return nil, err
	}

	return &genai.FunctionResponse{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: resp,
	}, nil
}

// decodeArgs accepts loosely typed model arguments (numbers for times, etc.).
func decodeArgs(args map[string]any, v any) error {
	normalized := make(map[string]any, len(args))
	for k, a := range args {
		switch val := a.(type) {
		case string:
			normalized[k] = val
		case nil:
			continue
		case float64:
			normalized[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			normalized[k] = fmt.Sprint(val)
		}
	}

	raw, err := json.Marshal(normalized)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal function arguments")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return goerr.Wrap(err, "failed to parse function arguments")
	}
	return nil
}

func (x *Tool) checkAvailability(ctx context.Context, input checkAvailabilityInput) (map[string]any, error) {
	result, err := x.engine.CheckAvailability(ctx, input.Date, input.Time)
	if err != nil {
		return nil, goerr.Wrap(err, "cannot check availability",
			goerr.V("date", input.Date), goerr.V("time", input.Time))
	}

	resp := map[string]any{
		"available":  result.Available,
		"date":       result.Start.Format(schedule.DateLayout),
		"time":       result.Start.Format("15:04"),
		"nextAction": string(result.NextAction),
	}
	if result.Available {
		resp["status"] = string(model.ToolStatusSuccess)
		resp["message"] = "The slot is available."
	} else {
		resp["status"] = string(model.ToolStatusUnavailable)
		resp["reason"] = result.Reason
		resp["message"] = unavailableMessage(result.Reason)
	}
	if result.Assumed {
		resp["assumed"] = true
	}
	if result.NeedsReauth {
		resp["needsReauth"] = true
	}
	return resp, nil
}

func unavailableMessage(reason string) string {
	switch reason {
	case schedule.ReasonOutsideHours:
		return "That time is outside business hours."
	case schedule.ReasonInPast:
		return "That time has already passed."
	default:
		return "That time is already taken."
	}
}

func (x *Tool) findAvailableSlots(ctx context.Context, input findAvailableSlotsInput) map[string]any {
	result := x.engine.FindAvailableSlots(ctx, input.Date)

	slots := make([]map[string]any, 0, len(result.Slots))
	for _, s := range result.Slots {
		slots = append(slots, map[string]any{
			"date":     s.Start.Format(schedule.DateLayout),
			"time":     s.Start.Format("15:04"),
			"label":    s.Start.Format("Monday, January 2 at 3:04 PM"),
			"duration": s.DurationMinutes,
		})
	}

	resp := map[string]any{
		"slots":      slots,
		"nextAction": string(result.NextAction),
	}
	if len(slots) > 0 {
		resp["status"] = string(model.ToolStatusSuccess)
	} else {
		resp["status"] = string(model.ToolStatusUnavailable)
		resp["message"] = "No open slots in the next seven days."
	}
	if result.Assumed {
		resp["assumed"] = true
	}
	if result.NeedsReauth {
		resp["needsReauth"] = true
	}
	return resp
}

func (x *Tool) createBooking(ctx context.Context, input createBookingInput) map[string]any {
	result := x.engine.CreateBooking(ctx, schedule.BookingRequest{
		Name:      input.Name,
		Phone:     input.Phone,
		Email:     input.Email,
		Service:   input.Service,
		Date:      input.Date,
		Time:      input.Time,
		SessionID: tool.SessionIDFrom(ctx),
	})

	if result.Success {
		resp := map[string]any{
			"status":      string(model.ToolStatusSuccess),
			"success":     true,
			"externalRef": result.ExternalRef,
			"message":     "The booking is confirmed.",
		}
		if b := result.Booking; b != nil {
			resp["bookingId"] = string(b.ID)
			resp["date"] = b.Start.Format(schedule.DateLayout)
			resp["time"] = b.Start.Format("15:04")
		}
		return resp
	}

	status := model.ToolStatusError
	switch result.Error {
	case schedule.BookingErrSlotUnavailable, schedule.BookingErrOutsideHours, schedule.BookingErrInPast:
		status = model.ToolStatusUnavailable
	}

	resp := map[string]any{
		"status":  string(status),
		"success": false,
		"error":   result.Error,
		"message": result.Detail,
	}
	if result.NextAction != model.NextActionNone {
		resp["nextAction"] = string(result.NextAction)
	}
	if result.NeedsReauth {
		resp["needsReauth"] = true
	}
	return resp
}
