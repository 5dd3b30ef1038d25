package model

const (
	ToolCheckAvailability  = "checkAvailability"
	ToolFindAvailableSlots = "findAvailableSlots"
	ToolCreateBooking      = "createBooking"
)

type ToolStatus string

const (
	ToolStatusSuccess     ToolStatus = "success"
	ToolStatusUnavailable ToolStatus = "unavailable"
	ToolStatusError       ToolStatus = "error"
)

// NextAction steers what the model says after a tool result.
type NextAction string

const (
	NextActionNone              NextAction = ""
	NextActionAskForName        NextAction = "ask_for_name"
	NextActionOfferAlternatives NextAction = "offer_alternatives"
)

// ToolCall is a function invocation requested by the speech model.
type ToolCall struct {
	ID          string
	Name        string
	Args        map[string]any
	OriginEpoch uint64
}

// ToolResult is the response correlated with a ToolCall by ID.
type ToolResult struct {
	ID       string
	Name     string
	Response map[string]any
}

// Status returns the status field of the response, or error when missing.
func (x *ToolResult) Status() ToolStatus {
	if s, ok := x.Response["status"].(string); ok {
		return ToolStatus(s)
	}
	return ToolStatusError
}

// ErrorResponse builds the well-formed failure payload returned to the model.
func ErrorResponse(msg string) map[string]any {
	return map[string]any{
		"status":  string(ToolStatusError),
		"message": msg,
	}
}
