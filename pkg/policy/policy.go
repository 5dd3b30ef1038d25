// Package policy evaluates operator-supplied Rego rules that can veto a
// booking right before it is written to the calendar.
package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

// DenyQuery is evaluated against every booking. Each element of the
// resulting set is a human-readable reason.
const DenyQuery = "data.booking.deny"

type printHook struct{}

func (h *printHook) Print(ctx print.Context, message string) error {
	logging.Default().Debug("rego print", "message", message)
	return nil
}

// Booking is the admission policy for bookings. The zero value admits everything.
type Booking struct {
	query *rego.PreparedEvalQuery
	files []string
}

// Load reads every .rego file in dir. An empty dir or a dir without
// policy files yields a policy that admits everything.
func Load(ctx context.Context, dir string) (*Booking, error) {
	if dir == "" {
		return &Booking{}, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", dir))
	}
	if len(files) == 0 {
		return &Booking{}, nil
	}
	sort.Strings(files)

	options := make([]func(*rego.Rego), 0, len(files)+1)
	options = append(options, rego.Query(DenyQuery))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(model.ErrConfiguration, "failed to prepare booking policy",
			goerr.V("dir", dir),
			goerr.V("cause", err.Error()))
	}

	return &Booking{query: &prepared, files: files}, nil
}

// Files returns the loaded policy files.
func (x *Booking) Files() []string {
	return x.files
}

// Deny returns the reasons the booking is rejected, or nothing when it is admitted.
func (x *Booking) Deny(ctx context.Context, b *model.BookingRecord) ([]string, error) {
	if x == nil || x.query == nil {
		return nil, nil
	}

	rs, err := x.query.Eval(ctx, rego.EvalInput(Input(b)), rego.EvalPrintHook(&printHook{}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate booking policy", goerr.V("booking_id", b.ID))
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}

	values, ok := rs[0].Expressions[0].Value.([]any)
	if !ok {
		return nil, goerr.New("booking.deny must be a set",
			goerr.V("type", fmt.Sprintf("%T", rs[0].Expressions[0].Value)))
	}

	reasons := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			reasons = append(reasons, s)
		} else {
			reasons = append(reasons, fmt.Sprint(v))
		}
	}
	sort.Strings(reasons)
	return reasons, nil
}

// Input is the document a booking policy sees as input.
func Input(b *model.BookingRecord) map[string]any {
	return map[string]any{
		"id":               b.ID.String(),
		"session_id":       b.SessionID.String(),
		"name":             b.CustomerName,
		"phone":            b.Phone,
		"email":            b.Email,
		"service":          b.Service,
		"start":            b.Start.Format(time.RFC3339),
		"end":              b.End.Format(time.RFC3339),
		"date":             b.Start.Format("2006-01-02"),
		"weekday":          b.Start.Weekday().String(),
		"hour":             b.Start.Hour(),
		"duration_minutes": int(b.End.Sub(b.Start) / time.Minute),
	}
}
