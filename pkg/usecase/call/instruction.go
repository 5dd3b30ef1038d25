package call

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/usecase/schedule"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/system.md
var systemPromptRaw string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))

// Prompter supplies tool-specific instructions. *tool.Registry satisfies it.
type Prompter interface {
	Prompts(ctx context.Context) string
}

// BuildInstruction renders the system instruction for profile. The date is
// presented in the reference year so that the model never proposes another.
func BuildInstruction(ctx context.Context, profile *model.BusinessProfile, tools Prompter, now time.Time) (string, error) {
	loc, err := time.LoadLocation(profile.Timezone)
	if err != nil {
		loc = time.UTC
	}
	today := schedule.NormalizeYear(now.In(loc).Format(schedule.DateLayout), now)
	day, _ := time.Parse(schedule.DateLayout, today)

	var toolPrompts string
	if tools != nil {
		toolPrompts = tools.Prompts(ctx)
	}

	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, map[string]any{
		"BusinessName": profile.BusinessName,
		"Today":        today,
		"Weekday":      day.Weekday().String(),
		"Timezone":     loc.String(),
		"Hours":        profile.Hours,
		"Days":         strings.Join(profile.Days, ", "),
		"Services":     strings.Join(profile.Services, ", "),
		"Instructions": strings.TrimSpace(profile.Instructions),
		"ToolPrompts":  toolPrompts,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute system prompt template", goerr.V("profile", profile.Name))
	}

	return buf.String(), nil
}
