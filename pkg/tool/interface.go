package tool

import (
	"context"

	"google.golang.org/genai"
)

// Tool is a set of functions the speech model can call during a turn.
type Tool interface {
	// Spec returns the function declarations advertised to the model
	Spec() *genai.Tool

	// Execute runs one function call and returns the response sent back to the model
	Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error)

	// Prompt returns instructions appended to the system instruction.
	// Returns empty string if none are needed.
	Prompt(ctx context.Context) string
}
