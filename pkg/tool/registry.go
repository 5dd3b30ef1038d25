package tool

import (
	"context"
	"sort"
	"strings"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

var errToolNotFound = goerr.New("tool not found")

// Registry routes function calls by declaration name.
type Registry struct {
	tools    map[string]Tool
	allTools []Tool
}

// New creates a new tool registry with the given tools
func New(tools ...Tool) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool),
		allTools: tools,
	}

	for _, t := range tools {
		spec := t.Spec()
		if spec == nil {
			continue
		}
		for _, fd := range spec.FunctionDeclarations {
			r.tools[fd.Name] = t
		}
	}

	return r
}

// Specs returns the tool specifications in registration order
func (r *Registry) Specs() []*genai.Tool {
	specs := make([]*genai.Tool, 0, len(r.allTools))
	for _, t := range r.allTools {
		if spec := t.Spec(); spec != nil && len(spec.FunctionDeclarations) > 0 {
			specs = append(specs, spec)
		}
	}
	return specs
}

// Names returns every registered function name, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a function is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Prompts returns all tool prompts concatenated
func (r *Registry) Prompts(ctx context.Context) string {
	var prompts []string
	for _, t := range r.allTools {
		if prompt := t.Prompt(ctx); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return strings.Join(prompts, "\n\n")
}

// Execute runs the tool with the given function call
func (r *Registry) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	t, ok := r.tools[fc.Name]
	if !ok {
		return nil, goerr.Wrap(errToolNotFound, "unknown function", goerr.V("name", fc.Name))
	}

	return t.Execute(ctx, fc)
}

type sessionKey struct{}

// WithSessionID attaches the calling session to ctx for tools that record it.
func WithSessionID(ctx context.Context, id model.SessionID) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionIDFrom returns the session attached by WithSessionID, if any.
func SessionIDFrom(ctx context.Context) model.SessionID {
	id, _ := ctx.Value(sessionKey{}).(model.SessionID)
	return id
}
