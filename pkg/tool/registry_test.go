package tool_test

import (
	"context"
	"testing"

	"github.com/alokranjan04/admin-voice-agent/pkg/tool"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type echoTool struct {
	names  []string
	prompt string
	calls  []string
}

func (x *echoTool) Spec() *genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(x.names))
	for _, n := range x.names {
		decls = append(decls, &genai.FunctionDeclaration{Name: n})
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

func (x *echoTool) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	x.calls = append(x.calls, fc.Name)
	return &genai.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: fc.Args}, nil
}

func (x *echoTool) Prompt(ctx context.Context) string {
	return x.prompt
}

func TestRegistry(t *testing.T) {
	a := &echoTool{names: []string{"alpha", "beta"}, prompt: "use alpha"}
	b := &echoTool{names: []string{"gamma"}}
	r := tool.New(a, b)

	gt.A(t, r.Specs()).Length(2)
	gt.Equal(t, r.Names(), []string{"alpha", "beta", "gamma"})
	gt.True(t, r.Has("gamma"))
	gt.False(t, r.Has("delta"))
	gt.Equal(t, r.Prompts(context.Background()), "use alpha")

	resp, err := r.Execute(context.Background(), genai.FunctionCall{ID: "1", Name: "beta", Args: map[string]any{"k": "v"}})
	gt.NoError(t, err)
	gt.Equal(t, resp.ID, "1")
	gt.Equal(t, a.calls, []string{"beta"})
	gt.A(t, b.calls).Length(0)

	_, err = r.Execute(context.Background(), genai.FunctionCall{Name: "delta"})
	gt.Error(t, err)
}

func TestSessionIDContext(t *testing.T) {
	gt.Equal(t, tool.SessionIDFrom(context.Background()), "")

	ctx := tool.WithSessionID(context.Background(), "abc")
	gt.Equal(t, tool.SessionIDFrom(ctx), "abc")
}
