package mcp_test

import (
	"context"
	"testing"

	"github.com/alokranjan04/admin-voice-agent/pkg/service/mcp"
	"github.com/alokranjan04/admin-voice-agent/pkg/tool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/genai"
)

type echoTool struct{}

func (echoTool) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "echo",
				Description: "Echo back the date",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"date": {Type: genai.TypeString, Description: "Date"},
					},
					Required: []string{"date"},
				},
			},
			{
				Name:        "broken",
				Description: "Always fails",
			},
		},
	}
}

func (echoTool) Prompt(ctx context.Context) string { return "" }

func (echoTool) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	if fc.Name == "broken" {
		return nil, goerr.New("calendar unavailable")
	}
	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: map[string]any{"status": "success", "date": fc.Args["date"]},
	}, nil
}

func connect(t *testing.T) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	server, err := mcp.NewServer(tool.New(echoTool{}), "test")
	gt.NoError(t, err)

	st, ct := mcpsdk.NewInMemoryTransports()
	_, err = server.Connect(ctx, st, nil)
	gt.NoError(t, err)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestServerListTools(t *testing.T) {
	cs := connect(t)

	res, err := cs.ListTools(context.Background(), nil)
	gt.NoError(t, err)
	gt.A(t, res.Tools).Length(2)

	var echo *mcpsdk.Tool
	for _, tl := range res.Tools {
		if tl.Name == "echo" {
			echo = tl
		}
	}
	gt.True(t, echo != nil)
	gt.Equal(t, echo.Description, "Echo back the date")

	schema, ok := echo.InputSchema.(map[string]any)
	gt.True(t, ok)
	gt.Equal(t, schema["type"], any("object"))
	props, ok := schema["properties"].(map[string]any)
	gt.True(t, ok)
	_, ok = props["date"]
	gt.True(t, ok)
}

func TestServerCallTool(t *testing.T) {
	cs := connect(t)

	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"date": "2026-03-02"},
	})
	gt.NoError(t, err)
	gt.False(t, res.IsError)
	gt.A(t, res.Content).Length(1)

	text, ok := res.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	gt.S(t, text.Text).Contains(`"status":"success"`)
	gt.S(t, text.Text).Contains(`"date":"2026-03-02"`)
}

func TestServerCallToolError(t *testing.T) {
	cs := connect(t)

	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name: "broken",
	})
	gt.NoError(t, err)
	gt.True(t, res.IsError)

	text, ok := res.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	gt.S(t, text.Text).Contains("calendar unavailable")
}
