package mcp

import (
	"context"
	"encoding/json"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/tool"
	"github.com/alokranjan04/admin-voice-agent/pkg/utils/logging"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/genai"
)

const serverName = "voice-agent-scheduling"

// Tools is the tool set exposed over MCP. *tool.Registry satisfies it.
type Tools interface {
	Specs() []*genai.Tool
	Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error)
}

// NewServer exposes every function declaration of tools as an MCP tool, so
// the booking flow can be driven by an MCP client without a voice call.
func NewServer(tools Tools, version string) (*mcp.Server, error) {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: version,
	}, nil)

	for _, spec := range tools.Specs() {
		for _, decl := range spec.FunctionDeclarations {
			schema, err := toJSONSchema(decl.Parameters)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert tool schema", goerr.V("tool", decl.Name))
			}
			if schema.Type == "" {
				schema.Type = "object"
			}

			server.AddTool(&mcp.Tool{
				Name:        decl.Name,
				Description: decl.Description,
				InputSchema: schema,
			}, handler(tools, decl.Name))
		}
	}

	return server, nil
}

func handler(tools Tools, name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(goerr.Wrap(err, "invalid tool arguments")), nil
			}
		}

		ctx = tool.WithSessionID(ctx, model.SessionID("mcp-"+uuid.NewString()))
		logging.From(ctx).Debug("mcp tool call", "tool", name, "args", args)

		resp, err := tools.Execute(ctx, genai.FunctionCall{Name: name, Args: args})
		if err != nil {
			logging.From(ctx).Warn("mcp tool failed", "tool", name, "error", err)
			return errorResult(err), nil
		}

		text, err := json.Marshal(resp.Response)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal tool response")
		}

		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
			StructuredContent: resp.Response,
		}, nil
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}
