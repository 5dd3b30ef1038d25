package mcp

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// toJSONSchema converts a Gemini parameter schema to the JSON Schema MCP clients expect.
func toJSONSchema(schema *genai.Schema) (*jsonschema.Schema, error) {
	if schema == nil {
		return &jsonschema.Schema{Type: "object"}, nil
	}

	js := &jsonschema.Schema{
		Description: schema.Description,
		Required:    schema.Required,
	}

	switch schema.Type {
	case genai.TypeObject:
		js.Type = "object"
	case genai.TypeString:
		js.Type = "string"
	case genai.TypeNumber:
		js.Type = "number"
	case genai.TypeInteger:
		js.Type = "integer"
	case genai.TypeBoolean:
		js.Type = "boolean"
	case genai.TypeArray:
		js.Type = "array"
	case genai.TypeUnspecified, "":
	default:
		return nil, goerr.New("unsupported schema type", goerr.V("type", schema.Type))
	}

	if len(schema.Enum) > 0 {
		js.Enum = make([]any, len(schema.Enum))
		for i, v := range schema.Enum {
			js.Enum[i] = v
		}
	}

	if len(schema.Properties) > 0 {
		js.Properties = make(map[string]*jsonschema.Schema, len(schema.Properties))
		for name, prop := range schema.Properties {
			converted, err := toJSONSchema(prop)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema",
					goerr.V("property", name))
			}
			js.Properties[name] = converted
		}
	}

	if schema.Items != nil {
		converted, err := toJSONSchema(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		js.Items = converted
	}

	return js, nil
}
