package tools

import (
	"maps"

	"github.com/anthropics/anthropic-sdk-go"
)

// Schema helpers for building JSON Schema definitions.

// ObjectSchema creates an object schema with the given properties.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty creates a string property with optional description.
func StringProperty(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
	}
}

// IntegerProperty creates an integer property with optional description.
func IntegerProperty(description string) map[string]any {
	return map[string]any{
		"type":        "integer",
		"description": description,
	}
}

// ArrayProperty creates an array property with the given item type.
func ArrayProperty(description string, itemType map[string]any) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": description,
		"items":       itemType,
	}
}

// MapProperty creates a free-form object property.
func MapProperty(description string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"description":          description,
		"additionalProperties": true,
	}
}

// WithThought adds a thought parameter to an existing schema.
// If requireThought is true, "thought" is added to the required array.
func WithThought(schema map[string]any, requireThought bool) map[string]any {
	result := maps.Clone(schema)

	props := map[string]any{}
	if existing, ok := result["properties"].(map[string]any); ok {
		props = maps.Clone(existing)
	}
	props["thought"] = StringProperty(
		"Your reasoning about why you're using this tool and what you expect to accomplish. " +
			"For write operations, explain your decision-making process.",
	)
	result["properties"] = props

	if requireThought {
		required, _ := result["required"].([]string)
		result["required"] = append(required[:len(required):len(required)], "thought")
	}
	return result
}

// BuildSchemaWithThought creates an ObjectSchema and adds thought support in one call.
func BuildSchemaWithThought(properties map[string]any, requireThought bool, required ...string) map[string]any {
	schema := ObjectSchema(properties, required...)
	return WithThought(schema, requireThought)
}

// InputSchema converts a schema built by these helpers to the Anthropic
// tool input schema.
func InputSchema(schema map[string]any) anthropic.ToolInputSchemaParam {
	required, _ := schema["required"].([]string)
	return anthropic.ToolInputSchemaParam{
		Properties: schema["properties"],
		Required:   required,
	}
}
