package tool

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Schema wraps a JSON Schema describing tool arguments.
type Schema struct {
	raw        json.RawMessage
	properties map[string]Property
	required   []string
}

// Property is one string argument of a tool.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// EmptySchema returns a schema that accepts any object.
func EmptySchema() Schema {
	return Schema{raw: json.RawMessage(`{"type":"object","properties":{}}`)}
}

// ObjectSchema returns a schema for an object with the given properties.
func ObjectSchema(properties map[string]Property, required ...string) Schema {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	return Schema{raw: raw, properties: properties, required: required}
}

// StringProperty describes a string argument.
func StringProperty(description string) Property {
	return Property{Type: "string", Description: description}
}

// Raw returns the underlying JSON schema.
func (s Schema) Raw() json.RawMessage {
	return s.raw
}

// Required returns the required argument names.
func (s Schema) Required() []string {
	return s.required
}

// Signature renders the arguments as name(arg1, arg2?) for prompts.
func (s Schema) Signature(name string) string {
	names := make([]string, 0, len(s.properties))
	for n := range s.properties {
		names = append(names, n)
	}
	sort.Strings(names)

	req := make(map[string]bool, len(s.required))
	for _, r := range s.required {
		req[r] = true
	}

	args := make([]string, 0, len(names))
	for _, n := range names {
		if req[n] {
			args = append(args, n)
		} else {
			args = append(args, n+"?")
		}
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
}

// Validate checks that data is a JSON object holding every required argument
// as a non-empty string.
func (s Schema) Validate(data json.RawMessage) error {
	var args map[string]any
	if err := json.Unmarshal(data, &args); err != nil {
		return fmt.Errorf("%w: arguments must be a JSON object", ErrInvalidInput)
	}
	for _, name := range s.required {
		v, ok := args[name]
		if !ok {
			return fmt.Errorf("%w: missing argument %q", ErrInvalidInput, name)
		}
		str, isString := v.(string)
		if !isString || strings.TrimSpace(str) == "" {
			return fmt.Errorf("%w: argument %q must be a non-empty string", ErrInvalidInput, name)
		}
	}
	for name, v := range args {
		if p, known := s.properties[name]; known && p.Type == "string" && v != nil {
			if _, isString := v.(string); !isString {
				return fmt.Errorf("%w: argument %q must be a string", ErrInvalidInput, name)
			}
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s.raw == nil {
		return []byte("{}"), nil
	}
	return s.raw, nil
}
