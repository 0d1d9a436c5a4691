// Package schema derives JSON schemas for generation shapes and the prompt text
// that asks providers without native schema support to follow them.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/kailas-cloud/equidex/internal/domain"
)

// For returns the JSON schema of the value shape.Target points to.
func For(shape domain.Shape) (*jsonschema.Definition, error) {
	v := reflect.ValueOf(shape.Target)
	if shape.Target == nil || v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, fmt.Errorf("shape %q needs a non-nil pointer target: %w", shape.Name, domain.ErrInvalidResponse)
	}

	def, err := jsonschema.GenerateSchemaForType(v.Elem().Interface())
	if err != nil {
		return nil, fmt.Errorf("schema for %q: %w", shape.Name, err)
	}
	return def, nil
}

// Instruction renders a system-prompt suffix that pins the response to the shape's schema.
func Instruction(shape domain.Shape) (string, error) {
	def, err := For(shape)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return "", fmt.Errorf("marshal schema for %q: %w", shape.Name, err)
	}
	return fmt.Sprintf(
		"\n\nRespond with a single JSON object named %q that conforms to this JSON schema, "+
			"with no prose and no code fences:\n%s", shape.Name, raw,
	), nil
}
