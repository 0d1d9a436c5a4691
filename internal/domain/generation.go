package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Shape names the structured response a generation call must produce.
// Target is a non-nil pointer the provider decodes the response into;
// providers derive the wire schema from its Go type.
type Shape struct {
	Name   string
	Target any
}

// Validator is implemented by shape targets that check their own content after decoding.
type Validator interface {
	Validate() error
}

// GenerationRequest is one structured prompt.
type GenerationRequest struct {
	System    string
	User      string
	Shape     Shape
	MaxTokens int
}

// GenerationResult carries token usage of a completed generation call.
type GenerationResult struct {
	PromptTokens     int
	CompletionTokens int
}

// Generator maps a structured prompt to a shape-validated response.
// A response that cannot be decoded into req.Shape fails with ErrInvalidResponse.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// DecodeShape decodes a raw model response into shape.Target and runs its Validator.
// Markdown code fences around the JSON and unknown fields are tolerated.
// Anything after the first JSON value fails with ErrInvalidResponse.
func DecodeShape(raw string, shape Shape) error {
	if shape.Target == nil {
		return fmt.Errorf("shape %q has no target: %w", shape.Name, ErrInvalidResponse)
	}

	payload := bytes.TrimSpace([]byte(raw))
	payload = trimFence(payload)
	if len(payload) == 0 {
		return fmt.Errorf("empty response for shape %q: %w", shape.Name, ErrInvalidResponse)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(shape.Target); err != nil {
		return fmt.Errorf("decode %q: %v: %w", shape.Name, err, ErrInvalidResponse)
	}
	if rest := bytes.TrimSpace(payload[dec.InputOffset():]); len(rest) > 0 {
		return fmt.Errorf("decode %q: %d bytes after JSON value: %w", shape.Name, len(rest), ErrInvalidResponse)
	}

	if v, ok := shape.Target.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate %q: %v: %w", shape.Name, err, ErrInvalidResponse)
		}
	}
	return nil
}

func trimFence(b []byte) []byte {
	if !bytes.HasPrefix(b, []byte("```")) {
		return b
	}
	b = bytes.TrimPrefix(b, []byte("```"))
	if nl := bytes.IndexByte(b, '\n'); nl >= 0 {
		b = b[nl+1:] // language tag, e.g. ```json
	}
	b = bytes.TrimSuffix(bytes.TrimSpace(b), []byte("```"))
	return bytes.TrimSpace(b)
}
