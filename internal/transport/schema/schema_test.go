package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/equidex/internal/domain"
)

type summary struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

func TestFor(t *testing.T) {
	def, err := For(domain.Shape{Name: "summary", Target: &summary{}})
	require.NoError(t, err)

	raw, err := json.Marshal(def)
	require.NoError(t, err)

	var got struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "object", got.Type)
	assert.Contains(t, got.Properties, "summary")
	assert.Contains(t, got.Properties, "tags")
	assert.ElementsMatch(t, []string{"summary", "tags"}, got.Required)
}

func TestFor_RejectsNonPointer(t *testing.T) {
	for _, target := range []any{nil, summary{}, (*summary)(nil)} {
		_, err := For(domain.Shape{Name: "summary", Target: target})
		require.ErrorIs(t, err, domain.ErrInvalidResponse)
	}
}

func TestInstruction(t *testing.T) {
	text, err := Instruction(domain.Shape{Name: "summary", Target: &summary{}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "\n\nRespond with a single JSON object"))
	assert.Contains(t, text, `"summary"`)
	assert.Contains(t, text, `"properties"`)
}
