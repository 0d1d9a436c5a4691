package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	Analysis string `json:"analysis"`
}

func (v *verdict) Validate() error {
	if v.Analysis == "" {
		return errors.New("analysis is empty")
	}
	return nil
}

func TestDecodeShape(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain json", raw: `{"analysis":"margins expanded"}`, want: "margins expanded"},
		{name: "fenced json", raw: "```json\n{\"analysis\":\"ok\"}\n```", want: "ok"},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "not json", raw: "The company is doing great.", wantErr: true},
		{name: "extra fields ignored", raw: `{"analysis":"margins expanded","confidence":0.8}`, want: "margins expanded"},
		{name: "trailing whitespace", raw: "{\"analysis\":\"ok\"}\n\n", want: "ok"},
		{name: "trailing prose", raw: `{"analysis":"ok"} Let me know if you need more.`, wantErr: true},
		{name: "second object", raw: `{"analysis":"ok"}{"analysis":"again"}`, wantErr: true},
		{name: "fails validation", raw: `{"analysis":""}`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var v verdict
			err := DecodeShape(tc.raw, Shape{Name: "analysis", Target: &v})
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.Analysis)
		})
	}
}

func TestDecodeShape_NilTarget(t *testing.T) {
	err := DecodeShape(`{}`, Shape{Name: "x"})
	require.ErrorIs(t, err, ErrInvalidResponse)
}
