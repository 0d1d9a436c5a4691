package db

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddingKey(t *testing.T) {
	a := EmbeddingKey("text-embedding-3-small", "Revenue grew 8%.")
	b := EmbeddingKey("nomic-embed-text", "Revenue grew 8%.")
	plain := EmbeddingKey("", "Revenue grew 8%.")

	assert.True(t, strings.HasPrefix(a, "equidex:emb_cache:text-embedding-3-small:"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, strings.Count(plain, ":"))
	assert.Equal(t, a, EmbeddingKey("text-embedding-3-small", "Revenue grew 8%."))
}

func TestBudgetKey(t *testing.T) {
	at := time.Date(2026, 10, 14, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, "equidex:budget:openai:daily:2026-10-14", BudgetKey("openai", Daily, at))
	assert.Equal(t, "equidex:budget:openai:monthly:2026-10", BudgetKey("openai", Monthly, at))
}

func TestBudgetPeriod(t *testing.T) {
	at := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		key  string
		want Period
		ok   bool
	}{
		{BudgetKey("openai", Daily, at), Daily, true},
		{BudgetKey("ollama", Monthly, at), Monthly, true},
		{EmbeddingKey("daily", "x"), "", false},
		{"equidex:budget:openai:weekly:2026-42", "", false},
	}
	for _, tc := range tests {
		got, ok := BudgetPeriod(tc.key)
		assert.Equal(t, tc.ok, ok, tc.key)
		assert.Equal(t, tc.want, got, tc.key)
	}
}
