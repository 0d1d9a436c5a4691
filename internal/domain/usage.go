package domain

import (
	"context"
	"sync"
)

type usageKey struct{}

// Usage collects token consumption for one analysis run or HTTP request.
// Agents run concurrently, so all writes go through the mutex.
type Usage struct {
	mu               sync.Mutex
	embeddingTokens  int
	promptTokens     int
	completionTokens int
}

// UsageSnapshot is a point-in-time copy of Usage.
type UsageSnapshot struct {
	EmbeddingTokens  int `json:"embedding_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddEmbedding records embedding tokens. Safe on a nil receiver.
func (u *Usage) AddEmbedding(tokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.embeddingTokens += tokens
	u.mu.Unlock()
}

// AddGeneration records prompt and completion tokens. Safe on a nil receiver.
func (u *Usage) AddGeneration(prompt, completion int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.promptTokens += prompt
	u.completionTokens += completion
	u.mu.Unlock()
}

// Snapshot returns the current counters.
func (u *Usage) Snapshot() UsageSnapshot {
	if u == nil {
		return UsageSnapshot{}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return UsageSnapshot{
		EmbeddingTokens:  u.embeddingTokens,
		PromptTokens:     u.promptTokens,
		CompletionTokens: u.completionTokens,
	}
}
