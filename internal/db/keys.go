package db

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/kailas-cloud/equidex/internal/domain"
)

// Key layout, identical for the Redis and in-memory backends:
//
//	equidex:emb_cache:[<model>:]<sha256 of text>    encoded embedding vector
//	equidex:budget:<provider>:daily:<YYYY-MM-DD>    embedding tokens spent that day
//	equidex:budget:<provider>:monthly:<YYYY-MM>     embedding tokens spent that month
const (
	embeddingNamespace = domain.KeyPrefix + "emb_cache:"
	budgetNamespace    = domain.KeyPrefix + "budget:"
)

// Period is the accounting window of a budget counter.
type Period string

const (
	Daily   Period = "daily"
	Monthly Period = "monthly"
)

func (p Period) layout() string {
	if p == Daily {
		return "2006-01-02"
	}
	return "2006-01"
}

// EmbeddingKey addresses the cached vector of text under model.
// Vectors from different models never share a key.
func EmbeddingKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	if model == "" {
		return embeddingNamespace + hex.EncodeToString(sum[:])
	}
	return embeddingNamespace + model + ":" + hex.EncodeToString(sum[:])
}

// BudgetKey addresses the provider's token counter for the period containing t.
func BudgetKey(provider string, p Period, t time.Time) string {
	return budgetNamespace + provider + ":" + string(p) + ":" + t.Format(p.layout())
}

// BudgetPeriod reports the period a BudgetKey was built for.
func BudgetPeriod(key string) (Period, bool) {
	rest, ok := strings.CutPrefix(key, budgetNamespace)
	if !ok {
		return "", false
	}
	switch {
	case strings.Contains(rest, ":"+string(Daily)+":"):
		return Daily, true
	case strings.Contains(rest, ":"+string(Monthly)+":"):
		return Monthly, true
	}
	return "", false
}
