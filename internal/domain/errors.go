package domain

import "errors"

// Configuration errors. These are fatal for a run and must never be swallowed.
var (
	// ErrVectorDimMismatch signals a query or fragment vector whose dimension differs from the corpus.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrUnknownCategory signals a fragment category outside text/table/article.
	ErrUnknownCategory = errors.New("unknown fragment category")
	// ErrInvalidTemplate signals a malformed agent instruction template.
	ErrInvalidTemplate = errors.New("invalid agent template")
	// ErrUnknownAgentSet signals an agent set other than primary/extended/all.
	ErrUnknownAgentSet = errors.New("unknown agent set")
	// ErrNonFiniteVector signals an embedding with a NaN or infinite component.
	ErrNonFiniteVector = errors.New("non-finite vector component")
)

// Service and request errors. These are recovered at the smallest scope.
var (
	// ErrEmptyCorpus signals that ingestion produced no fragments at all.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrInvalidRequest signals a malformed API request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationProviderError signals a generation provider failure.
	ErrGenerationProviderError = errors.New("generation provider error")
	// ErrInvalidResponse signals a generation response that does not match the expected shape.
	ErrInvalidResponse = errors.New("invalid generation response")
)

// IsConfigError reports whether err belongs to the fatal configuration taxonomy.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrVectorDimMismatch) ||
		errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrInvalidTemplate) ||
		errors.Is(err, ErrUnknownAgentSet) ||
		errors.Is(err, ErrNonFiniteVector)
}
