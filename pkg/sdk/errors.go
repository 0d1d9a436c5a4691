package equidex

import "github.com/kailas-cloud/equidex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrVectorDimMismatch       = domain.ErrVectorDimMismatch
	ErrUnknownCategory         = domain.ErrUnknownCategory
	ErrInvalidTemplate         = domain.ErrInvalidTemplate
	ErrUnknownAgentSet         = domain.ErrUnknownAgentSet
	ErrNonFiniteVector         = domain.ErrNonFiniteVector
	ErrEmptyCorpus             = domain.ErrEmptyCorpus
	ErrInvalidRequest          = domain.ErrInvalidRequest
	ErrRateLimited             = domain.ErrRateLimited
	ErrEmbeddingQuotaExceeded  = domain.ErrEmbeddingQuotaExceeded
	ErrEmbeddingProviderError  = domain.ErrEmbeddingProviderError
	ErrGenerationProviderError = domain.ErrGenerationProviderError
	ErrInvalidResponse         = domain.ErrInvalidResponse
)

// IsConfigError reports whether err is fatal for every run with the same setup.
func IsConfigError(err error) bool { return domain.IsConfigError(err) }
