package health

import "context"

// Pinger checks key-value store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks embedding or generation provider availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
