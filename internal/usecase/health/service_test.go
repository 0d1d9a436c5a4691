package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct{ err error }

func (f *fakePinger) Ping(_ context.Context) error { return f.err }

type fakeProvider struct{ err error }

func (f *fakeProvider) HealthCheck(_ context.Context) error { return f.err }

func TestCheck(t *testing.T) {
	down := errors.New("down")
	tests := []struct {
		name       string
		svc        *Service
		wantStatus Status
		wantChecks map[string]CheckResult
	}{
		{
			name:       "all healthy",
			svc:        New(&fakePinger{}, &fakeProvider{}, &fakeProvider{}),
			wantStatus: Healthy,
			wantChecks: map[string]CheckResult{"cache": CheckOK, "embedding": CheckOK, "generation": CheckOK},
		},
		{
			name:       "cache down",
			svc:        New(&fakePinger{err: down}, &fakeProvider{}, &fakeProvider{}),
			wantStatus: Degraded,
			wantChecks: map[string]CheckResult{"cache": CheckError, "embedding": CheckOK, "generation": CheckOK},
		},
		{
			name:       "generation down without cache",
			svc:        New(nil, &fakeProvider{}, &fakeProvider{err: down}),
			wantStatus: Degraded,
			wantChecks: map[string]CheckResult{"embedding": CheckOK, "generation": CheckError},
		},
		{
			name:       "everything down",
			svc:        New(&fakePinger{err: down}, &fakeProvider{err: down}, &fakeProvider{err: down}),
			wantStatus: Unhealthy,
			wantChecks: map[string]CheckResult{"cache": CheckError, "embedding": CheckError, "generation": CheckError},
		},
		{
			name:       "nothing to check",
			svc:        New(nil, nil, nil),
			wantStatus: Healthy,
			wantChecks: map[string]CheckResult{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.svc.Check(context.Background())
			assert.Equal(t, tt.wantStatus, r.Status)
			assert.Equal(t, tt.wantChecks, r.Checks)
		})
	}
}
