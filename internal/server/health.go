package server

import (
	"context"

	"github.com/vanshika/quickpay/backend/internal/linkstore"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// Pinger is anything with a cheap reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// UpstreamHealthService checks the quickpay API.
type UpstreamHealthService struct {
	Client Pinger
}

// Probe implements the HealthService interface.
func (s UpstreamHealthService) Probe(ctx context.Context) error {
	if s.Client == nil {
		return nil
	}
	return s.Client.Ping(ctx)
}

// GraphHealthService verifies graph connectivity when the link graph is enabled.
type GraphHealthService struct {
	Store linkstore.Store
}

// Probe implements the HealthService interface.
func (s GraphHealthService) Probe(ctx context.Context) error {
	if s.Store == nil || !s.Store.Enabled() {
		return nil
	}
	return s.Store.Ping(ctx)
}
