package upstream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vanshika/quickpay/backend/internal/config"
	"github.com/vanshika/quickpay/backend/internal/domain"
	"github.com/vanshika/quickpay/backend/internal/generator"
)

// New selects the upstream implementation named by cfg.Mode. Fixture mode
// reads cfg.FixturesDir, or generates a seeded dataset when it is unset.
func New(ctx context.Context, cfg config.UpstreamConfig, entities config.EntityCatalogue, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := Options{
		BaseURL:       cfg.BaseURL,
		Timeout:       cfg.Timeout,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
		Logger:        logger,
	}

	switch cfg.Mode {
	case "v1":
		return NewV1(opts), nil
	case "v2":
		return NewV2(opts), nil
	case "fixtures":
		details, err := fixtureDetails(ctx, cfg.FixturesDir, entities)
		if err != nil {
			return nil, err
		}
		logger.Info("serving fixture upstream", "clients", len(details), "dir", cfg.FixturesDir)
		return NewMemoryClient(details, catalogueEntities(entities)), nil
	default:
		return nil, fmt.Errorf("unknown upstream mode %q", cfg.Mode)
	}
}

func fixtureDetails(ctx context.Context, dir string, entities config.EntityCatalogue) ([]domain.ClientDetail, error) {
	if dir != "" {
		return LoadFixtures(dir)
	}
	genCfg := generator.DefaultConfig()
	if codes := entities.Codes(); len(codes) > 0 {
		genCfg.Entities = codes
	}
	dataset, err := generator.New(genCfg).Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate fixtures: %w", err)
	}
	return dataset.Clients, nil
}

func catalogueEntities(catalogue config.EntityCatalogue) []domain.Entity {
	out := make([]domain.Entity, 0, len(catalogue))
	for _, e := range catalogue {
		out = append(out, domain.Entity{EntityCode: e.Code, EntityName: e.Name, IsActive: true})
	}
	return out
}
