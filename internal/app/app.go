// Package app assembles the card service from configuration. The server,
// the link sync job and the operator CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/vanshika/quickpay/backend/internal/cards"
	"github.com/vanshika/quickpay/backend/internal/config"
	"github.com/vanshika/quickpay/backend/internal/graph"
	"github.com/vanshika/quickpay/backend/internal/linkstore"
	"github.com/vanshika/quickpay/backend/internal/service"
	"github.com/vanshika/quickpay/backend/internal/upstream"
)

// Runtime holds the wired collaborators. Close releases them in reverse
// order of construction.
type Runtime struct {
	Upstream upstream.Client
	Links    linkstore.Store
	Guard    service.InflightGuard
	Cards    *service.CardService

	closers []func(context.Context) error
}

// Build wires the upstream client, the optional link graph and lock store,
// and the card service.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{}

	strategy, err := cards.ParseStrategy(cfg.Cards.DefaultStrategy)
	if err != nil {
		return nil, err
	}

	client, err := upstream.New(ctx, cfg.Upstream, cfg.Entities, logger)
	if err != nil {
		return nil, fmt.Errorf("build upstream client: %w", err)
	}
	rt.Upstream = client

	rt.Links, err = rt.buildLinkStore(ctx, cfg.Graph, logger)
	if err != nil {
		rt.Close(context.Background())
		return nil, err
	}

	rt.Guard, err = rt.buildGuard(ctx, cfg.Redis, logger)
	if err != nil {
		rt.Close(context.Background())
		return nil, err
	}

	rt.Cards = service.NewCardService(client, service.Options{
		Strategy:        strategy,
		PanelIdleTTL:    cfg.Cards.PanelIdleTTL,
		ConfirmationTTL: cfg.Cards.ConfirmationTTL,
		Entities:        cfg.Entities,
		Links:           rt.Links,
		Guard:           rt.Guard,
		Logger:          logger,
	})
	rt.closers = append(rt.closers, func(context.Context) error {
		rt.Cards.Close()
		return nil
	})
	return rt, nil
}

func (rt *Runtime) buildLinkStore(ctx context.Context, cfg config.GraphConfig, logger *slog.Logger) (linkstore.Store, error) {
	if cfg.URI == "" {
		logger.Info("card link graph disabled")
		return linkstore.NopStore{}, nil
	}
	client, err := graph.NewNeo4jClient(ctx, graph.OptionsFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect graph: %w", err)
	}
	rt.closers = append(rt.closers, client.Close)

	store := linkstore.New(client)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	logger.Info("connected to graph", "uri", cfg.URI, "database", cfg.Database)
	return store, nil
}

func (rt *Runtime) buildGuard(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (service.InflightGuard, error) {
	if cfg.Addr == "" {
		return service.NewMemoryGuard(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })

	guard := service.NewRedisGuard(client, "")
	if err := guard.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	logger.Info("using redis in-flight guard", "addr", cfg.Addr)
	return guard, nil
}

// Close releases every resource Build opened.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
