package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vanshika/quickpay/backend/internal/app"
	"github.com/vanshika/quickpay/backend/internal/config"
	"github.com/vanshika/quickpay/backend/internal/logging"
	"github.com/vanshika/quickpay/backend/internal/server"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build card service", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			logger.Warn("closing runtime failed", "error", err)
		}
	}()

	apiHandlers := server.NewAPIHandlers(logger, rt.Cards)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health: map[string]server.HealthService{
			"upstream": server.UpstreamHealthService{Client: rt.Upstream},
			"graph":    server.GraphHealthService{Store: rt.Links},
		},
		API:              apiHandlers,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
