package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/vanshika/quickpay/backend/internal/app"
	"github.com/vanshika/quickpay/backend/internal/config"
	"github.com/vanshika/quickpay/backend/internal/logging"
	"github.com/vanshika/quickpay/backend/internal/service"
)

var errGraphDisabled = errors.New("GRAPH_URI is required for link sync")

func main() {
	var (
		workers  = flag.Int("workers", 4, "Number of concurrent workers")
		pageSize = flag.Int("page-size", 200, "Client listing page size")
		clients  = flag.String("clients", "", "Comma separated client IDs to sync (default: every client)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "linksync")

	ids, err := parseClientIDs(*clients)
	if err != nil {
		logger.Error("invalid client list", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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

	if !rt.Links.Enabled() {
		logger.Error("link sync unavailable", "error", errGraphDisabled)
		os.Exit(1)
	}

	syncer := service.NewBulkLinkSync(rt.Cards, *workers, logger)

	start := time.Now()
	count := len(ids)
	if count > 0 {
		logger.Info("syncing selected clients", "count", count, "workers", *workers)
		err = syncer.SyncClients(ctx, ids)
	} else {
		count, err = syncer.SyncAll(ctx, rt.Upstream, *pageSize)
	}
	if err != nil {
		logger.Error("link sync failed", "error", err, "clients", count)
		os.Exit(1)
	}

	logger.Info("link sync complete", "duration", time.Since(start).String(), "clients", count)
}

func parseClientIDs(csv string) ([]int64, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid client id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
