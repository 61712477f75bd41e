package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vanshika/quickpay/backend/internal/domain"
	"github.com/vanshika/quickpay/backend/internal/upstream"
)

// TaskError accumulates the per-client errors of a bulk run.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *TaskError) Unwrap() []error {
	return e.Errors
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// LinkSyncer projects one client's cards into the link graph.
type LinkSyncer interface {
	SyncClientLinks(ctx context.Context, clientID int64) error
}

// ClientLister pages through clients.
type ClientLister interface {
	ListClients(ctx context.Context, filter upstream.ClientFilter) (domain.ClientPage, error)
}

// BulkLinkSync projects many clients concurrently using a worker pool.
type BulkLinkSync struct {
	syncer  LinkSyncer
	workers int
	logger  *slog.Logger
}

// NewBulkLinkSync creates a BulkLinkSync with the provided concurrency.
func NewBulkLinkSync(syncer LinkSyncer, workers int, logger *slog.Logger) *BulkLinkSync {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkLinkSync{
		syncer:  syncer,
		workers: workers,
		logger:  logger.With("component", "service.linksync"),
	}
}

// SyncClients projects the given clients. Failures for individual clients
// are collected into a TaskError; cancellation aborts the run.
func (b *BulkLinkSync) SyncClients(ctx context.Context, clientIDs []int64) error {
	return b.run(ctx, len(clientIDs), func(idx int) error {
		return b.syncer.SyncClientLinks(ctx, clientIDs[idx])
	})
}

// SyncAll walks every client page from lister and projects each client.
// It returns how many clients were attempted.
func (b *BulkLinkSync) SyncAll(ctx context.Context, lister ClientLister, pageSize int) (int, error) {
	var ids []int64
	filter := upstream.ClientFilter{IncludeInactive: true, Limit: pageSize}
	for {
		page, err := lister.ListClients(ctx, filter)
		if err != nil {
			return 0, fmt.Errorf("list clients at offset %d: %w", filter.Offset, err)
		}
		for _, c := range page.Clients {
			ids = append(ids, c.ClientID)
		}
		filter.Offset += len(page.Clients)
		if len(page.Clients) == 0 || filter.Offset >= page.Total {
			break
		}
	}
	b.logger.Info("syncing card links", "clients", len(ids), "workers", b.workers)
	return len(ids), b.SyncClients(ctx, ids)
}

func (b *BulkLinkSync) run(ctx context.Context, total int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := workerFn(idx); err != nil {
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return err
	}
	var taskErr TaskError
	for err := range errCh {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}
