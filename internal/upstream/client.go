// Package upstream talks to the quickpay billing API. Two wire generations
// are supported behind one Client interface, plus an in-memory fixture
// backend.
package upstream

import (
	"context"

	"github.com/vanshika/quickpay/backend/internal/domain"
)

// Client is the REST collaborator used by the card panels and the API proxies.
type Client interface {
	FetchClientDetail(ctx context.Context, clientID int64) (domain.ClientDetail, error)
	SetDefaultPaymentMethod(ctx context.Context, clientID int64, paymentProfileID string) error
	// DeletePaymentMethod removes every association of the card when
	// entityCode is empty, otherwise only the association with that entity.
	DeletePaymentMethod(ctx context.Context, clientID int64, paymentProfileID, entityCode string) error
	CreatePaymentProfile(ctx context.Context, in domain.NewPaymentProfile) ([]domain.PaymentProfile, error)
	ListClients(ctx context.Context, filter ClientFilter) (domain.ClientPage, error)
	ListEntities(ctx context.Context) ([]domain.Entity, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]domain.Invoice, error)
	AddNote(ctx context.Context, note domain.NewNote) (domain.Note, error)
	Ping(ctx context.Context) error
}

// ClientFilter narrows the client listing.
type ClientFilter struct {
	IncludeInactive bool
	Search          string
	Limit           int
	Offset          int
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func (f ClientFilter) normalized() ClientFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// InvoiceFilter narrows invoice listings. ClientID zero lists across clients.
type InvoiceFilter struct {
	ClientID   int64
	EntityCode string
	Status     string
	Limit      int
	Offset     int
}

func (f InvoiceFilter) normalized() InvoiceFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func (f InvoiceFilter) matches(inv domain.Invoice) bool {
	if f.EntityCode != "" && inv.EntityCode != f.EntityCode {
		return false
	}
	if f.Status != "" && inv.InvoiceStatus != f.Status {
		return false
	}
	return true
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
