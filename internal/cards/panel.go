package cards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vanshika/quickpay/backend/internal/domain"
)

// Strategy controls how the panel updates after a successful set-default.
type Strategy int

const (
	// StrategyRefetch rebuilds the grouping from a fresh client detail.
	StrategyRefetch Strategy = iota
	// StrategyOptimistic commits the flag change locally before refetching.
	StrategyOptimistic
)

// ParseStrategy maps a config value onto a Strategy.
func ParseStrategy(raw string) (Strategy, error) {
	switch raw {
	case "", "refetch":
		return StrategyRefetch, nil
	case "optimistic":
		return StrategyOptimistic, nil
	default:
		return StrategyRefetch, fmt.Errorf("unknown default strategy %q", raw)
	}
}

func (s Strategy) String() string {
	if s == StrategyOptimistic {
		return "optimistic"
	}
	return "refetch"
}

// Fetcher loads a client's full detail record.
type Fetcher interface {
	FetchClientDetail(ctx context.Context, clientID int64) (domain.ClientDetail, error)
}

// Backend is the upstream surface a panel needs.
type Backend interface {
	Fetcher
	Mutator
}

// Snapshot is the last committed view of a client's cards.
type Snapshot struct {
	ClientID  int64
	Detail    domain.ClientDetail
	Grouping  Grouping
	Seq       uint64
	FetchedAt time.Time
}

// CommitHook is invoked after each committed refresh.
type CommitHook func(ctx context.Context, snap Snapshot)

// Panel owns the grouped card state for one client. Refreshes follow last
// response wins; once closed nothing is committed.
type Panel struct {
	clientID int64
	backend  Backend
	strategy Strategy
	logger   *slog.Logger
	now      func() time.Time
	onCommit CommitHook

	mu       sync.Mutex
	issued   uint64
	snapshot *Snapshot
	closed   bool
}

// PanelOption customises a panel.
type PanelOption func(*Panel)

// WithStrategy sets the post set-default strategy.
func WithStrategy(s Strategy) PanelOption {
	return func(p *Panel) { p.strategy = s }
}

// WithLogger sets the logger used for skip warnings.
func WithLogger(logger *slog.Logger) PanelOption {
	return func(p *Panel) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) PanelOption {
	return func(p *Panel) {
		if now != nil {
			p.now = now
		}
	}
}

// WithCommitHook registers a callback run after each committed refresh.
func WithCommitHook(hook CommitHook) PanelOption {
	return func(p *Panel) { p.onCommit = hook }
}

// NewPanel creates an empty panel. Call Refresh to load data.
func NewPanel(clientID int64, backend Backend, opts ...PanelOption) *Panel {
	p := &Panel{
		clientID: clientID,
		backend:  backend,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "cards.panel", "client_id", clientID)
	return p
}

// ClientID returns the owning client.
func (p *Panel) ClientID() int64 {
	return p.clientID
}

// Strategy returns the configured set-default strategy.
func (p *Panel) Strategy() Strategy {
	return p.strategy
}

// Snapshot returns the last committed state.
func (p *Panel) Snapshot() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snapshot == nil {
		return Snapshot{}, false
	}
	return *p.snapshot, true
}

// Close stops the panel from committing any further state.
func (p *Panel) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Closed reports whether Close was called.
func (p *Panel) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Panel) nextTicket() (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPanelClosed
	}
	p.issued++
	return p.issued, nil
}

// Refresh fetches the client detail and commits a rebuilt grouping unless a
// response from a newer refresh was already committed or the panel was
// closed. A failed fetch keeps the previous snapshot and never blocks an
// older successful one.
func (p *Panel) Refresh(ctx context.Context) (Snapshot, error) {
	ticket, err := p.nextTicket()
	if err != nil {
		return Snapshot{}, err
	}

	detail, err := p.backend.FetchClientDetail(ctx, p.clientID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch client %d: %w", p.clientID, err)
	}

	grouping := GroupPaymentProfiles(detail.PaymentProfiles)
	for _, s := range grouping.Skipped {
		p.logger.Warn("skipping malformed payment profile",
			"index", s.Index,
			"payment_profile_id", s.PaymentProfileID,
			"error", s.Reason,
		)
	}
	if n := len(grouping.Defaults()); n > 1 {
		p.logger.Warn("upstream reports more than one default card", "defaults", n)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Snapshot{}, ErrPanelClosed
	}
	if p.snapshot != nil && p.snapshot.Seq >= ticket {
		committed := p.snapshot.Seq
		p.mu.Unlock()
		p.logger.Debug("discarding stale client detail", "ticket", ticket, "committed", committed)
		return Snapshot{}, ErrStaleResponse
	}
	snap := Snapshot{
		ClientID:  p.clientID,
		Detail:    detail,
		Grouping:  grouping,
		Seq:       ticket,
		FetchedAt: p.now(),
	}
	p.snapshot = &snap
	hook := p.onCommit
	p.mu.Unlock()

	if hook != nil {
		hook(ctx, snap)
	}
	return snap, nil
}

func (p *Panel) current() (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return Snapshot{}, ErrPanelClosed
	}
	if p.snapshot == nil {
		return Snapshot{}, ErrNoSnapshot
	}
	return *p.snapshot, nil
}

// OpenSetDefault prepares a confirmation for making the card default.
func (p *Panel) OpenSetDefault(fingerprint string) (*DefaultDialog, DefaultConfirmation, error) {
	snap, err := p.current()
	if err != nil {
		return nil, DefaultConfirmation{}, err
	}
	group, ok := snap.Grouping.Lookup(fingerprint)
	if !ok {
		return nil, DefaultConfirmation{}, fmt.Errorf("%w: %s", ErrUnknownCard, fingerprint)
	}
	dialog := NewDefaultDialog(p.clientID)
	confirmation, err := dialog.Open(group)
	if err != nil {
		return nil, DefaultConfirmation{}, err
	}
	return dialog, confirmation, nil
}

// SubmitSetDefault submits a confirmed dialog and updates the snapshot per
// the panel strategy. When the upstream rejects the change the snapshot is
// left exactly as it was.
func (p *Panel) SubmitSetDefault(ctx context.Context, dialog *DefaultDialog) (Snapshot, error) {
	group, err := dialog.Submit(ctx, p.backend)
	if err != nil {
		snap, _ := p.Snapshot()
		return snap, err
	}

	if p.strategy == StrategyOptimistic {
		if err := p.applyOptimisticDefault(group.Fingerprint); err != nil && !errors.Is(err, ErrUnknownCard) {
			return Snapshot{}, err
		}
	}
	return p.refreshAfterMutation(ctx, "set default")
}

// SetDefault opens and immediately submits a set-default for the card.
func (p *Panel) SetDefault(ctx context.Context, fingerprint string) (Snapshot, error) {
	dialog, _, err := p.OpenSetDefault(fingerprint)
	if err != nil {
		snap, _ := p.Snapshot()
		return snap, err
	}
	return p.SubmitSetDefault(ctx, dialog)
}

func (p *Panel) applyOptimisticDefault(fingerprint string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPanelClosed
	}
	if p.snapshot == nil {
		return ErrNoSnapshot
	}
	patched, err := p.snapshot.Grouping.WithDefault(fingerprint)
	if err != nil {
		return err
	}
	// Supersede any refresh still in flight so it cannot revert the patch.
	p.issued++
	snap := *p.snapshot
	snap.Grouping = patched
	snap.Seq = p.issued
	p.snapshot = &snap
	return nil
}

// OpenDelete prepares a confirmation for removing a payment profile.
func (p *Panel) OpenDelete(paymentProfileID string, scope DeleteScope) (*DeleteDialog, DeleteConfirmation, error) {
	snap, err := p.current()
	if err != nil {
		return nil, DeleteConfirmation{}, err
	}
	profile, group, ok := snap.Grouping.FindProfile(paymentProfileID)
	if !ok {
		return nil, DeleteConfirmation{}, fmt.Errorf("%w: %s", ErrUnknownProfile, paymentProfileID)
	}
	dialog := NewDeleteDialog(p.clientID)
	confirmation, err := dialog.Open(group, profile, scope)
	if err != nil {
		return nil, DeleteConfirmation{}, err
	}
	return dialog, confirmation, nil
}

// SubmitDelete submits a confirmed delete and always refetches afterwards.
func (p *Panel) SubmitDelete(ctx context.Context, dialog *DeleteDialog) (Snapshot, error) {
	if _, _, err := dialog.Submit(ctx, p.backend); err != nil {
		snap, _ := p.Snapshot()
		return snap, err
	}
	return p.refreshAfterMutation(ctx, "delete")
}

// Delete opens and immediately submits a delete.
func (p *Panel) Delete(ctx context.Context, paymentProfileID string, scope DeleteScope) (Snapshot, error) {
	dialog, _, err := p.OpenDelete(paymentProfileID, scope)
	if err != nil {
		snap, _ := p.Snapshot()
		return snap, err
	}
	return p.SubmitDelete(ctx, dialog)
}

func (p *Panel) refreshAfterMutation(ctx context.Context, op string) (Snapshot, error) {
	snap, err := p.Refresh(ctx)
	if err == nil {
		return snap, nil
	}
	if errors.Is(err, ErrStaleResponse) {
		if current, ok := p.Snapshot(); ok {
			return current, nil
		}
	}
	current, _ := p.Snapshot()
	return current, fmt.Errorf("refresh after %s: %w", op, err)
}
