package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/vanshika/quickpay/backend/internal/cards"
	"github.com/vanshika/quickpay/backend/internal/config"
	"github.com/vanshika/quickpay/backend/internal/domain"
	"github.com/vanshika/quickpay/backend/internal/linkstore"
	"github.com/vanshika/quickpay/backend/internal/upstream"
)

// ErrConfirmationNotFound is returned for unknown, expired or mismatched tokens.
var ErrConfirmationNotFound = errors.New("confirmation not found or expired")

// Options tunes a CardService. Zero values fall back to defaults.
type Options struct {
	Strategy        cards.Strategy
	PanelIdleTTL    time.Duration
	ConfirmationTTL time.Duration
	InflightTTL     time.Duration
	Entities        config.EntityCatalogue
	Links           linkstore.Store
	Guard           InflightGuard
	Logger          *slog.Logger
}

const (
	defaultPanelIdleTTL    = 10 * time.Minute
	defaultConfirmationTTL = 2 * time.Minute
	defaultInflightTTL     = 30 * time.Second
)

// CardService keeps one panel per client and maps the two-step confirmation
// protocol onto the panel dialogs.
type CardService struct {
	upstream upstream.Client
	opts     Options
	logger   *slog.Logger
	validate *validator.Validate
	nowFn    func() time.Time

	panelMu       sync.Mutex
	panels        *cache.Cache
	confirmations *cache.Cache
}

type pendingConfirmation struct {
	kind             ConfirmationKind
	clientID         int64
	paymentProfileID string
	panel            *cards.Panel
	setDefault       *cards.DefaultDialog
	del              *cards.DeleteDialog
}

func (p *pendingConfirmation) cancel() error {
	if p.setDefault != nil {
		return p.setDefault.Cancel()
	}
	return p.del.Cancel()
}

// NewCardService constructs a CardService on top of an upstream client.
func NewCardService(client upstream.Client, opts Options) *CardService {
	if opts.PanelIdleTTL <= 0 {
		opts.PanelIdleTTL = defaultPanelIdleTTL
	}
	if opts.ConfirmationTTL <= 0 {
		opts.ConfirmationTTL = defaultConfirmationTTL
	}
	if opts.InflightTTL <= 0 {
		opts.InflightTTL = defaultInflightTTL
	}
	if len(opts.Entities) == 0 {
		opts.Entities = config.DefaultEntities()
	}
	if opts.Links == nil {
		opts.Links = linkstore.NopStore{}
	}
	if opts.Guard == nil {
		opts.Guard = NewMemoryGuard()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &CardService{
		upstream:      client,
		opts:          opts,
		logger:        opts.Logger.With("component", "service.cards"),
		validate:      newValidator(),
		nowFn:         time.Now,
		panels:        cache.New(opts.PanelIdleTTL, opts.PanelIdleTTL/2),
		confirmations: cache.New(opts.ConfirmationTTL, opts.ConfirmationTTL/2),
	}
	s.panels.OnEvicted(func(key string, v any) {
		if panel, ok := v.(*cards.Panel); ok {
			panel.Close()
			s.logger.Debug("closed idle card panel", "client_id", key)
		}
	})
	s.confirmations.OnEvicted(func(_ string, v any) {
		if pending, ok := v.(*pendingConfirmation); ok {
			_ = pending.cancel()
		}
	})
	return s
}

// WithClock overrides the time provider (used primarily in tests).
func (s *CardService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Close closes every open panel and drops pending confirmations.
func (s *CardService) Close() {
	for key := range s.confirmations.Items() {
		s.confirmations.Delete(key)
	}
	for key := range s.panels.Items() {
		s.panels.Delete(key)
	}
}

func (s *CardService) panel(clientID int64) *cards.Panel {
	key := strconv.FormatInt(clientID, 10)
	s.panelMu.Lock()
	defer s.panelMu.Unlock()
	if v, ok := s.panels.Get(key); ok {
		if panel := v.(*cards.Panel); !panel.Closed() {
			// Re-set to slide the idle expiry.
			s.panels.SetDefault(key, panel)
			return panel
		}
	}
	panel := cards.NewPanel(clientID, s.upstream,
		cards.WithStrategy(s.opts.Strategy),
		cards.WithLogger(s.opts.Logger),
		cards.WithClock(s.nowFn),
		cards.WithCommitHook(s.project),
	)
	s.panels.SetDefault(key, panel)
	return panel
}

// project mirrors a committed grouping into the link graph. Failures are
// logged only; the graph is never the source of truth.
func (s *CardService) project(ctx context.Context, snap cards.Snapshot) {
	if !s.opts.Links.Enabled() {
		return
	}
	if err := s.opts.Links.ProjectClientCards(ctx, snap.ClientID, snap.Grouping.Groups()); err != nil {
		s.logger.Warn("card link projection failed", "client_id", snap.ClientID, "error", err)
	}
}

// refresh reloads the panel. A stale response means a newer one is already
// committed, so that snapshot is returned instead.
func (s *CardService) refresh(ctx context.Context, panel *cards.Panel) (cards.Snapshot, error) {
	snap, err := panel.Refresh(ctx)
	if errors.Is(err, cards.ErrStaleResponse) {
		if current, ok := panel.Snapshot(); ok {
			return current, nil
		}
	}
	return snap, err
}

// loaded returns a panel holding at least one snapshot.
func (s *CardService) loaded(ctx context.Context, clientID int64) (*cards.Panel, error) {
	panel := s.panel(clientID)
	if _, ok := panel.Snapshot(); ok {
		return panel, nil
	}
	if _, err := s.refresh(ctx, panel); err != nil {
		return nil, err
	}
	return panel, nil
}

// Cards refetches the client and returns its deduplicated cards.
func (s *CardService) Cards(ctx context.Context, clientID int64) (CardView, error) {
	snap, err := s.refresh(ctx, s.panel(clientID))
	if err != nil {
		return CardView{}, err
	}
	return buildCardView(snap, s.opts.Entities), nil
}

func (s *CardService) storeConfirmation(p *pendingConfirmation) (string, time.Time) {
	token := uuid.NewString()
	s.confirmations.SetDefault(token, p)
	return token, s.nowFn().Add(s.opts.ConfirmationTTL)
}

func (s *CardService) lookup(clientID int64, token string, kind ConfirmationKind) (*pendingConfirmation, error) {
	v, ok := s.confirmations.Get(token)
	if !ok {
		return nil, ErrConfirmationNotFound
	}
	pending := v.(*pendingConfirmation)
	if pending.clientID != clientID || pending.kind != kind {
		return nil, ErrConfirmationNotFound
	}
	return pending, nil
}

// BeginSetDefault opens the set-default dialog for the card with fingerprint.
func (s *CardService) BeginSetDefault(ctx context.Context, clientID int64, fingerprint string) (Confirmation, error) {
	panel, err := s.loaded(ctx, clientID)
	if err != nil {
		return Confirmation{}, err
	}
	dialog, conf, err := panel.OpenSetDefault(fingerprint)
	if err != nil {
		return Confirmation{}, err
	}
	token, expires := s.storeConfirmation(&pendingConfirmation{
		kind:             KindSetDefault,
		clientID:         clientID,
		paymentProfileID: conf.PaymentProfileID,
		panel:            panel,
		setDefault:       dialog,
	})
	return Confirmation{
		Token:            token,
		Kind:             KindSetDefault,
		ClientID:         clientID,
		Fingerprint:      conf.Fingerprint,
		PaymentProfileID: conf.PaymentProfileID,
		CardType:         conf.CardType,
		LastFour:         conf.LastFour,
		Entities:         conf.Entities,
		Message:          conf.Message,
		ExpiresAt:        expires,
	}, nil
}

// ConfirmSetDefault submits a pending set-default. A rejected submit keeps
// the token so the operator can retry.
func (s *CardService) ConfirmSetDefault(ctx context.Context, clientID int64, token string) (CardView, error) {
	pending, err := s.lookup(clientID, token, KindSetDefault)
	if err != nil {
		return CardView{}, err
	}
	release, err := s.opts.Guard.Acquire(ctx, inflightKey(clientID, pending.paymentProfileID), s.opts.InflightTTL)
	if err != nil {
		return CardView{}, err
	}
	defer release()

	snap, err := pending.panel.SubmitSetDefault(ctx, pending.setDefault)
	return s.finishSubmit(token, pending, snap, err)
}

// BeginDelete opens the delete dialog. An empty entityCode deletes the card
// from every entity.
func (s *CardService) BeginDelete(ctx context.Context, clientID int64, paymentProfileID, entityCode string) (Confirmation, error) {
	panel, err := s.loaded(ctx, clientID)
	if err != nil {
		return Confirmation{}, err
	}
	scope := cards.AllEntities
	if entityCode != "" {
		scope = cards.OnlyEntity(entityCode)
	}
	dialog, conf, err := panel.OpenDelete(paymentProfileID, scope)
	if err != nil {
		return Confirmation{}, err
	}
	token, expires := s.storeConfirmation(&pendingConfirmation{
		kind:             KindDelete,
		clientID:         clientID,
		paymentProfileID: conf.PaymentProfileID,
		panel:            panel,
		del:              dialog,
	})
	return Confirmation{
		Token:            token,
		Kind:             KindDelete,
		ClientID:         clientID,
		Fingerprint:      conf.Fingerprint,
		PaymentProfileID: conf.PaymentProfileID,
		CardType:         conf.CardType,
		LastFour:         conf.LastFour,
		Scope:            conf.Scope.String(),
		Message:          conf.Message,
		ExpiresAt:        expires,
	}, nil
}

// ConfirmDelete submits a pending delete.
func (s *CardService) ConfirmDelete(ctx context.Context, clientID int64, token string) (CardView, error) {
	pending, err := s.lookup(clientID, token, KindDelete)
	if err != nil {
		return CardView{}, err
	}
	release, err := s.opts.Guard.Acquire(ctx, inflightKey(clientID, pending.paymentProfileID), s.opts.InflightTTL)
	if err != nil {
		return CardView{}, err
	}
	defer release()

	snap, err := pending.panel.SubmitDelete(ctx, pending.del)
	return s.finishSubmit(token, pending, snap, err)
}

func (s *CardService) finishSubmit(token string, pending *pendingConfirmation, snap cards.Snapshot, err error) (CardView, error) {
	if err != nil {
		var mutationErr *cards.MutationError
		switch {
		case errors.As(err, &mutationErr), errors.Is(err, cards.ErrSubmitInFlight):
			return CardView{}, err
		case errors.Is(err, cards.ErrNotConfirming):
			s.confirmations.Delete(token)
			return CardView{}, ErrConfirmationNotFound
		}
	}
	// The upstream accepted the change; any remaining error came from the
	// refresh that followed it.
	s.confirmations.Delete(token)
	s.logger.Info("card mutation confirmed",
		"kind", pending.kind,
		"client_id", pending.clientID,
		"payment_profile_id", pending.paymentProfileID,
	)
	view := buildCardView(snap, s.opts.Entities)
	if err != nil {
		s.logger.Warn("refresh after confirmed mutation failed",
			"kind", pending.kind,
			"client_id", pending.clientID,
			"error", err,
		)
		view.ClientID = pending.clientID
		view.Warning = fmt.Sprintf("%s succeeded but the card list could not be reloaded: %v", pending.kind, err)
	}
	return view, nil
}

// Cancel abandons a pending confirmation of either kind.
func (s *CardService) Cancel(clientID int64, token string) error {
	v, ok := s.confirmations.Get(token)
	if !ok {
		return ErrConfirmationNotFound
	}
	pending := v.(*pendingConfirmation)
	if pending.clientID != clientID {
		return ErrConfirmationNotFound
	}
	if err := pending.cancel(); err != nil {
		return err
	}
	s.confirmations.Delete(token)
	return nil
}

// CreatePaymentProfile validates and forwards a new card, then refreshes the
// client's panel so the card shows up grouped.
func (s *CardService) CreatePaymentProfile(ctx context.Context, in domain.NewPaymentProfile) ([]domain.PaymentProfile, error) {
	in = normalizeNewPaymentProfile(in)
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}
	if in.Entity != "" && !s.knownEntity(in.Entity) {
		return nil, &ValidationError{Fields: map[string]string{"entity": fmt.Sprintf("unknown entity %s", in.Entity)}}
	}
	created, err := s.upstream.CreatePaymentProfile(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create payment profile for client %d: %w", in.ClientID, err)
	}
	if _, err := s.refresh(ctx, s.panel(in.ClientID)); err != nil {
		s.logger.Warn("refresh after create failed", "client_id", in.ClientID, "error", err)
	}
	return created, nil
}

func (s *CardService) knownEntity(code string) bool {
	for _, e := range s.opts.Entities {
		if e.Code == code {
			return true
		}
	}
	return false
}

// AddNote validates and forwards a client note.
func (s *CardService) AddNote(ctx context.Context, in domain.NewNote) (domain.Note, error) {
	in = normalizeNewNote(in)
	if err := validateStruct(s.validate, in); err != nil {
		return domain.Note{}, err
	}
	return s.upstream.AddNote(ctx, in)
}

// ListClients proxies the client listing.
func (s *CardService) ListClients(ctx context.Context, filter upstream.ClientFilter) (domain.ClientPage, error) {
	filter.Search = sanitizeString(filter.Search)
	return s.upstream.ListClients(ctx, filter)
}

// ListEntities proxies the entity listing with catalogue display names.
func (s *CardService) ListEntities(ctx context.Context) ([]domain.Entity, error) {
	entities, err := s.upstream.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	return entityNames(entities, s.opts.Entities), nil
}

// ListInvoices proxies invoice listings.
func (s *CardService) ListInvoices(ctx context.Context, filter upstream.InvoiceFilter) ([]domain.Invoice, error) {
	return s.upstream.ListInvoices(ctx, filter)
}

// SharedCards lists cards the client shares with other clients.
func (s *CardService) SharedCards(ctx context.Context, clientID int64) ([]domain.SharedCard, error) {
	if !s.opts.Links.Enabled() {
		return nil, linkstore.ErrDisabled
	}
	return s.opts.Links.SharedCards(ctx, clientID)
}

// SyncClientLinks fetches one client and projects its grouping, returning
// projection errors instead of logging them.
func (s *CardService) SyncClientLinks(ctx context.Context, clientID int64) error {
	detail, err := s.upstream.FetchClientDetail(ctx, clientID)
	if err != nil {
		return fmt.Errorf("fetch client %d: %w", clientID, err)
	}
	grouping := cards.GroupPaymentProfiles(detail.PaymentProfiles)
	if err := s.opts.Links.ProjectClientCards(ctx, clientID, grouping.Groups()); err != nil {
		return fmt.Errorf("project client %d: %w", clientID, err)
	}
	return nil
}
