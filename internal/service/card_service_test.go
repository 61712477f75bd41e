package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/quickpay/backend/internal/cards"
	"github.com/vanshika/quickpay/backend/internal/config"
	"github.com/vanshika/quickpay/backend/internal/domain"
	"github.com/vanshika/quickpay/backend/internal/graph"
	"github.com/vanshika/quickpay/backend/internal/linkstore"
	"github.com/vanshika/quickpay/backend/internal/logging"
	"github.com/vanshika/quickpay/backend/internal/upstream"
)

const (
	adaCard   = "4242-Ada-Lovelace"
	graceCard = "1111-Grace-Hopper"
)

func profile(id, entity, lastFour, first, last string, isDefault any) domain.PaymentProfile {
	return domain.PaymentProfile{
		PaymentProfileID: id,
		Entity:           entity,
		CardType:         "Visa",
		LastFour:         lastFour,
		BillingDetails:   &domain.BillingDetails{FirstName: first, LastName: last},
		IsDefault:        domain.Flag(isDefault),
	}
}

func fixtureClient() domain.ClientDetail {
	return domain.ClientDetail{
		Client: domain.Client{ClientID: 7, CompanyName: "Atlas Voice", ClientStatus: "active"},
		PaymentProfiles: []domain.PaymentProfile{
			profile("11", "wc", "4242", "Ada", "Lovelace", "True"),
			profile("12", "cg", "4242", "Ada", "Lovelace", "False"),
			profile("21", "wc", "1111", "Grace", "Hopper", "False"),
			{PaymentProfileID: "99", Entity: "vbc", LastFour: "0000"},
		},
		EntityMappings: []domain.EntityMapping{{EntityCode: "wc"}, {EntityCode: "cg"}, {EntityCode: "vbc"}},
	}
}

func newTestService(t *testing.T, opts Options) (*CardService, *upstream.MemoryClient) {
	t.Helper()
	mem := upstream.NewMemoryClient([]domain.ClientDetail{fixtureClient()}, nil)
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	svc := NewCardService(mem, opts)
	t.Cleanup(svc.Close)
	return svc, mem
}

func findCard(t *testing.T, view CardView, fingerprint string) CardSummary {
	t.Helper()
	for _, c := range view.Cards {
		if c.Fingerprint == fingerprint {
			return c
		}
	}
	t.Fatalf("card %s not in view", fingerprint)
	return CardSummary{}
}

func TestCardsViewReportsEntityBadges(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	view, err := svc.Cards(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, view.Cards, 2)
	require.Len(t, view.Skipped, 1)
	assert.Equal(t, "99", view.Skipped[0].PaymentProfileID)

	ada := findCard(t, view, adaCard)
	assert.True(t, ada.IsDefault)
	assert.Equal(t, "Ada Lovelace", ada.HolderName)
	assert.Equal(t, []string{"cg", "wc"}, ada.Entities)
	assert.Equal(t, []string{"vbc"}, ada.MissingEntities)
	require.Len(t, ada.Links, 3)
	assert.Equal(t, EntityLinkView{EntityCode: "cg", EntityName: "Contract Genie", Linked: true, PaymentProfileID: "12"}, ada.Links[1])

	grace := findCard(t, view, graceCard)
	assert.Equal(t, []string{"cg", "vbc"}, grace.MissingEntities)
}

func TestSetDefaultTwoStep(t *testing.T) {
	svc, mem := newTestService(t, Options{})
	ctx := context.Background()

	conf, err := svc.BeginSetDefault(ctx, 7, graceCard)
	require.NoError(t, err)
	assert.Equal(t, KindSetDefault, conf.Kind)
	assert.Equal(t, "21", conf.PaymentProfileID)
	assert.NotEmpty(t, conf.Token)
	assert.Contains(t, conf.Message, "ending in 1111")

	_, err = svc.ConfirmSetDefault(ctx, 8, conf.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound, "token is bound to its client")

	view, err := svc.ConfirmSetDefault(ctx, 7, conf.Token)
	require.NoError(t, err)
	assert.True(t, findCard(t, view, graceCard).IsDefault)
	assert.False(t, findCard(t, view, adaCard).IsDefault)

	_, err = svc.ConfirmSetDefault(ctx, 7, conf.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound, "token is single use")

	var setDefaults int
	for _, c := range mem.Calls() {
		if c.Op == upstream.OpSetDefault {
			setDefaults++
		}
	}
	assert.Equal(t, 1, setDefaults)
}

func TestSetDefaultRejectsCurrentDefault(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	_, err := svc.BeginSetDefault(context.Background(), 7, adaCard)
	assert.ErrorIs(t, err, cards.ErrAlreadyDefault)

	_, err = svc.BeginSetDefault(context.Background(), 7, "0000-No-One")
	assert.ErrorIs(t, err, cards.ErrUnknownCard)
}

func TestFailedSetDefaultKeepsTokenForRetry(t *testing.T) {
	svc, mem := newTestService(t, Options{})
	ctx := context.Background()

	conf, err := svc.BeginSetDefault(ctx, 7, graceCard)
	require.NoError(t, err)

	mem.FailOn(upstream.OpSetDefault, errors.New("gateway declined"))
	_, err = svc.ConfirmSetDefault(ctx, 7, conf.Token)
	var mutationErr *cards.MutationError
	require.ErrorAs(t, err, &mutationErr)
	assert.Equal(t, "21", mutationErr.PaymentProfileID)

	view, err := svc.Cards(ctx, 7)
	require.NoError(t, err)
	assert.True(t, findCard(t, view, adaCard).IsDefault, "state unchanged after failure")

	mem.FailOn(upstream.OpSetDefault, nil)
	view, err = svc.ConfirmSetDefault(ctx, 7, conf.Token)
	require.NoError(t, err)
	assert.True(t, findCard(t, view, graceCard).IsDefault)
}

func TestConfirmRefusedWhileInFlight(t *testing.T) {
	guard := NewMemoryGuard()
	svc, mem := newTestService(t, Options{Guard: guard})
	ctx := context.Background()

	conf, err := svc.BeginSetDefault(ctx, 7, graceCard)
	require.NoError(t, err)

	release, err := guard.Acquire(ctx, inflightKey(7, "21"), time.Minute)
	require.NoError(t, err)
	_, err = svc.ConfirmSetDefault(ctx, 7, conf.Token)
	assert.ErrorIs(t, err, cards.ErrSubmitInFlight)
	for _, c := range mem.Calls() {
		assert.NotEqual(t, upstream.OpSetDefault, c.Op)
	}

	release()
	_, err = svc.ConfirmSetDefault(ctx, 7, conf.Token)
	assert.NoError(t, err)
}

func TestDeleteScopedToEntity(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	conf, err := svc.BeginDelete(ctx, 7, "11", "cg")
	require.NoError(t, err)
	assert.Equal(t, "entity cg", conf.Scope)

	_, err = svc.ConfirmSetDefault(ctx, 7, conf.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound, "kinds are not interchangeable")

	view, err := svc.ConfirmDelete(ctx, 7, conf.Token)
	require.NoError(t, err)
	ada := findCard(t, view, adaCard)
	assert.Equal(t, []string{"wc"}, ada.Entities)
	assert.ElementsMatch(t, []string{"cg", "vbc"}, ada.MissingEntities)

	_, err = svc.BeginDelete(ctx, 7, "21", "cg")
	assert.ErrorIs(t, err, cards.ErrEntityNotLinked)
}

func TestDeleteEverywhereRemovesCard(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	conf, err := svc.BeginDelete(ctx, 7, "12", "")
	require.NoError(t, err)
	assert.Equal(t, "all entities", conf.Scope)

	view, err := svc.ConfirmDelete(ctx, 7, conf.Token)
	require.NoError(t, err)
	require.Len(t, view.Cards, 1)
	assert.Equal(t, graceCard, view.Cards[0].Fingerprint)
}

func TestCancelAndExpiry(t *testing.T) {
	svc, _ := newTestService(t, Options{ConfirmationTTL: 20 * time.Millisecond})
	ctx := context.Background()

	conf, err := svc.BeginSetDefault(ctx, 7, graceCard)
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(7, conf.Token))
	_, err = svc.ConfirmSetDefault(ctx, 7, conf.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound)
	assert.ErrorIs(t, svc.Cancel(7, conf.Token), ErrConfirmationNotFound)

	conf, err = svc.BeginSetDefault(ctx, 7, graceCard)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = svc.ConfirmSetDefault(ctx, 7, conf.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound)
}

func TestOptimisticStrategy(t *testing.T) {
	svc, _ := newTestService(t, Options{Strategy: cards.StrategyOptimistic})
	ctx := context.Background()

	conf, err := svc.BeginSetDefault(ctx, 7, graceCard)
	require.NoError(t, err)
	view, err := svc.ConfirmSetDefault(ctx, 7, conf.Token)
	require.NoError(t, err)
	assert.True(t, findCard(t, view, graceCard).IsDefault)
}

func TestCreatePaymentProfileValidates(t *testing.T) {
	svc, mem := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.CreatePaymentProfile(ctx, domain.NewPaymentProfile{
		ClientID:    7,
		CardDetails: domain.CardDetails{CardNumber: "42", ExpirationDate: "12/29", CardCode: "1"},
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "cardDetails.cardNumber")
	assert.Contains(t, validationErr.Fields, "cardDetails.cardCode")

	_, err = svc.CreatePaymentProfile(ctx, domain.NewPaymentProfile{
		ClientID:    7,
		Entity:      "zz",
		CardDetails: domain.CardDetails{CardNumber: "4111 1111 1111 1111", ExpirationDate: "12/29", CardCode: "123"},
	})
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "entity")

	for _, c := range mem.Calls() {
		assert.NotEqual(t, upstream.OpCreate, c.Op)
	}
}

func TestCreatePaymentProfileGroupsNewCard(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	created, err := svc.CreatePaymentProfile(ctx, domain.NewPaymentProfile{
		ClientID:       7,
		CardDetails:    domain.CardDetails{CardNumber: "4111-1111-1111-5555", ExpirationDate: "12/29", CardCode: "123"},
		BillingDetails: domain.BillingDetails{FirstName: "  Katherine ", LastName: "Johnson"},
	})
	require.NoError(t, err)
	require.Len(t, created, 3)

	view, err := svc.Cards(ctx, 7)
	require.NoError(t, err)
	card := findCard(t, view, "5555-Katherine-Johnson")
	assert.Equal(t, []string{"cg", "vbc", "wc"}, card.Entities)
	assert.Empty(t, card.MissingEntities)
}

func TestAddNoteValidates(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.AddNote(ctx, domain.NewNote{ClientID: 7, Note: "   ", Author: "dana"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "note")

	note, err := svc.AddNote(ctx, domain.NewNote{ClientID: 7, Note: "call back", Author: " dana "})
	require.NoError(t, err)
	assert.Equal(t, "dana", note.Author)
}

func TestListEntitiesUsesCatalogueNames(t *testing.T) {
	svc, _ := newTestService(t, Options{Entities: config.EntityCatalogue{{Code: "wc", Name: "WholeSale"}}})

	entities, err := svc.ListEntities(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 3)
	assert.Equal(t, "WholeSale", entities[0].EntityName)
	assert.Equal(t, "cg", entities[1].EntityName)
}

func TestRefreshProjectsIntoLinkGraph(t *testing.T) {
	client := graph.NewMemoryClient()
	svc, _ := newTestService(t, Options{Links: linkstore.New(client)})

	_, err := svc.Cards(context.Background(), 7)
	require.NoError(t, err)

	writes := client.Writes()
	require.Len(t, writes, 2)
	assert.EqualValues(t, 7, writes[1].Params["clientId"])
	assert.Len(t, writes[1].Params["cards"], 2)
}

func TestProjectionFailureDoesNotFailRefresh(t *testing.T) {
	client := graph.NewMemoryClient().FailWith(errors.New("bolt down"))
	svc, _ := newTestService(t, Options{Links: linkstore.New(client)})

	view, err := svc.Cards(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, view.Cards, 2)
}

func TestSharedCardsDisabledWithoutGraph(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	_, err := svc.SharedCards(context.Background(), 7)
	assert.ErrorIs(t, err, linkstore.ErrDisabled)
}

func TestCloseClosesPanels(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	panel := svc.panel(7)
	svc.Close()
	assert.True(t, panel.Closed())
	assert.NotSame(t, panel, svc.panel(7))
}

func TestUpstreamFailureSurfaces(t *testing.T) {
	svc, mem := newTestService(t, Options{})
	mem.FailOn(upstream.OpFetch, upstream.ErrUnavailable)

	_, err := svc.Cards(context.Background(), 7)
	assert.ErrorIs(t, err, upstream.ErrUnavailable)
}

// gatedFetchClient holds the first fetch until released and fails every
// later one.
type gatedFetchClient struct {
	*upstream.MemoryClient
	entered chan struct{}
	release chan struct{}

	mu      sync.Mutex
	fetches int
}

func (g *gatedFetchClient) FetchClientDetail(ctx context.Context, clientID int64) (domain.ClientDetail, error) {
	g.mu.Lock()
	g.fetches++
	n := g.fetches
	g.mu.Unlock()

	if n > 1 {
		return domain.ClientDetail{}, context.DeadlineExceeded
	}
	close(g.entered)
	<-g.release
	return g.MemoryClient.FetchClientDetail(ctx, clientID)
}

func TestOverlappingCardsKeepSuccessfulOlderFetch(t *testing.T) {
	gated := &gatedFetchClient{
		MemoryClient: upstream.NewMemoryClient([]domain.ClientDetail{fixtureClient()}, nil),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	svc := NewCardService(gated, Options{Logger: logging.Discard()})
	t.Cleanup(svc.Close)
	ctx := context.Background()

	type result struct {
		view CardView
		err  error
	}
	first := make(chan result, 1)
	go func() {
		view, err := svc.Cards(ctx, 7)
		first <- result{view, err}
	}()
	<-gated.entered

	_, err := svc.Cards(ctx, 7)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(gated.release)
	r := <-first
	require.NoError(t, r.err)
	assert.Len(t, r.view.Cards, 2)

	_, err = svc.BeginSetDefault(ctx, 7, graceCard)
	assert.NoError(t, err, "the committed snapshot backs later dialogs")
}

func TestConfirmedMutationWithFailedRefreshReportsWarning(t *testing.T) {
	svc, mem := newTestService(t, Options{})
	ctx := context.Background()

	conf, err := svc.BeginSetDefault(ctx, 7, graceCard)
	require.NoError(t, err)

	mem.FailOn(upstream.OpFetch, upstream.ErrUnavailable)
	view, err := svc.ConfirmSetDefault(ctx, 7, conf.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), view.ClientID)
	assert.Contains(t, view.Warning, "set-default succeeded")

	var setDefaults int
	for _, call := range mem.Calls() {
		if call.Op == upstream.OpSetDefault {
			setDefaults++
		}
	}
	assert.Equal(t, 1, setDefaults)

	_, err = svc.ConfirmSetDefault(ctx, 7, conf.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound, "the change already happened")
}
