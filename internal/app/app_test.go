package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/quickpay/backend/internal/config"
	"github.com/vanshika/quickpay/backend/internal/linkstore"
	"github.com/vanshika/quickpay/backend/internal/logging"
	"github.com/vanshika/quickpay/backend/internal/service"
	"github.com/vanshika/quickpay/backend/internal/upstream"
)

func fixtureConfig() config.Config {
	return config.Config{
		Upstream: config.UpstreamConfig{Mode: "fixtures", RatePerSecond: 10, Burst: 1},
		Cards: config.CardsConfig{
			DefaultStrategy: "refetch",
			PanelIdleTTL:    time.Minute,
			ConfirmationTTL: time.Minute,
		},
		Entities: config.DefaultEntities(),
	}
}

func TestBuildFixturesWithoutOptionalStores(t *testing.T) {
	rt, err := Build(context.Background(), fixtureConfig(), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	assert.IsType(t, &upstream.MemoryClient{}, rt.Upstream)
	assert.IsType(t, linkstore.NopStore{}, rt.Links)
	assert.IsType(t, &service.MemoryGuard{}, rt.Guard)

	page, err := rt.Cards.ListClients(context.Background(), upstream.ClientFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Clients, 1)

	view, err := rt.Cards.Cards(context.Background(), page.Clients[0].ClientID)
	require.NoError(t, err)
	assert.Equal(t, page.Clients[0].ClientID, view.ClientID)
}

func TestBuildRejectsUnknownStrategy(t *testing.T) {
	cfg := fixtureConfig()
	cfg.Cards.DefaultStrategy = "eventual"

	_, err := Build(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}

func TestCloseRunsInReverseOrder(t *testing.T) {
	var order []int
	rt := &Runtime{closers: []func(context.Context) error{
		func(context.Context) error { order = append(order, 1); return nil },
		func(context.Context) error { order = append(order, 2); return nil },
	}}

	require.NoError(t, rt.Close(context.Background()))
	assert.Equal(t, []int{2, 1}, order)
	require.NoError(t, rt.Close(context.Background()))
	assert.Equal(t, []int{2, 1}, order, "second close is a no-op")
}
