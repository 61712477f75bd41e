package generator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/quickpay/backend/internal/domain"
)

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumClients = 10
	cfg.Now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	a, err := New(cfg).Generate(context.Background())
	require.NoError(t, err)
	b, err := New(cfg).Generate(context.Background())
	require.NoError(t, err)

	rawA, _ := json.Marshal(a.Clients)
	rawB, _ := json.Marshal(b.Clients)
	assert.JSONEq(t, string(rawA), string(rawB))
}

func TestGenerateEncodings(t *testing.T) {
	for _, tc := range []struct {
		encoding Encoding
		wantRaw  any
	}{
		{EncodingV1, "string"},
		{EncodingV2, "bool"},
	} {
		cfg := DefaultConfig()
		cfg.NumClients = 5
		cfg.Encoding = tc.encoding
		dataset, err := New(cfg).Generate(context.Background())
		require.NoError(t, err)

		for _, client := range dataset.Clients {
			for _, p := range client.PaymentProfiles {
				switch p.IsDefault.Raw().(type) {
				case string:
					assert.Equal(t, "string", tc.wantRaw)
				case bool:
					assert.Equal(t, "bool", tc.wantRaw)
				default:
					t.Fatalf("unexpected flag type %T", p.IsDefault.Raw())
				}
			}
		}
	}
}

func TestGenerateProfilesAreUniqueAndLinked(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumClients = 20
	cfg.MalformedChance = 0
	dataset, err := New(cfg).Generate(context.Background())
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, client := range dataset.Clients {
		codes := map[string]bool{}
		for _, code := range client.EntityCodes() {
			codes[code] = true
		}
		require.NotEmpty(t, client.PaymentProfiles)
		for _, p := range client.PaymentProfiles {
			assert.False(t, seen[p.PaymentProfileID], "duplicate profile id %s", p.PaymentProfileID)
			seen[p.PaymentProfileID] = true
			assert.True(t, codes[p.Entity])
			require.NotNil(t, p.BillingDetails)
			assert.Len(t, p.LastFour, 4)
		}
	}
}

func TestGenerateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(DefaultConfig()).Generate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteDataset(t *testing.T) {
	dir := t.TempDir()
	dataset := Dataset{Clients: []domain.ClientDetail{{Client: domain.Client{ClientID: 42}}}}
	require.NoError(t, WriteDataset(dataset, dir))

	matches, err := filepath.Glob(filepath.Join(dir, FixturePattern))
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "client-42.json")}, matches)

	raw, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"clientID": 42`)
}
