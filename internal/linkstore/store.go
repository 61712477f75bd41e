// Package linkstore projects card groups into the link graph so cards held
// by several clients can be found. It is never read back for grouping.
package linkstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vanshika/quickpay/backend/internal/cards"
	"github.com/vanshika/quickpay/backend/internal/domain"
	"github.com/vanshika/quickpay/backend/internal/graph"
)

// Store records which clients hold which cards.
type Store interface {
	ProjectClientCards(ctx context.Context, clientID int64, groups []cards.CardGroup) error
	SharedCards(ctx context.Context, clientID int64) ([]domain.SharedCard, error)
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Enabled() bool
}

// ErrDisabled is returned by lookups when no graph is configured.
var ErrDisabled = errors.New("card link graph is not configured")

// GraphStore writes the projection through a graph.Client.
type GraphStore struct {
	client graph.Client
	now    func() time.Time
}

// New returns a GraphStore backed by client.
func New(client graph.Client) *GraphStore {
	return &GraphStore{client: client, now: time.Now}
}

// WithClock overrides the sync timestamp source.
func (s *GraphStore) WithClock(now func() time.Time) *GraphStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *GraphStore) Enabled() bool { return true }

func (s *GraphStore) Ping(ctx context.Context) error {
	return s.client.VerifyConnectivity(ctx)
}

// EnsureSchema creates the uniqueness constraints the MERGE statements rely on.
func (s *GraphStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.client.ExecuteWrite(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ProjectClientCards replaces the client's holdings with the given groups.
func (s *GraphStore) ProjectClientCards(ctx context.Context, clientID int64, groups []cards.CardGroup) error {
	if clientID <= 0 {
		return fmt.Errorf("invalid client id %d", clientID)
	}

	syncedAt := s.now().UTC().Format(time.RFC3339)
	if _, err := s.client.ExecuteWrite(ctx, clearClientCardsCypher, map[string]any{
		"clientId": clientID,
		"syncedAt": syncedAt,
	}); err != nil {
		return fmt.Errorf("clear cards for client %d: %w", clientID, err)
	}

	if len(groups) == 0 {
		return nil
	}

	params := map[string]any{
		"clientId": clientID,
		"syncedAt": syncedAt,
		"cards":    cardParams(groups),
	}
	if _, err := s.client.ExecuteWrite(ctx, projectCardsCypher, params); err != nil {
		return fmt.Errorf("project cards for client %d: %w", clientID, err)
	}
	return nil
}

// SharedCards lists the client's cards that other clients also hold.
func (s *GraphStore) SharedCards(ctx context.Context, clientID int64) ([]domain.SharedCard, error) {
	res, err := s.client.ExecuteRead(ctx, sharedCardsCypher, map[string]any{"clientId": clientID})
	if err != nil {
		return nil, fmt.Errorf("shared cards for client %d: %w", clientID, err)
	}

	shared := make([]domain.SharedCard, 0, len(res.Records))
	for _, record := range res.Records {
		ids := toInt64Slice(record["clientIds"])
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		shared = append(shared, domain.SharedCard{
			FingerprintHash: toString(record["fingerprintHash"]),
			LastFour:        toString(record["lastFour"]),
			ClientIDs:       ids,
		})
	}
	return shared, nil
}

// HashFingerprint is the stored form of a card fingerprint; the raw value
// contains the cardholder name.
func HashFingerprint(fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:])
}

func cardParams(groups []cards.CardGroup) []map[string]any {
	out := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		links := make([]map[string]any, 0, len(g.Members))
		for _, m := range g.Members {
			links = append(links, map[string]any{
				"entityCode":       m.Entity,
				"paymentProfileId": m.PaymentProfileID,
			})
		}
		out = append(out, map[string]any{
			"fingerprintHash": HashFingerprint(g.Fingerprint),
			"lastFour":        g.Representative.LastFour,
			"cardType":        g.Representative.CardType,
			"isDefault":       g.IsDefault,
			"links":           links,
		})
	}
	return out
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func toInt64Slice(val any) []int64 {
	items, ok := val.([]any)
	if !ok {
		if typed, ok := val.([]int64); ok {
			return append([]int64(nil), typed...)
		}
		return nil
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case int64:
			out = append(out, v)
		case int:
			out = append(out, int64(v))
		case float64:
			out = append(out, int64(v))
		}
	}
	return out
}

// NopStore is used when GRAPH_URI is empty.
type NopStore struct{}

func (NopStore) ProjectClientCards(context.Context, int64, []cards.CardGroup) error { return nil }

func (NopStore) SharedCards(context.Context, int64) ([]domain.SharedCard, error) {
	return nil, ErrDisabled
}

func (NopStore) EnsureSchema(context.Context) error { return nil }
func (NopStore) Ping(context.Context) error         { return nil }
func (NopStore) Enabled() bool                      { return false }

var schemaStatements = []string{
	`CREATE CONSTRAINT client_id IF NOT EXISTS FOR (c:Client) REQUIRE c.clientId IS UNIQUE`,
	`CREATE CONSTRAINT card_fingerprint IF NOT EXISTS FOR (k:Card) REQUIRE k.fingerprintHash IS UNIQUE`,
	`CREATE CONSTRAINT entity_code IF NOT EXISTS FOR (e:Entity) REQUIRE e.code IS UNIQUE`,
}

const clearClientCardsCypher = `
MERGE (c:Client {clientId: $clientId})
SET c.syncedAt = $syncedAt
WITH c
OPTIONAL MATCH (c)-[h:HOLDS]->(k:Card)
OPTIONAL MATCH (k)-[l:LINKED_TO {clientId: $clientId}]->(:Entity)
DELETE h, l
`

const projectCardsCypher = `
MATCH (c:Client {clientId: $clientId})
UNWIND $cards AS card
MERGE (k:Card {fingerprintHash: card.fingerprintHash})
SET k.lastFour = card.lastFour,
    k.cardType = card.cardType
MERGE (c)-[h:HOLDS]->(k)
SET h.isDefault = card.isDefault,
    h.syncedAt = $syncedAt
WITH k, card
UNWIND card.links AS link
MERGE (e:Entity {code: link.entityCode})
MERGE (k)-[l:LINKED_TO {clientId: $clientId, entityCode: link.entityCode}]->(e)
SET l.paymentProfileId = link.paymentProfileId
`

const sharedCardsCypher = `
MATCH (c:Client {clientId: $clientId})-[:HOLDS]->(k:Card)<-[:HOLDS]-(other:Client)
WHERE other.clientId <> $clientId
RETURN k.fingerprintHash AS fingerprintHash,
       k.lastFour AS lastFour,
       collect(DISTINCT other.clientId) AS clientIds
ORDER BY fingerprintHash
`
