package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vanshika/quickpay/backend/internal/cards"
)

// InflightGuard serialises mutations on one (client, payment profile) pair.
// Acquire returns cards.ErrSubmitInFlight while another holder owns key.
type InflightGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

func inflightKey(clientID int64, paymentProfileID string) string {
	return fmt.Sprintf("%d:%s", clientID, paymentProfileID)
}

// MemoryGuard keeps locks in process memory. Locks expire after ttl so a
// crashed submit cannot wedge a card.
type MemoryGuard struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

// NewMemoryGuard returns an empty in-process guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]time.Time), nowFn: time.Now}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.nowFn()
	if until, ok := g.held[key]; ok && now.Before(until) {
		return nil, cards.ErrSubmitInFlight
	}
	until := now.Add(ttl)
	g.held[key] = until
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.held[key] == until {
			delete(g.held, key)
		}
	}, nil
}

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares locks between server replicas using SET NX PX.
type RedisGuard struct {
	client *redis.Client
	prefix string
}

// NewRedisGuard builds a guard storing keys under prefix.
func NewRedisGuard(client *redis.Client, prefix string) *RedisGuard {
	if prefix == "" {
		prefix = "quickpay:inflight:"
	}
	return &RedisGuard{client: client, prefix: prefix}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	fullKey := g.prefix + key
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire in-flight lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, cards.ErrSubmitInFlight
	}
	return func() {
		// The request context may already be done; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, g.client, []string{fullKey}, token).Err()
	}, nil
}

// Ping checks the lock store.
func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}
