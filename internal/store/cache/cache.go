// Package cache stores previously assembled match records in Redis so
// repeat searches for the same invoice numbers or external ids skip the
// database and matching passes entirely.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payment-reconciliation-service/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// New creates a new Redis client
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: ping: %w", err)
	}

	return client, nil
}

// ResultCache keeps match records keyed by invoice number and by payment
// external id. A nil client disables caching; every method then reports a
// miss or does nothing, so the service runs unchanged without Redis.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResultCache wraps a Redis client as a match record cache
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	return &ResultCache{client: client, ttl: ttl}
}

func invoiceKey(number string) string {
	return "recon:inv:" + number
}

func paymentKey(externalID string) string {
	return "recon:pay:" + externalID
}

// LookupInvoices returns the cached records for the given invoice numbers
// and the numbers that had no cache entry.
func (c *ResultCache) LookupInvoices(ctx context.Context, numbers []string) ([]json.RawMessage, []string, error) {
	return c.lookup(ctx, numbers, invoiceKey)
}

// LookupPayments returns the cached records for the given external ids and
// the ids that had no cache entry.
func (c *ResultCache) LookupPayments(ctx context.Context, externalIDs []string) ([]json.RawMessage, []string, error) {
	return c.lookup(ctx, externalIDs, paymentKey)
}

func (c *ResultCache) lookup(ctx context.Context, ids []string, key func(string) string) ([]json.RawMessage, []string, error) {
	if c == nil || c.client == nil || len(ids) == 0 {
		return nil, ids, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("cache: mget: %w", err)
	}

	var hits []json.RawMessage
	var missing []string
	seen := make(map[string]struct{})
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		// Identical records may be cached under several ids
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		hits = append(hits, json.RawMessage(s))
	}

	return hits, missing, nil
}

// StoreRecord caches one match record under every invoice number and
// external id it covers. Failures are logged and swallowed; the cache is
// an optimization, never a correctness dependency.
func (c *ResultCache) StoreRecord(ctx context.Context, record json.RawMessage, invoiceNumbers, externalIDs []string) {
	if c == nil || c.client == nil {
		return
	}

	log := logger.GetGlobalLogger().WithComponent("cache")

	pipe := c.client.Pipeline()
	for _, number := range invoiceNumbers {
		pipe.Set(ctx, invoiceKey(number), string(record), c.ttl)
	}
	for _, id := range externalIDs {
		pipe.Set(ctx, paymentKey(id), string(record), c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		log.WithError(err).Warn("Failed to cache match record")
	}
}
