package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*ResultCache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewResultCache(client, time.Hour), srv
}

func TestResultCacheStoreAndLookup(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	record := json.RawMessage(`{"invoice_number":"INV-1","external_id":"PAY-1","status":"exactly match"}`)
	c.StoreRecord(ctx, record, []string{"INV-1"}, []string{"PAY-1"})

	hits, missing, err := c.LookupInvoices(ctx, []string{"INV-1", "INV-2"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.JSONEq(t, string(record), string(hits[0]))
	require.Equal(t, []string{"INV-2"}, missing)

	hits, missing, err = c.LookupPayments(ctx, []string{"PAY-1"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Empty(t, missing)
}

func TestResultCacheDeduplicatesSharedRecords(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	// A multi-payment record is cached under both external ids
	record := json.RawMessage(`{"invoice_number":"INV-1","external_id":["PAY-1","PAY-2"]}`)
	c.StoreRecord(ctx, record, []string{"INV-1"}, []string{"PAY-1", "PAY-2"})

	hits, missing, err := c.LookupPayments(ctx, []string{"PAY-1", "PAY-2"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Empty(t, missing)
}

func TestResultCacheExpiry(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	c.StoreRecord(ctx, json.RawMessage(`{"invoice_number":"INV-1"}`), []string{"INV-1"}, nil)

	srv.FastForward(2 * time.Hour)

	hits, missing, err := c.LookupInvoices(ctx, []string{"INV-1"})
	require.NoError(t, err)
	require.Empty(t, hits)
	require.Equal(t, []string{"INV-1"}, missing)
}

func TestResultCacheNilClient(t *testing.T) {
	var c *ResultCache
	ctx := context.Background()

	c.StoreRecord(ctx, json.RawMessage(`{}`), []string{"INV-1"}, nil)

	hits, missing, err := c.LookupInvoices(ctx, []string{"INV-1"})
	require.NoError(t, err)
	require.Empty(t, hits)
	require.Equal(t, []string{"INV-1"}, missing)
}
