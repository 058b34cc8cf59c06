package gateway

import (
	"context"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/core"
)

const accountsKey = "accounts"

// CachedLookups caches category and account lists in front of a LookupReader.
type CachedLookups struct {
	next       LookupReader
	categories *cache.LRUCache[[]core.Category]
	accounts   *cache.LRUCache[[]core.Account]
}

func NewCachedLookups(next LookupReader, size int, ttl time.Duration) *CachedLookups {
	return &CachedLookups{
		next:       next,
		categories: cache.NewLRUCache[[]core.Category](size, ttl),
		accounts:   cache.NewLRUCache[[]core.Account](1, ttl),
	}
}

func (c *CachedLookups) ListCategories(ctx context.Context, txType core.TransactionType) ([]core.Category, error) {
	key := "categories:" + string(txType)
	return c.categories.GetOrLoad(ctx, key, func(ctx context.Context) ([]core.Category, error) {
		return c.next.ListCategories(ctx, txType)
	})
}

func (c *CachedLookups) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return c.accounts.GetOrLoad(ctx, accountsKey, c.next.ListAccounts)
}

// Invalidate drops every cached list.
func (c *CachedLookups) Invalidate() {
	c.categories.Purge()
	c.accounts.Purge()
}

// Cleaners exposes the caches to a cache.Manager sweep.
func (c *CachedLookups) Cleaners() []cache.Cleaner {
	return []cache.Cleaner{c.categories, c.accounts}
}
