package prefetch

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storekit/wallet-bridge/internal/wallet"
)

const defaultTTL = 10 * time.Minute

// Cache keeps the most recent transaction info per surface so a returning
// page can warm the payment sheet before real pricing is known. Entries are
// always served as estimates; the authoritative amount is fetched again on
// every button click.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func key(surface, productID string) string {
	parts := []string{"wallet", "prefetch", surface}
	if productID != "" {
		parts = append(parts, productID)
	}
	return strings.Join(parts, ":")
}

// Store records the last transaction info seen for a surface.
func (c *Cache) Store(ctx context.Context, surface, productID string, info wallet.TransactionInfo) error {
	if c == nil || c.client == nil || surface == "" {
		return nil
	}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(surface, productID), data, c.ttl).Err()
}

// Load returns the cached transaction info for a surface. It reports whether
// an entry existed; a miss is not an error.
func (c *Cache) Load(ctx context.Context, surface, productID string) (wallet.TransactionInfo, bool, error) {
	if c == nil || c.client == nil || surface == "" {
		return wallet.TransactionInfo{}, false, nil
	}
	data, err := c.client.Get(ctx, key(surface, productID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return wallet.TransactionInfo{}, false, nil
		}
		return wallet.TransactionInfo{}, false, err
	}
	var info wallet.TransactionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return wallet.TransactionInfo{}, false, err
	}
	return info, true, nil
}
