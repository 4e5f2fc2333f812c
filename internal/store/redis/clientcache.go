package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pasarela/internal/erp"

	"github.com/redis/go-redis/v9"
)

// ClientCache keeps ERP client records in Redis under a TTL so repeat lookups
// skip the round trip to Hansa.
type ClientCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewClientCache(rdb *redis.Client, ttl time.Duration) *ClientCache {
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	return &ClientCache{rdb: rdb, ttl: ttl}
}

func key(companyCode, clientCode string) string {
	return fmt.Sprintf("client:%s:%s", companyCode, clientCode)
}

func (c *ClientCache) Get(ctx context.Context, companyCode, clientCode string) (erp.Client, bool, error) {
	raw, err := c.rdb.Get(ctx, key(companyCode, clientCode)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return erp.Client{}, false, nil
		}
		return erp.Client{}, false, err
	}
	var cl erp.Client
	if err := json.Unmarshal(raw, &cl); err != nil {
		return erp.Client{}, false, err
	}
	return cl, true, nil
}

func (c *ClientCache) Put(ctx context.Context, companyCode, clientCode string, cl erp.Client) error {
	raw, err := json.Marshal(cl)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(companyCode, clientCode), raw, c.ttl).Err()
}
