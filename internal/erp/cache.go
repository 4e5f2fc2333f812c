package erp

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ClientCache caches ERP client lookups. Implementations bound entries with a
// TTL; a miss is (Client{}, false, nil).
type ClientCache interface {
	Get(ctx context.Context, companyCode, clientCode string) (Client, bool, error)
	Put(ctx context.Context, companyCode, clientCode string, c Client) error
}

// cachedHansa decorates a Hansa with a client cache. Only GetClient is
// cached; invoices, receipts and installments change too often to be worth
// staleness.
type cachedHansa struct {
	Hansa
	cache ClientCache
}

// WithClientCache wraps h so client lookups hit the cache first.
func WithClientCache(h Hansa, cache ClientCache) Hansa {
	if cache == nil {
		return h
	}
	return &cachedHansa{Hansa: h, cache: cache}
}

func (c *cachedHansa) GetClient(ctx context.Context, companyCode, clientCode string) (Client, error) {
	if cached, ok, err := c.cache.Get(ctx, companyCode, clientCode); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Warn().Err(err).Str("client_code", clientCode).Msg("client cache read failed")
	}

	cl, err := c.Hansa.GetClient(ctx, companyCode, clientCode)
	if err != nil {
		return Client{}, err
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := c.cache.Put(cctx, companyCode, clientCode, cl); err != nil {
		log.Warn().Err(err).Str("client_code", clientCode).Msg("client cache write failed")
	}
	return cl, nil
}
