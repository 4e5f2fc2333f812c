package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc obtains a fresh token from the processor.
type FetchFunc func(ctx context.Context) (Token, error)

// TokenSource caches bearer tokens keyed by (provider, companyCode). Token
// acquisition is single-flight per key: concurrent callers needing a fresh
// token await the in-flight fetch instead of issuing redundant auth calls.
// Tokens are treated as expired skew before their nominal expiry.
type TokenSource struct {
	mu     sync.RWMutex
	tokens map[string]Token
	group  singleflight.Group
	skew   time.Duration
}

func NewTokenSource(skew time.Duration) *TokenSource {
	if skew == 0 {
		skew = time.Minute
	}
	return &TokenSource{
		tokens: make(map[string]Token),
		skew:   skew,
	}
}

// Get returns a cached non-expired token for the key, or runs fetch under
// single-flight and caches the result. Expired entries are evicted on read.
func (s *TokenSource) Get(ctx context.Context, providerName, companyCode string, fetch FetchFunc) (Token, error) {
	key := providerName + ":" + companyCode

	s.mu.RLock()
	tok, ok := s.tokens[key]
	s.mu.RUnlock()
	if ok && !tok.ExpiredWithin(s.skew) {
		return tok, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// Re-check inside the flight: a concurrent caller may have refreshed
		// the entry while this goroutine waited on the group.
		s.mu.RLock()
		tok, ok := s.tokens[key]
		s.mu.RUnlock()
		if ok && !tok.ExpiredWithin(s.skew) {
			return tok, nil
		}

		fresh, err := fetch(ctx)
		if err != nil {
			return Token{}, err
		}

		s.mu.Lock()
		s.tokens[key] = fresh
		s.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		s.mu.Lock()
		if old, ok := s.tokens[key]; ok && old.ExpiredWithin(s.skew) {
			delete(s.tokens, key)
		}
		s.mu.Unlock()
		return Token{}, err
	}
	return v.(Token), nil
}

// Invalidate drops the cached token for a key, forcing the next Get to fetch.
func (s *TokenSource) Invalidate(providerName, companyCode string) {
	s.mu.Lock()
	delete(s.tokens, providerName+":"+companyCode)
	s.mu.Unlock()
}
