package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/goliatone/go-whatsflow/ratelimit"
)

const rateLimitStateCacheKeyPrefix = "go-whatsflow::ratelimit_state::v1"

// CachedRateLimitStateStore reads through a go-repository-cache service and
// drops the cached entry after every write.
type CachedRateLimitStateStore struct {
	base  ratelimit.StateStore
	cache repositorycache.CacheService
}

func NewCachedRateLimitStateStore(
	base ratelimit.StateStore,
	cacheService repositorycache.CacheService,
) (*CachedRateLimitStateStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base rate-limit state store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: rate-limit cache service is required")
	}
	return &CachedRateLimitStateStore{base: base, cache: cacheService}, nil
}

// RateLimitStateCacheKey builds go-whatsflow::ratelimit_state::v1::<api_key_id>::<bucket>
// from the normalized key, each segment path-escaped.
func RateLimitStateCacheKey(key core.RateLimitKey) (string, error) {
	normalized := ratelimit.NormalizeKey(key)
	if err := validateRateLimitKey(normalized); err != nil {
		return "", err
	}
	return strings.Join([]string{
		rateLimitStateCacheKeyPrefix,
		url.PathEscape(normalized.APIKeyID),
		url.PathEscape(normalized.Bucket),
	}, "::"), nil
}

func (s *CachedRateLimitStateStore) Get(ctx context.Context, key core.RateLimitKey) (ratelimit.State, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: cached rate-limit state store is not configured")
	}
	normalized := ratelimit.NormalizeKey(key)
	cacheKey, err := RateLimitStateCacheKey(normalized)
	if err != nil {
		return ratelimit.State{}, err
	}

	state, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (ratelimit.State, error) {
		fetched, fetchErr := s.base.Get(ctx, normalized)
		if fetchErr != nil {
			return ratelimit.State{}, fetchErr
		}
		return cloneRateLimitState(fetched), nil
	})
	if err != nil {
		return ratelimit.State{}, err
	}
	return cloneRateLimitState(state), nil
}

func (s *CachedRateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached rate-limit state store is not configured")
	}
	state.Key = ratelimit.NormalizeKey(state.Key)
	cacheKey, err := RateLimitStateCacheKey(state.Key)
	if err != nil {
		return err
	}
	if err := s.base.Upsert(ctx, state); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func cloneRateLimitState(state ratelimit.State) ratelimit.State {
	cloned := state
	cloned.Key = ratelimit.NormalizeKey(state.Key)
	cloned.ResetAt = copyTimePointer(state.ResetAt)
	cloned.ThrottledUntil = copyTimePointer(state.ThrottledUntil)
	if state.RetryAfter != nil {
		value := *state.RetryAfter
		cloned.RetryAfter = &value
	}
	return cloned
}
