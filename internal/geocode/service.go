package geocode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// UnknownPlace labels a session whose reverse lookup failed.
const UnknownPlace = "Unknown location"

// Service wraps a resolver with a process-wide cache, request coalescing and
// a fixed fallback label. A failed lookup is not an error state for callers.
type Service struct {
	resolver Resolver
	cache    *PlaceCache
	group    singleflight.Group
	logger   zerolog.Logger

	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// NewService creates a geocode service around the given resolver and cache.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewService(resolver Resolver, cache *PlaceCache, logger zerolog.Logger) (*Service, error) {
	s := &Service{
		resolver: resolver,
		cache:    cache,
		logger:   logger,
	}

	m := meter()

	var err error
	s.hits, err = m.Int64Counter(
		"geocode.cache.hits",
		metric.WithDescription("Reverse geocode lookups served from cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cache hit counter: %w", err)
	}

	s.misses, err = m.Int64Counter(
		"geocode.cache.misses",
		metric.WithDescription("Reverse geocode lookups that reached the resolver"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cache miss counter: %w", err)
	}

	return s, nil
}

// Place resolves the label for a coordinate. Concurrent lookups for the same
// rounded key are coalesced into one resolver call. Failures yield the
// UnknownPlace fallback; the fallback is not cached, so a later session at
// the same spot may still resolve.
func (s *Service) Place(ctx context.Context, lat, lon float64) string {
	key := Key(lat, lon)
	if place, ok := s.cache.Get(key); ok {
		s.hits.Add(ctx, 1)
		return place
	}
	s.misses.Add(ctx, 1)

	v, err, _ := s.group.Do(key, func() (any, error) {
		place, err := s.resolver.Resolve(ctx, lat, lon)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, place)
		return place, nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Reverse geocode failed, using fallback label")
		return UnknownPlace
	}
	return v.(string)
}

// CacheSize returns the number of resolved labels held in the cache.
func (s *Service) CacheSize() int {
	return s.cache.Len()
}
