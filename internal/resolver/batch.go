package resolver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"sakila-graphql/internal/observability"
)

type facetKey struct {
	facet  facet
	filmID int64
}

func (k facetKey) String() string {
	return fmt.Sprintf("%s:%d", k.facet, k.filmID)
}

// BatchState is the request-scoped facet cache. Repeated lookups of the same
// film facet within one request are served from it, and concurrent lookups of
// the same key share one query.
type BatchState struct {
	mu          sync.Mutex
	values      map[facetKey]any
	inflight    singleflight.Group
	cacheHits   int32
	cacheMisses int32
}

type batchStateKey struct{}

// NewBatchingContext injects a request-scoped batch state for resolvers. A
// context that already carries one is returned unchanged.
func NewBatchingContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := GetBatchState(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, batchStateKey{}, &BatchState{
		values: make(map[facetKey]any),
	})
}

// GetBatchState retrieves the batch state from context (exported for middleware access).
func GetBatchState(ctx context.Context) (*BatchState, bool) {
	if ctx == nil {
		return nil, false
	}

	state, ok := ctx.Value(batchStateKey{}).(*BatchState)
	return state, ok
}

func (s *BatchState) load(key facetKey) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	return v, ok
}

func (s *BatchState) store(key facetKey, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = v
}

// IncrementCacheHit increments the cache hit counter.
func (s *BatchState) IncrementCacheHit() {
	atomic.AddInt32(&s.cacheHits, 1)
}

// IncrementCacheMiss increments the cache miss counter.
func (s *BatchState) IncrementCacheMiss() {
	atomic.AddInt32(&s.cacheMisses, 1)
}

// GetCacheHits returns the current cache hit count.
func (s *BatchState) GetCacheHits() int32 {
	return atomic.LoadInt32(&s.cacheHits)
}

// GetCacheMisses returns the current cache miss count.
func (s *BatchState) GetCacheMisses() int32 {
	return atomic.LoadInt32(&s.cacheMisses)
}

func (s *BatchState) hit(ctx context.Context, f facet) {
	s.IncrementCacheHit()
	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordBatchCacheHit(ctx, string(f))
	}
}

func (s *BatchState) miss(ctx context.Context, f facet) {
	s.IncrementCacheMiss()
	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordBatchCacheMiss(ctx, string(f))
	}
}

// cachedLookup resolves one facet of one film through the request cache.
// Without a batch state in ctx it calls fetch directly. The shared fetch is
// detached from the cancellation of whichever caller started it.
func cachedLookup[T any](ctx context.Context, f facet, filmID int64, fetch func(context.Context) (T, error)) (T, error) {
	state, ok := GetBatchState(ctx)
	if !ok {
		return fetch(ctx)
	}

	key := facetKey{facet: f, filmID: filmID}
	if v, ok := state.load(key); ok {
		state.hit(ctx, f)
		return v.(T), nil
	}
	state.miss(ctx, f)

	v, err, _ := state.inflight.Do(key.String(), func() (any, error) {
		val, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		state.store(key, val)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// cachedBatch resolves one facet for many films. Cached films are served
// locally and the remainder is fetched in a single call; films the fetch does
// not mention receive absent.
func cachedBatch[T any](ctx context.Context, f facet, filmIDs []int64, absent T, fetch func(context.Context, []int64) (map[int64]T, error)) (map[int64]T, error) {
	state, hasState := GetBatchState(ctx)
	result := make(map[int64]T, len(filmIDs))
	missing := make([]int64, 0, len(filmIDs))

	for _, id := range filmIDs {
		if hasState {
			if v, ok := state.load(facetKey{facet: f, filmID: id}); ok {
				state.hit(ctx, f)
				result[id] = v.(T)
				continue
			}
			state.miss(ctx, f)
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return result, nil
	}

	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordBatchFilmCount(ctx, int64(len(missing)), string(f))
		metrics.RecordBatchQueriesSaved(ctx, int64(len(missing)-1), string(f))
	}

	fetched, err := fetch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, id := range missing {
		v, ok := fetched[id]
		if !ok {
			v = absent
		}
		result[id] = v
		if hasState {
			state.store(facetKey{facet: f, filmID: id}, v)
		}
	}
	return result, nil
}
