package poster

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kinorec/internal/metrics"
)

// Store persists resolved poster URLs across restarts.
type Store interface {
	GetPoster(ctx context.Context, externalID string) (string, bool, error)
	PutPoster(ctx context.Context, externalID, posterURL string) error
}

// Result is the outcome of resolving one poster. Exactly one of URL and Err is set.
type Result struct {
	ExternalID string
	URL        string
	Err        error
}

// Resolver looks up poster URLs for a batch of items concurrently.
// A failure for one item never affects the others.
type Resolver struct {
	fetcher     Fetcher
	cache       *Cache
	store       Store
	concurrency int
	logger      *zap.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStore adds a persistent store consulted after the in-memory cache.
func WithStore(s Store) ResolverOption {
	return func(r *Resolver) { r.store = s }
}

// WithResolverLogger sets a logger for cache and store failures.
func WithResolverLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver. cache may be nil; concurrency below 1 means 1.
func NewResolver(fetcher Fetcher, cache *Cache, concurrency int, opts ...ResolverOption) *Resolver {
	if concurrency < 1 {
		concurrency = 1
	}
	r := &Resolver{
		fetcher:     fetcher,
		cache:       cache,
		concurrency: concurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns one Result per id, in the same order as ids.
func (r *Resolver) Resolve(ctx context.Context, ids []string) []Result {
	results := make([]Result, len(ids))
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = Result{ExternalID: id, Err: &FetchError{ExternalID: id, Err: ctx.Err()}}
				return
			}
			defer func() { <-sem }()
			url, err := r.resolveOne(ctx, id)
			results[i] = Result{ExternalID: id, URL: url, Err: err}
		}(i, id)
	}
	wg.Wait()
	return results
}

func (r *Resolver) resolveOne(ctx context.Context, id string) (string, error) {
	if r.cache != nil {
		if u, ok := r.cache.Get(id); ok {
			metrics.RecordPosterFetch("hit")
			return u, nil
		}
	}
	if r.store != nil {
		u, ok, err := r.store.GetPoster(ctx, id)
		if err != nil {
			r.logger.Warn("poster store lookup failed", zap.String("external_id", id), zap.Error(err))
		} else if ok {
			metrics.RecordPosterFetch("hit")
			if r.cache != nil {
				r.cache.Set(id, u)
			}
			return u, nil
		}
	}
	u, err := r.fetcher.FetchPosterURL(ctx, id)
	if err != nil {
		r.logger.Debug("poster unavailable", zap.String("external_id", id), zap.Error(err))
		return "", err
	}
	if r.cache != nil {
		r.cache.Set(id, u)
	}
	if r.store != nil {
		if err := r.store.PutPoster(ctx, id, u); err != nil {
			r.logger.Warn("poster store write failed", zap.String("external_id", id), zap.Error(err))
		}
	}
	return u, nil
}
