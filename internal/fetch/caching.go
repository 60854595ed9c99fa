package fetch

import (
	"context"
	"fmt"

	"hlsengine/internal/cache"
	"hlsengine/internal/models"
)

// CachingFetcher serves segment bytes from a SegmentCache and fills it from
// the wrapped Fetcher on a miss. Text resources are never cached.
type CachingFetcher struct {
	next  Fetcher
	cache *cache.SegmentCache
}

// NewCachingFetcher wraps next with sc.
func NewCachingFetcher(next Fetcher, sc *cache.SegmentCache) *CachingFetcher {
	return &CachingFetcher{next: next, cache: sc}
}

// Key returns the cache key of a resource and optional byte range.
func Key(url string, r *models.ByteRange) string {
	if r == nil {
		return url
	}
	return fmt.Sprintf("%s#%d-%d", url, r.Start, r.End)
}

// FetchText implements Fetcher.
func (f *CachingFetcher) FetchText(ctx context.Context, url string) (string, error) {
	return f.next.FetchText(ctx, url)
}

// FetchBytes implements Fetcher.
func (f *CachingFetcher) FetchBytes(ctx context.Context, url string, r *models.ByteRange) ([]byte, error) {
	key := Key(url, r)
	if data, ok := f.cache.Get(key); ok {
		return data, nil
	}
	data, err := f.next.FetchBytes(ctx, url, r)
	if err != nil {
		return nil, err
	}
	f.cache.Set(key, data)
	return data, nil
}
