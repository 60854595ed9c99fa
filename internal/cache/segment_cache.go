package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hlsengine/internal/logger"
)

// ActiveSegmentsProvider returns the set of keys that must survive eviction.
type ActiveSegmentsProvider func() map[string]struct{}

// SegmentCache is a thread-safe, in-memory cache of fetched segment bytes.
// Entries not reported by the ActiveSegmentsProvider are evicted
// periodically once Start has been called, or on demand by RunEviction.
type SegmentCache struct {
	mutex                  sync.RWMutex
	cache                  map[string][]byte
	size                   int64
	logger                 logger.Logger
	activeSegmentsProvider ActiveSegmentsProvider
	interval               time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
}

// New creates a SegmentCache. A non-positive interval means 10 seconds.
func New(log logger.Logger, provider ActiveSegmentsProvider, interval time.Duration) *SegmentCache {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SegmentCache{
		cache:                  make(map[string][]byte),
		logger:                 log,
		activeSegmentsProvider: provider,
		interval:               interval,
		ctx:                    ctx,
		cancel:                 cancel,
		done:                   make(chan struct{}),
	}
}

// SetProvider replaces the active-key provider.
func (sc *SegmentCache) SetProvider(provider ActiveSegmentsProvider) {
	sc.mutex.Lock()
	sc.activeSegmentsProvider = provider
	sc.mutex.Unlock()
}

// Start begins the background eviction worker.
func (sc *SegmentCache) Start() {
	if !sc.started.CompareAndSwap(false, true) {
		return
	}
	sc.logger.Infof("Starting segment cache eviction worker (every %s)", sc.interval)
	go sc.evictionWorker()
}

// Stop shuts down the eviction worker and waits for it to exit.
func (sc *SegmentCache) Stop() {
	sc.cancel()
	if sc.started.Load() {
		<-sc.done
	}
}

// Set adds a segment to the cache.
func (sc *SegmentCache) Set(key string, data []byte) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	if old, ok := sc.cache[key]; ok {
		sc.size -= int64(len(old))
	}
	sc.cache[key] = data
	sc.size += int64(len(data))
	sc.logger.Debugf("Cached segment: %s, size: %d bytes", key, len(data))
}

// Get retrieves a segment from the cache.
func (sc *SegmentCache) Get(key string) ([]byte, bool) {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	data, found := sc.cache[key]
	return data, found
}

// Delete removes a segment from the cache.
func (sc *SegmentCache) Delete(key string) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	if old, ok := sc.cache[key]; ok {
		sc.size -= int64(len(old))
		delete(sc.cache, key)
	}
}

// Len returns the number of cached segments and their total size in bytes.
func (sc *SegmentCache) Len() (int, int64) {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return len(sc.cache), sc.size
}

// evictionWorker runs in the background to clean up inactive segments.
func (sc *SegmentCache) evictionWorker() {
	defer close(sc.done)
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sc.ctx.Done():
			sc.logger.Debugf("Eviction worker stopped.")
			return
		case <-ticker.C:
			sc.RunEviction()
		}
	}
}

// RunEviction drops every entry the provider does not report as active and
// returns how many were dropped.
func (sc *SegmentCache) RunEviction() int {
	sc.mutex.RLock()
	provider := sc.activeSegmentsProvider
	sc.mutex.RUnlock()
	if provider == nil {
		return 0
	}
	activeKeys := provider()

	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	evictedCount := 0
	for key, data := range sc.cache {
		if _, isActive := activeKeys[key]; !isActive {
			sc.size -= int64(len(data))
			delete(sc.cache, key)
			evictedCount++
		}
	}

	if evictedCount > 0 {
		sc.logger.Debugf("Evicted %d segments from cache. Current cache size: %d segments.", evictedCount, len(sc.cache))
	}
	return evictedCount
}
