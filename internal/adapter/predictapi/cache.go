package predictapi

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sync"

	"github.com/couchcryptid/hazard-predict/internal/domain"
	"github.com/couchcryptid/hazard-predict/internal/observability"
)

// CachedPredictor wraps a Predictor with an in-memory LRU cache of
// successful results keyed by hazard and matrix contents.
type CachedPredictor struct {
	inner   domain.Predictor
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedPredictor creates a cache decorator around a predictor.
func NewCachedPredictor(inner domain.Predictor, maxEntries int, metrics *observability.Metrics) *CachedPredictor {
	return &CachedPredictor{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedPredictor) Predict(ctx context.Context, spec domain.HazardSpec, m domain.Matrix) domain.PredictionResult {
	key := cacheKey(spec, m)
	if result, ok := c.cache.get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return result
	}
	c.metrics.CacheLookups.WithLabelValues("miss").Inc()

	result := c.inner.Predict(ctx, spec, m)
	// Only successes are cached so errors are retried on resubmission.
	if result.Kind == domain.ResultSuccess {
		c.cache.put(key, result)
	}
	return result
}

func cacheKey(spec domain.HazardSpec, m domain.Matrix) string {
	h := sha256.New()
	var buf [8]byte
	for _, row := range m {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(row)))
		h.Write(buf[:])
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return fmt.Sprintf("%s|%s|%dx%d|%s", spec.Type, spec.Path, m.Rows(), m.Cols(), hex.EncodeToString(h.Sum(nil)))
}

// lruCache is a thread-safe LRU of results. The front of order is the most
// recently used entry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
}

type cacheEntry struct {
	key   string
	value domain.PredictionResult
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (c *lruCache) get(key string) (domain.PredictionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.PredictionResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

func (c *lruCache) put(key string, value domain.PredictionResult) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, value: value})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
