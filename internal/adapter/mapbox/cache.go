package mapbox

import (
	"container/list"
	"context"
	"math"
	"sync"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"github.com/couchcryptid/accident-hotspot-service/internal/observability"
)

// keyScale rounds cache keys to four decimal places (about 11 m).
const keyScale = 1e4

// centreKey is a cluster centre snapped to the cache grid.
type centreKey struct {
	lat, lon int64
}

func keyFor(lat, lon float64) centreKey {
	return centreKey{
		lat: int64(math.Round(lat * keyScale)),
		lon: int64(math.Round(lon * keyScale)),
	}
}

// CachedGeocoder wraps a Geocoder with an in-memory LRU of named places.
// Cluster centres drift slightly between runs, so nearby centres share an entry.
type CachedGeocoder struct {
	inner   domain.Geocoder
	places  *placeCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder holding at
// most maxEntries places.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		places:  newPlaceCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := keyFor(lat, lon)
	if result, ok := c.places.lookup(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("reverse", "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("reverse", "miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Unnamed results stay uncached so a later run can retry them.
	if result.FormattedAddress == "" && result.PlaceName == "" {
		return result, nil
	}
	if c.places.store(key, result) {
		c.metrics.GeocodeCache.WithLabelValues("reverse", "evict").Inc()
	}
	return result, nil
}

// placeCache is a mutex-guarded LRU. The list front is the most recently used.
type placeCache struct {
	mu    sync.Mutex
	limit int
	order *list.List
	index map[centreKey]*list.Element
}

type placeEntry struct {
	key    centreKey
	result domain.GeocodingResult
}

func newPlaceCache(limit int) *placeCache {
	return &placeCache{
		limit: max(limit, 1),
		order: list.New(),
		index: make(map[centreKey]*list.Element),
	}
}

func (p *placeCache) lookup(key centreKey) (domain.GeocodingResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	el, ok := p.index[key]
	if !ok {
		return domain.GeocodingResult{}, false
	}
	p.order.MoveToFront(el)
	return el.Value.(*placeEntry).result, true
}

// store inserts or refreshes key and reports whether the least recently used
// place had to be dropped to make room.
func (p *placeCache) store(key centreKey, result domain.GeocodingResult) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if el, ok := p.index[key]; ok {
		el.Value.(*placeEntry).result = result
		p.order.MoveToFront(el)
		return false
	}
	p.index[key] = p.order.PushFront(&placeEntry{key: key, result: result})
	if p.order.Len() <= p.limit {
		return false
	}
	oldest := p.order.Back()
	p.order.Remove(oldest)
	delete(p.index, oldest.Value.(*placeEntry).key)
	return true
}

func (p *placeCache) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}
