package extentclient

import (
	"sync"
	"time"

	"github.com/coldfront/dfs/internal/extentstore"
	"github.com/coldfront/dfs/pkg/metrics"
)

// entry is the cached state for one extent id (spec.md §3: "Client
// extent-cache entry: {bytes, dirty: bool}").
type entry struct {
	bytes []byte
	dirty bool
}

// Cache is the write-back extent cache described in spec.md §4.3. All
// three structures (extents, attrs, tombstones) share one mutex; the
// invariant callers must uphold is that the corresponding lock for id
// is held for the duration of any cache operation (the lock service
// is what serializes concurrent clients, not this cache).
type Cache struct {
	client *Client
	metric *metrics.ExtentCacheMetrics

	mu         sync.Mutex
	extents    map[uint64]*entry
	attrs      map[uint64]extentstore.Attr
	tombstones map[uint64]struct{}
}

// NewCache wraps client with an empty write-back cache.
func NewCache(client *Client) *Cache {
	return &Cache{
		client:     client,
		metric:     metrics.NewExtentCacheMetrics(),
		extents:    make(map[uint64]*entry),
		attrs:      make(map[uint64]extentstore.Attr),
		tombstones: make(map[uint64]struct{}),
	}
}

// now is overridable in tests that need deterministic timestamps.
var now = time.Now
