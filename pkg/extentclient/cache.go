package extentclient

import (
	"github.com/coldfront/dfs/internal/dfserr"
	"github.com/coldfront/dfs/internal/extentstore"
	"github.com/coldfront/dfs/internal/logger"
)

// Get returns id's bytes, reading through to the server on a cache
// miss. Callers must hold the lock covering id (spec.md §4.3).
func (c *Cache) Get(id uint64) ([]byte, error) {
	c.mu.Lock()
	if _, tomb := c.tombstones[id]; tomb {
		c.mu.Unlock()
		c.metric.Miss()
		return nil, dfserr.New(dfserr.NOENT, "extent removed locally")
	}
	if e, ok := c.extents[id]; ok {
		out := append([]byte(nil), e.bytes...)
		c.mu.Unlock()
		c.metric.Hit()
		return out, nil
	}
	c.mu.Unlock()

	// Cache miss: fetch from the server without holding the mutex
	// (spec.md §9's recommended "stricter design").
	c.metric.Miss()
	data, err := c.client.get(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another thread may have raced us: a local remove wins (the
	// tombstone must still hide this id), and a local put already
	// installed newer data that must not be clobbered by the stale
	// read we just performed.
	if _, tomb := c.tombstones[id]; tomb {
		return nil, dfserr.New(dfserr.NOENT, "extent removed locally")
	}
	if e, ok := c.extents[id]; ok {
		return append([]byte(nil), e.bytes...), nil
	}
	c.extents[id] = &entry{bytes: data, dirty: false}
	return append([]byte(nil), data...), nil
}

// GetAttr mirrors Get over the attribute cache.
func (c *Cache) GetAttr(id uint64) (extentstore.Attr, error) {
	c.mu.Lock()
	if _, tomb := c.tombstones[id]; tomb {
		c.mu.Unlock()
		return extentstore.Attr{}, dfserr.New(dfserr.NOENT, "extent removed locally")
	}
	if a, ok := c.attrs[id]; ok {
		c.mu.Unlock()
		return a, nil
	}
	c.mu.Unlock()

	attr, err := c.client.getAttr(id)
	if err != nil {
		return extentstore.Attr{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, tomb := c.tombstones[id]; tomb {
		return extentstore.Attr{}, dfserr.New(dfserr.NOENT, "extent removed locally")
	}
	if a, ok := c.attrs[id]; ok {
		return a, nil
	}
	c.attrs[id] = attr
	return attr, nil
}

// Put installs data for id as the dirty, in-memory contents, clearing
// any pending tombstone and refreshing the attribute cache. Nothing
// is sent to the server until Flush.
func (c *Cache) Put(id uint64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.tombstones, id)
	c.extents[id] = &entry{bytes: append([]byte(nil), data...), dirty: true}

	ts := now()
	c.attrs[id] = extentstore.Attr{Atime: ts, Mtime: ts, Ctime: ts, Size: uint64(len(data))}

	logger.Debug("extent cache put", logger.KeyExtentID, hexID(id), logger.KeySize, len(data), logger.KeyDirty, true)
}

// Remove drops any cached entry for id and records a tombstone. The
// server is not contacted until Flush; a subsequent Get returns NOENT
// regardless of what the server still has.
func (c *Cache) Remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.extents, id)
	delete(c.attrs, id)
	c.tombstones[id] = struct{}{}
}

// Flush pushes id's pending mutation (a remove or a dirty put) to the
// server and drops all local cache state for id. It is idempotent for
// ids that are neither dirty nor tombstoned.
func (c *Cache) Flush(id uint64) error {
	c.mu.Lock()
	_, tomb := c.tombstones[id]
	e, cached := c.extents[id]
	c.mu.Unlock()

	var err error
	switch {
	case tomb:
		err = c.client.remove(id)
	case cached && e.dirty:
		err = c.client.put(id, e.bytes)
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.tombstones, id)
	delete(c.extents, id)
	delete(c.attrs, id)
	c.mu.Unlock()

	logger.Debug("extent cache flush", logger.KeyExtentID, hexID(id))
	return nil
}

func hexID(id uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[id&0xf]
		id >>= 4
	}
	return string(buf)
}
