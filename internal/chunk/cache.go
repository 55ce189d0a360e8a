package chunk

import "container/list"

// Cache layers an LRU eviction policy and pin accounting over the Store's
// contents. It tracks usage metadata only — the payloads stay in the Store.
// Entries with a non-zero pin count are never evicted, and the Manager's
// evictability check additionally protects coordinates with in-flight work.
type Cache struct {
	capacity int
	entries  map[Coord]*cacheEntry
	lru      *list.List // front = most recently used
}

type cacheEntry struct {
	coord Coord
	pins  uint32
	elem  *list.Element
}

func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[Coord]*cacheEntry, capacity),
		lru:      list.New(),
	}
}

func (c *Cache) Len() int      { return len(c.entries) }
func (c *Cache) Capacity() int { return c.capacity }

// Insert registers a coordinate as cached, most recently used.
func (c *Cache) Insert(coord Coord) {
	if e, ok := c.entries[coord]; ok {
		c.lru.MoveToFront(e.elem)
		return
	}
	e := &cacheEntry{coord: coord}
	e.elem = c.lru.PushFront(e)
	c.entries[coord] = e
}

// Touch refreshes last-access order. It does not change the pin count.
func (c *Cache) Touch(coord Coord) {
	if e, ok := c.entries[coord]; ok {
		c.lru.MoveToFront(e.elem)
	}
}

// Remove drops the entry regardless of pins. Only the Manager's unload path
// calls this.
func (c *Cache) Remove(coord Coord) {
	if e, ok := c.entries[coord]; ok {
		c.lru.Remove(e.elem)
		delete(c.entries, coord)
	}
}

// Pin marks the coordinate as actively referenced (e.g. inside render
// distance). Pinned entries survive any cache pressure.
func (c *Cache) Pin(coord Coord) {
	if e, ok := c.entries[coord]; ok {
		e.pins++
	}
}

// Unpin releases one pin. Unpinning an untracked or unpinned coordinate is a
// no-op.
func (c *Cache) Unpin(coord Coord) {
	if e, ok := c.entries[coord]; ok && e.pins > 0 {
		e.pins--
	}
}

func (c *Cache) Pins(coord Coord) uint32 {
	if e, ok := c.entries[coord]; ok {
		return e.pins
	}
	return 0
}

// EvictOverCapacity removes least-recently-used unpinned entries until the
// cache is within capacity, and returns the evicted coordinates. evictable
// lets the caller veto eviction for coordinates with in-flight work; cache
// pressure must never discard queued, generating or meshing chunks.
func (c *Cache) EvictOverCapacity(evictable func(Coord) bool) []Coord {
	if len(c.entries) <= c.capacity {
		return nil
	}
	var evicted []Coord
	for el := c.lru.Back(); el != nil && len(c.entries) > c.capacity; {
		prev := el.Prev()
		e := el.Value.(*cacheEntry)
		if e.pins == 0 && (evictable == nil || evictable(e.coord)) {
			evicted = append(evicted, e.coord)
			c.lru.Remove(el)
			delete(c.entries, e.coord)
		}
		el = prev
	}
	return evicted
}
