package chunk

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_LRUEviction(t *testing.T) {
	c := NewCache(2)
	a := Coord{X: 1, Z: 0}
	b := Coord{X: 2, Z: 0}
	d := Coord{X: 3, Z: 0}

	c.Insert(a)
	c.Insert(b)
	c.Insert(d)

	// a is least recently used.
	evicted := c.EvictOverCapacity(nil)
	assert.Equal(t, []Coord{a}, evicted)
	assert.Equal(t, 2, c.Len())
}

func TestCache_TouchRefreshesRecency(t *testing.T) {
	c := NewCache(2)
	a := Coord{X: 1, Z: 0}
	b := Coord{X: 2, Z: 0}
	d := Coord{X: 3, Z: 0}

	c.Insert(a)
	c.Insert(b)
	c.Touch(a) // now b is the oldest
	c.Insert(d)

	evicted := c.EvictOverCapacity(nil)
	assert.Equal(t, []Coord{b}, evicted)
}

func TestCache_PinnedNeverEvicted(t *testing.T) {
	c := NewCache(1)
	a := Coord{X: 1, Z: 0}
	b := Coord{X: 2, Z: 0}

	c.Insert(a)
	c.Pin(a)
	c.Insert(b)

	// a is over capacity and least recent but pinned; b is the only candidate.
	evicted := c.EvictOverCapacity(nil)
	assert.Equal(t, []Coord{b}, evicted)

	c.Unpin(a)
	c.Insert(b)
	evicted = c.EvictOverCapacity(nil)
	assert.Equal(t, []Coord{a}, evicted)
}

func TestCache_EvictableVetoRespected(t *testing.T) {
	c := NewCache(0)
	inFlight := Coord{X: 5, Z: 5}
	idle := Coord{X: 6, Z: 6}

	c.Insert(inFlight)
	c.Insert(idle)

	evicted := c.EvictOverCapacity(func(coord Coord) bool {
		return coord != inFlight
	})
	assert.Equal(t, []Coord{idle}, evicted)
	assert.Equal(t, 1, c.Len())
}

// TestCache_EvictionSafetyProperty randomizes pins and in-flight vetoes and
// asserts eviction never removes a pinned or vetoed entry.
func TestCache_EvictionSafetyProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 100; trial++ {
		capacity := rng.Intn(8)
		cache := NewCache(capacity)

		pinned := make(map[Coord]bool)
		inFlight := make(map[Coord]bool)
		for i := 0; i < 16; i++ {
			coord := Coord{X: int32(i), Z: int32(trial)}
			cache.Insert(coord)
			if rng.Intn(3) == 0 {
				cache.Pin(coord)
				pinned[coord] = true
			}
			if rng.Intn(3) == 0 {
				inFlight[coord] = true
			}
		}

		evicted := cache.EvictOverCapacity(func(c Coord) bool {
			return !inFlight[c]
		})
		for _, c := range evicted {
			require.False(t, pinned[c], "evicted a pinned chunk")
			require.False(t, inFlight[c], "evicted an in-flight chunk")
		}

		// Capacity is met unless protected entries make it impossible.
		protected := 0
		for c := range pinned {
			protected++
			_ = c
		}
		if cache.Len() > capacity {
			for _, e := range cache.entries {
				evictable := e.pins == 0 && !inFlight[e.coord]
				assert.False(t, evictable && cache.Len() > capacity,
					"left an evictable entry while over capacity")
			}
		}
	}
}

func TestCache_UnpinUnknownIsNoop(t *testing.T) {
	c := NewCache(4)
	c.Unpin(Coord{X: 9, Z: 9})
	a := Coord{X: 1, Z: 1}
	c.Insert(a)
	c.Unpin(a) // not pinned
	assert.Equal(t, uint32(0), c.Pins(a))
}
