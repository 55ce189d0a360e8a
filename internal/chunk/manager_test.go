package chunk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxelgate/server/internal/core/event"
	"github.com/voxelgate/server/internal/worker"
)

type stubGen struct {
	mu    sync.Mutex
	calls int
	failN int           // fail the first failN calls
	gate  chan struct{} // when set, Generate blocks until closed
}

func (g *stubGen) Generate(ctx context.Context, c Coord) (*Chunk, error) {
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	if n <= g.failN {
		return nil, errors.New("terrain noise out of range")
	}
	ch := NewChunk(c)
	ch.Blocks[BlockIndex(0, 0, 0)] = 1
	return ch, nil
}

func (g *stubGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type stubMesher struct {
	mu     sync.Mutex
	builds int
}

func (m *stubMesher) BuildMesh(ctx context.Context, ch *Chunk) (*Mesh, error) {
	m.mu.Lock()
	m.builds++
	m.mu.Unlock()
	return &Mesh{Indices: make([]uint32, 6)}, nil
}

func (m *stubMesher) buildCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.builds
}

type stubCollider struct{}

func (stubCollider) BuildHeights(ctx context.Context, ch *Chunk) (*HeightField, error) {
	var h HeightField
	for z := 0; z < SizeZ; z++ {
		for x := 0; x < SizeX; x++ {
			for y := SizeY - 1; y >= 0; y-- {
				if ch.Block(x, y, z) != BlockAir {
					h.Set(x, z, int16(y))
					break
				}
			}
		}
	}
	return &h, nil
}

type stubLoader struct {
	mu     sync.Mutex
	stored map[Coord]*Chunk
	saves  int
}

func (l *stubLoader) Load(ctx context.Context, c Coord) (*Chunk, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.stored[c]
	return ch, ok, nil
}

func (l *stubLoader) Save(ctx context.Context, ch *Chunk) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stored == nil {
		l.stored = make(map[Coord]*Chunk)
	}
	l.stored[ch.Coord] = ch.Snapshot()
	l.saves++
	return nil
}

type testHarness struct {
	mgr    *Manager
	bus    *event.Bus
	gen    *stubGen
	mesher *stubMesher
	loader *stubLoader

	ready  []ReadyEvent
	failed []FailedEvent
}

func newHarness(t *testing.T, mutate func(*ManagerOptions)) *testHarness {
	t.Helper()

	pool := worker.NewPool(2, 16, 0, zap.NewNop())
	pool.Start()
	t.Cleanup(pool.Shutdown)

	h := &testHarness{
		bus:    event.NewBus(),
		gen:    &stubGen{},
		mesher: &stubMesher{},
		loader: &stubLoader{},
	}
	cfg := DefaultManagerConfig()
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffCap = 5 * time.Millisecond

	opts := ManagerOptions{
		Log:      zap.NewNop(),
		Config:   cfg,
		Store:    NewStore(),
		Cache:    NewCache(64),
		Pool:     pool,
		Bus:      h.bus,
		Gen:      h.gen,
		Mesher:   h.mesher,
		Collider: stubCollider{},
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.mgr = NewManager(opts)

	event.Subscribe(h.bus, func(ev ReadyEvent) { h.ready = append(h.ready, ev) })
	event.Subscribe(h.bus, func(ev FailedEvent) { h.failed = append(h.failed, ev) })
	return h
}

// pump runs manager and bus ticks until cond holds.
func (h *testHarness) pump(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.tick()
		return cond()
	}, 3*time.Second, 2*time.Millisecond)
}

func (h *testHarness) tick() {
	h.mgr.Update()
	h.bus.SwapBuffers()
	h.bus.DispatchAll()
}

func TestManager_LifecycleToReady(t *testing.T) {
	h := newHarness(t, nil)
	c := Coord{X: 0, Z: 0}

	require.NoError(t, h.mgr.Request(c, 1))
	assert.Equal(t, StateQueued, h.mgr.Status(c).State)

	h.pump(t, func() bool { return h.mgr.Status(c).State == StateReady })

	require.Len(t, h.ready, 1)
	assert.Equal(t, c, h.ready[0].Coord)
	assert.Equal(t, 1, h.ready[0].Mesh.FaceCount())

	ch, ok := h.mgr.GetChunk(c)
	require.True(t, ok)
	assert.Equal(t, BlockID(1), ch.Block(0, 0, 0))
	assert.Equal(t, 1, h.gen.callCount())
	assert.Equal(t, 1, h.mesher.buildCount())

	// Physics summary lands on the same pump.
	h.pump(t, func() bool {
		_, ok := h.mgr.Heights(c)
		return ok
	})
	heights, _ := h.mgr.Heights(c)
	assert.Equal(t, int16(0), heights.At(0, 0))
}

func TestManager_RequestIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	c := Coord{X: 3, Z: -2}

	require.NoError(t, h.mgr.Request(c, 5))
	require.NoError(t, h.mgr.Request(c, 5))
	require.NoError(t, h.mgr.Request(c, 9)) // worse, ignored
	assert.Equal(t, 1, h.mgr.genQueue.Len())
	assert.Equal(t, 5, h.mgr.Status(c).Priority)

	require.NoError(t, h.mgr.Request(c, 2)) // better, raised in place
	assert.Equal(t, 1, h.mgr.genQueue.Len())
	assert.Equal(t, 2, h.mgr.Status(c).Priority)
}

func TestManager_InvalidPriority(t *testing.T) {
	h := newHarness(t, nil)
	c := Coord{X: 1, Z: 1}

	err := h.mgr.Request(c, -1)
	require.ErrorIs(t, err, ErrInvalidPriority)
	assert.Equal(t, StateNotLoaded, h.mgr.Status(c).State)
	assert.Equal(t, 0, h.mgr.genQueue.Len())
}

func TestManager_StaleResultDiscardedAfterUnload(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, nil)
	h.gen.gate = gate
	c := Coord{X: 7, Z: 7}

	require.NoError(t, h.mgr.Request(c, 0))
	h.pump(t, func() bool { return h.mgr.Status(c).State == StateGenerating })

	h.mgr.Unload(c)
	assert.Equal(t, StateNotLoaded, h.mgr.Status(c).State)

	close(gate)
	// Give the stranded task time to complete and its result to be drained.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		h.tick()
		time.Sleep(2 * time.Millisecond)
	}

	assert.Equal(t, StateNotLoaded, h.mgr.Status(c).State)
	_, ok := h.mgr.GetChunk(c)
	assert.False(t, ok, "stale result must not reinstall an unloaded chunk")
	assert.Empty(t, h.ready)
}

func TestManager_UnloadRespectsPin(t *testing.T) {
	h := newHarness(t, nil)
	c := Coord{X: 2, Z: 2}

	require.NoError(t, h.mgr.Request(c, 0))
	h.pump(t, func() bool { return h.mgr.Status(c).State == StateReady })

	h.mgr.Pin(c)
	h.mgr.Unload(c)
	_, ok := h.mgr.GetChunk(c)
	assert.True(t, ok, "pinned chunk must survive unload")

	h.mgr.Unpin(c)
	h.mgr.Unload(c)
	_, ok = h.mgr.GetChunk(c)
	assert.False(t, ok)
	assert.Equal(t, StateNotLoaded, h.mgr.Status(c).State)
}

func TestManager_RetryWithBackoff(t *testing.T) {
	h := newHarness(t, nil)
	h.gen.failN = 2
	c := Coord{X: -4, Z: 9}

	require.NoError(t, h.mgr.Request(c, 0))
	h.pump(t, func() bool { return h.mgr.Status(c).State == StateReady })

	assert.Equal(t, 3, h.gen.callCount(), "two failures then one success")
	assert.Empty(t, h.failed)
	st := h.mgr.Status(c)
	assert.Zero(t, st.Attempts)
	assert.NoError(t, st.Err)
}

func TestManager_PermanentFailureThenRestart(t *testing.T) {
	h := newHarness(t, func(o *ManagerOptions) {
		cfg := DefaultManagerConfig()
		cfg.MaxAttempts = 2
		cfg.BackoffBase = time.Millisecond
		cfg.BackoffCap = 2 * time.Millisecond
		o.Config = cfg
	})
	h.gen.failN = 2
	c := Coord{X: 5, Z: -5}

	require.NoError(t, h.mgr.Request(c, 0))
	h.pump(t, func() bool {
		st := h.mgr.Status(c)
		return st.State == StateFailed && st.Attempts == 2
	})
	h.pump(t, func() bool { return len(h.failed) == 1 })
	assert.Equal(t, 2, h.failed[0].Attempts)
	assert.Error(t, h.mgr.Status(c).Err)

	// A fresh request starts the attempt counter over; the third call succeeds.
	require.NoError(t, h.mgr.Request(c, 0))
	h.pump(t, func() bool { return h.mgr.Status(c).State == StateReady })
	assert.Equal(t, 3, h.gen.callCount())
}

func TestManager_SetBlockTriggersRemesh(t *testing.T) {
	h := newHarness(t, nil)
	c := Coord{X: 0, Z: 0}

	require.NoError(t, h.mgr.Request(c, 0))
	h.pump(t, func() bool { return h.mgr.Status(c).State == StateReady })
	require.Equal(t, 1, h.mesher.buildCount())

	require.NoError(t, h.mgr.SetBlock(3, 10, 3, 2))
	h.pump(t, func() bool { return len(h.ready) == 2 })
	assert.Equal(t, 2, h.mesher.buildCount())

	id, err := h.mgr.Block(3, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, BlockID(2), id)

	// World coordinates outside any resident chunk.
	err = h.mgr.SetBlock(1000, 0, 1000, 1)
	assert.ErrorIs(t, err, ErrChunkNotLoaded)
	_, err = h.mgr.Block(1000, 0, 1000)
	assert.ErrorIs(t, err, ErrChunkNotLoaded)
}

func TestManager_NegativeWorldCoords(t *testing.T) {
	h := newHarness(t, nil)
	c := FromWorld(-1, -1)
	assert.Equal(t, Coord{X: -1, Z: -1}, c)

	require.NoError(t, h.mgr.Request(c, 0))
	h.pump(t, func() bool { return h.mgr.Status(c).State == StateReady })

	require.NoError(t, h.mgr.SetBlock(-1, 5, -1, 3))
	id, err := h.mgr.Block(-1, 5, -1)
	require.NoError(t, err)
	assert.Equal(t, BlockID(3), id)
}

func TestManager_CachePressureEvictsUnpinned(t *testing.T) {
	h := newHarness(t, func(o *ManagerOptions) {
		o.Cache = NewCache(1)
	})
	a := Coord{X: 0, Z: 0}
	b := Coord{X: 1, Z: 0}

	require.NoError(t, h.mgr.Request(a, 0))
	h.pump(t, func() bool { return h.mgr.Status(a).State == StateReady })
	h.mgr.Pin(a)

	// b reaches Ready and is immediately evicted on the same pump: the cache
	// is over capacity and a is pinned, so b is the only candidate.
	require.NoError(t, h.mgr.Request(b, 0))
	h.pump(t, func() bool { return len(h.ready) == 2 })

	_, okA := h.mgr.GetChunk(a)
	_, okB := h.mgr.GetChunk(b)
	assert.True(t, okA)
	assert.False(t, okB)
	assert.Equal(t, StateNotLoaded, h.mgr.Status(b).State)
}

func TestManager_BackpressureKeepsRequestsQueued(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, func(o *ManagerOptions) {
		pool := worker.NewPool(1, 1, 0, zap.NewNop())
		pool.Start()
		t.Cleanup(pool.Shutdown)
		o.Pool = pool
	})
	h.gen.gate = gate

	coords := []Coord{{X: 0, Z: 0}, {X: 1, Z: 0}, {X: 2, Z: 0}}
	for i, c := range coords {
		require.NoError(t, h.mgr.Request(c, i))
	}
	h.tick()

	// One worker and a one-slot queue cannot absorb three requests; at least
	// one stays Queued and is not lost.
	queued := 0
	for _, c := range coords {
		if h.mgr.Status(c).State == StateQueued {
			queued++
		}
	}
	assert.GreaterOrEqual(t, queued, 1)

	close(gate)
	h.pump(t, func() bool {
		for _, c := range coords {
			if h.mgr.Status(c).State != StateReady {
				return false
			}
		}
		return true
	})
}

func TestManager_QueueBoundDropsWorst(t *testing.T) {
	h := newHarness(t, func(o *ManagerOptions) {
		cfg := DefaultManagerConfig()
		cfg.MaxQueued = 2
		o.Config = cfg
	})

	require.NoError(t, h.mgr.Request(Coord{X: 0, Z: 0}, 0))
	require.NoError(t, h.mgr.Request(Coord{X: 1, Z: 0}, 1))
	require.NoError(t, h.mgr.Request(Coord{X: 2, Z: 0}, 9))

	assert.Equal(t, 2, h.mgr.genQueue.Len())
	assert.Equal(t, StateNotLoaded, h.mgr.Status(Coord{X: 2, Z: 0}).State)
}

func TestManager_LoaderPreferredOverGeneration(t *testing.T) {
	c := Coord{X: 4, Z: 4}
	stored := NewChunk(c)
	stored.Blocks[BlockIndex(1, 2, 3)] = 7

	h := newHarness(t, nil)
	h.loader.stored = map[Coord]*Chunk{c: stored}
	h.mgr.loader = h.loader

	require.NoError(t, h.mgr.Request(c, 0))
	h.pump(t, func() bool { return h.mgr.Status(c).State == StateReady })

	ch, ok := h.mgr.GetChunk(c)
	require.True(t, ok)
	assert.Equal(t, BlockID(7), ch.Block(1, 2, 3))
	assert.Equal(t, 0, h.gen.callCount(), "stored chunks skip generation")
}

func TestManager_SaveDirty(t *testing.T) {
	h := newHarness(t, nil)
	h.mgr.loader = h.loader
	c := Coord{X: 0, Z: 0}

	require.NoError(t, h.mgr.Request(c, 0))
	h.pump(t, func() bool { return h.mgr.Status(c).State == StateReady })

	saved, err := h.mgr.SaveDirty(context.Background())
	require.NoError(t, err)
	assert.Zero(t, saved, "freshly generated chunks are clean")

	require.NoError(t, h.mgr.SetBlock(0, 0, 0, 9))
	saved, err = h.mgr.SaveDirty(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	ch, _ := h.mgr.GetChunk(c)
	assert.False(t, ch.Dirty())
	assert.Equal(t, BlockID(9), h.loader.stored[c].Block(0, 0, 0))
}
