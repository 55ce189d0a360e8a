package chunk

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/voxelgate/server/internal/core/event"
	"github.com/voxelgate/server/internal/worker"
)

// ErrInvalidPriority rejects malformed requests immediately; they are never
// queued or retried.
var ErrInvalidPriority = errors.New("chunk: priority must be non-negative")

// Generator produces the block payload for a coordinate. Runs on worker
// goroutines; implementations must be safe for concurrent calls.
type Generator interface {
	Generate(ctx context.Context, c Coord) (*Chunk, error)
}

// Mesher extracts a render mesh from a chunk snapshot. Worker-side.
type Mesher interface {
	BuildMesh(ctx context.Context, ch *Chunk) (*Mesh, error)
}

// Collider builds the solid-height physics summary. Worker-side.
type Collider interface {
	BuildHeights(ctx context.Context, ch *Chunk) (*HeightField, error)
}

// Loader is the persistence collaborator. Load returns (nil, false, nil)
// when no stored payload exists; the manager then falls back to generation.
// Invoked only from inside worker tasks.
type Loader interface {
	Load(ctx context.Context, c Coord) (*Chunk, bool, error)
	Save(ctx context.Context, ch *Chunk) error
}

// ManagerConfig carries the tunables the spec leaves open.
type ManagerConfig struct {
	MaxAttempts   int           // generation attempts before giving up
	BackoffBase   time.Duration // first retry delay
	BackoffFactor int           // delay multiplier per attempt
	BackoffCap    time.Duration // retry delay ceiling
	MaxQueued     int           // pending request bound; worst entry dropped beyond it
}

// DefaultManagerConfig mirrors the documented defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxAttempts:   3,
		BackoffBase:   200 * time.Millisecond,
		BackoffFactor: 2,
		BackoffCap:    5 * time.Second,
		MaxQueued:     256,
	}
}

// ManagerOptions wires a Manager's collaborators.
type ManagerOptions struct {
	Log      *zap.Logger
	Config   ManagerConfig
	Store    *Store
	Cache    *Cache
	Pool     *worker.Pool
	Bus      *event.Bus
	Gen      Generator
	Mesher   Mesher
	Collider Collider // optional
	Loader   Loader   // optional
	Clock    func() time.Time
}

// Manager drives the chunk lifecycle state machine. All state mutation
// happens on the control goroutine: Request/Unload/Pin/Update must be called
// from the game loop, and worker results are only consumed inside Update.
type Manager struct {
	log *zap.Logger
	cfg ManagerConfig

	store    *Store
	cache    *Cache
	pool     *worker.Pool
	bus      *event.Bus
	gen      Generator
	mesher   Mesher
	collider Collider
	loader   Loader
	now      func() time.Time

	recs     map[Coord]*record
	genQueue *requestQueue
	meshQ    []Coord
	physQ    []Coord
	heights  map[Coord]*HeightField
	pins     map[Coord]uint32

	genTask  map[Coord]worker.TaskID
	meshTask map[Coord]worker.TaskID

	// nextToken is monotonic across all coordinates so a coordinate that is
	// unloaded and re-requested can never re-mint a token an in-flight stale
	// task is still carrying.
	nextToken uint64
}

func NewManager(opts ManagerOptions) *Manager {
	cfg := opts.Config
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultManagerConfig()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Manager{
		log:      opts.Log,
		cfg:      cfg,
		store:    opts.Store,
		cache:    opts.Cache,
		pool:     opts.Pool,
		bus:      opts.Bus,
		gen:      opts.Gen,
		mesher:   opts.Mesher,
		collider: opts.Collider,
		loader:   opts.Loader,
		now:      now,
		recs:     make(map[Coord]*record, 256),
		genQueue: newRequestQueue(),
		heights:  make(map[Coord]*HeightField, 256),
		pins:     make(map[Coord]uint32, 64),
		genTask:  make(map[Coord]worker.TaskID, 32),
		meshTask: make(map[Coord]worker.TaskID, 32),
	}
}

// Request asks for the chunk at the given coordinate to become Ready.
// Never blocks. Repeat requests are idempotent: an equal or worse priority is
// a no-op, a better (lower) one raises the queued entry in place. A chunk
// that exhausted its attempts is restarted by an explicit new request.
func (m *Manager) Request(c Coord, priority int) error {
	if priority < 0 {
		return ErrInvalidPriority
	}

	rec, ok := m.recs[c]
	if !ok {
		rec = &record{state: StateNotLoaded}
		m.recs[c] = rec
	}

	switch rec.state {
	case StateNotLoaded:
		rec.state = StateQueued
		rec.priority = priority
		m.genQueue.Push(c, priority)
		m.enforceQueueBound()
	case StateQueued:
		if priority < rec.priority {
			rec.priority = priority
			m.genQueue.Push(c, priority)
		}
	case StateFailed:
		if rec.retryAt.IsZero() {
			// Attempts exhausted; a fresh request starts over.
			rec.state = StateQueued
			rec.priority = priority
			rec.attempts = 0
			rec.lastErr = nil
			m.genQueue.Push(c, priority)
		} else if priority < rec.priority {
			rec.priority = priority
		}
	default:
		// Generating/Loaded/Meshing/Ready: nothing to do.
	}
	return nil
}

// enforceQueueBound drops the worst pending request once the queue outgrows
// its bound, keeping the manager responsive to nearby chunks under load.
func (m *Manager) enforceQueueBound() {
	for m.genQueue.Len() > m.cfg.MaxQueued {
		c, ok := m.genQueue.DropWorst()
		if !ok {
			return
		}
		delete(m.recs, c)
		m.log.Warn("request queue over bound, dropping lowest-priority chunk",
			zap.Stringer("coord", c))
	}
}

// Unload removes the chunk in any state. Dropping the record strands any
// in-flight task result, which the dispatcher then discards as stale; queued
// work is removed eagerly. Pinned chunks are not unloaded.
func (m *Manager) Unload(c Coord) {
	if m.pins[c] > 0 {
		m.log.Debug("unload skipped, chunk pinned", zap.Stringer("coord", c))
		return
	}
	if _, ok := m.recs[c]; ok {
		if id, ok := m.genTask[c]; ok {
			m.pool.Cancel(id)
		}
		if id, ok := m.meshTask[c]; ok {
			m.pool.Cancel(id)
		}
	}
	m.genQueue.Remove(c)
	m.removeFromSlice(&m.meshQ, c)
	m.removeFromSlice(&m.physQ, c)
	m.cache.Remove(c)
	m.store.Remove(c)
	delete(m.heights, c)
	delete(m.genTask, c)
	delete(m.meshTask, c)
	delete(m.recs, c)
}

// Pin protects the chunk from cache eviction. Effective immediately for
// resident chunks and carried forward for chunks still on their way in.
func (m *Manager) Pin(c Coord) {
	m.pins[c]++
	m.cache.Pin(c)
}

func (m *Manager) Unpin(c Coord) {
	if n := m.pins[c]; n > 0 {
		if n == 1 {
			delete(m.pins, c)
		} else {
			m.pins[c] = n - 1
		}
		m.cache.Unpin(c)
	}
}

// Status returns a read-only snapshot of the coordinate's lifecycle state.
func (m *Manager) Status(c Coord) Status {
	rec, ok := m.recs[c]
	if !ok {
		return Status{State: StateNotLoaded}
	}
	return Status{
		State:    rec.state,
		Priority: rec.priority,
		Attempts: rec.attempts,
		Err:      rec.lastErr,
	}
}

// GetChunk returns the resident chunk and refreshes its cache recency.
func (m *Manager) GetChunk(c Coord) (*Chunk, bool) {
	ch, ok := m.store.Get(c)
	if ok {
		m.cache.Touch(c)
	}
	return ch, ok
}

// Heights returns the physics summary for a resident chunk, if built.
func (m *Manager) Heights(c Coord) (*HeightField, bool) {
	h, ok := m.heights[c]
	return h, ok
}

// ErrChunkNotLoaded is returned by block accessors when the containing chunk
// is not resident.
var ErrChunkNotLoaded = errors.New("chunk: not loaded")

// SetBlock writes a block at world coordinates and schedules a re-mesh.
func (m *Manager) SetBlock(wx, wy, wz int32, id BlockID) error {
	c := FromWorld(wx, wz)
	ch, ok := m.store.Get(c)
	if !ok {
		return ErrChunkNotLoaded
	}
	lx := int(wx - c.X*SizeX)
	lz := int(wz - c.Z*SizeZ)
	ch.SetBlock(lx, int(wy), lz, id)
	m.cache.Touch(c)
	m.requestMesh(c)
	m.requestPhysics(c)
	return nil
}

// Block reads a block at world coordinates.
func (m *Manager) Block(wx, wy, wz int32) (BlockID, error) {
	c := FromWorld(wx, wz)
	ch, ok := m.store.Get(c)
	if !ok {
		return BlockAir, ErrChunkNotLoaded
	}
	lx := int(wx - c.X*SizeX)
	lz := int(wz - c.Z*SizeZ)
	return ch.Block(lx, int(wy), lz), nil
}

// Update is the control-goroutine pump: drain worker results, requeue due
// retries, dispatch pending work, and apply cache pressure. Called once per
// tick.
func (m *Manager) Update() {
	now := m.now()
	m.drainResults()
	m.requeueDueRetries(now)
	m.pumpGeneration()
	m.pumpMeshing()
	m.pumpPhysics()
	m.applyCachePressure()
}

func (m *Manager) drainResults() {
	for {
		select {
		case res := <-m.pool.Results():
			m.handleResult(res)
		default:
			return
		}
	}
}

func (m *Manager) handleResult(res worker.Result) {
	rec, ok := m.recs[res.Coord]
	if !ok || res.Token != rec.token {
		// Expected consequence of cancellation/unload, not an error.
		m.log.Debug("discarding stale task result",
			zap.Stringer("coord", res.Coord),
			zap.Stringer("kind", res.Kind),
			zap.Uint64("token", res.Token))
		return
	}

	switch res.Kind {
	case worker.KindGenerate:
		delete(m.genTask, res.Coord)
		if res.Err != nil {
			m.failGeneration(res.Coord, rec, res.Err)
			return
		}
		ch := res.Payload.(*Chunk)
		m.installChunk(res.Coord, rec, ch)

	case worker.KindMesh:
		delete(m.meshTask, res.Coord)
		if res.Err != nil {
			m.failGeneration(res.Coord, rec, res.Err)
			return
		}
		mesh := res.Payload.(*Mesh)
		rec.state = StateReady
		rec.attempts = 0
		rec.lastErr = nil
		event.Emit(m.bus, ReadyEvent{Coord: res.Coord, Mesh: mesh})
		if rec.meshQueued {
			// The chunk went dirty while meshing; build again.
			rec.meshQueued = false
			m.requestMesh(res.Coord)
		}

	case worker.KindPhysics:
		if res.Err != nil {
			m.log.Warn("physics summary failed",
				zap.Stringer("coord", res.Coord), zap.Error(res.Err))
			return
		}
		m.heights[res.Coord] = res.Payload.(*HeightField)
	}
}

func (m *Manager) installChunk(c Coord, rec *record, ch *Chunk) {
	m.store.Put(ch)
	m.cache.Insert(c)
	for i := uint32(0); i < m.pins[c]; i++ {
		m.cache.Pin(c)
	}
	rec.state = StateLoaded
	rec.attempts = 0
	rec.lastErr = nil
	m.requestMesh(c)
	m.requestPhysics(c)
}

func (m *Manager) failGeneration(c Coord, rec *record, err error) {
	rec.attempts++
	rec.lastErr = err
	rec.state = StateFailed
	if rec.attempts >= m.cfg.MaxAttempts {
		rec.retryAt = time.Time{}
		m.log.Error("chunk failed permanently",
			zap.Stringer("coord", c),
			zap.Int("attempts", rec.attempts),
			zap.Error(err))
		event.Emit(m.bus, FailedEvent{Coord: c, Attempts: rec.attempts, Err: err})
		return
	}
	delay := m.backoff(rec.attempts)
	rec.retryAt = m.now().Add(delay)
	m.log.Warn("chunk task failed, retrying",
		zap.Stringer("coord", c),
		zap.Int("attempt", rec.attempts),
		zap.Duration("backoff", delay),
		zap.Error(err))
}

func (m *Manager) backoff(attempt int) time.Duration {
	d := m.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= time.Duration(m.cfg.BackoffFactor)
		if d >= m.cfg.BackoffCap {
			return m.cfg.BackoffCap
		}
	}
	if d > m.cfg.BackoffCap {
		d = m.cfg.BackoffCap
	}
	return d
}

func (m *Manager) requeueDueRetries(now time.Time) {
	for c, rec := range m.recs {
		if rec.state == StateFailed && !rec.retryAt.IsZero() && !now.Before(rec.retryAt) {
			rec.retryAt = time.Time{}
			rec.state = StateQueued
			m.genQueue.Push(c, rec.priority)
		}
	}
}

// pumpGeneration dispatches queued requests best-first until the pool pushes
// back. On Backpressure the request simply stays queued; the queue is pumped
// again after every completed task.
func (m *Manager) pumpGeneration() {
	for {
		c, _, ok := m.genQueue.Peek()
		if !ok {
			return
		}
		rec, exists := m.recs[c]
		if !exists || rec.state != StateQueued {
			m.genQueue.Pop()
			continue
		}

		m.nextToken++
		token := m.nextToken
		task := worker.Task{
			Kind:  worker.KindGenerate,
			Coord: c,
			Token: token,
			Run:   m.generateTask(c),
		}
		id, err := m.pool.Submit(task)
		if err != nil {
			if !errors.Is(err, worker.ErrBackpressure) {
				m.log.Error("submit generate task", zap.Stringer("coord", c), zap.Error(err))
			}
			return
		}
		m.genQueue.Pop()
		rec.token = token
		rec.state = StateGenerating
		m.genTask[c] = id
	}
}

// generateTask builds the worker closure: try the persistence collaborator
// first, fall back to procedural generation.
func (m *Manager) generateTask(c Coord) func(ctx context.Context) (any, error) {
	loader := m.loader
	gen := m.gen
	return func(ctx context.Context) (any, error) {
		if loader != nil {
			ch, found, err := loader.Load(ctx, c)
			if err != nil {
				return nil, err
			}
			if found {
				return ch, nil
			}
		}
		return gen.Generate(ctx, c)
	}
}

func (m *Manager) requestMesh(c Coord) {
	rec, ok := m.recs[c]
	if !ok {
		return
	}
	switch rec.state {
	case StateLoaded, StateReady:
		if !rec.meshQueued {
			rec.meshQueued = true
			m.meshQ = append(m.meshQ, c)
		}
	case StateMeshing:
		rec.meshQueued = true
	}
}

func (m *Manager) pumpMeshing() {
	for len(m.meshQ) > 0 {
		c := m.meshQ[0]
		rec, ok := m.recs[c]
		if !ok || (rec.state != StateLoaded && rec.state != StateReady) {
			m.meshQ = m.meshQ[1:]
			continue
		}
		ch, resident := m.store.Get(c)
		if !resident {
			m.meshQ = m.meshQ[1:]
			continue
		}

		snap := ch.Snapshot()
		mesher := m.mesher
		task := worker.Task{
			Kind:  worker.KindMesh,
			Coord: c,
			Token: rec.token,
			Run: func(ctx context.Context) (any, error) {
				return mesher.BuildMesh(ctx, snap)
			},
		}
		id, err := m.pool.Submit(task)
		if err != nil {
			return // backpressure: retry next pump
		}
		m.meshQ = m.meshQ[1:]
		rec.meshQueued = false
		rec.state = StateMeshing
		m.meshTask[c] = id
	}
}

func (m *Manager) requestPhysics(c Coord) {
	if m.collider == nil {
		return
	}
	for _, q := range m.physQ {
		if q == c {
			return
		}
	}
	m.physQ = append(m.physQ, c)
}

func (m *Manager) pumpPhysics() {
	for len(m.physQ) > 0 {
		c := m.physQ[0]
		rec, ok := m.recs[c]
		if !ok {
			m.physQ = m.physQ[1:]
			continue
		}
		ch, resident := m.store.Get(c)
		if !resident {
			m.physQ = m.physQ[1:]
			continue
		}

		snap := ch.Snapshot()
		collider := m.collider
		task := worker.Task{
			Kind:  worker.KindPhysics,
			Coord: c,
			Token: rec.token,
			Run: func(ctx context.Context) (any, error) {
				return collider.BuildHeights(ctx, snap)
			},
		}
		if _, err := m.pool.Submit(task); err != nil {
			return
		}
		m.physQ = m.physQ[1:]
	}
}

// applyCachePressure evicts least-recently-used resident chunks beyond
// capacity. In-flight coordinates are never discarded here; Unload is the
// only path that cancels active work.
func (m *Manager) applyCachePressure() {
	evicted := m.cache.EvictOverCapacity(func(c Coord) bool {
		rec, ok := m.recs[c]
		return !ok || !rec.state.InFlight()
	})
	for _, c := range evicted {
		m.store.Remove(c)
		delete(m.heights, c)
		delete(m.recs, c)
		m.log.Debug("evicted chunk", zap.Stringer("coord", c))
	}
}

// SaveDirty persists every resident dirty chunk through the persistence
// collaborator and clears their dirty flags. No-op without a Loader.
func (m *Manager) SaveDirty(ctx context.Context) (int, error) {
	if m.loader == nil {
		return 0, nil
	}
	saved := 0
	var firstErr error
	m.store.EachDirty(func(ch *Chunk) {
		if err := m.loader.Save(ctx, ch); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			m.log.Error("save chunk", zap.Stringer("coord", ch.Coord), zap.Error(err))
			return
		}
		ch.ClearDirty()
		saved++
	})
	return saved, firstErr
}

func (m *Manager) removeFromSlice(q *[]Coord, c Coord) {
	out := (*q)[:0]
	for _, v := range *q {
		if v != c {
			out = append(out, v)
		}
	}
	*q = out
}
