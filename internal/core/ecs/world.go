package ecs

import "errors"

var (
	// ErrEntityNotFound is returned for stale or never-allocated handles.
	// Concurrent destroy+use is expected gameplay behaviour, never a crash.
	ErrEntityNotFound = errors.New("ecs: entity not found")

	// ErrComponentNotPresent is returned by Detach when the entity does not
	// hold the component.
	ErrComponentNotPresent = errors.New("ecs: component not present")
)

// World is the top-level ECS container. It owns the entity pool, per-type
// component columns, the archetype index, and a deferred destruction queue
// flushed at end of tick. Single-owner: mutated only from the game loop
// goroutine, never concurrently with worker result processing.
type World struct {
	pool         *EntityPool
	stores       [MaxComponentTypes]componentStore
	masks        []Mask
	archetypes   *ArchetypeIndex
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		archetypes:   NewArchetypeIndex(),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool           { return w.pool }
func (w *World) Archetypes() *ArchetypeIndex { return w.archetypes }

// Create allocates a new entity. It starts in the empty archetype.
func (w *World) Create() EntityID {
	id := w.pool.Create()
	idx := id.Index()
	for int(idx) >= len(w.masks) {
		w.masks = append(w.masks, 0)
	}
	w.masks[idx] = 0
	w.archetypes.place(id)
	return id
}

// Destroy removes the entity, clears its components, and invalidates the
// handle. Any outstanding copy of the handle fails with ErrEntityNotFound
// afterwards.
func (w *World) Destroy(id EntityID) error {
	if !w.pool.Alive(id) {
		return ErrEntityNotFound
	}
	idx := id.Index()
	mask := w.masks[idx]
	w.archetypes.drop(id, mask)
	for t := ComponentType(0); t < MaxComponentTypes; t++ {
		if mask.Has(t) {
			w.stores[t].remove(idx)
		}
	}
	w.masks[idx] = 0
	w.pool.Destroy(id)
	return nil
}

// Attach stores a component on the entity and moves it to the matching
// archetype. Re-attaching an already-present type replaces the data in place.
func (w *World) Attach(id EntityID, t ComponentType, data any) error {
	if !w.pool.Alive(id) {
		return ErrEntityNotFound
	}
	idx := id.Index()
	w.stores[t].set(idx, data)
	old := w.masks[idx]
	next := old.With(t)
	if next != old {
		w.masks[idx] = next
		w.archetypes.move(id, old, next)
	}
	return nil
}

// Detach removes a component from the entity and moves it to the matching
// archetype.
func (w *World) Detach(id EntityID, t ComponentType) error {
	if !w.pool.Alive(id) {
		return ErrEntityNotFound
	}
	idx := id.Index()
	old := w.masks[idx]
	if !old.Has(t) {
		return ErrComponentNotPresent
	}
	w.stores[t].remove(idx)
	next := old.Without(t)
	w.masks[idx] = next
	w.archetypes.move(id, old, next)
	return nil
}

// Has reports whether a live entity holds the component type.
func (w *World) Has(id EntityID, t ComponentType) bool {
	if !w.pool.Alive(id) {
		return false
	}
	return w.masks[id.Index()].Has(t)
}

// MaskOfEntity returns the entity's current component set, or 0 for stale
// handles.
func (w *World) MaskOfEntity(id EntityID) Mask {
	if !w.pool.Alive(id) {
		return 0
	}
	return w.masks[id.Index()]
}

// Get returns the entity's component of type T under the given tag. Callers
// attach pointers, so mutations through the result are visible in place.
func Get[T any](w *World, id EntityID, t ComponentType) (*T, bool) {
	if !w.pool.Alive(id) || !w.masks[id.Index()].Has(t) {
		return nil, false
	}
	c, ok := w.stores[t].get(id.Index()).(*T)
	return c, ok
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// FlushDestroyQueue destroys all queued entities. Called by CleanupSystem at
// the end of each tick; stale queue entries are ignored.
func (w *World) FlushDestroyQueue() {
	for _, id := range w.destroyQueue {
		_ = w.Destroy(id)
	}
	w.destroyQueue = w.destroyQueue[:0]
}
