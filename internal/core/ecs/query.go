package ecs

// Query is a lazy, restartable cursor over all entities whose component set
// is a superset of the required types. Iteration order is archetype creation
// order, then attach order within each archetype. Entities destroyed while a
// query is open are skipped, never returned stale.
type Query struct {
	world    *World
	required Mask
	ai       int
	ei       int
}

// Query creates a cursor matching entities that hold all the given types.
func (w *World) Query(types ...ComponentType) *Query {
	return &Query{world: w, required: MaskOf(types...)}
}

// Next advances the cursor and returns the next matching live entity.
func (q *Query) Next() (EntityID, bool) {
	idx := q.world.archetypes
	for q.ai < len(idx.ordered) {
		a := idx.ordered[q.ai]
		if !a.mask.ContainsAll(q.required) {
			q.ai++
			q.ei = 0
			continue
		}
		for q.ei < len(a.entities) {
			id := a.entities[q.ei]
			q.ei++
			if q.world.pool.Alive(id) {
				return id, true
			}
		}
		q.ai++
		q.ei = 0
	}
	return 0, false
}

// Reset rewinds the cursor so the sequence can be iterated again.
func (q *Query) Reset() {
	q.ai = 0
	q.ei = 0
}

// Each runs fn for every match. Shorthand for a full Next loop.
func (q *Query) Each(fn func(EntityID)) {
	q.Reset()
	for id, ok := q.Next(); ok; id, ok = q.Next() {
		fn(id)
	}
}

// Count returns the number of matching live entities without allocating.
func (q *Query) Count() int {
	q.Reset()
	n := 0
	for _, ok := q.Next(); ok; _, ok = q.Next() {
		n++
	}
	return n
}
