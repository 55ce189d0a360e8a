package ecs

// Archetype is the bucket of all entities holding exactly one component set.
// Entities are kept in attach order; removal shifts the tail so iteration
// order stays deterministic.
type Archetype struct {
	mask     Mask
	entities []EntityID
	position map[EntityID]int
}

func newArchetype(mask Mask) *Archetype {
	return &Archetype{
		mask:     mask,
		entities: make([]EntityID, 0, 16),
		position: make(map[EntityID]int, 16),
	}
}

func (a *Archetype) Mask() Mask { return a.mask }
func (a *Archetype) Len() int   { return len(a.entities) }

func (a *Archetype) add(id EntityID) {
	a.position[id] = len(a.entities)
	a.entities = append(a.entities, id)
}

func (a *Archetype) remove(id EntityID) {
	pos, ok := a.position[id]
	if !ok {
		return
	}
	copy(a.entities[pos:], a.entities[pos+1:])
	a.entities = a.entities[:len(a.entities)-1]
	delete(a.position, id)
	for i := pos; i < len(a.entities); i++ {
		a.position[a.entities[i]] = i
	}
}

func (a *Archetype) contains(id EntityID) bool {
	_, ok := a.position[id]
	return ok
}

// ArchetypeIndex groups entities by their exact component set. Every live
// entity belongs to exactly one archetype at all times; attach/detach moves
// it between buckets. Buckets are never deleted so query iteration order
// (archetype creation order) is stable for the life of the world.
type ArchetypeIndex struct {
	ordered []*Archetype
	byMask  map[Mask]*Archetype
}

func NewArchetypeIndex() *ArchetypeIndex {
	idx := &ArchetypeIndex{
		ordered: make([]*Archetype, 0, 16),
		byMask:  make(map[Mask]*Archetype, 16),
	}
	return idx
}

// bucket returns the archetype for an exact mask, creating it on first use.
func (x *ArchetypeIndex) bucket(mask Mask) *Archetype {
	a, ok := x.byMask[mask]
	if !ok {
		a = newArchetype(mask)
		x.byMask[mask] = a
		x.ordered = append(x.ordered, a)
	}
	return a
}

// place puts a freshly created entity into the empty-set archetype.
func (x *ArchetypeIndex) place(id EntityID) {
	x.bucket(0).add(id)
}

// move transfers an entity between archetypes after a component set change.
func (x *ArchetypeIndex) move(id EntityID, from, to Mask) {
	if from == to {
		return
	}
	x.bucket(from).remove(id)
	x.bucket(to).add(id)
}

// drop removes a destroyed entity from its archetype.
func (x *ArchetypeIndex) drop(id EntityID, mask Mask) {
	x.bucket(mask).remove(id)
}

// Lookup returns the archetype currently holding the entity, or nil.
func (x *ArchetypeIndex) Lookup(id EntityID, mask Mask) *Archetype {
	a, ok := x.byMask[mask]
	if !ok || !a.contains(id) {
		return nil
	}
	return a
}
