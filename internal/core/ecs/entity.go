package ecs

// EntityID encodes a 32-bit slot index in the lower bits and a 32-bit
// generation in the upper bits. Generation increments on destroy so stale
// handles fail lookups instead of aliasing a reused slot.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

// EntityPool manages entity allocation with generational indices and a free list.
type EntityPool struct {
	generations []uint32
	alive       []bool
	freeList    []uint32
	nextIndex   uint32
	liveCount   int
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint32, 0, 1024),
		alive:       make([]bool, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

func (p *EntityPool) Create() EntityID {
	var idx uint32
	if len(p.freeList) > 0 {
		idx = p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
	} else {
		idx = p.nextIndex
		p.nextIndex++
		if int(idx) >= len(p.generations) {
			p.generations = append(p.generations, 0)
			p.alive = append(p.alive, false)
		}
	}
	p.alive[idx] = true
	p.liveCount++
	return NewEntityID(idx, p.generations[idx])
}

// Destroy releases the slot and bumps its generation. Returns false if the
// handle is stale or was never allocated.
func (p *EntityPool) Destroy(id EntityID) bool {
	idx := id.Index()
	if !p.validate(id) {
		return false
	}
	p.alive[idx] = false
	p.generations[idx]++
	p.freeList = append(p.freeList, idx)
	p.liveCount--
	return true
}

// Alive reports whether the handle refers to a live entity of the same
// generation.
func (p *EntityPool) Alive(id EntityID) bool {
	return p.validate(id)
}

func (p *EntityPool) Len() int { return p.liveCount }

func (p *EntityPool) validate(id EntityID) bool {
	idx := id.Index()
	if int(idx) >= len(p.generations) {
		return false
	}
	return p.alive[idx] && p.generations[idx] == id.Generation()
}
