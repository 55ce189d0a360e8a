package ecs

// ComponentType is a small integer tag identifying a component kind.
// Types are fixed at compile time; at most MaxComponentTypes are supported
// so an entity's full component set fits in a single Mask word.
type ComponentType uint8

const MaxComponentTypes = 64

// Mask is a bitset over ComponentTypes describing an exact component set.
type Mask uint64

func (m Mask) With(t ComponentType) Mask    { return m | 1<<t }
func (m Mask) Without(t ComponentType) Mask { return m &^ (1 << t) }
func (m Mask) Has(t ComponentType) bool     { return m&(1<<t) != 0 }

// ContainsAll reports whether m is a superset of required.
func (m Mask) ContainsAll(required Mask) bool { return m&required == required }

// MaskOf builds a Mask from a list of component types.
func MaskOf(types ...ComponentType) Mask {
	var m Mask
	for _, t := range types {
		m = m.With(t)
	}
	return m
}

// componentStore holds one component kind as a slot-indexed dense column.
// data[i] is the component of the entity occupying slot i, or nil.
type componentStore struct {
	data []any
}

func (s *componentStore) set(idx uint32, c any) {
	for int(idx) >= len(s.data) {
		s.data = append(s.data, nil)
	}
	s.data[idx] = c
}

func (s *componentStore) get(idx uint32) any {
	if int(idx) >= len(s.data) {
		return nil
	}
	return s.data[idx]
}

func (s *componentStore) remove(idx uint32) {
	if int(idx) < len(s.data) {
		s.data[idx] = nil
	}
}
