package chunk

// Store owns the in-memory chunk payloads. Control-goroutine only; worker
// tasks receive chunks by ownership transfer and never touch the map.
type Store struct {
	chunks map[Coord]*Chunk
}

func NewStore() *Store {
	return &Store{
		chunks: make(map[Coord]*Chunk, 256),
	}
}

func (s *Store) Get(c Coord) (*Chunk, bool) {
	ch, ok := s.chunks[c]
	return ch, ok
}

func (s *Store) Put(ch *Chunk) {
	s.chunks[ch.Coord] = ch
}

func (s *Store) Remove(c Coord) {
	delete(s.chunks, c)
}

func (s *Store) Len() int { return len(s.chunks) }

// EachDirty visits every dirty chunk. The callback may clear the flag.
func (s *Store) EachDirty(fn func(*Chunk)) {
	for _, ch := range s.chunks {
		if ch.dirty {
			fn(ch)
		}
	}
}
