package chunk

import "container/heap"

// requestQueue is a priority queue of pending chunk requests keyed on
// (priority, insertion order). Lower priority values are served first; ties
// break FIFO. One entry per coordinate — a repeat request can only raise the
// stored priority, never lower it or enqueue a duplicate.
type requestQueue struct {
	items  requestHeap
	byCoord map[Coord]*requestItem
	nextSeq uint64
}

type requestItem struct {
	coord    Coord
	priority int
	seq      uint64
	index    int
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		byCoord: make(map[Coord]*requestItem, 64),
	}
}

func (q *requestQueue) Len() int { return len(q.items) }

// Push enqueues the coordinate or raises the priority of its existing entry.
// Returns true if anything changed.
func (q *requestQueue) Push(c Coord, priority int) bool {
	if it, ok := q.byCoord[c]; ok {
		if priority >= it.priority {
			return false
		}
		it.priority = priority
		heap.Fix(&q.items, it.index)
		return true
	}
	it := &requestItem{coord: c, priority: priority, seq: q.nextSeq}
	q.nextSeq++
	q.byCoord[c] = it
	heap.Push(&q.items, it)
	return true
}

// Pop removes and returns the best (lowest priority, oldest) request.
func (q *requestQueue) Pop() (Coord, int, bool) {
	if len(q.items) == 0 {
		return Coord{}, 0, false
	}
	it := heap.Pop(&q.items).(*requestItem)
	delete(q.byCoord, it.coord)
	return it.coord, it.priority, true
}

// Peek returns the best request without removing it.
func (q *requestQueue) Peek() (Coord, int, bool) {
	if len(q.items) == 0 {
		return Coord{}, 0, false
	}
	return q.items[0].coord, q.items[0].priority, true
}

// Remove drops the coordinate's entry if present.
func (q *requestQueue) Remove(c Coord) bool {
	it, ok := q.byCoord[c]
	if !ok {
		return false
	}
	heap.Remove(&q.items, it.index)
	delete(q.byCoord, c)
	return true
}

// Contains reports whether the coordinate is queued.
func (q *requestQueue) Contains(c Coord) bool {
	_, ok := q.byCoord[c]
	return ok
}

// Priority returns the stored priority for a queued coordinate.
func (q *requestQueue) Priority(c Coord) (int, bool) {
	it, ok := q.byCoord[c]
	if !ok {
		return 0, false
	}
	return it.priority, true
}

// DropWorst removes and returns the entry that would be served last. Linear
// scan; only used when the queue outgrows its bound, which is rare.
func (q *requestQueue) DropWorst() (Coord, bool) {
	if len(q.items) == 0 {
		return Coord{}, false
	}
	worst := 0
	for i := 1; i < len(q.items); i++ {
		if q.items[i].worseThan(q.items[worst]) {
			worst = i
		}
	}
	it := heap.Remove(&q.items, worst).(*requestItem)
	delete(q.byCoord, it.coord)
	return it.coord, true
}

func (a *requestItem) worseThan(b *requestItem) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.seq > b.seq
}

// requestHeap implements heap.Interface; min on (priority, seq).
type requestHeap []*requestItem

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h requestHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *requestHeap) Push(x any) {
	it := x.(*requestItem)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
