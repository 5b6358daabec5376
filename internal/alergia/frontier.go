package alergia

import (
	"container/heap"
)

// frontier is the blue state queue. Removal is lazy: removed states stay in
// the backing storage and are skipped on pop.
type frontier struct {
	order  Order
	items  []int
	head   int
	queued []bool
	size   int
	heap   *stateHeap
}

func newFrontier(order Order, numStates int, access func(int) *accessString) *frontier {
	f := &frontier{order: order, queued: make([]bool, numStates)}
	switch order {
	case OrderCanonical:
		f.heap = &stateHeap{access: access, cmp: compareCanonical}
	case OrderLex:
		f.heap = &stateHeap{access: access, cmp: compareLex}
	}
	return f
}

func (f *frontier) push(s int) {
	if f.queued[s] {
		return
	}
	f.queued[s] = true
	f.size++
	if f.heap != nil {
		heap.Push(f.heap, s)
		return
	}
	f.items = append(f.items, s)
}

func (f *frontier) pop() (int, bool) {
	for f.size > 0 {
		var s int
		switch {
		case f.heap != nil:
			s = heap.Pop(f.heap).(int)
		case f.order == OrderLIFO:
			s = f.items[len(f.items)-1]
			f.items = f.items[:len(f.items)-1]
		default:
			s = f.items[f.head]
			f.head++
			if f.head > 64 && f.head*2 > len(f.items) {
				f.items = append(f.items[:0], f.items[f.head:]...)
				f.head = 0
			}
		}
		if f.queued[s] {
			f.queued[s] = false
			f.size--
			return s, true
		}
	}
	return -1, false
}

func (f *frontier) remove(s int) {
	if f.queued[s] {
		f.queued[s] = false
		f.size--
	}
}

func (f *frontier) contains(s int) bool { return f.queued[s] }

func (f *frontier) len() int { return f.size }

type stateHeap struct {
	ids    []int
	access func(int) *accessString
	cmp    func(a, b *accessString) int
}

func (h *stateHeap) Len() int { return len(h.ids) }
func (h *stateHeap) Less(i, j int) bool {
	return h.cmp(h.access(h.ids[i]), h.access(h.ids[j])) < 0
}
func (h *stateHeap) Swap(i, j int) { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }
func (h *stateHeap) Push(x any)    { h.ids = append(h.ids, x.(int)) }
func (h *stateHeap) Pop() any {
	n := len(h.ids)
	x := h.ids[n-1]
	h.ids = h.ids[:n-1]
	return x
}
