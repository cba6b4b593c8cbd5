package sequence

import "container/heap"

// PriorityItem is one entry of a PriorityQueue. Lower Priority values are
// dequeued first; equal priorities leave in insertion order.
type PriorityItem[T any] struct {
	Value    T
	Priority float64
	seq      uint64
	index    int
}

type priorityQueue[T any] struct {
	items []*PriorityItem[T]
}

func (pq *priorityQueue[T]) Len() int {
	return len(pq.items)
}

func (pq *priorityQueue[T]) Less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.seq < b.seq
}

func (pq *priorityQueue[T]) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	pq.items[i].index = i
	pq.items[j].index = j
}

func (pq *priorityQueue[T]) Push(x any) {
	item := x.(*PriorityItem[T])
	item.index = len(pq.items)
	pq.items = append(pq.items, item)
}

func (pq *priorityQueue[T]) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	pq.items = old[0 : n-1]
	return item
}

// PriorityQueue is a stable min-priority queue.
type PriorityQueue[T any] struct {
	pq   priorityQueue[T]
	next uint64
}

func NewPriorityQueue[T any](capacity int) *PriorityQueue[T] {
	pq := &PriorityQueue[T]{pq: priorityQueue[T]{items: make([]*PriorityItem[T], 0, capacity)}}
	heap.Init(&pq.pq)
	return pq
}

func (pq *PriorityQueue[T]) Enqueue(value T, priority float64) *PriorityItem[T] {
	item := &PriorityItem[T]{
		Value:    value,
		Priority: priority,
		seq:      pq.next,
	}
	pq.next++
	heap.Push(&pq.pq, item)
	return item
}

func (pq *PriorityQueue[T]) Dequeue() (T, bool) {
	if pq.pq.Len() == 0 {
		var zero T
		return zero, false
	}
	item := heap.Pop(&pq.pq).(*PriorityItem[T])
	return item.Value, true
}

func (pq *PriorityQueue[T]) Peek() (T, bool) {
	if pq.pq.Len() == 0 {
		var zero T
		return zero, false
	}
	return pq.pq.items[0].Value, true
}

func (pq *PriorityQueue[T]) Len() int {
	return pq.pq.Len()
}

func (pq *PriorityQueue[T]) IsEmpty() bool {
	return pq.pq.Len() == 0
}
