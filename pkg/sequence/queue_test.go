package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityQueueOrdersByPriority(t *testing.T) {
	pq := NewPriorityQueue[string](4)
	pq.Enqueue("c", 3)
	pq.Enqueue("a", 1)
	pq.Enqueue("b", 2)

	v, ok := pq.Peek()
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	var out []string
	for !pq.IsEmpty() {
		v, _ := pq.Dequeue()
		out = append(out, v)
	}
	assert.Equal(t, []string{"a", "b", "c"}, out)

	_, ok = pq.Dequeue()
	assert.False(t, ok)
	_, ok = pq.Peek()
	assert.False(t, ok)
}

func TestPriorityQueueTiesKeepInsertionOrder(t *testing.T) {
	pq := NewPriorityQueue[int](0)
	for i := 0; i < 50; i++ {
		pq.Enqueue(i, 7.5)
	}
	pq.Enqueue(-1, 1)

	first, _ := pq.Dequeue()
	assert.Equal(t, -1, first)
	for want := 0; want < 50; want++ {
		got, ok := pq.Dequeue()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, pq.Len())
}
