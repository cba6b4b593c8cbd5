package server

import "sync"

// History keeps the most recent encoded race events so late joiners can catch
// up on what happened before they connected.
type History struct {
	mu    sync.Mutex
	items [][]byte
	next  int
	full  bool
}

func NewHistory(size int) *History {
	return &History{items: make([][]byte, size)}
}

func (h *History) Add(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.items) == 0 {
		return
	}
	h.items[h.next] = msg
	h.next = (h.next + 1) % len(h.items)
	if h.next == 0 {
		h.full = true
	}
}

// Get returns the stored events oldest first.
func (h *History) Get() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full {
		return append([][]byte(nil), h.items[:h.next]...)
	}
	out := make([][]byte, 0, len(h.items))
	out = append(out, h.items[h.next:]...)
	return append(out, h.items[:h.next]...)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.items)
	h.next = 0
	h.full = false
}
