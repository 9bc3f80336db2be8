package memorystore

import "sort"

// DefaultMaxHistory bounds footprint and CVD history per subscription.
const DefaultMaxHistory = 500

// History is a fixed-capacity map ordered by an int64 key (a candle open or close time).
// Inserting past capacity evicts the smallest keys. It is owned by a single goroutine.
type History[V any] struct {
	capacity int
	keys     []int64 // ascending
	values   map[int64]V
}

func NewHistory[V any](capacity int) *History[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[V]{
		capacity: capacity,
		values:   make(map[int64]V, capacity),
	}
}

// Put stores v under key, replacing any previous value, and returns the number of evicted entries.
func (h *History[V]) Put(key int64, v V) int {
	if _, ok := h.values[key]; ok {
		h.values[key] = v
		return 0
	}
	h.values[key] = v

	// Keys almost always arrive in increasing order.
	if n := len(h.keys); n == 0 || h.keys[n-1] < key {
		h.keys = append(h.keys, key)
	} else {
		i := sort.Search(n, func(i int) bool { return h.keys[i] >= key })
		h.keys = append(h.keys, 0)
		copy(h.keys[i+1:], h.keys[i:])
		h.keys[i] = key
	}

	evicted := 0
	for len(h.keys) > h.capacity {
		delete(h.values, h.keys[0])
		h.keys = h.keys[1:]
		evicted++
	}
	return evicted
}

func (h *History[V]) Get(key int64) (V, bool) {
	v, ok := h.values[key]
	return v, ok
}

// Values returns the stored values in ascending key order.
func (h *History[V]) Values() []V {
	out := make([]V, 0, len(h.keys))
	for _, k := range h.keys {
		out = append(out, h.values[k])
	}
	return out
}

func (h *History[V]) Len() int {
	return len(h.keys)
}

func (h *History[V]) Reset() {
	h.keys = nil
	h.values = make(map[int64]V, h.capacity)
}
