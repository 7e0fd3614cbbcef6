package blow

// History is a bounded FIFO of recent cheek widths. When full, appending
// drops the oldest value.
type History struct {
	values   []int
	capacity int
}

// NewHistory creates an empty History holding at most capacity values.
// A capacity below 1 is treated as 1.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		values:   make([]int, 0, capacity),
		capacity: capacity,
	}
}

// Push appends v, evicting the oldest value if the history is full.
func (h *History) Push(v int) {
	if len(h.values) >= h.capacity {
		// Shift left by 1, removing the oldest value
		copy(h.values, h.values[1:])
		h.values = h.values[:h.capacity-1]
	}
	h.values = append(h.values, v)
}

// Len returns the number of values currently held.
func (h *History) Len() int {
	return len(h.values)
}

// Cap returns the maximum number of values held.
func (h *History) Cap() int {
	return h.capacity
}

// Values returns a copy of the held values, oldest first.
func (h *History) Values() []int {
	out := make([]int, len(h.values))
	copy(out, h.values)
	return out
}

// Clear empties the history.
func (h *History) Clear() {
	h.values = h.values[:0]
}
