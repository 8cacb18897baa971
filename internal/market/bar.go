package market

import "time"

// Bar represents a single OHLCV bar. Bars are immutable values; mutation happens
// only by building new bars during aggregation.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// RingBuffer is a bounded FIFO of bars. When full, pushing evicts the oldest bar.
type RingBuffer struct {
	bars     []Bar
	capacity int
	head     int // index of the oldest bar
	size     int
}

// NewRingBuffer creates a buffer holding at most capacity bars.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		bars:     make([]Bar, capacity),
		capacity: capacity,
	}
}

// Push appends a bar, evicting the oldest when the buffer is full.
func (rb *RingBuffer) Push(bar Bar) {
	if rb.size < rb.capacity {
		rb.bars[(rb.head+rb.size)%rb.capacity] = bar
		rb.size++
		return
	}
	rb.bars[rb.head] = bar
	rb.head = (rb.head + 1) % rb.capacity
}

// Len returns the number of bars currently held.
func (rb *RingBuffer) Len() int {
	return rb.size
}

// Last returns the most recent n bars in chronological order. If fewer than n
// bars are held, all of them are returned.
func (rb *RingBuffer) Last(n int) []Bar {
	if n > rb.size {
		n = rb.size
	}
	if n <= 0 {
		return []Bar{}
	}
	out := make([]Bar, n)
	start := rb.size - n
	for i := 0; i < n; i++ {
		out[i] = rb.bars[(rb.head+start+i)%rb.capacity]
	}
	return out
}

// All returns every held bar in chronological order.
func (rb *RingBuffer) All() []Bar {
	return rb.Last(rb.size)
}
