package engine

import "sync/atomic"

// Clock stamps outcomes with a strictly increasing logical sequence number.
//
// Outcome order within a run is defined by seq, never by wall time, so the
// journal reads back in the order calls were recorded even when two calls
// finish within the same clock tick.
//
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out, or 0.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
