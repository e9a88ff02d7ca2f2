package session

import "math"

// Counter is the per-direction block counter that forms the variable part
// of each nonce. It only moves forward.
type Counter struct {
	value uint64
}

// Value returns the next unused counter value.
func (c *Counter) Value() uint64 {
	return c.value
}

// CanAdvance reports whether n more values are available.
func (c *Counter) CanAdvance(n uint64) bool {
	return n <= math.MaxUint64-c.value
}

// Advance consumes n values. Callers check CanAdvance first.
func (c *Counter) Advance(n uint64) {
	c.value += n
}
