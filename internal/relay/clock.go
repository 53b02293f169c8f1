package relay

import "time"

// Clock supplies the millisecond counter used for channel deadlines.
type Clock interface {
	Now() Millis
}

// SystemClock counts milliseconds since Start using Go's monotonic clock,
// truncated to 32 bits. Wall-clock adjustments do not affect it.
type SystemClock struct {
	Start time.Time
}

// NewSystemClock returns a clock starting at zero now.
func NewSystemClock() SystemClock {
	return SystemClock{Start: time.Now()}
}

// Now returns the current counter value.
func (c SystemClock) Now() Millis {
	return Millis(uint32(time.Since(c.Start).Milliseconds()))
}
