// Package clock provides the single process-wide time dependency used by
// the decoder (the order book takes its timestamps from the decoded
// messages), kept behind an interface so tests can inject a deterministic
// source instead of the wall clock.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock returns a monotonically non-decreasing nanosecond timestamp.
type Clock interface {
	NowNanos() int64
}

// Monotonic is the production Clock, backed by the runtime's monotonic
// reading (time.Now() on all supported platforms carries one).
type Monotonic struct{}

// processStart anchors Monotonic: its wall-clock reading gives the Unix
// epoch offset, and its monotonic reading is what elapsed time is measured
// from, so wall-clock adjustments never move NowNanos backwards.
var processStart = time.Now()

// NowNanos implements Clock.
func (Monotonic) NowNanos() int64 {
	return processStart.UnixNano() + int64(time.Since(processStart))
}

// Fake is a Clock a test can advance explicitly. The zero value starts at 0.
type Fake struct {
	nanos atomic.Int64
}

// NewFake returns a Fake seeded at start.
func NewFake(start int64) *Fake {
	f := &Fake{}
	f.nanos.Store(start)
	return f
}

// NowNanos implements Clock.
func (f *Fake) NowNanos() int64 {
	return f.nanos.Load()
}

// Advance moves the fake clock forward by delta nanoseconds and returns the
// new value.
func (f *Fake) Advance(delta int64) int64 {
	return f.nanos.Add(delta)
}

// Set pins the fake clock to an absolute nanosecond value.
func (f *Fake) Set(nanos int64) {
	f.nanos.Store(nanos)
}
