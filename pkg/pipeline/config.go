package pipeline

import "time"

// Config bounds every fixed-size resource the pipeline allocates at
// construction. DefaultConfig returns every field populated with a sane
// default.
type Config struct {
	// RB0Capacity, RB1Capacity, RB2Capacity must each be a power of two.
	RB0Capacity int
	RB1Capacity int
	RB2Capacity int

	BufferPoolSize int
	BufferSlotSize int

	// MaxSymbols bounds the dense books array; symbol indices outside
	// [0, MaxSymbols) are dropped by the book worker.
	MaxSymbols int

	// ColdPathSleep is how long the cold-path worker sleeps when RB2 is
	// empty. Must be at least 1ms so it cannot starve the hot loops on a
	// shared core.
	ColdPathSleep time.Duration

	// Shutdown join timeouts, one per worker, in the order decoder,
	// book-builder, cold-path.
	DecoderShutdownTimeout time.Duration
	BookShutdownTimeout    time.Duration
	ColdShutdownTimeout    time.Duration
}

// DefaultConfig returns production-sized defaults: RB0/RB1 at 2^16, RB2 at
// 2^15, a 1024-slot buffer pool, 1000 symbols, a 1ms cold-path sleep and
// 5s/5s/2s shutdown join timeouts.
func DefaultConfig() Config {
	return Config{
		RB0Capacity:            1 << 16,
		RB1Capacity:            1 << 16,
		RB2Capacity:            1 << 15,
		BufferPoolSize:         DefaultBufferPoolSize,
		BufferSlotSize:         DefaultBufferSlotSize,
		MaxSymbols:             1000,
		ColdPathSleep:          time.Millisecond,
		DecoderShutdownTimeout: 5 * time.Second,
		BookShutdownTimeout:    5 * time.Second,
		ColdShutdownTimeout:    2 * time.Second,
	}
}
