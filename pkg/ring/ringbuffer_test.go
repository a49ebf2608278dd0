package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Construction succeeds iff capacity is a positive power of two.
func TestCapacityMustBePowerOfTwo(t *testing.T) {
	cases := []struct {
		capacity int
		ok       bool
	}{
		{1, true}, {2, true}, {4, true}, {1024, true}, {65536, true},
		{0, false}, {-1, false}, {3, false}, {5, false}, {100, false},
	}
	for _, c := range cases {
		_, err := New[int64](c.capacity)
		if c.ok {
			assert.NoErrorf(t, err, "capacity %d should succeed", c.capacity)
		} else {
			assert.ErrorIsf(t, err, ErrInvalidCapacity, "capacity %d should fail", c.capacity)
		}
	}
}

// A value written and then read back comes out unchanged.
func TestRoundTrip(t *testing.T) {
	rb, err := New[int64](4)
	require.NoError(t, err)

	ok := rb.TryWrite(42)
	require.True(t, ok)

	v, ok := rb.TryRead()
	require.True(t, ok)
	assert.Equal(t, int64(42), v)
}

// Reads return writes in the order they were made.
func TestFIFO(t *testing.T) {
	rb, err := New[int64](8)
	require.NoError(t, err)

	for i := int64(1); i <= 6; i++ {
		require.True(t, rb.TryWrite(i))
	}
	for i := int64(1); i <= 6; i++ {
		v, ok := rb.TryRead()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

// Writing past capacity fails; freeing a slot by reading makes room for
// exactly one more write.
func TestCapacityBound(t *testing.T) {
	rb, err := New[int64](4)
	require.NoError(t, err)

	assert.True(t, rb.TryWrite(1))
	assert.True(t, rb.TryWrite(2))
	assert.True(t, rb.TryWrite(3))
	assert.True(t, rb.TryWrite(4))
	assert.False(t, rb.TryWrite(5))

	v, ok := rb.TryRead()
	require.True(t, ok)
	assert.Equal(t, int64(1), v)

	assert.True(t, rb.TryWrite(5))

	want := []int64{2, 3, 4, 5}
	for _, w := range want {
		v, ok := rb.TryRead()
		require.True(t, ok)
		assert.Equal(t, w, v)
	}
	_, ok = rb.TryRead()
	assert.False(t, ok)
}

// Repeated fill-then-drain cycles preserve FIFO order across the modular
// index wrap.
func TestWrapAround(t *testing.T) {
	rb, err := New[int64](4)
	require.NoError(t, err)

	next := int64(1)
	for cycle := 0; cycle < 20; cycle++ {
		for i := 0; i < 4; i++ {
			require.True(t, rb.TryWrite(next))
			next++
		}
		require.False(t, rb.TryWrite(next))
		for i := 0; i < 4; i++ {
			v, ok := rb.TryRead()
			require.True(t, ok)
			assert.Equal(t, next-4+int64(i), v)
		}
		_, ok := rb.TryRead()
		assert.False(t, ok)
	}
}

// One writer enqueuing 1..n concurrently with one reader dequeuing to
// exhaustion: every value is read exactly once and the sum is preserved.
func TestConcurrentIntegrity(t *testing.T) {
	const n = 100_000
	rb, err := New[int64](1024)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := int64(1); i <= n; i++ {
			for !rb.TryWrite(i) {
				// spin, matches the pipeline's own back-off contract
			}
		}
	}()

	var sum, count int64
	seen := make(map[int64]bool, n)
	go func() {
		defer wg.Done()
		for count < n {
			v, ok := rb.TryRead()
			if !ok {
				continue
			}
			sum += v
			count++
			assert.False(t, seen[v], "duplicate value %d", v)
			seen[v] = true
		}
	}()

	wg.Wait()
	assert.Equal(t, int64(n), count)
	assert.Equal(t, int64(n*(n+1)/2), sum)
}

func TestAvailableAndEmptyFull(t *testing.T) {
	rb, err := New[int64](4)
	require.NoError(t, err)

	assert.True(t, rb.IsEmpty())
	assert.False(t, rb.IsFull())
	assert.Equal(t, 4, rb.AvailableToWrite())
	assert.Equal(t, 0, rb.AvailableToRead())

	rb.TryWrite(1)
	rb.TryWrite(2)
	assert.Equal(t, 2, rb.AvailableToRead())
	assert.Equal(t, 2, rb.AvailableToWrite())

	rb.TryWrite(3)
	rb.TryWrite(4)
	assert.True(t, rb.IsFull())
}

func TestReset(t *testing.T) {
	rb, err := New[int64](4)
	require.NoError(t, err)

	rb.TryWrite(1)
	rb.TryWrite(2)
	rb.Reset()

	assert.True(t, rb.IsEmpty())
	assert.True(t, rb.TryWrite(9))
	v, ok := rb.TryRead()
	require.True(t, ok)
	assert.Equal(t, int64(9), v)
}
