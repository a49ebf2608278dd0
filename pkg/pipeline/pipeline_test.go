package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/mdfeed/pkg/book"
	"github.com/luxfi/mdfeed/pkg/clock"
	"github.com/luxfi/mdfeed/pkg/wire"
)

// recordingSink collects every snapshot handed to it, for assertions made
// after Stop() has already joined the cold-path worker.
type recordingSink struct {
	mu    sync.Mutex
	snaps []book.Snapshot
}

func (s *recordingSink) Publish(snap book.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *recordingSink) all() []book.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]book.Snapshot, len(s.snaps))
	copy(out, s.snaps)
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RB0Capacity = 1024
	cfg.RB1Capacity = 1024
	cfg.RB2Capacity = 2048
	cfg.MaxSymbols = 16
	cfg.ColdPathSleep = time.Millisecond
	return cfg
}

func newOrderMsg(symbolIndex uint32, side wire.Side, price int64, qty uint64, orderID uint64) wire.Message {
	return wire.Message{
		Kind:        wire.MsgNewOrder,
		Side:        side,
		SymbolIndex: symbolIndex,
		Price:       price,
		Quantity:    qty,
		OrderID:     orderID,
	}
}

// Injecting a message for a given symbol eventually surfaces a snapshot for
// that symbol reflecting the injected message.
func TestInjectionPathVisible(t *testing.T) {
	p, err := New(testConfig(), clock.NewFake(1), nil)
	require.NoError(t, err)

	p.Start()
	defer p.Stop()

	require.True(t, p.InjectMessage(newOrderMsg(3, wire.SideBuy, 100*1e8, 50, 1)))

	var snap book.Snapshot
	require.Eventually(t, func() bool {
		s, ok := p.TryReadSnapshot()
		if !ok {
			return false
		}
		snap = s
		return snap.SymbolIndex == 3
	}, time.Second, time.Millisecond)

	assert.Equal(t, int64(100*1e8), snap.BestBid.Price)
	assert.Equal(t, uint64(50), snap.BestBid.Quantity)
}

// Stopping the pipeline after injecting messages drains every ring and the
// sink observes at least one snapshot for the affected symbol.
func TestDrainOnStop(t *testing.T) {
	sink := &recordingSink{}
	p, err := New(testConfig(), clock.NewFake(1), sink)
	require.NoError(t, err)

	p.Start()
	for i := uint64(1); i <= 20; i++ {
		require.True(t, p.InjectMessage(newOrderMsg(2, wire.SideBuy, int64(i)*1e8, 1, i)))
	}
	p.Stop()

	snaps := sink.all()
	require.NotEmpty(t, snaps)

	found := false
	for _, s := range snaps {
		if s.SymbolIndex == 2 {
			found = true
		}
	}
	assert.True(t, found)

	stats := p.Stats()
	assert.Zero(t, stats.RB0ToRead)
	assert.Zero(t, stats.RB1ToRead)
	assert.Zero(t, stats.RB2ToRead)
}

// 1,000 alternating NewOrder messages on one symbol all make it through the
// pipeline, and the final snapshot reflects the true running best bid.
func TestScenarioThousandAlternatingOrders(t *testing.T) {
	sink := &recordingSink{}
	p, err := New(testConfig(), clock.NewFake(1), sink)
	require.NoError(t, err)

	p.Start()

	var maxBid int64
	for i := uint64(1); i <= 1000; i++ {
		// Cycle through 50 distinct prices, 25 per side (odd prices to bids,
		// even prices to asks), 20 orders each, so neither the 256-level cap
		// nor the 32-orders-per-level cap is reached; every message is then
		// accepted.
		price := int64(1+(i-1)%50) * 1e8
		var side wire.Side
		if i%2 == 1 {
			side = wire.SideBuy
			if price > maxBid {
				maxBid = price
			}
		} else {
			side = wire.SideSell
		}
		require.True(t, p.InjectMessage(newOrderMsg(0, side, price, 1, i)))
	}
	p.Stop()

	snaps := sink.all()
	require.NotEmpty(t, snaps)

	last := snaps[len(snaps)-1]
	for _, s := range snaps {
		if s.SymbolIndex == 0 && s.UpdateCount > last.UpdateCount {
			last = s
		}
	}

	assert.Equal(t, uint64(1000), last.UpdateCount)
	assert.Equal(t, maxBid, last.BestBid.Price)
}

// End-to-end ingress: publish_raw carries a wire-encoded packet all the way
// through decode and book application to a readable snapshot.
func TestPublishRawReachesBook(t *testing.T) {
	var b []byte
	presence := byte(0x01 | 0x02 | 0x04 | 0x08)
	b = append(b, presence)
	b = append(b, 0x80)     // template id
	b = append(b, 0x80|1)   // seq num = 1
	b = append(b, 'D')      // NewOrder
	b = append(b, 0x80|10)  // sending time
	b = append(b, 0x80|4)   // SecurityId = 4 -> symbol index 4
	b = append(b, 0x80)     // price exponent = 0 -> k=8
	b = append(b, 0x80|7)   // price mantissa = 7 -> price = 7e8
	b = append(b, 0x80|20)  // quantity = 20
	b = append(b, '1')      // side buy
	for len(b) < 16 {
		b = append(b, 0)
	}

	p, err := New(testConfig(), clock.NewFake(1), nil)
	require.NoError(t, err)

	p.Start()
	defer p.Stop()

	require.True(t, p.PublishRaw(b, 1, 9))

	var snap book.Snapshot
	require.Eventually(t, func() bool {
		s, ok := p.TryReadSnapshot()
		if ok {
			snap = s
		}
		return ok && snap.SymbolIndex == 4
	}, time.Second, time.Millisecond)

	assert.Equal(t, int64(7*1e8), snap.BestBid.Price)
	assert.Equal(t, uint64(20), snap.BestBid.Quantity)
	assert.Equal(t, uint64(1), p.Stats().TotalPackets)
}
