package book

import (
	"sync/atomic"

	"github.com/luxfi/mdfeed/pkg/wire"
)

// side holds one book side's pre-allocated, sorted price levels plus its
// cached best-of-book. Bids are kept strictly descending, asks strictly
// ascending; findOrCreateLevel maintains that invariant on insert.
type side struct {
	levels [MaxPriceLevels]PriceLevel
	count  int
	isBid  bool
	best   BestQuote
}

// better reports whether newPrice would sort ahead of currentPrice on this
// side (higher for bids, lower for asks).
func (s *side) better(newPrice, currentPrice int64) bool {
	if s.isBid {
		return newPrice > currentPrice
	}
	return newPrice < currentPrice
}

// findLevel returns the index of the level at price, or -1. No mutation.
func (s *side) findLevel(price int64) int {
	for i := 0; i < s.count; i++ {
		if s.levels[i].Price == price {
			return i
		}
	}
	return -1
}

// findOrCreateLevel scans linearly for price, returning its index; if
// absent it is inserted at the position that preserves sort order, shifting
// subsequent entries up by one. overflow is true iff the side is already at
// MaxPriceLevels and price is new.
func (s *side) findOrCreateLevel(price int64) (idx int, overflow bool) {
	for i := 0; i < s.count; i++ {
		if s.levels[i].Price == price {
			return i, false
		}
		if s.better(price, s.levels[i].Price) {
			if s.count >= MaxPriceLevels {
				return -1, true
			}
			copy(s.levels[i+1:s.count+1], s.levels[i:s.count])
			s.levels[i] = PriceLevel{Price: price}
			s.count++
			return i, false
		}
	}
	if s.count >= MaxPriceLevels {
		return -1, true
	}
	s.levels[s.count] = PriceLevel{Price: price}
	idx = s.count
	s.count++
	return idx, false
}

// shiftDown removes the level at idx, collapsing trailing entries down by
// one and clearing the now-unused tail slot.
func (s *side) shiftDown(idx int) {
	copy(s.levels[idx:s.count-1], s.levels[idx+1:s.count])
	s.levels[s.count-1] = PriceLevel{}
	s.count--
}

// recomputeBest reads index 0 of the side, the definition of top-of-book.
func (s *side) recomputeBest() BestQuote {
	if s.count == 0 {
		return BestQuote{}
	}
	return BestQuote{Price: s.levels[0].Price, Quantity: s.levels[0].AggregateQty}
}

func (l *PriceLevel) findOrder(id uint64) int {
	for i := 0; i < l.OrderCount; i++ {
		if l.Orders[i].ID == id {
			return i
		}
	}
	return -1
}

// removeOrderAt drops the order at idx, shifting trailing orders down by
// one within this level's fixed array.
func (l *PriceLevel) removeOrderAt(idx int) {
	copy(l.Orders[idx:l.OrderCount-1], l.Orders[idx+1:l.OrderCount])
	l.Orders[l.OrderCount-1] = Order{}
	l.OrderCount--
}

// OrderBook is a per-instrument Level-3 book: two fully pre-allocated side
// arrays, a cached top-of-book per side, and atomic counters for
// operational visibility. Exactly one goroutine mutates a given OrderBook;
// concurrent readers must go through a Snapshot published on a ring.
type OrderBook struct {
	symbolIndex uint32

	bids side
	asks side

	updateCount    atomic.Uint64
	overflowCount  atomic.Uint64
	lastUpdateNs   atomic.Int64
}

// NewOrderBook constructs an empty book for symbolIndex with both sides
// preallocated to MaxPriceLevels.
func NewOrderBook(symbolIndex uint32) *OrderBook {
	return &OrderBook{
		symbolIndex: symbolIndex,
		bids:        side{isBid: true},
		asks:        side{isBid: false},
	}
}

// SymbolIndex returns the instrument this book was constructed for.
func (b *OrderBook) SymbolIndex() uint32 {
	return b.symbolIndex
}

// OverflowCount returns how many NewOrder/IncrementalRefresh insertions
// were silently dropped because a side had already reached MaxPriceLevels
// distinct prices.
func (b *OrderBook) OverflowCount() uint64 {
	return b.overflowCount.Load()
}

// UpdateCount returns the number of messages the book has accepted.
func (b *OrderBook) UpdateCount() uint64 {
	return b.updateCount.Load()
}

func (b *OrderBook) sideFor(s wire.Side) *side {
	switch s {
	case wire.SideBuy:
		return &b.bids
	case wire.SideSell:
		return &b.asks
	default:
		return nil
	}
}

// recordAccepted bumps the update counter and last-update timestamp for any
// message that actually mutated book state.
func (b *OrderBook) recordAccepted(msg wire.Message) {
	b.updateCount.Add(1)
	b.lastUpdateNs.Store(int64(msg.DecodeTSNanos))
}

// Apply applies msg to the book. It is total: malformed or inapplicable
// input becomes a no-op rather than an error. The return value is true iff
// the affected side's top-of-book changed as a result.
func (b *OrderBook) Apply(msg wire.Message) bool {
	switch msg.Kind {
	case wire.MsgNewOrder:
		return b.applyNewOrder(msg)
	case wire.MsgCancel:
		return b.applyCancel(msg)
	case wire.MsgExecution:
		return b.applyExecution(msg)
	case wire.MsgIncrementalRefresh:
		return b.applyIncrementalRefresh(msg)
	default:
		// Quote, FullSnapshot and Unknown are not book operations; treated
		// as no-ops, never dropped.
		return false
	}
}

func (b *OrderBook) applyNewOrder(msg wire.Message) bool {
	if msg.Price <= 0 || msg.Quantity == 0 {
		return false
	}
	s := b.sideFor(msg.Side)
	if s == nil {
		return false
	}

	idx, overflow := s.findOrCreateLevel(msg.Price)
	if overflow {
		b.overflowCount.Add(1)
		return false
	}

	level := &s.levels[idx]
	if level.OrderCount >= MaxOrdersPerLevel {
		return false
	}
	level.Orders[level.OrderCount] = Order{ID: msg.OrderID, Quantity: msg.Quantity}
	level.OrderCount++
	level.AggregateQty += msg.Quantity

	b.recordAccepted(msg)
	return b.refreshBest(s)
}

func (b *OrderBook) applyCancel(msg wire.Message) bool {
	s := b.sideFor(msg.Side)
	if s == nil {
		return false
	}
	idx := s.findLevel(msg.Price)
	if idx < 0 {
		return false
	}
	level := &s.levels[idx]
	orderIdx := level.findOrder(msg.OrderID)
	if orderIdx < 0 {
		return false
	}

	level.AggregateQty -= level.Orders[orderIdx].Quantity
	level.removeOrderAt(orderIdx)
	if level.AggregateQty == 0 {
		s.shiftDown(idx)
	}

	b.recordAccepted(msg)
	return b.refreshBest(s)
}

func (b *OrderBook) applyExecution(msg wire.Message) bool {
	s := b.sideFor(msg.Side)
	if s == nil {
		return false
	}
	idx := s.findLevel(msg.Price)
	if idx < 0 {
		return false
	}
	level := &s.levels[idx]
	orderIdx := level.findOrder(msg.OrderID)
	if orderIdx < 0 {
		return false
	}

	order := &level.Orders[orderIdx]
	dec := msg.TradeQuantity
	if dec > order.Quantity {
		dec = order.Quantity
	}
	order.Quantity -= dec
	level.AggregateQty -= dec

	if order.Quantity == 0 {
		level.removeOrderAt(orderIdx)
	}
	if level.AggregateQty == 0 {
		s.shiftDown(idx)
	}

	b.recordAccepted(msg)
	return b.refreshBest(s)
}

func (b *OrderBook) applyIncrementalRefresh(msg wire.Message) bool {
	s := b.sideFor(msg.Side)
	if s == nil {
		return false
	}

	if msg.Quantity == 0 {
		idx := s.findLevel(msg.Price)
		if idx < 0 {
			return false
		}
		s.shiftDown(idx)
	} else {
		idx, overflow := s.findOrCreateLevel(msg.Price)
		if overflow {
			b.overflowCount.Add(1)
			return false
		}
		level := &s.levels[idx]
		level.AggregateQty = msg.Quantity
		level.OrderCount = 0 // per-order detail is discarded on refresh
	}

	b.recordAccepted(msg)
	return b.refreshBest(s)
}

// refreshBest recomputes s's cached top-of-book and reports whether it
// changed relative to the previous (price, quantity) pair.
func (b *OrderBook) refreshBest(s *side) bool {
	prev := s.best
	next := s.recomputeBest()
	s.best = next
	return next != prev
}

// Snapshot returns an immutable view of the book's current top-of-book. It
// never blocks and never allocates.
func (b *OrderBook) Snapshot() Snapshot {
	return Snapshot{
		SymbolIndex: b.symbolIndex,
		BestBid:     b.bids.best,
		BestAsk:     b.asks.best,
		TimestampNs: b.lastUpdateNs.Load(),
		UpdateCount: b.updateCount.Load(),
	}
}
