// Package sink holds reference pipeline.ExternalSink implementations. They
// are demonstrations of the outbound-feed contract, not a REST/WebSocket
// gateway: each does the minimum needed to hand a snapshot to one transport
// and nothing more.
package sink

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/luxfi/mdfeed/pkg/book"
)

// snapshotRecord is the wire shape published for each snapshot. Prices
// stay fixed-point ×10^8 integers; turning them into a decimal
// representation is pkg/display's job, not this sink's.
type snapshotRecord struct {
	SymbolIndex uint32 `json:"symbol_index"`
	BestBidPx   int64  `json:"best_bid_price"`
	BestBidQty  uint64 `json:"best_bid_qty"`
	BestAskPx   int64  `json:"best_ask_price"`
	BestAskQty  uint64 `json:"best_ask_qty"`
	TimestampNs int64  `json:"timestamp_ns"`
	UpdateCount uint64 `json:"update_count"`
}

// NATSSink publishes each snapshot, JSON-encoded, to a subject derived from
// its symbol index. It does no retention or backpressure handling beyond
// whatever the NATS connection itself provides.
type NATSSink struct {
	conn          *nats.Conn
	subjectPrefix string
}

// NewNATSSink connects to url and returns a sink publishing under
// "<subjectPrefix>.<symbol_index>".
func NewNATSSink(url, subjectPrefix string) (*NATSSink, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &NATSSink{conn: conn, subjectPrefix: subjectPrefix}, nil
}

// Close closes the underlying NATS connection. It calls Close, not Drain.
func (s *NATSSink) Close() {
	s.conn.Close()
}

// Publish implements pipeline.ExternalSink.
func (s *NATSSink) Publish(snap book.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	return s.conn.Publish(s.subjectFor(snap.SymbolIndex), data)
}

func (s *NATSSink) subjectFor(symbolIndex uint32) string {
	return fmt.Sprintf("%s.%d", s.subjectPrefix, symbolIndex)
}

func encode(snap book.Snapshot) ([]byte, error) {
	return json.Marshal(snapshotRecord{
		SymbolIndex: snap.SymbolIndex,
		BestBidPx:   snap.BestBid.Price,
		BestBidQty:  snap.BestBid.Quantity,
		BestAskPx:   snap.BestAsk.Price,
		BestAskQty:  snap.BestAsk.Quantity,
		TimestampNs: snap.TimestampNs,
		UpdateCount: snap.UpdateCount,
	})
}
