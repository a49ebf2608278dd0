// Package pipeline wires the ring buffer, wire decoder and order book into
// the three dedicated worker loops described by the core: an ingress
// writer feeds RB0, a decoder worker drains RB0 into RB1, a book-builder
// worker drains RB1 into RB2, and a cold-path worker drains RB2 into
// whatever external sink the caller supplies.
package pipeline

import "github.com/luxfi/mdfeed/pkg/book"

// RawPacket is a value record describing a rented BufferPool slot, not the
// bytes themselves. It is produced once at ingress and consumed exactly
// once by the decoder worker.
type RawPacket struct {
	ReceiveTSNanos uint64
	SeqNum         uint64
	ChannelID      uint32
	BufferIndex    int
	Offset         int
	Length         int
	StatusFlags    uint32
}

// ExternalSink is the outbound-feed contract the cold-path worker hands
// snapshots to. It is the only point where the pipeline touches code
// outside this module; implementations are free to add retention,
// throttling or encoding policy of their own — the pipeline imposes none.
type ExternalSink interface {
	Publish(book.Snapshot) error
}

// Stats is a point-in-time, intentionally stale-tolerant read of the
// pipeline's operational counters, suitable for polling.
type Stats struct {
	TotalPackets  uint64
	DecodeErrors  uint64
	BookUpdates   uint64
	ColdDrops     uint64
	RB0ToRead     int
	RB1ToRead     int
	RB2ToRead     int
}
