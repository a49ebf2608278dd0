package pipeline

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/mdfeed/pkg/book"
	"github.com/luxfi/mdfeed/pkg/clock"
	"github.com/luxfi/mdfeed/pkg/ring"
	"github.com/luxfi/mdfeed/pkg/wire"
)

// Pipeline is the fixed three-worker topology: an ingress writer feeds RB0,
// DecoderLoop drains RB0 into RB1, BookLoop drains RB1 into RB2, and
// ColdLoop drains RB2 into an ExternalSink. Exactly one Pipeline owns its
// buffer pool and its dense books array; nothing outside it ever mutates
// either directly.
type Pipeline struct {
	cfg Config

	pool    *BufferPool
	rb0     *ring.Buffer[RawPacket]
	rb1     *ring.Buffer[wire.Message]
	rb2     *ring.Buffer[book.Snapshot]
	decoder *wire.Decoder
	books   []*book.OrderBook

	sink   ExternalSink
	logger log.Logger

	shuttingDown atomic.Bool
	decoderDone  chan struct{}
	bookDone     chan struct{}
	coldDone     chan struct{}

	totalPackets atomic.Uint64
	decodeErrors atomic.Uint64
	bookUpdates  atomic.Uint64
	coldDrops    atomic.Uint64
}

// New constructs a Pipeline from cfg, wiring clk into the decoder and sink
// as the cold-path worker's only collaborator. sink may be nil, in which
// case the cold-path worker exits at once and leaves RB2 to TryReadSnapshot
// as its only reader, useful for tests that only care about
// TryReadSnapshot/InjectMessage.
func New(cfg Config, clk clock.Clock, sink ExternalSink) (*Pipeline, error) {
	rb0, err := ring.New[RawPacket](cfg.RB0Capacity)
	if err != nil {
		return nil, err
	}
	rb1, err := ring.New[wire.Message](cfg.RB1Capacity)
	if err != nil {
		return nil, err
	}
	rb2, err := ring.New[book.Snapshot](cfg.RB2Capacity)
	if err != nil {
		return nil, err
	}
	pool, err := NewBufferPool(cfg.BufferPoolSize, cfg.BufferSlotSize)
	if err != nil {
		return nil, err
	}

	books := make([]*book.OrderBook, cfg.MaxSymbols)
	for i := range books {
		books[i] = book.NewOrderBook(uint32(i))
	}

	return &Pipeline{
		cfg:     cfg,
		pool:    pool,
		rb0:     rb0,
		rb1:     rb1,
		rb2:     rb2,
		decoder: wire.NewDecoder(clk),
		books:   books,
		sink:    sink,
		logger:  log.Root().New("module", "pipeline"),
	}, nil
}

// Book returns the OrderBook for symbolIndex, or nil if out of range. It is
// exposed for read-only operational inspection; the book worker remains the
// only mutator.
func (p *Pipeline) Book(symbolIndex uint32) *book.OrderBook {
	if int(symbolIndex) >= len(p.books) {
		return nil
	}
	return p.books[symbolIndex]
}

// PublishRaw is the ingress surface. It rents a pool slot keyed by seqNum,
// copies data into it, and enqueues a RawPacket describing the copy onto
// RB0. It returns false iff RB0 is full, giving the caller explicit
// backpressure rather than blocking.
func (p *Pipeline) PublishRaw(data []byte, seqNum uint64, channelID uint32) bool {
	index, length := p.pool.Put(seqNum, data)
	packet := RawPacket{
		ReceiveTSNanos: uint64(time.Now().UnixNano()),
		SeqNum:         seqNum,
		ChannelID:      channelID,
		BufferIndex:    index,
		Offset:         0,
		Length:         length,
	}
	if !p.rb0.TryWrite(packet) {
		return false
	}
	p.totalPackets.Add(1)
	return true
}

// InjectMessage is a test hook: it publishes msg directly onto RB1,
// bypassing decode entirely.
func (p *Pipeline) InjectMessage(msg wire.Message) bool {
	return p.rb1.TryWrite(msg)
}

// TryReadSnapshot dequeues the next available snapshot from RB2, if any.
// RB2 is single-consumer: with a non-nil sink the running cold-path worker
// is that consumer, so TryReadSnapshot is for pipelines built with a nil
// sink.
func (p *Pipeline) TryReadSnapshot() (book.Snapshot, bool) {
	return p.rb2.TryRead()
}

// PendingSnapshotCount reports RB2's current available-to-read estimate.
func (p *Pipeline) PendingSnapshotCount() int {
	return p.rb2.AvailableToRead()
}

// Stats returns a point-in-time read of every operational counter plus each
// ring's available-to-read. Safe to call concurrently with running workers;
// values may be stale but are never torn.
func (p *Pipeline) Stats() Stats {
	return Stats{
		TotalPackets: p.totalPackets.Load(),
		DecodeErrors: p.decodeErrors.Load(),
		BookUpdates:  p.bookUpdates.Load(),
		ColdDrops:    p.coldDrops.Load(),
		RB0ToRead:    p.rb0.AvailableToRead(),
		RB1ToRead:    p.rb1.AvailableToRead(),
		RB2ToRead:    p.rb2.AvailableToRead(),
	}
}

// Start launches the three worker loops. Decoder and book-builder attempt
// to lock their goroutine to its OS thread, the closest Go gets to dedicated
// real-time scheduling without a platform-specific syscall; the cold-path
// worker is a plain daemon goroutine.
func (p *Pipeline) Start() {
	p.shuttingDown.Store(false)
	p.decoderDone = make(chan struct{})
	p.bookDone = make(chan struct{})
	p.coldDone = make(chan struct{})

	go p.decoderLoop()
	go p.bookLoop()
	go p.coldLoop()
}

// Stop raises the shutdown flag and joins each worker in turn with the
// configured bounded timeout. A worker that fails to drain in time is
// logged and abandoned; Stop always returns.
func (p *Pipeline) Stop() {
	p.shuttingDown.Store(true)
	p.join("decoder", p.decoderDone, p.cfg.DecoderShutdownTimeout)
	p.join("book-builder", p.bookDone, p.cfg.BookShutdownTimeout)
	p.join("cold-path", p.coldDone, p.cfg.ColdShutdownTimeout)
}

func (p *Pipeline) join(name string, done chan struct{}, timeout time.Duration) {
	select {
	case <-done:
	case <-time.After(timeout):
		p.logger.Warn("shutdown timeout exceeded; abandoning worker", "worker", name, "timeout", timeout)
	}
}

// spinBackoff is the CPU spin-hint used on an empty/full ring: a scheduling
// yield rather than a sleep, so the hot loops stay responsive.
func spinBackoff() {
	runtime.Gosched()
}

func (p *Pipeline) decoderLoop() {
	defer close(p.decoderDone)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		raw, ok := p.rb0.TryRead()
		if !ok {
			if p.shuttingDown.Load() && p.rb0.IsEmpty() {
				return
			}
			spinBackoff()
			continue
		}

		data := p.pool.Slice(raw.BufferIndex, raw.Offset, raw.Length)
		msg, ok := p.decoder.TryDecode(data, raw.ReceiveTSNanos, raw.ChannelID)
		if !ok {
			p.decodeErrors.Add(1)
			continue
		}

		for !p.rb1.TryWrite(msg) {
			spinBackoff()
		}
	}
}

func (p *Pipeline) bookLoop() {
	defer close(p.bookDone)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		msg, ok := p.rb1.TryRead()
		if !ok {
			if p.shuttingDown.Load() && p.rb1.IsEmpty() {
				return
			}
			spinBackoff()
			continue
		}

		if int(msg.SymbolIndex) >= len(p.books) {
			continue
		}

		b := p.books[msg.SymbolIndex]
		b.Apply(msg)
		p.bookUpdates.Add(1)

		if !p.rb2.TryWrite(b.Snapshot()) {
			p.coldDrops.Add(1)
		}
	}
}

func (p *Pipeline) coldLoop() {
	defer close(p.coldDone)

	// Without a sink, RB2 is left to TryReadSnapshot as its single reader.
	if p.sink == nil {
		return
	}

	for {
		snap, ok := p.rb2.TryRead()
		if !ok {
			if p.shuttingDown.Load() && p.rb2.IsEmpty() {
				return
			}
			time.Sleep(p.cfg.ColdPathSleep)
			continue
		}

		if err := p.sink.Publish(snap); err != nil {
			p.logger.Error("external sink publish failed", "symbol_index", snap.SymbolIndex, "err", err)
		}
	}
}
