// Command mdfeed is a demo operator binary: it wires a UDP ingress listener,
// the pipeline, an optional NATS reference sink, and periodic stats
// logging, in the flag-configured style of cmd/nats-trader and
// backend/cmd/benchmark-lockfree.
package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/mdfeed/pkg/clock"
	"github.com/luxfi/mdfeed/pkg/display"
	"github.com/luxfi/mdfeed/pkg/pipeline"
	"github.com/luxfi/mdfeed/pkg/sink"
)

func main() {
	var (
		listenAddr   = flag.String("listen", ":4242", "UDP address to receive raw market-data packets on")
		channelID    = flag.Uint("channel", 0, "channel id stamped onto every packet received on -listen")
		natsURL      = flag.String("nats", "", "NATS server URL; empty disables the reference sink")
		natsSubject  = flag.String("nats-subject", "mdfeed.snapshots", "subject prefix the NATS sink publishes under")
		maxSymbols   = flag.Int("symbols", 1000, "dense order book array size")
		reportSymbol = flag.Uint("report-symbol", 0, "symbol index logged on every -report-interval tick")
		reportEvery  = flag.Duration("report-interval", 5*time.Second, "interval between stats log lines")
	)
	flag.Parse()

	logger := log.Root().New("module", "mdfeed")

	cfg := pipeline.DefaultConfig()
	cfg.MaxSymbols = *maxSymbols

	var natsSink *sink.NATSSink
	var externalSink pipeline.ExternalSink
	if *natsURL != "" {
		var err error
		natsSink, err = sink.NewNATSSink(*natsURL, *natsSubject)
		if err != nil {
			logger.Error("failed to connect to NATS, continuing without a sink", "url", *natsURL, "err", err)
		} else {
			externalSink = natsSink
			defer natsSink.Close()
		}
	}

	p, err := pipeline.New(cfg, clock.Monotonic{}, externalSink)
	if err != nil {
		logger.Error("failed to construct pipeline", "err", err)
		os.Exit(1)
	}

	conn, err := net.ListenPacket("udp", *listenAddr)
	if err != nil {
		logger.Error("failed to open UDP listener", "addr", *listenAddr, "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	p.Start()
	logger.Info("pipeline started", "listen", *listenAddr, "symbols", *maxSymbols, "nats", *natsURL != "")

	var seqNum atomic.Uint64
	go ingressLoop(conn, p, uint32(*channelID), &seqNum, logger)

	reportTicker := time.NewTicker(*reportEvery)
	defer reportTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-reportTicker.C:
			stats := p.Stats()
			logger.Info("pipeline stats",
				"packets", stats.TotalPackets,
				"decode_errors", stats.DecodeErrors,
				"book_updates", stats.BookUpdates,
				"cold_drops", stats.ColdDrops,
			)
			if b := p.Book(uint32(*reportSymbol)); b != nil {
				logger.Info("symbol snapshot", "line", display.FormatSnapshot(b.Snapshot()))
			}
		case <-sigCh:
			logger.Info("shutdown requested")
			p.Stop()
			return
		}
	}
}

// ingressLoop reads UDP datagrams and hands each one to the pipeline's
// publish_raw surface, stamping a monotonically increasing sequence number.
func ingressLoop(conn net.PacketConn, p *pipeline.Pipeline, channelID uint32, seqNum *atomic.Uint64, logger log.Logger) {
	buf := make([]byte, 65536)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			logger.Error("UDP read failed, ingress loop exiting", "err", err)
			return
		}
		seq := seqNum.Add(1)
		if !p.PublishRaw(buf[:n], seq, channelID) {
			logger.Warn("ingress backpressure: RB0 full, packet dropped", "seq", seq)
		}
	}
}
