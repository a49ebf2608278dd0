package wire

import (
	"github.com/luxfi/mdfeed/pkg/clock"
)

// pow10 holds 10^0..10^10 so decimal scaling never calls an exponentiation
// function on the hot path.
var pow10 = [...]int64{
	1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000,
	100_000_000, 1_000_000_000, 10_000_000_000,
}

// Decoder is a stateless transform from a byte slice and side-channel
// metadata to a Message. It allocates nothing and shares no mutable state
// across calls beyond the injected Clock.
type Decoder struct {
	clock clock.Clock
}

// NewDecoder constructs a Decoder that stamps DecodeTSNanos from clk.
func NewDecoder(clk clock.Clock) *Decoder {
	return &Decoder{clock: clk}
}

// cursor walks data without copying it; every readStopBit* call advances
// pos and reports false the instant it would run off the end.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) byte() (b byte, ok bool) {
	if c.pos >= len(c.data) {
		return 0, false
	}
	b = c.data[c.pos]
	c.pos++
	return b, true
}

// readStopBitUnsigned decodes a variable-length unsigned integer: bytes
// accumulate 7 data bits each, high bit set terminates.
func (c *cursor) readStopBitUnsigned() (uint64, bool) {
	var v uint64
	for {
		b, ok := c.byte()
		if !ok {
			return 0, false
		}
		v = (v << 7) | uint64(b&0x7F)
		if b&0x80 != 0 {
			return v, true
		}
	}
}

// readStopBitSigned decodes the same septet stream but sign-extends from
// the high bit of the first septet read, so a decimal exponent can carry a
// negative value.
func (c *cursor) readStopBitSigned() (int64, bool) {
	var v uint64
	bits := 0
	negative := false
	first := true
	for {
		b, ok := c.byte()
		if !ok {
			return 0, false
		}
		if first {
			negative = b&0x40 != 0
			first = false
		}
		v = (v << 7) | uint64(b&0x7F)
		bits += 7
		if b&0x80 != 0 {
			break
		}
	}
	if negative && bits < 64 {
		v |= ^uint64(0) << bits
	}
	return int64(v), true
}

// scaleDecimal converts a (mantissa, exponent) decimal pair into a
// fixed-point ×10^8 integer using a precomputed power-of-ten table, so no
// exponentiation runs on the hot path.
func scaleDecimal(mantissa int64, exponent int32) int64 {
	k := 8 + int(exponent)
	switch {
	case k >= 0 && k <= 10:
		return mantissa * pow10[k]
	case k >= -10 && k < 0:
		return mantissa / pow10[-k]
	default:
		return mantissa
	}
}

// TryDecode parses data into a Message. It returns ok=false for any input
// shorter than MinPacketSize or that runs off the end of data while
// decoding; it never panics.
func (d *Decoder) TryDecode(data []byte, receiveTSNanos uint64, channelID uint32) (Message, bool) {
	if len(data) < MinPacketSize {
		return Message{}, false
	}

	c := &cursor{data: data}

	presence, ok := c.byte()
	if !ok {
		return Message{}, false
	}

	if _, ok := c.readStopBitUnsigned(); !ok { // Template-ID, discarded
		return Message{}, false
	}

	seqNum, ok := c.readStopBitUnsigned()
	if !ok {
		return Message{}, false
	}

	msgTypeByte, ok := c.byte()
	if !ok {
		return Message{}, false
	}

	sendingTime, ok := c.readStopBitUnsigned()
	if !ok {
		return Message{}, false
	}

	msg := Message{
		Kind:           msgKindFromByte(msgTypeByte),
		SeqNum:         seqNum,
		SendingTime:    sendingTime,
		ReceiveTSNanos: receiveTSNanos,
		ChannelID:      channelID,
	}

	if presence&presenceSecurityID != 0 {
		secID, ok := c.readStopBitUnsigned()
		if !ok {
			return Message{}, false
		}
		msg.SecurityID = secID
		msg.SymbolIndex = uint32(secID % MaxSymbols)
	}

	if presence&presencePrice != 0 {
		exponent, ok := c.readStopBitSigned()
		if !ok {
			return Message{}, false
		}
		mantissa, ok := c.readStopBitSigned()
		if !ok {
			return Message{}, false
		}
		msg.Price = scaleDecimal(mantissa, int32(exponent))
	}

	if presence&presenceQuantity != 0 {
		qty, ok := c.readStopBitUnsigned()
		if !ok {
			return Message{}, false
		}
		msg.Quantity = qty
	}

	if presence&presenceSide != 0 {
		sideByte, ok := c.byte()
		if !ok {
			return Message{}, false
		}
		msg.Side = sideFromByte(sideByte)
	}

	if presence&presenceOrderID != 0 {
		orderID, ok := c.readStopBitUnsigned()
		if !ok {
			return Message{}, false
		}
		msg.OrderID = orderID
	}

	if msg.Kind == MsgExecution && presence&presenceTrade != 0 {
		tradeID, ok := c.readStopBitUnsigned()
		if !ok {
			return Message{}, false
		}
		tradeExponent, ok := c.readStopBitSigned()
		if !ok {
			return Message{}, false
		}
		tradeMantissa, ok := c.readStopBitSigned()
		if !ok {
			return Message{}, false
		}
		tradeQty, ok := c.readStopBitUnsigned()
		if !ok {
			return Message{}, false
		}
		msg.TradeID = tradeID
		msg.TradePrice = scaleDecimal(tradeMantissa, int32(tradeExponent))
		msg.TradeQuantity = tradeQty
	}

	msg.DecodeTSNanos = uint64(d.clock.NowNanos())
	return msg, true
}
