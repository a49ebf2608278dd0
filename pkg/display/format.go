// Package display converts the core's fixed-point ×10^8 integers into a
// decimal representation for human consumption. Nothing in pkg/book or
// pkg/pipeline imports this package back; the hot path never touches
// decimal.Decimal.
package display

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/luxfi/mdfeed/pkg/book"
)

// priceScale is the hot path's fixed-point exponent: every price is the
// real value multiplied by 10^8.
const priceScale = -8

// Price converts a fixed-point ×10^8 integer into an exact decimal.Decimal,
// using the integer-and-exponent constructor rather than a float
// round-trip so no precision is lost in the conversion.
func Price(fixedPoint int64) decimal.Decimal {
	return decimal.New(fixedPoint, priceScale)
}

// FormatSnapshot renders a book.Snapshot as a single human-readable line.
func FormatSnapshot(snap book.Snapshot) string {
	return fmt.Sprintf(
		"symbol=%d bid=%s@%d ask=%s@%d update=%d",
		snap.SymbolIndex,
		Price(snap.BestBid.Price), snap.BestBid.Quantity,
		Price(snap.BestAsk.Price), snap.BestAsk.Quantity,
		snap.UpdateCount,
	)
}
