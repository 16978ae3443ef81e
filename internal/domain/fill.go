package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide is the direction of a simulated market order.
type TradeSide int

const (
	// TradeBuy consumes the ask side of the book.
	TradeBuy TradeSide = iota
	// TradeSell consumes the bid side of the book.
	TradeSell
)

// String returns the string representation of the trade side.
func (s TradeSide) String() string {
	switch s {
	case TradeBuy:
		return "buy"
	case TradeSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Fill is the result of walking the book with a market order.
// It is immutable once produced and consumed exactly once by the accountant.
type Fill struct {
	Timestamp time.Time
	Side      TradeSide
	// Quantity actually filled. Less than Requested when the opposing
	// side ran out of liquidity.
	Quantity  int64
	Requested int64
	// AvgPrice is the volume-weighted fill price across consumed levels.
	AvgPrice decimal.Decimal
	// Notional is the total traded value before fees.
	Notional decimal.Decimal
	Fee      decimal.Decimal
	// Slippage is the cost of walking past the best level.
	Slippage decimal.Decimal
}

// Partial reports whether the fill covered less than the requested quantity.
func (f *Fill) Partial() bool {
	return f.Quantity < f.Requested
}

// String returns a human-readable representation of the fill.
func (f *Fill) String() string {
	return fmt.Sprintf("%s %d @ %s fee %s", f.Side, f.Quantity, f.AvgPrice.String(), f.Fee.String())
}
