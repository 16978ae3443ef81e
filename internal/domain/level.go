// Package domain defines core data structures shared by the simulator components.
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side identifies a side of the order book.
type Side int

const (
	// SideBid is the buy side of the book.
	SideBid Side = iota
	// SideAsk is the sell side of the book.
	SideAsk
)

// String returns the string representation of the side.
func (s Side) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideAsk:
		return "ask"
	default:
		return "unknown"
	}
}

// ParseSide converts a string into a Side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "bid":
		return SideBid, nil
	case "ask":
		return SideAsk, nil
	default:
		return 0, fmt.Errorf("invalid side: %q", s)
	}
}

// PriceLevel is a single aggregated price level of the book.
// Size is zero only transiently: a level with zero size is removed.
type PriceLevel struct {
	// Price of the level.
	Price decimal.Decimal
	// Size is the aggregate resting quantity at this price.
	Size int64
}
