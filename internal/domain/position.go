package domain

import "github.com/shopspring/decimal"

// PositionState is the full accounting state of the single simulated
// position. Owned exclusively by the accountant; callers receive copies.
type PositionState struct {
	// Quantity is signed: positive long, negative short, zero flat.
	Quantity int64
	// AvgEntryPrice is the volume-weighted entry price of the open
	// quantity. Meaningless while flat.
	AvgEntryPrice decimal.Decimal
	Cash          decimal.Decimal
	RealizedPnL   decimal.Decimal
	// FeesPaid accumulates all taker fees charged so far.
	FeesPaid decimal.Decimal
}

// Flat reports whether no position is open.
func (p *PositionState) Flat() bool {
	return p.Quantity == 0
}
