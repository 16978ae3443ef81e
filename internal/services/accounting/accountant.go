// Package accounting applies fills to cash and position state and marks
// open positions to market.
package accounting

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/microsim/internal/domain"
	"go.uber.org/zap"
)

// conservationTolerance absorbs the rounding of the volume-weighted
// average entry price; everything else in the ledger is exact decimal.
var conservationTolerance = decimal.New(1, -6)

// Accountant owns the single PositionState of a run. Every fill moves
// cash by its notional and fee and lands in exactly one of three
// branches: extending the position, reducing it, or reversing it.
type Accountant struct {
	initialCash decimal.Decimal
	state       domain.PositionState
	closed      []domain.ClosedTrade
	logger      *zap.Logger
}

// NewAccountant creates an accountant starting flat with the given cash.
func NewAccountant(initialCash decimal.Decimal, logger *zap.Logger) *Accountant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accountant{
		initialCash: initialCash,
		state: domain.PositionState{
			Cash: initialCash,
		},
		logger: logger,
	}
}

// ApplyFill consumes one fill and returns a copy of the updated state.
func (a *Accountant) ApplyFill(fill *domain.Fill) domain.PositionState {
	signedQty := fill.Quantity
	if fill.Side == domain.TradeSell {
		signedQty = -signedQty
	}

	if fill.Side == domain.TradeBuy {
		a.state.Cash = a.state.Cash.Sub(fill.Notional).Sub(fill.Fee)
	} else {
		a.state.Cash = a.state.Cash.Add(fill.Notional).Sub(fill.Fee)
	}
	a.state.FeesPaid = a.state.FeesPaid.Add(fill.Fee)

	q := a.state.Quantity
	switch {
	case q == 0 || sameSign(q, signedQty):
		a.extend(signedQty, fill.AvgPrice)
	case abs(signedQty) <= abs(q):
		a.reduce(signedQty, fill.AvgPrice, fill)
	default:
		a.reverse(signedQty, fill.AvgPrice, fill)
	}

	return a.state
}

// extend opens a position from flat or adds to an existing one; the
// average entry price is volume-weighted over fill prices, fees excluded.
func (a *Accountant) extend(signedQty int64, price decimal.Decimal) {
	prevAbs := decimal.NewFromInt(abs(a.state.Quantity))
	addAbs := decimal.NewFromInt(abs(signedQty))
	totalAbs := prevAbs.Add(addAbs)

	notional := a.state.AvgEntryPrice.Mul(prevAbs).Add(price.Mul(addAbs))
	a.state.AvgEntryPrice = notional.Div(totalAbs)
	a.state.Quantity += signedQty
}

// reduce shrinks the position toward zero, realizing PnL on the closed
// quantity. The entry price of the remainder is unchanged.
func (a *Accountant) reduce(signedQty int64, price decimal.Decimal, fill *domain.Fill) {
	closeQty := abs(signedQty)
	realized := a.realize(closeQty, price)

	a.state.Quantity += signedQty
	if a.state.Quantity == 0 {
		a.state.AvgEntryPrice = decimal.Zero
	}

	a.closed = append(a.closed, domain.ClosedTrade{
		Timestamp: fill.Timestamp,
		Quantity:  closeQty,
		PnL:       realized,
	})
}

// reverse closes the whole existing position and opens the residual fill
// quantity on the other side at the fill price.
func (a *Accountant) reverse(signedQty int64, price decimal.Decimal, fill *domain.Fill) {
	closeQty := abs(a.state.Quantity)
	realized := a.realize(closeQty, price)

	a.closed = append(a.closed, domain.ClosedTrade{
		Timestamp: fill.Timestamp,
		Quantity:  closeQty,
		PnL:       realized,
	})

	residual := signedQty + a.state.Quantity
	a.state.Quantity = residual
	a.state.AvgEntryPrice = price

	a.logger.Debug("position reversed",
		zap.Int64("closed", closeQty),
		zap.Int64("opened", residual),
		zap.String("price", price.String()))
}

// realize books PnL for closing closeQty at price against the current
// average entry: longs profit when price rose, shorts when it fell.
func (a *Accountant) realize(closeQty int64, price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(a.state.AvgEntryPrice)
	if a.state.Quantity < 0 {
		diff = diff.Neg()
	}
	realized := diff.Mul(decimal.NewFromInt(closeQty))
	a.state.RealizedPnL = a.state.RealizedPnL.Add(realized)
	return realized
}

// MarkToMarket values the open position at mid. Zero while flat or when
// the mid price is absent.
func (a *Accountant) MarkToMarket(mid decimal.Decimal, hasMid bool) decimal.Decimal {
	if a.state.Quantity == 0 || !hasMid {
		return decimal.Zero
	}
	return mid.Sub(a.state.AvgEntryPrice).Mul(decimal.NewFromInt(a.state.Quantity))
}

// Position returns a copy of the current state.
func (a *Accountant) Position() domain.PositionState {
	return a.state
}

// InitialCash returns the starting cash balance.
func (a *Accountant) InitialCash() decimal.Decimal {
	return a.initialCash
}

// ClosedTrades returns all realizing fills recorded so far.
func (a *Accountant) ClosedTrades() []domain.ClosedTrade {
	out := make([]domain.ClosedTrade, len(a.closed))
	copy(out, a.closed)
	return out
}

// CheckConservation verifies that cash plus position value reconciles
// with booked PnL and fees:
//
//	cash - initial + quantity*mid == realized + unrealized - fees
//
// A violation means the ledger arithmetic went wrong and is fatal.
func (a *Accountant) CheckConservation(mid decimal.Decimal, hasMid bool) error {
	if !hasMid {
		return nil
	}

	left := a.state.Cash.Sub(a.initialCash).
		Add(mid.Mul(decimal.NewFromInt(a.state.Quantity)))
	right := a.state.RealizedPnL.
		Add(a.MarkToMarket(mid, true)).
		Sub(a.state.FeesPaid)

	if left.Sub(right).Abs().GreaterThan(conservationTolerance) {
		return errors.Wrapf(domain.ErrInvariantViolation,
			"cash-side %s != pnl-side %s", left.String(), right.String())
	}
	return nil
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
