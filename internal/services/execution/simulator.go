// Package execution simulates market-order fills by walking the book.
package execution

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/microsim/internal/domain"
	"github.com/vadiminshakov/microsim/internal/services/book"
	"go.uber.org/zap"
)

// Simulator converts target-position changes into simulated market
// orders. Buys consume the ask side from the best price up, sells the bid
// side from the best price down. Whatever liquidity the opposing side
// holds is filled; running out of levels yields a partial fill, not an
// error.
type Simulator struct {
	feeRate decimal.Decimal
	logger  *zap.Logger
}

// NewSimulator creates a simulator charging the given taker fee rate.
func NewSimulator(feeRate decimal.Decimal, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{feeRate: feeRate, logger: logger}
}

// Execute turns the difference between target and current position into
// a market order and walks the book to fill it. A zero delta returns no
// fill. domain.ErrEmptyBook is returned only when the opposing side has
// no levels at all.
func (s *Simulator) Execute(targetQuantity, currentQuantity int64, b *book.Book) (*domain.Fill, error) {
	delta := targetQuantity - currentQuantity
	if delta == 0 {
		return nil, nil
	}

	side := domain.TradeSell
	levels := b.Bids()
	if delta > 0 {
		side = domain.TradeBuy
		levels = b.Asks()
	}
	if len(levels) == 0 {
		return nil, errors.Wrapf(domain.ErrEmptyBook, "no %s liquidity for %s", opposing(side), side)
	}

	quantity := delta
	if quantity < 0 {
		quantity = -quantity
	}

	bestPrice := levels[0].Price
	remaining := quantity
	var filled int64
	notional := decimal.Zero

	for _, lvl := range levels {
		if remaining == 0 {
			break
		}
		take := remaining
		if lvl.Size < take {
			take = lvl.Size
		}
		notional = notional.Add(lvl.Price.Mul(decimal.NewFromInt(take)))
		filled += take
		remaining -= take
	}

	avgPrice := notional.Div(decimal.NewFromInt(filled))
	fee := notional.Mul(s.feeRate)

	slippage := avgPrice.Sub(bestPrice).Mul(decimal.NewFromInt(filled))
	if side == domain.TradeSell {
		slippage = bestPrice.Sub(avgPrice).Mul(decimal.NewFromInt(filled))
	}

	fill := &domain.Fill{
		Timestamp: b.Timestamp(),
		Side:      side,
		Quantity:  filled,
		Requested: quantity,
		AvgPrice:  avgPrice,
		Notional:  notional,
		Fee:       fee,
		Slippage:  slippage,
	}

	if fill.Partial() {
		s.logger.Debug("partial fill, opposing side exhausted",
			zap.String("side", side.String()),
			zap.Int64("requested", quantity),
			zap.Int64("filled", filled))
	}

	return fill, nil
}

func opposing(side domain.TradeSide) string {
	if side == domain.TradeBuy {
		return "ask"
	}
	return "bid"
}
