// Package engine drives the backtest: it pulls book events from a feed,
// maintains the order book, turns book state into signals, asks the
// strategy for a target position and settles the simulated fills.
package engine

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/microsim/internal/domain"
	"github.com/vadiminshakov/microsim/internal/services/accounting"
	"github.com/vadiminshakov/microsim/internal/services/book"
	"github.com/vadiminshakov/microsim/internal/services/execution"
	"github.com/vadiminshakov/microsim/internal/services/feed"
	"github.com/vadiminshakov/microsim/internal/services/signal"
	"github.com/vadiminshakov/microsim/internal/services/strategy"
	"go.uber.org/zap"
)

const progressLogEvery = 1000

// Recorder persists trade and PnL records as the run produces them.
type Recorder interface {
	AppendTrade(record domain.TradeRecord) error
	AppendPnL(record domain.PnLRecord) error
}

// Diagnostics counts the recoverable problems seen during a run.
type Diagnostics struct {
	EventsProcessed  int `json:"events_processed"`
	MalformedRecords int `json:"malformed_records"`
	CrossedBooks     int `json:"crossed_books"`
	InvalidSnapshots int `json:"invalid_snapshots"`
	EmptyBookSkips   int `json:"empty_book_skips"`
	FillsExecuted    int `json:"fills_executed"`
}

// Result is everything a finished run produced.
type Result struct {
	Trades      []domain.TradeRecord
	PnL         []domain.PnLRecord
	Signals     []domain.SignalSnapshot
	Mids        []decimal.Decimal
	Position    domain.PositionState
	Diagnostics Diagnostics
	Summary     Summary
}

// Backtest wires the pipeline together and runs it event by event.
// The loop is synchronous, so the same input always yields the same
// trades, records and summary.
type Backtest struct {
	source       feed.Source
	book         *book.Book
	signals      *signal.Engine
	strategy     *strategy.MeanReversion
	simulator    *execution.Simulator
	accountant   *accounting.Accountant
	recorder     Recorder
	riskFreeRate float64
	logger       *zap.Logger
}

// New assembles a backtest. The recorder may be nil when persistence is
// not wanted.
func New(
	source feed.Source,
	b *book.Book,
	signals *signal.Engine,
	strat *strategy.MeanReversion,
	simulator *execution.Simulator,
	accountant *accounting.Accountant,
	recorder Recorder,
	riskFreeRate float64,
	logger *zap.Logger,
) *Backtest {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backtest{
		source:       source,
		book:         b,
		signals:      signals,
		strategy:     strat,
		simulator:    simulator,
		accountant:   accountant,
		recorder:     recorder,
		riskFreeRate: riskFreeRate,
		logger:       logger,
	}
}

// Run replays the feed to exhaustion. Malformed records, crossed books
// and empty-book executions are counted and skipped; an accounting
// conservation failure aborts the run.
func (bt *Backtest) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	for {
		event, err := bt.source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, domain.ErrMalformedRecord) {
				result.Diagnostics.MalformedRecords++
				bt.logger.Debug("skipping malformed record", zap.Error(err))
				continue
			}
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			return result, errors.Wrap(err, "read feed")
		}

		if !bt.applyEvent(event, &result.Diagnostics) {
			continue
		}
		result.Diagnostics.EventsProcessed++

		if err := bt.step(event, result); err != nil {
			return result, err
		}

		if result.Diagnostics.EventsProcessed%progressLogEvery == 0 {
			bt.logger.Info("backtest progress",
				zap.Int("events", result.Diagnostics.EventsProcessed),
				zap.Int("fills", result.Diagnostics.FillsExecuted),
				zap.Int64("position", bt.accountant.Position().Quantity))
		}
	}

	result.Position = bt.accountant.Position()
	result.Summary = Summarize(result.PnL, bt.accountant.ClosedTrades(), bt.accountant.InitialCash(), bt.riskFreeRate)

	bt.logger.Info("backtest finished",
		zap.Int("events", result.Diagnostics.EventsProcessed),
		zap.Int("trades", len(result.Trades)),
		zap.Int("malformed", result.Diagnostics.MalformedRecords),
		zap.Int("crossed", result.Diagnostics.CrossedBooks),
		zap.String("total_pnl", result.Summary.TotalPnL.String()))

	return result, nil
}

// applyEvent mutates the book. Rejected events leave the book on its
// previous state and are only counted.
func (bt *Backtest) applyEvent(event domain.BookEvent, diag *Diagnostics) bool {
	var err error
	switch event.Type {
	case domain.EventSnapshot:
		err = bt.book.ApplySnapshot(event.Bids, event.Asks, event.Timestamp)
	case domain.EventUpdate:
		err = bt.book.ApplyUpdate(event.Side, event.Price, event.Size, event.Action, event.Timestamp)
	default:
		diag.MalformedRecords++
		return false
	}

	switch {
	case err == nil:
		return true
	case errors.Is(err, domain.ErrCrossedBook):
		diag.CrossedBooks++
		bt.logger.Debug("rejected crossed book event", zap.Time("ts", event.Timestamp))
	case errors.Is(err, domain.ErrInvalidSnapshot):
		diag.InvalidSnapshots++
		bt.logger.Debug("rejected invalid snapshot", zap.Time("ts", event.Timestamp), zap.Error(err))
	default:
		diag.MalformedRecords++
		bt.logger.Debug("rejected book event", zap.Error(err))
	}
	return false
}

// step runs signal, strategy, execution and accounting for one applied
// event and records the outputs.
func (bt *Backtest) step(event domain.BookEvent, result *Result) error {
	snapshot := bt.signals.OnBookState(bt.book)
	result.Signals = append(result.Signals, snapshot)
	if snapshot.HasMid {
		result.Mids = append(result.Mids, snapshot.MidPrice)
	}

	target := bt.strategy.Decide(snapshot)
	current := bt.accountant.Position().Quantity

	fill, err := bt.simulator.Execute(target, current, bt.book)
	if err != nil {
		if !errors.Is(err, domain.ErrEmptyBook) {
			return errors.Wrap(err, "execute order")
		}
		result.Diagnostics.EmptyBookSkips++
		bt.logger.Debug("no liquidity for order", zap.Int64("target", target), zap.Int64("current", current))
	}

	if fill != nil {
		state := bt.accountant.ApplyFill(fill)
		trade := domain.TradeRecord{
			Timestamp:     fill.Timestamp,
			Side:          fill.Side.String(),
			Quantity:      fill.Quantity,
			Requested:     fill.Requested,
			AvgFillPrice:  fill.AvgPrice,
			Fee:           fill.Fee,
			Slippage:      fill.Slippage,
			PositionAfter: state.Quantity,
			CashAfter:     state.Cash,
		}
		result.Trades = append(result.Trades, trade)
		result.Diagnostics.FillsExecuted++
		bt.record(func(r Recorder) error { return r.AppendTrade(trade) })
	}

	mid, hasMid := bt.book.MidPrice()
	if err := bt.accountant.CheckConservation(mid, hasMid); err != nil {
		return errors.Wrapf(err, "after event at %s", event.Timestamp)
	}

	state := bt.accountant.Position()
	unrealized := bt.accountant.MarkToMarket(mid, hasMid)
	pnl := domain.PnLRecord{
		Timestamp:        event.Timestamp,
		PositionQuantity: state.Quantity,
		Cash:             state.Cash,
		RealizedPnL:      state.RealizedPnL,
		UnrealizedPnL:    unrealized,
		TotalPnL:         state.RealizedPnL.Add(unrealized).Sub(state.FeesPaid),
		Equity:           equity(state, mid, hasMid),
	}
	result.PnL = append(result.PnL, pnl)
	bt.record(func(r Recorder) error { return r.AppendPnL(pnl) })

	return nil
}

func (bt *Backtest) record(write func(Recorder) error) {
	if bt.recorder == nil {
		return
	}
	if err := write(bt.recorder); err != nil {
		bt.logger.Warn("journal write failed", zap.Error(err))
	}
}

// equity is cash plus the position valued at mid. A flat position or an
// absent mid leaves equity at cash.
func equity(state domain.PositionState, mid decimal.Decimal, hasMid bool) decimal.Decimal {
	if state.Quantity == 0 || !hasMid {
		return state.Cash
	}
	return state.Cash.Add(decimal.NewFromInt(state.Quantity).Mul(mid))
}
