package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is the append-only trade log entry emitted per executed fill.
type TradeRecord struct {
	Timestamp     time.Time       `json:"timestamp"`
	Side          string          `json:"side"`
	Quantity      int64           `json:"quantity"`
	Requested     int64           `json:"requested"`
	AvgFillPrice  decimal.Decimal `json:"avg_fill_price"`
	Fee           decimal.Decimal `json:"fee"`
	Slippage      decimal.Decimal `json:"slippage"`
	PositionAfter int64           `json:"position_after"`
	CashAfter     decimal.Decimal `json:"cash_after"`
}

// PnLRecord is one point of the PnL time series, emitted per event.
type PnLRecord struct {
	Timestamp        time.Time       `json:"timestamp"`
	PositionQuantity int64           `json:"position_quantity"`
	Cash             decimal.Decimal `json:"cash"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL         decimal.Decimal `json:"total_pnl"`
	// Equity is cash plus the position valued at mid.
	Equity decimal.Decimal `json:"equity"`
}

// ClosedTrade is one realizing fill: a reduce or a reversal close.
// Used for the win-rate calculation.
type ClosedTrade struct {
	Timestamp time.Time       `json:"timestamp"`
	Quantity  int64           `json:"quantity"`
	PnL       decimal.Decimal `json:"pnl"`
}
