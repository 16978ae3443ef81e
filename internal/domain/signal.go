package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalSnapshot carries the signal values derived from one book state.
// It is created once per event and immutable afterwards.
//
// Mid price and spread exist only while both sides of the book are
// populated; z-scores exist only once their rolling windows are full.
// Downstream consumers must treat an absent z-score as "no signal",
// which is not the same as a zero z-score.
type SignalSnapshot struct {
	Timestamp time.Time

	HasMid   bool
	MidPrice decimal.Decimal
	Spread   decimal.Decimal

	// DepthImbalance is (bidSize-askSize)/(bidSize+askSize) over the
	// top of book, zero when both top sizes are zero.
	DepthImbalance float64

	// MidReturn is the log return of the mid price vs the previous event.
	MidReturn float64

	// ZScore of the mid price over the rolling window.
	ZScore    float64
	HasZScore bool

	// Supplementary rolling z-scores recorded for the signal series.
	ReturnZScore       float64
	HasReturnZScore    bool
	ImbalanceZScore    float64
	HasImbalanceZScore bool
}
