package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/microsim/internal/domain"
)

func equitySeries(values ...float64) []domain.PnLRecord {
	records := make([]domain.PnLRecord, len(values))
	for i, v := range values {
		eq := decimal.NewFromFloat(v)
		records[i] = domain.PnLRecord{
			Timestamp: baseTime.Add(time.Duration(i) * time.Second),
			Equity:    eq,
			TotalPnL:  eq.Sub(decimal.NewFromInt(100000)),
		}
	}
	return records
}

func closedTrade(pnl float64) domain.ClosedTrade {
	return domain.ClosedTrade{Timestamp: baseTime, Quantity: 10, PnL: decimal.NewFromFloat(pnl)}
}

func TestSummarizeEmptyRun(t *testing.T) {
	summary := Summarize(nil, nil, decimal.NewFromInt(100000), 0)

	assert.True(t, summary.TotalPnL.IsZero())
	assert.False(t, summary.HasSharpe)
	assert.False(t, summary.HasWinRate)
	assert.True(t, summary.FinalEquity.Equal(decimal.NewFromInt(100000)))
}

func TestMaxDrawdown(t *testing.T) {
	// peak 110000, trough 99000
	pnl := equitySeries(100000, 110000, 105000, 99000, 104000)

	dd, pct := maxDrawdown(pnl)
	assert.True(t, dd.Equal(decimal.NewFromInt(11000)), "got %s", dd)
	assert.InDelta(t, 10.0, pct, 1e-9)
}

func TestMaxDrawdownMonotonicRise(t *testing.T) {
	dd, pct := maxDrawdown(equitySeries(100000, 101000, 102000))
	assert.True(t, dd.IsZero())
	assert.Zero(t, pct)
}

func TestSharpeAbsentForFlatEquity(t *testing.T) {
	_, ok := sharpeRatio(equitySeries(100000, 100000, 100000), 0)
	assert.False(t, ok, "constant equity has no defined sharpe")
}

func TestSharpePositiveForSteadyGains(t *testing.T) {
	sharpe, ok := sharpeRatio(equitySeries(100000, 100100, 100210, 100300, 100420), 0)
	require.True(t, ok)
	assert.Greater(t, sharpe, 0.0)
}

func TestSharpeShrinksWithRiskFreeRate(t *testing.T) {
	pnl := equitySeries(100000, 100100, 100210, 100300, 100420)
	base, ok := sharpeRatio(pnl, 0)
	require.True(t, ok)
	discounted, ok := sharpeRatio(pnl, 0.05)
	require.True(t, ok)
	assert.Less(t, discounted, base)
}

func TestWinRateCountsBreakEvenInDenominator(t *testing.T) {
	closed := []domain.ClosedTrade{
		closedTrade(150),
		closedTrade(-50),
		closedTrade(0),
		closedTrade(20),
	}

	total, wins, winRate, ok, avg := tradeStats(closed)
	require.True(t, ok)
	assert.Equal(t, 4, total)
	assert.Equal(t, 2, wins, "zero PnL is not a win")
	assert.InDelta(t, 0.5, winRate, 1e-9)
	assert.True(t, avg.Equal(decimal.NewFromInt(30)), "got avg %s", avg)
}

func TestSummarizeTotals(t *testing.T) {
	pnl := equitySeries(100000, 101000, 102000)
	closed := []domain.ClosedTrade{closedTrade(2000)}

	summary := Summarize(pnl, closed, decimal.NewFromInt(100000), 0)

	assert.True(t, summary.TotalPnL.Equal(decimal.NewFromInt(2000)))
	assert.InDelta(t, 2.0, summary.TotalReturnPct, 1e-9)
	assert.Equal(t, 1, summary.ClosedTrades)
	assert.True(t, summary.HasWinRate)
}
