package engine

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/microsim/internal/domain"
)

// stepsPerYear annualizes the Sharpe ratio the way daily-bar backtests
// conventionally do.
const stepsPerYear = 252

// Summary aggregates the run into the headline performance metrics.
type Summary struct {
	TotalPnL       decimal.Decimal `json:"total_pnl"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	FeesPaid       decimal.Decimal `json:"fees_paid"`
	FinalEquity    decimal.Decimal `json:"final_equity"`
	TotalReturnPct float64         `json:"total_return_pct"`

	Sharpe    float64 `json:"sharpe"`
	HasSharpe bool    `json:"has_sharpe"`

	MaxDrawdown    decimal.Decimal `json:"max_drawdown"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`

	ClosedTrades  int             `json:"closed_trades"`
	WinningTrades int             `json:"winning_trades"`
	WinRate       float64         `json:"win_rate"`
	HasWinRate    bool            `json:"has_win_rate"`
	AvgTradePnL   decimal.Decimal `json:"avg_trade_pnl"`
}

// Summarize computes the summary from the PnL series and the closed
// trades. An empty series yields a zero summary.
func Summarize(pnl []domain.PnLRecord, closed []domain.ClosedTrade, initialCash decimal.Decimal, riskFreeRate float64) Summary {
	summary := Summary{
		TotalPnL:      decimal.Zero,
		RealizedPnL:   decimal.Zero,
		UnrealizedPnL: decimal.Zero,
		FeesPaid:      decimal.Zero,
		FinalEquity:   initialCash,
		MaxDrawdown:   decimal.Zero,
		AvgTradePnL:   decimal.Zero,
	}

	if len(pnl) > 0 {
		last := pnl[len(pnl)-1]
		summary.TotalPnL = last.TotalPnL
		summary.RealizedPnL = last.RealizedPnL
		summary.UnrealizedPnL = last.UnrealizedPnL
		summary.FinalEquity = last.Equity
		if !initialCash.IsZero() {
			summary.TotalReturnPct, _ = last.Equity.Sub(initialCash).
				Div(initialCash).Mul(decimal.NewFromInt(100)).Float64()
		}
		// fees = realized + unrealized - total
		summary.FeesPaid = last.RealizedPnL.Add(last.UnrealizedPnL).Sub(last.TotalPnL)
	}

	summary.Sharpe, summary.HasSharpe = sharpeRatio(pnl, riskFreeRate)
	summary.MaxDrawdown, summary.MaxDrawdownPct = maxDrawdown(pnl)
	summary.ClosedTrades, summary.WinningTrades, summary.WinRate, summary.HasWinRate, summary.AvgTradePnL = tradeStats(closed)

	return summary
}

// sharpeRatio annualizes the mean per-step equity return over its
// standard deviation. Absent when there are fewer than two points or
// the returns never vary.
func sharpeRatio(pnl []domain.PnLRecord, riskFreeRate float64) (float64, bool) {
	if len(pnl) < 2 {
		return 0, false
	}

	returns := make([]float64, 0, len(pnl)-1)
	for i := 1; i < len(pnl); i++ {
		prev, _ := pnl[i-1].Equity.Float64()
		cur, _ := pnl[i].Equity.Float64()
		if prev == 0 {
			continue
		}
		returns = append(returns, (cur-prev)/prev)
	}
	if len(returns) < 2 {
		return 0, false
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sumSq float64
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	std := math.Sqrt(sumSq / float64(len(returns)))
	if std == 0 {
		return 0, false
	}

	excess := mean - riskFreeRate/stepsPerYear
	return excess / std * math.Sqrt(stepsPerYear), true
}

// maxDrawdown is the largest peak-to-trough equity drop, in absolute
// terms and as a percentage of the peak.
func maxDrawdown(pnl []domain.PnLRecord) (decimal.Decimal, float64) {
	maxDD := decimal.Zero
	var maxPct float64
	if len(pnl) == 0 {
		return maxDD, 0
	}

	peak := pnl[0].Equity
	for _, record := range pnl[1:] {
		if record.Equity.GreaterThan(peak) {
			peak = record.Equity
			continue
		}
		dd := peak.Sub(record.Equity)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
			if peak.IsPositive() {
				maxPct, _ = dd.Div(peak).Mul(decimal.NewFromInt(100)).Float64()
			}
		}
	}
	return maxDD, maxPct
}

// tradeStats treats every realizing fill as one closed trade. A trade
// wins only on strictly positive PnL; break-even trades count in the
// denominator.
func tradeStats(closed []domain.ClosedTrade) (total, wins int, winRate float64, hasWinRate bool, avgPnL decimal.Decimal) {
	avgPnL = decimal.Zero
	total = len(closed)
	if total == 0 {
		return 0, 0, 0, false, avgPnL
	}

	sum := decimal.Zero
	for _, trade := range closed {
		if trade.PnL.IsPositive() {
			wins++
		}
		sum = sum.Add(trade.PnL)
	}
	winRate = float64(wins) / float64(total)
	avgPnL = sum.Div(decimal.NewFromInt(int64(total)))
	return total, wins, winRate, true, avgPnL
}
