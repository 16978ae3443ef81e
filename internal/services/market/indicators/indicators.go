// Package indicators derives trend statistics from the mid-price series
// of a finished run. It uses the cinar/indicator library for EMA and RSI
// so the run report can describe the market regime the strategy traded.
package indicators

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	fastEmaPeriod = 20
	slowEmaPeriod = 50
	rsiPeriod     = 14
)

// TrendSummary captures the indicator values at the end of a run.
type TrendSummary struct {
	FastEMA decimal.Decimal
	SlowEMA decimal.Decimal
	RSI     decimal.Decimal
	// Trending is true when the fast EMA sits above the slow one.
	Trending bool
}

// SummarizeMids computes the trend summary over a mid-price series.
// Needs at least 50 observations for the slow EMA warmup.
func SummarizeMids(mids []decimal.Decimal) (TrendSummary, error) {
	if len(mids) < slowEmaPeriod {
		return TrendSummary{}, errors.Errorf("not enough mid prices: need %d, got %d", slowEmaPeriod, len(mids))
	}

	fast, err := EMA(mids, fastEmaPeriod)
	if err != nil {
		return TrendSummary{}, err
	}
	slow, err := EMA(mids, slowEmaPeriod)
	if err != nil {
		return TrendSummary{}, err
	}
	rsi, err := RSI(mids, rsiPeriod)
	if err != nil {
		return TrendSummary{}, err
	}

	summary := TrendSummary{
		FastEMA: fast[len(fast)-1],
		SlowEMA: slow[len(slow)-1],
		RSI:     rsi[len(rsi)-1],
	}
	summary.Trending = summary.FastEMA.GreaterThan(summary.SlowEMA)
	return summary, nil
}

// EMA computes the exponential moving average for the given period.
func EMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(values) < period {
		return nil, errors.Errorf("not enough data points: need %d, got %d", period, len(values))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	out := helper.ChanToSlice(ema.Compute(helper.SliceToChan(decimalsToFloat64(values))))
	return float64ToDecimals(out), nil
}

// RSI computes the relative strength index for the given period.
func RSI(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(values) < period+1 {
		return nil, errors.Errorf("not enough data points: need %d, got %d", period+1, len(values))
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	out := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(decimalsToFloat64(values))))
	return float64ToDecimals(out), nil
}

func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
