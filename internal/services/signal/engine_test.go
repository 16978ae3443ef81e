package signal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/microsim/internal/domain"
	"github.com/vadiminshakov/microsim/internal/services/book"
)

func bookWith(t *testing.T, bids, asks []domain.PriceLevel) *book.Book {
	t.Helper()
	b := book.New(5)
	require.NoError(t, b.ApplySnapshot(bids, asks, time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)))
	return b
}

func levels(pairs ...float64) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.PriceLevel{Price: decimal.NewFromFloat(pairs[i]), Size: int64(pairs[i+1])})
	}
	return out
}

func TestOnBookState_MidSpreadImbalance(t *testing.T) {
	b := bookWith(t, levels(100, 10, 99, 20), levels(101, 10, 102, 20))
	engine := NewEngine(10)

	snap := engine.OnBookState(b)
	require.True(t, snap.HasMid)
	assert.True(t, snap.MidPrice.Equal(decimal.NewFromFloat(100.5)))
	assert.True(t, snap.Spread.Equal(decimal.NewFromInt(1)))
	assert.InDelta(t, 0.0, snap.DepthImbalance, 1e-12)
	assert.False(t, snap.HasZScore)
}

func TestOnBookState_EmptyBookProducesNoMid(t *testing.T) {
	engine := NewEngine(10)
	snap := engine.OnBookState(book.New(5))
	assert.False(t, snap.HasMid)
	assert.False(t, snap.HasZScore)
}

func TestOnBookState_ImbalanceSkewed(t *testing.T) {
	b := bookWith(t, levels(100, 30), levels(101, 10))
	engine := NewEngine(10)
	snap := engine.OnBookState(b)
	assert.InDelta(t, 0.5, snap.DepthImbalance, 1e-12)
}

func TestZScoreAbsentUntilWindowFull(t *testing.T) {
	const window = 5
	engine := NewEngine(window)

	b := book.New(5)
	for i := 0; i < window; i++ {
		price := 100.0 + float64(i)
		require.NoError(t, b.ApplySnapshot(
			levels(price-0.5, 10),
			levels(price+0.5, 10),
			time.Now(),
		))
		snap := engine.OnBookState(b)
		if i < window-1 {
			assert.False(t, snap.HasZScore, "z-score must be absent at observation %d", i+1)
		} else {
			assert.True(t, snap.HasZScore, "z-score must be present at observation %d", window)
		}
	}
}

func TestZScoreZeroForConstantSeries(t *testing.T) {
	const window = 5
	engine := NewEngine(window)

	b := bookWith(t, levels(100, 10), levels(101, 10))
	for i := 0; i < window*3; i++ {
		snap := engine.OnBookState(b)
		if snap.HasZScore {
			assert.Zero(t, snap.ZScore, "constant series must score zero, never a division fault")
		}
	}

	// the last snapshot of a filled constant window is present and zero
	snap := engine.OnBookState(b)
	require.True(t, snap.HasZScore)
	assert.Zero(t, snap.ZScore)
}

func TestZScoreSignTracksDeviation(t *testing.T) {
	const window = 4
	engine := NewEngine(window)

	b := book.New(5)
	for _, mid := range []float64{100, 100, 100} {
		require.NoError(t, b.ApplySnapshot(levels(mid-0.5, 10), levels(mid+0.5, 10), time.Now()))
		engine.OnBookState(b)
	}
	require.NoError(t, b.ApplySnapshot(levels(109.5, 10), levels(110.5, 10), time.Now()))
	snap := engine.OnBookState(b)

	require.True(t, snap.HasZScore)
	assert.Greater(t, snap.ZScore, 0.0, "a jump above the window mean must score positive")
}

func TestRollingWindowEviction(t *testing.T) {
	w := newRollingWindow(3)
	for _, v := range []float64{1, 2, 3, 4} {
		w.push(v)
	}
	require.True(t, w.full())
	assert.InDelta(t, 3.0, w.mean(), 1e-12) // 2,3,4 after evicting 1

	z, ok := w.zScore(3)
	require.True(t, ok)
	assert.InDelta(t, 0.0, z, 1e-12)
}

func TestRollingWindowStddevPopulation(t *testing.T) {
	w := newRollingWindow(4)
	for _, v := range []float64{2, 4, 4, 4} {
		w.push(v)
	}
	// population stddev of {2,4,4,4}: mean 3.5, var 0.75
	assert.InDelta(t, 0.8660254, w.stddev(), 1e-6)
}
