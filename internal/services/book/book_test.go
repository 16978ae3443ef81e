package book

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/microsim/internal/domain"
)

func lvl(price float64, size int64) domain.PriceLevel {
	return domain.PriceLevel{Price: decimal.NewFromFloat(price), Size: size}
}

func now() time.Time {
	return time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
}

func TestApplySnapshot_SortsAndTruncates(t *testing.T) {
	b := New(2)

	err := b.ApplySnapshot(
		[]domain.PriceLevel{lvl(99, 20), lvl(100, 10), lvl(98, 5)},
		[]domain.PriceLevel{lvl(102, 20), lvl(101, 10), lvl(103, 5)},
		now(),
	)
	require.NoError(t, err)

	bids, asks := b.Bids(), b.Asks()
	require.Len(t, bids, 2)
	require.Len(t, asks, 2)
	assert.True(t, bids[0].Price.Equal(decimal.NewFromInt(100)))
	assert.True(t, bids[1].Price.Equal(decimal.NewFromInt(99)))
	assert.True(t, asks[0].Price.Equal(decimal.NewFromInt(101)))
	assert.True(t, asks[1].Price.Equal(decimal.NewFromInt(102)))
}

func TestApplySnapshot_CrossedRejected(t *testing.T) {
	b := New(5)
	require.NoError(t, b.ApplySnapshot(
		[]domain.PriceLevel{lvl(100, 10)},
		[]domain.PriceLevel{lvl(101, 10)},
		now(),
	))

	err := b.ApplySnapshot(
		[]domain.PriceLevel{lvl(102, 10)},
		[]domain.PriceLevel{lvl(101, 10)},
		now(),
	)
	require.ErrorIs(t, err, domain.ErrInvalidSnapshot)

	// previous state retained
	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Price.Equal(decimal.NewFromInt(100)))
}

func TestApplySnapshot_DuplicatePricesRejected(t *testing.T) {
	b := New(5)
	err := b.ApplySnapshot(
		[]domain.PriceLevel{lvl(100, 10), lvl(100, 20)},
		[]domain.PriceLevel{lvl(101, 10)},
		now(),
	)
	require.ErrorIs(t, err, domain.ErrInvalidSnapshot)
}

func TestApplyUpdate_InsertReplaceRemove(t *testing.T) {
	b := New(5)
	require.NoError(t, b.ApplySnapshot(
		[]domain.PriceLevel{lvl(100, 10), lvl(99, 20)},
		[]domain.PriceLevel{lvl(101, 10), lvl(102, 20)},
		now(),
	))

	// replace existing level
	require.NoError(t, b.ApplyUpdate(domain.SideBid, decimal.NewFromInt(100), 42, domain.ActionUpdate, now()))
	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(42), bid.Size)

	// insert a new level between existing ones
	require.NoError(t, b.ApplyUpdate(domain.SideAsk, decimal.NewFromFloat(101.5), 7, domain.ActionUpdate, now()))
	asks := b.Asks()
	require.Len(t, asks, 3)
	assert.True(t, asks[1].Price.Equal(decimal.NewFromFloat(101.5)))

	// remove best bid
	require.NoError(t, b.ApplyUpdate(domain.SideBid, decimal.NewFromInt(100), 0, domain.ActionRemove, now()))
	bid, ok = b.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Price.Equal(decimal.NewFromInt(99)))

	// removing an absent level is a no-op, not an error
	require.NoError(t, b.ApplyUpdate(domain.SideBid, decimal.NewFromInt(55), 0, domain.ActionRemove, now()))
}

func TestApplyUpdate_SizeZeroRemoves(t *testing.T) {
	b := New(5)
	require.NoError(t, b.ApplySnapshot(
		[]domain.PriceLevel{lvl(100, 10)},
		[]domain.PriceLevel{lvl(101, 10)},
		now(),
	))

	require.NoError(t, b.ApplyUpdate(domain.SideAsk, decimal.NewFromInt(101), 0, domain.ActionUpdate, now()))
	_, ok := b.BestAsk()
	assert.False(t, ok)
}

func TestApplyUpdate_NegativeSizeRejected(t *testing.T) {
	b := New(5)
	require.NoError(t, b.ApplySnapshot(
		[]domain.PriceLevel{lvl(100, 10)},
		[]domain.PriceLevel{lvl(101, 10)},
		now(),
	))

	err := b.ApplyUpdate(domain.SideBid, decimal.NewFromInt(100), -5, domain.ActionUpdate, now())
	require.ErrorIs(t, err, domain.ErrMalformedRecord)

	// book unchanged
	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(10), bid.Size)
}

func TestApplyUpdate_CrossedRejectedAtomically(t *testing.T) {
	b := New(5)
	require.NoError(t, b.ApplySnapshot(
		[]domain.PriceLevel{lvl(100, 10), lvl(99, 20)},
		[]domain.PriceLevel{lvl(101, 10)},
		now(),
	))

	err := b.ApplyUpdate(domain.SideBid, decimal.NewFromInt(101), 5, domain.ActionUpdate, now())
	require.ErrorIs(t, err, domain.ErrCrossedBook)

	// book unchanged, no partial mutation
	bids := b.Bids()
	require.Len(t, bids, 2)
	assert.True(t, bids[0].Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int64(10), bids[0].Size)

	err = b.ApplyUpdate(domain.SideAsk, decimal.NewFromInt(100), 5, domain.ActionUpdate, now())
	require.ErrorIs(t, err, domain.ErrCrossedBook)
	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Price.Equal(decimal.NewFromInt(101)))
}

func TestDepthCapAfterUpdates(t *testing.T) {
	b := New(3)
	require.NoError(t, b.ApplySnapshot(
		[]domain.PriceLevel{lvl(100, 1), lvl(99, 1), lvl(98, 1)},
		[]domain.PriceLevel{lvl(101, 1)},
		now(),
	))

	// a deep level beyond the cap is dropped silently
	require.NoError(t, b.ApplyUpdate(domain.SideBid, decimal.NewFromInt(97), 9, domain.ActionUpdate, now()))
	require.Len(t, b.Bids(), 3)

	// a better level evicts the worst one
	require.NoError(t, b.ApplyUpdate(domain.SideBid, decimal.NewFromFloat(99.5), 9, domain.ActionUpdate, now()))
	bids := b.Bids()
	require.Len(t, bids, 3)
	assert.True(t, bids[0].Price.Equal(decimal.NewFromInt(100)))
	assert.True(t, bids[1].Price.Equal(decimal.NewFromFloat(99.5)))
	assert.True(t, bids[2].Price.Equal(decimal.NewFromInt(99)))
}

func TestMidAndSpread(t *testing.T) {
	b := New(5)
	_, ok := b.MidPrice()
	assert.False(t, ok)

	require.NoError(t, b.ApplySnapshot(
		[]domain.PriceLevel{lvl(100, 10), lvl(99, 20)},
		[]domain.PriceLevel{lvl(101, 10), lvl(102, 20)},
		now(),
	))

	mid, ok := b.MidPrice()
	require.True(t, ok)
	assert.True(t, mid.Equal(decimal.NewFromFloat(100.5)))

	spread, ok := b.Spread()
	require.True(t, ok)
	assert.True(t, spread.Equal(decimal.NewFromInt(1)))
}

func TestInvariantHeldOverUpdateSequence(t *testing.T) {
	b := New(5)
	require.NoError(t, b.ApplySnapshot(
		[]domain.PriceLevel{lvl(100, 10), lvl(99, 20), lvl(98, 30)},
		[]domain.PriceLevel{lvl(101, 10), lvl(102, 20), lvl(103, 30)},
		now(),
	))

	updates := []struct {
		side   domain.Side
		price  float64
		size   int64
		action domain.UpdateAction
	}{
		{domain.SideBid, 100.5, 5, domain.ActionUpdate},
		{domain.SideAsk, 101, 0, domain.ActionRemove},
		{domain.SideAsk, 100.9, 5, domain.ActionUpdate},
		{domain.SideBid, 101.5, 5, domain.ActionUpdate}, // crossing, rejected
		{domain.SideBid, 100.5, 0, domain.ActionRemove},
		{domain.SideAsk, 100.2, 5, domain.ActionUpdate},
	}

	for _, u := range updates {
		_ = b.ApplyUpdate(u.side, decimal.NewFromFloat(u.price), u.size, u.action, now())

		bid, okBid := b.BestBid()
		ask, okAsk := b.BestAsk()
		if okBid && okAsk {
			assert.True(t, bid.Price.LessThan(ask.Price),
				"best bid %s must stay below best ask %s", bid.Price, ask.Price)
		}
		assert.LessOrEqual(t, len(b.Bids()), 5)
		assert.LessOrEqual(t, len(b.Asks()), 5)
	}
}
