package feed

import (
	"context"
	"io"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/microsim/internal/domain"
)

// SyntheticParams configure the random-walk snapshot generator.
type SyntheticParams struct {
	BasePrice  float64
	Snapshots  int
	Interval   time.Duration
	Volatility float64
	SizeMin    int64
	SizeMax    int64
	SpreadBps  float64
	Depth      int
	Seed       int64
	Start      time.Time
}

// DefaultSyntheticParams mirror the sample data the simulator ships with.
func DefaultSyntheticParams() SyntheticParams {
	return SyntheticParams{
		BasePrice:  100.0,
		Snapshots:  1000,
		Interval:   150 * time.Millisecond,
		Volatility: 0.5,
		SizeMin:    10,
		SizeMax:    1000,
		SpreadBps:  5,
		Depth:      5,
		Seed:       1,
		Start:      time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
	}
}

// SyntheticSource emits snapshot events following a random walk around
// the base price. The same seed always produces the same sequence, so
// runs against synthetic data stay reproducible.
type SyntheticSource struct {
	params SyntheticParams
	rng    *rand.Rand
	price  float64
	emit   int
}

// NewSyntheticSource creates a generator from the given parameters.
func NewSyntheticSource(params SyntheticParams) *SyntheticSource {
	if params.Depth <= 0 {
		params.Depth = 5
	}
	if params.Snapshots <= 0 {
		params.Snapshots = 1000
	}
	if params.SizeMin <= 0 {
		params.SizeMin = 1
	}
	if params.SizeMax < params.SizeMin {
		params.SizeMax = params.SizeMin
	}
	return &SyntheticSource{
		params: params,
		rng:    rand.New(rand.NewSource(params.Seed)),
		price:  params.BasePrice,
	}
}

// Next produces the next snapshot, io.EOF after the configured count.
func (s *SyntheticSource) Next(_ context.Context) (domain.BookEvent, error) {
	if s.emit >= s.params.Snapshots {
		return domain.BookEvent{}, io.EOF
	}

	s.price += s.rng.NormFloat64() * s.params.Volatility
	if s.price < 0.01 {
		s.price = 0.01
	}

	spread := s.price * s.params.SpreadBps / 10000
	half := spread / 2

	// levels sit on a cent grid so rounding can never collapse or cross them
	tick := decimal.NewFromFloat(spread / float64(s.params.Depth)).Round(2)
	if tick.LessThan(decimal.New(1, -2)) {
		tick = decimal.New(1, -2)
	}
	bestBid := decimal.NewFromFloat(s.price - half).Round(2)
	bestAsk := decimal.NewFromFloat(s.price + half).Round(2)
	if !bestAsk.GreaterThan(bestBid) {
		bestAsk = bestBid.Add(tick)
	}

	bids := make([]domain.PriceLevel, 0, s.params.Depth)
	asks := make([]domain.PriceLevel, 0, s.params.Depth)
	for level := 0; level < s.params.Depth; level++ {
		offset := tick.Mul(decimal.NewFromInt(int64(level)))
		bids = append(bids, domain.PriceLevel{
			Price: bestBid.Sub(offset),
			Size:  s.randSize(),
		})
		asks = append(asks, domain.PriceLevel{
			Price: bestAsk.Add(offset),
			Size:  s.randSize(),
		})
	}

	event := domain.BookEvent{
		Timestamp: s.params.Start.Add(time.Duration(s.emit) * s.params.Interval),
		Type:      domain.EventSnapshot,
		Bids:      bids,
		Asks:      asks,
	}
	s.emit++
	return event, nil
}

// Len returns the number of snapshots the source will emit.
func (s *SyntheticSource) Len() int {
	return s.params.Snapshots
}

func (s *SyntheticSource) randSize() int64 {
	span := s.params.SizeMax - s.params.SizeMin
	if span == 0 {
		return s.params.SizeMin
	}
	return s.params.SizeMin + s.rng.Int63n(span+1)
}
