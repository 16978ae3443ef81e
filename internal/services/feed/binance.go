package feed

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/microsim/internal/domain"
	"github.com/vadiminshakov/microsim/pkg/retrier"
	"go.uber.org/zap"
)

const defaultPollInterval = time.Second

// BinanceSource polls the public Binance depth endpoint and emits each
// response as a snapshot event, so the replay loop can run against live
// top-of-book data without any API keys.
type BinanceSource struct {
	client   *binance.Client
	symbol   string
	depth    int
	interval time.Duration
	retry    *retrier.Retrier
	logger   *zap.Logger
	started  bool
}

// NewBinanceSource creates a poller for the given symbol (e.g. BTCUSDT).
func NewBinanceSource(client *binance.Client, symbol string, depth int, interval time.Duration, logger *zap.Logger) *BinanceSource {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if depth <= 0 {
		depth = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BinanceSource{
		client:   client,
		symbol:   symbol,
		depth:    depth,
		interval: interval,
		retry:    retrier.New(),
		logger:   logger,
	}
}

// Next waits for the poll interval and fetches one depth snapshot.
// Returns the context error when the run is cancelled.
func (s *BinanceSource) Next(ctx context.Context) (domain.BookEvent, error) {
	if s.started {
		select {
		case <-ctx.Done():
			return domain.BookEvent{}, ctx.Err()
		case <-time.After(s.interval):
		}
	}
	s.started = true

	res, err := retrier.DoWithData(s.retry, ctx, func(ctx context.Context) (*binance.DepthResponse, error) {
		return s.client.NewDepthService().Symbol(s.symbol).Limit(s.depth).Do(ctx)
	})
	if err != nil {
		return domain.BookEvent{}, errors.Wrapf(err, "fetch binance depth for %s", s.symbol)
	}

	bids := make([]domain.PriceLevel, 0, len(res.Bids))
	for _, b := range res.Bids {
		lvl, err := parseDepthLevel(b.Price, b.Quantity)
		if err != nil {
			return domain.BookEvent{}, errors.Wrapf(domain.ErrMalformedRecord, "binance bid: %v", err)
		}
		if lvl.Size > 0 {
			bids = append(bids, lvl)
		}
	}
	asks := make([]domain.PriceLevel, 0, len(res.Asks))
	for _, a := range res.Asks {
		lvl, err := parseDepthLevel(a.Price, a.Quantity)
		if err != nil {
			return domain.BookEvent{}, errors.Wrapf(domain.ErrMalformedRecord, "binance ask: %v", err)
		}
		if lvl.Size > 0 {
			asks = append(asks, lvl)
		}
	}

	return domain.BookEvent{
		Timestamp: time.Now().UTC(),
		Type:      domain.EventSnapshot,
		Bids:      bids,
		Asks:      asks,
	}, nil
}

// parseDepthLevel converts exchange strings into a level. Fractional
// quantities are floored: the simulator trades integral units.
func parseDepthLevel(priceRaw, qtyRaw string) (domain.PriceLevel, error) {
	price, err := decimal.NewFromString(priceRaw)
	if err != nil {
		return domain.PriceLevel{}, err
	}
	qty, err := decimal.NewFromString(qtyRaw)
	if err != nil {
		return domain.PriceLevel{}, err
	}
	return domain.PriceLevel{Price: price, Size: qty.IntPart()}, nil
}
