package feed

import (
	"context"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/microsim/internal/domain"
	"github.com/vadiminshakov/microsim/pkg/retrier"
	"go.uber.org/zap"
)

// BybitSource polls the Bybit V5 ticker endpoint and emits single-level
// snapshots built from the best bid and ask. One-level books still give
// the loop a mid price, spread and imbalance to work with.
type BybitSource struct {
	client   *bybit.Client
	symbol   string
	interval time.Duration
	retry    *retrier.Retrier
	logger   *zap.Logger
	started  bool
}

// NewBybitSource creates a top-of-book poller for the given symbol.
func NewBybitSource(client *bybit.Client, symbol string, interval time.Duration, logger *zap.Logger) *BybitSource {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BybitSource{
		client:   client,
		symbol:   symbol,
		interval: interval,
		retry:    retrier.New(),
		logger:   logger,
	}
}

// Next waits for the poll interval and fetches the current best quotes.
func (s *BybitSource) Next(ctx context.Context) (domain.BookEvent, error) {
	if s.started {
		select {
		case <-ctx.Done():
			return domain.BookEvent{}, ctx.Err()
		case <-time.After(s.interval):
		}
	}
	s.started = true

	symbol := bybit.SymbolV5(s.symbol)
	result, err := retrier.DoWithData(s.retry, ctx, func(context.Context) (*bybit.V5GetTickersResponse, error) {
		return s.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
			Category: "spot",
			Symbol:   &symbol,
		})
	})
	if err != nil {
		return domain.BookEvent{}, errors.Wrapf(err, "fetch bybit ticker for %s", s.symbol)
	}
	if len(result.Result.Spot.List) == 0 {
		return domain.BookEvent{}, errors.Wrapf(domain.ErrMalformedRecord, "bybit returned no ticker for %s", s.symbol)
	}
	ticker := result.Result.Spot.List[0]

	event := domain.BookEvent{
		Timestamp: time.Now().UTC(),
		Type:      domain.EventSnapshot,
	}
	if bid, err := parseDepthLevel(ticker.Bid1Price, ticker.Bid1Size); err == nil && bid.Size > 0 {
		event.Bids = append(event.Bids, bid)
	}
	if ask, err := parseDepthLevel(ticker.Ask1Price, ticker.Ask1Size); err == nil && ask.Size > 0 {
		event.Asks = append(event.Asks, ask)
	}
	if len(event.Bids) == 0 && len(event.Asks) == 0 {
		return domain.BookEvent{}, errors.Wrapf(domain.ErrMalformedRecord, "bybit ticker for %s has no quotes", s.symbol)
	}
	return event, nil
}
