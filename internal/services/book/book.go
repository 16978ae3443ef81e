// Package book maintains a depth-capped level-2 order book built from
// snapshots and incremental updates.
package book

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/microsim/internal/domain"
)

// DefaultDepth is the number of levels kept per side when none is configured.
const DefaultDepth = 5

// Book holds the top-N bid and ask levels of a single instrument.
// Bids are sorted by price descending, asks ascending. Only Book methods
// mutate the sides; downstream components read the state of one step.
type Book struct {
	depth     int
	bids      []domain.PriceLevel
	asks      []domain.PriceLevel
	timestamp time.Time
}

// New creates an empty book keeping at most depth levels per side.
func New(depth int) *Book {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Book{depth: depth}
}

// ApplySnapshot replaces both sides wholesale. The input is re-sorted and
// truncated to the configured depth. A snapshot with duplicate prices on
// one side or with best_bid >= best_ask is rejected with
// domain.ErrInvalidSnapshot and the book keeps its previous state.
func (b *Book) ApplySnapshot(bids, asks []domain.PriceLevel, timestamp time.Time) error {
	newBids := sortSide(dropEmpty(bids), domain.SideBid, b.depth)
	newAsks := sortSide(dropEmpty(asks), domain.SideAsk, b.depth)

	if hasDuplicatePrices(newBids) || hasDuplicatePrices(newAsks) {
		return errors.Wrap(domain.ErrInvalidSnapshot, "duplicate price level on one side")
	}
	if len(newBids) > 0 && len(newAsks) > 0 && newBids[0].Price.GreaterThanOrEqual(newAsks[0].Price) {
		return errors.Wrapf(domain.ErrInvalidSnapshot, "best bid %s >= best ask %s",
			newBids[0].Price.String(), newAsks[0].Price.String())
	}

	b.bids = newBids
	b.asks = newAsks
	b.timestamp = timestamp
	return nil
}

// ApplyUpdate mutates a single price level. Remove (or size zero) deletes
// the level if present; removing an absent level is a no-op. Update
// inserts or replaces the level, re-sorts and truncates the side to the
// configured depth; levels pushed beyond the depth are dropped silently.
// An update that would cross the book is rejected with
// domain.ErrCrossedBook, a negative size with domain.ErrMalformedRecord;
// either way the book keeps its pre-update state.
func (b *Book) ApplyUpdate(side domain.Side, price decimal.Decimal, size int64, action domain.UpdateAction, timestamp time.Time) error {
	if size < 0 {
		return errors.Wrapf(domain.ErrMalformedRecord, "negative size %d at %s %s", size, side, price.String())
	}
	if action == domain.ActionRemove || size == 0 {
		b.removeLevel(side, price)
		b.timestamp = timestamp
		return nil
	}

	current := b.sideLevels(side)
	candidate := make([]domain.PriceLevel, 0, len(current)+1)
	for _, lvl := range current {
		if !lvl.Price.Equal(price) {
			candidate = append(candidate, lvl)
		}
	}
	candidate = append(candidate, domain.PriceLevel{Price: price, Size: size})
	candidate = sortSide(candidate, side, b.depth)

	// reject before committing so a failed update leaves no trace
	if side == domain.SideBid {
		if best, ok := b.BestAsk(); ok && candidate[0].Price.GreaterThanOrEqual(best.Price) {
			return errors.Wrapf(domain.ErrCrossedBook, "bid %s >= best ask %s", price.String(), best.Price.String())
		}
		b.bids = candidate
	} else {
		if best, ok := b.BestBid(); ok && best.Price.GreaterThanOrEqual(candidate[0].Price) {
			return errors.Wrapf(domain.ErrCrossedBook, "ask %s <= best bid %s", price.String(), best.Price.String())
		}
		b.asks = candidate
	}
	b.timestamp = timestamp
	return nil
}

// BestBid returns the highest bid level.
func (b *Book) BestBid() (domain.PriceLevel, bool) {
	if len(b.bids) == 0 {
		return domain.PriceLevel{}, false
	}
	return b.bids[0], true
}

// BestAsk returns the lowest ask level.
func (b *Book) BestAsk() (domain.PriceLevel, bool) {
	if len(b.asks) == 0 {
		return domain.PriceLevel{}, false
	}
	return b.asks[0], true
}

// MidPrice returns (best_bid + best_ask) / 2, absent while either side is empty.
func (b *Book) MidPrice() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// Spread returns best_ask - best_bid, absent while either side is empty.
func (b *Book) Spread() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, false
	}
	return ask.Price.Sub(bid.Price), true
}

// Bids returns a copy of the bid side, price descending.
func (b *Book) Bids() []domain.PriceLevel {
	return copyLevels(b.bids)
}

// Asks returns a copy of the ask side, price ascending.
func (b *Book) Asks() []domain.PriceLevel {
	return copyLevels(b.asks)
}

// Depth returns the configured per-side level cap.
func (b *Book) Depth() int {
	return b.depth
}

// Timestamp returns the time of the last applied event.
func (b *Book) Timestamp() time.Time {
	return b.timestamp
}

func (b *Book) sideLevels(side domain.Side) []domain.PriceLevel {
	if side == domain.SideBid {
		return b.bids
	}
	return b.asks
}

func (b *Book) removeLevel(side domain.Side, price decimal.Decimal) {
	levels := b.sideLevels(side)
	filtered := levels[:0]
	for _, lvl := range levels {
		if !lvl.Price.Equal(price) {
			filtered = append(filtered, lvl)
		}
	}
	if side == domain.SideBid {
		b.bids = filtered
	} else {
		b.asks = filtered
	}
}

func sortSide(levels []domain.PriceLevel, side domain.Side, depth int) []domain.PriceLevel {
	sorted := copyLevels(levels)
	sort.SliceStable(sorted, func(i, j int) bool {
		if side == domain.SideBid {
			return sorted[i].Price.GreaterThan(sorted[j].Price)
		}
		return sorted[i].Price.LessThan(sorted[j].Price)
	})
	if len(sorted) > depth {
		sorted = sorted[:depth]
	}
	return sorted
}

func dropEmpty(levels []domain.PriceLevel) []domain.PriceLevel {
	kept := make([]domain.PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		if lvl.Size > 0 {
			kept = append(kept, lvl)
		}
	}
	return kept
}

func copyLevels(levels []domain.PriceLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, len(levels))
	copy(out, levels)
	return out
}

func hasDuplicatePrices(levels []domain.PriceLevel) bool {
	for i := 1; i < len(levels); i++ {
		if levels[i].Price.Equal(levels[i-1].Price) {
			return true
		}
	}
	return false
}
