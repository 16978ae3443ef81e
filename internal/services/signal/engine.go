// Package signal derives microstructure signals from book state: mid
// price, spread, depth imbalance and rolling z-scores.
package signal

import (
	"math"

	"github.com/vadiminshakov/microsim/internal/domain"
	"github.com/vadiminshakov/microsim/internal/services/book"
)

// DefaultWindowSize is the rolling window length used when none is configured.
const DefaultWindowSize = 100

// Engine computes one immutable SignalSnapshot per book event and keeps
// the rolling windows needed for z-scores. Not safe for concurrent use;
// each run owns its own instance.
type Engine struct {
	window     int
	mids       *rollingWindow
	returns    *rollingWindow
	imbalances *rollingWindow

	prevMid    float64
	hasPrevMid bool
}

// NewEngine creates a signal engine with the given rolling window size.
func NewEngine(window int) *Engine {
	if window <= 0 {
		window = DefaultWindowSize
	}
	return &Engine{
		window:     window,
		mids:       newRollingWindow(window),
		returns:    newRollingWindow(window),
		imbalances: newRollingWindow(window),
	}
}

// WindowSize returns the configured rolling window length.
func (e *Engine) WindowSize() int {
	return e.window
}

// OnBookState derives the signal snapshot for the current book state and
// advances the rolling windows. While either side of the book is empty
// the snapshot carries no mid price and the windows are left untouched.
func (e *Engine) OnBookState(b *book.Book) domain.SignalSnapshot {
	snapshot := domain.SignalSnapshot{Timestamp: b.Timestamp()}

	mid, okMid := b.MidPrice()
	spread, okSpread := b.Spread()
	if !okMid || !okSpread {
		return snapshot
	}

	snapshot.HasMid = true
	snapshot.MidPrice = mid
	snapshot.Spread = spread

	// the statistics run on float64; decimal stays at the money boundary
	midF := mid.InexactFloat64()

	bid, _ := b.BestBid()
	ask, _ := b.BestAsk()
	snapshot.DepthImbalance = depthImbalance(bid.Size, ask.Size)
	e.imbalances.push(snapshot.DepthImbalance)

	if e.hasPrevMid && e.prevMid > 0 {
		snapshot.MidReturn = math.Log(midF / e.prevMid)
		e.returns.push(snapshot.MidReturn)
	}
	e.prevMid = midF
	e.hasPrevMid = true

	e.mids.push(midF)
	snapshot.ZScore, snapshot.HasZScore = e.mids.zScore(midF)
	snapshot.ReturnZScore, snapshot.HasReturnZScore = e.returns.zScore(snapshot.MidReturn)
	snapshot.ImbalanceZScore, snapshot.HasImbalanceZScore = e.imbalances.zScore(snapshot.DepthImbalance)

	return snapshot
}

// depthImbalance is (bid-ask)/(bid+ask) over the top-of-book sizes,
// defined as zero when both sizes are zero.
func depthImbalance(bidSize, askSize int64) float64 {
	total := bidSize + askSize
	if total == 0 {
		return 0
	}
	return float64(bidSize-askSize) / float64(total)
}
