package feed

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/microsim/internal/domain"
)

func TestSyntheticDeterminism(t *testing.T) {
	params := DefaultSyntheticParams()
	params.Snapshots = 50

	first := collectSynthetic(t, NewSyntheticSource(params))
	second := collectSynthetic(t, NewSyntheticSource(params))

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Timestamp, second[i].Timestamp)
		require.Equal(t, len(first[i].Bids), len(second[i].Bids))
		for j := range first[i].Bids {
			assert.True(t, first[i].Bids[j].Price.Equal(second[i].Bids[j].Price))
			assert.Equal(t, first[i].Bids[j].Size, second[i].Bids[j].Size)
		}
	}
}

func TestSyntheticBooksAreWellFormed(t *testing.T) {
	params := DefaultSyntheticParams()
	params.Snapshots = 200

	events := collectSynthetic(t, NewSyntheticSource(params))
	require.Len(t, events, 200)

	for _, event := range events {
		require.Equal(t, domain.EventSnapshot, event.Type)
		require.Len(t, event.Bids, params.Depth)
		require.Len(t, event.Asks, params.Depth)

		// best bid below best ask, sides strictly ordered outward
		assert.True(t, event.Bids[0].Price.LessThan(event.Asks[0].Price))
		for i := 1; i < params.Depth; i++ {
			assert.True(t, event.Bids[i].Price.LessThan(event.Bids[i-1].Price))
			assert.True(t, event.Asks[i].Price.GreaterThan(event.Asks[i-1].Price))
		}
		for _, lvl := range append(append([]domain.PriceLevel{}, event.Bids...), event.Asks...) {
			assert.GreaterOrEqual(t, lvl.Size, params.SizeMin)
			assert.LessOrEqual(t, lvl.Size, params.SizeMax)
		}
	}
}

func TestSyntheticTimestampsAdvanceByInterval(t *testing.T) {
	params := DefaultSyntheticParams()
	params.Snapshots = 3

	events := collectSynthetic(t, NewSyntheticSource(params))
	require.Len(t, events, 3)
	assert.Equal(t, params.Start, events[0].Timestamp)
	assert.Equal(t, params.Interval, events[1].Timestamp.Sub(events[0].Timestamp))
	assert.Equal(t, params.Interval, events[2].Timestamp.Sub(events[1].Timestamp))
}

func collectSynthetic(t *testing.T, src *SyntheticSource) []domain.BookEvent {
	t.Helper()
	var events []domain.BookEvent
	for {
		event, err := src.Next(context.Background())
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, event)
	}
}
