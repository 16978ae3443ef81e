package feed

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/microsim/internal/domain"
	"go.uber.org/zap"
)

const csvHeader = "timestamp,type,side,action,price,size," +
	"bid_price_1,bid_size_1,bid_price_2,bid_size_2," +
	"ask_price_1,ask_size_1,ask_price_2,ask_size_2\n"

func newSource(t *testing.T, rows string) *CSVSource {
	t.Helper()
	src, err := NewCSVSource(strings.NewReader(csvHeader+rows), zap.NewNop())
	require.NoError(t, err)
	return src
}

func drain(t *testing.T, src Source) (events []domain.BookEvent, malformed int) {
	t.Helper()
	for {
		event, err := src.Next(context.Background())
		if err == io.EOF {
			return events, malformed
		}
		if err != nil {
			require.ErrorIs(t, err, domain.ErrMalformedRecord)
			malformed++
			continue
		}
		events = append(events, event)
	}
}

func TestParseSnapshotRow(t *testing.T) {
	src := newSource(t, "2024-01-01T09:30:00Z,snapshot,,,,,100,50,99,30,101,40,102,60\n")

	event, err := src.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.EventSnapshot, event.Type)
	require.Len(t, event.Bids, 2)
	require.Len(t, event.Asks, 2)
	assert.True(t, event.Bids[0].Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int64(50), event.Bids[0].Size)
	assert.True(t, event.Asks[1].Price.Equal(decimal.NewFromInt(102)))
}

func TestParseUpdateRow(t *testing.T) {
	src := newSource(t, "2024-01-01T09:30:01Z,update,bid,update,99.5,25,,,,,,,,\n")

	event, err := src.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.EventUpdate, event.Type)
	assert.Equal(t, domain.SideBid, event.Side)
	assert.Equal(t, domain.ActionUpdate, event.Action)
	assert.True(t, event.Price.Equal(decimal.NewFromFloat(99.5)))
	assert.Equal(t, int64(25), event.Size)
}

func TestRemoveActionAndFractionalSizes(t *testing.T) {
	src := newSource(t,
		"2024-01-01T09:30:01Z,update,ask,remove,101,0,,,,,,,,\n"+
			"2024-01-01T09:30:02Z,update,bid,add,99,10.0,,,,,,,,\n")

	event, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ActionRemove, event.Action)

	event, err = src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ActionUpdate, event.Action, "add is a synonym for update")
	assert.Equal(t, int64(10), event.Size, "10.0 parses as an integral size")
}

func TestMalformedRowsAreCountedNotFatal(t *testing.T) {
	src := newSource(t,
		"2024-01-01T09:30:00Z,snapshot,,,,,100,50,,,101,40,,\n"+
			"not-a-timestamp,update,bid,update,99,10,,,,,,,,\n"+
			"2024-01-01T09:30:01Z,update,sideways,update,99,10,,,,,,,,\n"+
			"2024-01-01T09:30:02Z,update,bid,update,99,-5,,,,,,,,\n"+
			"2024-01-01T09:30:03Z,snapshot,,,,,100,,,,101,40,,\n"+
			"2024-01-01T09:30:04Z,update,bid,update,99,10,,,,,,,,\n")

	events, malformed := drain(t, src)

	assert.Equal(t, 4, malformed,
		"bad timestamp, bad side, negative size and half-filled level are each one malformed row")
	assert.Len(t, events, 2)
	assert.Equal(t, 6, src.Len())
}

func TestRowsReplayedInTimestampOrder(t *testing.T) {
	src := newSource(t,
		"2024-01-01T09:30:02Z,update,bid,update,99,10,,,,,,,,\n"+
			"2024-01-01T09:30:00Z,snapshot,,,,,100,50,,,101,40,,\n"+
			"2024-01-01T09:30:01Z,update,ask,update,102,20,,,,,,,,\n")

	events, malformed := drain(t, src)
	require.Equal(t, 0, malformed)
	require.Len(t, events, 3)

	assert.Equal(t, domain.EventSnapshot, events[0].Type)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp),
			"events must come out in non-decreasing timestamp order")
	}
}

func TestSpaceSeparatedTimestamps(t *testing.T) {
	src := newSource(t, "2024-01-01 09:30:00.250,update,bid,update,99,10,,,,,,,,\n")

	event, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 30, 0, 250000000, time.UTC), event.Timestamp)
}

func TestHeaderWithoutTimestampIsFatal(t *testing.T) {
	_, err := NewCSVSource(strings.NewReader("type,side\nupdate,bid\n"), zap.NewNop())
	require.Error(t, err)
}
