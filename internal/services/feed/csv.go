package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/microsim/internal/domain"
	"go.uber.org/zap"
)

// accepted timestamp layouts, most specific first
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// CSVSource replays L2 events from a CSV file. Two row kinds share the
// timestamp column: snapshot rows with bid_price_1..N / bid_size_1..N /
// ask_price_1..N / ask_size_1..N columns, and update rows with side,
// price, size and action columns.
//
// The whole file is loaded up front and stably sorted by timestamp, so
// the replay order is deterministic regardless of file order. Rows that
// fail to parse stay in the stream as malformed items for the caller to
// count and skip.
type CSVSource struct {
	items []sourceItem
	pos   int
}

type sourceItem struct {
	ts    time.Time
	event domain.BookEvent
	err   error
}

// OpenCSV loads a CSV event file from disk.
func OpenCSV(path string, logger *zap.Logger) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open event file %s", path)
	}
	defer f.Close()

	return NewCSVSource(f, logger)
}

// NewCSVSource parses all rows from r. The first row must be a header
// containing at least the timestamp and type columns.
func NewCSVSource(r io.Reader, logger *zap.Logger) (*CSVSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	if _, ok := columns["timestamp"]; !ok {
		return nil, errors.New("csv header has no timestamp column")
	}

	var items []sourceItem
	var lastTS time.Time
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// a structurally broken row is malformed, not fatal
			items = append(items, sourceItem{ts: lastTS, err: errors.Wrap(domain.ErrMalformedRecord, err.Error())})
			continue
		}

		event, err := parseRow(columns, row)
		if err != nil {
			items = append(items, sourceItem{ts: lastTS, err: err})
			continue
		}
		lastTS = event.Timestamp
		items = append(items, sourceItem{ts: event.Timestamp, event: event})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].ts.Before(items[j].ts) })

	logger.Info("loaded order book events", zap.Int("rows", len(items)))
	return &CSVSource{items: items}, nil
}

// Next returns the next event in timestamp order, io.EOF at the end.
func (s *CSVSource) Next(_ context.Context) (domain.BookEvent, error) {
	if s.pos >= len(s.items) {
		return domain.BookEvent{}, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	if item.err != nil {
		return domain.BookEvent{}, item.err
	}
	return item.event, nil
}

// Len returns the total number of rows, malformed ones included.
func (s *CSVSource) Len() int {
	return len(s.items)
}

func parseRow(columns map[string]int, row []string) (domain.BookEvent, error) {
	ts, err := parseTimestamp(cell(columns, row, "timestamp"))
	if err != nil {
		return domain.BookEvent{}, errors.Wrapf(domain.ErrMalformedRecord, "timestamp: %v", err)
	}

	switch strings.ToLower(cell(columns, row, "type")) {
	case "snapshot":
		return parseSnapshotRow(columns, row, ts)
	case "update":
		return parseUpdateRow(columns, row, ts)
	default:
		return domain.BookEvent{}, errors.Wrapf(domain.ErrMalformedRecord, "unknown row type %q", cell(columns, row, "type"))
	}
}

func parseSnapshotRow(columns map[string]int, row []string, ts time.Time) (domain.BookEvent, error) {
	bids, err := parseSnapshotSide(columns, row, "bid")
	if err != nil {
		return domain.BookEvent{}, err
	}
	asks, err := parseSnapshotSide(columns, row, "ask")
	if err != nil {
		return domain.BookEvent{}, err
	}
	return domain.BookEvent{
		Timestamp: ts,
		Type:      domain.EventSnapshot,
		Bids:      bids,
		Asks:      asks,
	}, nil
}

// parseSnapshotSide reads price/size column pairs for increasing level
// numbers until the columns run out. A fully empty level is simply
// absent; a half-filled or unparsable one poisons the row.
func parseSnapshotSide(columns map[string]int, row []string, side string) ([]domain.PriceLevel, error) {
	var levels []domain.PriceLevel
	for level := 1; ; level++ {
		priceCol := fmt.Sprintf("%s_price_%d", side, level)
		sizeCol := fmt.Sprintf("%s_size_%d", side, level)
		if _, ok := columns[priceCol]; !ok {
			break
		}

		priceRaw := cell(columns, row, priceCol)
		sizeRaw := cell(columns, row, sizeCol)
		if priceRaw == "" && sizeRaw == "" {
			continue
		}
		if priceRaw == "" || sizeRaw == "" {
			return nil, errors.Wrapf(domain.ErrMalformedRecord, "half-filled level %s_%d", side, level)
		}

		price, err := decimal.NewFromString(priceRaw)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrMalformedRecord, "%s: %v", priceCol, err)
		}
		size, err := parseSize(sizeRaw)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrMalformedRecord, "%s: %v", sizeCol, err)
		}
		if price.IsPositive() && size > 0 {
			levels = append(levels, domain.PriceLevel{Price: price, Size: size})
		}
	}
	return levels, nil
}

func parseUpdateRow(columns map[string]int, row []string, ts time.Time) (domain.BookEvent, error) {
	side, err := domain.ParseSide(strings.ToLower(cell(columns, row, "side")))
	if err != nil {
		return domain.BookEvent{}, errors.Wrap(domain.ErrMalformedRecord, err.Error())
	}
	action, err := domain.ParseUpdateAction(strings.ToLower(cell(columns, row, "action")))
	if err != nil {
		return domain.BookEvent{}, errors.Wrap(domain.ErrMalformedRecord, err.Error())
	}
	price, err := decimal.NewFromString(cell(columns, row, "price"))
	if err != nil {
		return domain.BookEvent{}, errors.Wrapf(domain.ErrMalformedRecord, "price: %v", err)
	}
	size, err := parseSize(cell(columns, row, "size"))
	if err != nil {
		return domain.BookEvent{}, errors.Wrapf(domain.ErrMalformedRecord, "size: %v", err)
	}

	return domain.BookEvent{
		Timestamp: ts,
		Type:      domain.EventUpdate,
		Side:      side,
		Price:     price,
		Size:      size,
		Action:    action,
	}, nil
}

func parseSize(raw string) (int64, error) {
	// sizes are integral but generators commonly emit them as "10.0"
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("negative size %d", v)
		}
		return v, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) || d.IsNegative() {
		return 0, fmt.Errorf("size %s is not a non-negative integer", raw)
	}
	return d.IntPart(), nil
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", raw)
}

func cell(columns map[string]int, row []string, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
