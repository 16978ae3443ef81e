// Package journal persists the trade log and PnL series of a run in a
// write-ahead log, so a finished or crashed run can be replayed into the
// dashboard or inspected after the fact.
package journal

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/microsim/internal/domain"
)

const (
	defaultJournalDir   = "./wal/backtest"
	journalSegmentLimit = 1000
	journalMaxSegments  = 100
	tradeKeyPrefix      = "trade_"
	pnlKeyPrefix        = "pnl_"
)

// Journal is a WAL-backed store for trade and PnL records.
type Journal struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// TradeEntry is a trade record with its WAL index.
type TradeEntry struct {
	Index  uint64
	Record domain.TradeRecord
}

// PnLEntry is a PnL record with its WAL index.
type PnLEntry struct {
	Index  uint64
	Record domain.PnLRecord
}

// New opens a journal under the provided directory.
func New(dir string) (*Journal, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "run_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: false,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init backtest journal")
	}

	return &Journal{wal: wal}, nil
}

// AppendTrade writes one executed trade to the journal.
func (j *Journal) AppendTrade(record domain.TradeRecord) error {
	return j.append(tradeKeyPrefix, record)
}

// AppendPnL writes one per-step PnL record to the journal.
func (j *Journal) AppendPnL(record domain.PnLRecord) error {
	return j.append(pnlKeyPrefix, record)
}

func (j *Journal) append(prefix string, record any) error {
	if j == nil || j.wal == nil {
		return errors.New("journal is not initialized")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal journal record")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	next := j.wal.CurrentIndex() + 1
	return j.wal.Write(next, prefix, payload)
}

// TradesAfter returns all trades written after the given WAL index.
func (j *Journal) TradesAfter(index uint64) ([]TradeEntry, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("journal is not initialized")
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	var entries []TradeEntry
	for idx := index + 1; idx <= j.wal.CurrentIndex(); idx++ {
		key, payload, err := j.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, tradeKeyPrefix) {
			continue
		}
		var record domain.TradeRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, errors.Wrap(err, "decode trade record")
		}
		entries = append(entries, TradeEntry{Index: idx, Record: record})
	}
	return entries, nil
}

// PnLAfter returns all PnL records written after the given WAL index.
func (j *Journal) PnLAfter(index uint64) ([]PnLEntry, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("journal is not initialized")
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	var entries []PnLEntry
	for idx := index + 1; idx <= j.wal.CurrentIndex(); idx++ {
		key, payload, err := j.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, pnlKeyPrefix) {
			continue
		}
		var record domain.PnLRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, errors.Wrap(err, "decode pnl record")
		}
		entries = append(entries, PnLEntry{Index: idx, Record: record})
	}
	return entries, nil
}

// CurrentIndex returns the latest WAL index written.
func (j *Journal) CurrentIndex() uint64 {
	if j == nil || j.wal == nil {
		return 0
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return nil
	}
	return j.wal.Close()
}
