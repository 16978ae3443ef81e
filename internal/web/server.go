// Package web serves a minimal dashboard over the run journal: an HTML
// page with an equity chart plus SSE streams of PnL and trade records.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vadiminshakov/microsim/internal/storage/journal"
	"go.uber.org/zap"
)

const journalPollInterval = 2 * time.Second

type pnlReader interface {
	PnLAfter(index uint64) ([]journal.PnLEntry, error)
}

type tradeReader interface {
	TradesAfter(index uint64) ([]journal.TradeEntry, error)
}

// Server exposes the dashboard page and the SSE record streams.
type Server struct {
	addr   string
	pnl    pnlReader
	trades tradeReader
	logger *zap.Logger
}

// NewServer creates a dashboard server reading from the given journal.
func NewServer(addr string, pnl pnlReader, trades tradeReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{addr: addr, pnl: pnl, trades: trades, logger: logger}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/pnl/stream", s.handlePnLStream)
	mux.HandleFunc("/trades/stream", s.handleTradeStream)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handlePnLStream(w http.ResponseWriter, r *http.Request) {
	if s.pnl == nil {
		http.Error(w, "journal not available", http.StatusServiceUnavailable)
		return
	}
	s.stream(w, r, "pnl", func(after uint64) ([]streamRecord, error) {
		entries, err := s.pnl.PnLAfter(after)
		if err != nil {
			return nil, err
		}
		records := make([]streamRecord, len(entries))
		for i, entry := range entries {
			records[i] = streamRecord{index: entry.Index, payload: entry.Record}
		}
		return records, nil
	})
}

func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	if s.trades == nil {
		http.Error(w, "journal not available", http.StatusServiceUnavailable)
		return
	}
	s.stream(w, r, "trade", func(after uint64) ([]streamRecord, error) {
		entries, err := s.trades.TradesAfter(after)
		if err != nil {
			return nil, err
		}
		records := make([]streamRecord, len(entries))
		for i, entry := range entries {
			records[i] = streamRecord{index: entry.Index, payload: entry.Record}
		}
		return records, nil
	})
}

type streamRecord struct {
	index   uint64
	payload any
}

// stream polls the journal and pushes new records as SSE events of the
// given name. A comment heartbeat keeps proxies from closing the pipe.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, event string, fetch func(after uint64) ([]streamRecord, error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()
	poll := time.NewTicker(journalPollInterval)
	defer poll.Stop()

	lastIndex := uint64(0)
	send := func() error {
		records, err := fetch(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: %s\n", event)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.index
		}
		return nil
	}

	if err := send(); err != nil {
		s.logger.Warn("stream initial load failed", zap.String("event", event), zap.Error(err))
		http.Error(w, "failed to load records", http.StatusInternalServerError)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-poll.C:
			if err := send(); err != nil {
				s.logger.Warn("stream poll failed", zap.String("event", event), zap.Error(err))
			}
		}
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>microsim</title>
  <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
  <style>
    :root { --ink:#111; --mid:#4d4d4d; --panel:#f6f6f6; }
    * { box-sizing:border-box; }
    body {
      margin:0; padding:2rem; background:#fff; color:var(--ink);
      font-family:'Space Mono','JetBrains Mono',monospace;
    }
    #app {
      max-width:1200px; margin:0 auto; background:var(--panel);
      border:3px solid var(--ink); padding:2rem;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
      display:grid; grid-template-columns:1fr 340px; gap:2rem;
    }
    header { grid-column:1 / -1; display:flex; justify-content:space-between; }
    .eyebrow { font-size:.7rem; text-transform:uppercase; letter-spacing:.2em; margin:0; }
    .status {
      font-size:.65rem; text-transform:uppercase; border:2px solid var(--ink);
      padding:.4rem .9rem; background:#fff;
    }
    canvas { width:100%; border:2px solid var(--ink); background:#fff; }
    .trades { max-height:480px; overflow-y:auto; }
    .trade {
      border:2px solid var(--ink); background:#fff; padding:.7rem;
      margin-bottom:.6rem; font-size:.7rem; line-height:1.4;
    }
    .trade .side { font-weight:700; text-transform:uppercase; }
    .trade .side.buy { color:#1b9aaa; }
    .trade .side.sell { color:#d7263d; }
    @media (max-width:800px) { #app { grid-template-columns:1fr; } }
  </style>
</head>
<body>
  <div id="app">
    <header>
      <p class="eyebrow">order book backtest</p>
      <div id="status" class="status">Connecting…</div>
    </header>
    <section><canvas id="equityChart" height="320"></canvas></section>
    <aside>
      <p class="eyebrow">trades</p>
      <div id="trades" class="trades"></div>
    </aside>
  </div>
<script>
const statusEl = document.getElementById('status');
const tradesEl = document.getElementById('trades');
const MAX_TRADES = 100;

const chart = new Chart(document.getElementById('equityChart').getContext('2d'), {
  type: 'line',
  data: { labels: [], datasets: [{
    label: 'equity',
    data: [],
    borderColor: '#111111',
    backgroundColor: 'rgba(17,17,17,0.12)',
    borderWidth: 2,
    pointRadius: 0,
    tension: 0.1
  }]},
  options: {
    animation: false,
    responsive: true,
    plugins: { decimation: { enabled:true, algorithm:'lttb', samples:500 } },
    scales: {
      x: { ticks: { maxRotation:0, autoSkip:true } },
      y: { grid: { color:'rgba(0,0,0,0.08)' } }
    }
  }
});

const timeLabel = (ts) => {
  const d = new Date(ts);
  return Number.isNaN(d.getTime()) ? '' : d.toLocaleTimeString([], { hour12:false });
};

function connectPnL(){
  const source = new EventSource('/pnl/stream');
  source.addEventListener('pnl', (event) => {
    try {
      const record = JSON.parse(event.data);
      chart.data.labels.push(timeLabel(record.timestamp));
      chart.data.datasets[0].data.push(parseFloat(record.equity));
      if (chart.data.labels.length > 50000) {
        chart.data.labels.shift();
        chart.data.datasets[0].data.shift();
      }
      chart.update('none');
      statusEl.textContent = 'Streaming';
    } catch (err) { console.error('pnl parse', err); }
  });
  source.addEventListener('error', () => {
    statusEl.textContent = 'Reconnecting…';
    source.close();
    setTimeout(connectPnL, 2000);
  });
}

function connectTrades(){
  const source = new EventSource('/trades/stream');
  source.addEventListener('trade', (event) => {
    try {
      const trade = JSON.parse(event.data);
      const card = document.createElement('div');
      card.className = 'trade';
      card.innerHTML = '<span class="side ' + trade.side + '">' + trade.side + '</span> ' +
        trade.quantity + ' @ ' + parseFloat(trade.avg_fill_price).toFixed(2) +
        '<br>pos ' + trade.position_after + ' · ' + timeLabel(trade.timestamp);
      tradesEl.insertBefore(card, tradesEl.firstChild);
      while (tradesEl.children.length > MAX_TRADES) {
        tradesEl.removeChild(tradesEl.lastChild);
      }
    } catch (err) { console.error('trade parse', err); }
  });
  source.addEventListener('error', () => {
    source.close();
    setTimeout(connectTrades, 2000);
  });
}

connectPnL();
connectTrades();
</script>
</body>
</html>`
