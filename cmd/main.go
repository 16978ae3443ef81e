// Command microsim replays L2 order book events through a mean-reversion
// strategy and reports the PnL. Events come from a CSV file, a synthetic
// generator or live exchange polling; a web dashboard streams the run.
//
// Usage:
//
//	microsim --config config.yaml
//	microsim --source synthetic --window 100 --zentry 2.0
//	microsim setup   (interactive configuration wizard)
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/adshao/go-binance/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/hirokisan/bybit/v2"
	"github.com/vadiminshakov/microsim/config"
	"github.com/vadiminshakov/microsim/internal/engine"
	"github.com/vadiminshakov/microsim/internal/services/accounting"
	"github.com/vadiminshakov/microsim/internal/services/book"
	"github.com/vadiminshakov/microsim/internal/services/execution"
	"github.com/vadiminshakov/microsim/internal/services/feed"
	"github.com/vadiminshakov/microsim/internal/services/market/indicators"
	signalsvc "github.com/vadiminshakov/microsim/internal/services/signal"
	"github.com/vadiminshakov/microsim/internal/services/strategy"
	"github.com/vadiminshakov/microsim/internal/setup"
	"github.com/vadiminshakov/microsim/internal/storage/journal"
	"github.com/vadiminshakov/microsim/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var summaryStyle = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder()).
	Padding(1, 2).
	BorderForeground(lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"})

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		os.Args = append(os.Args[:1], "--config", "config.gen.yaml")
	}

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := newSource(cfg, logger)
	if err != nil {
		return err
	}

	var store *journal.Journal
	if cfg.JournalDir != "" {
		store, err = journal.New(cfg.JournalDir)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	strat, err := strategy.NewMeanReversion(cfg.ZEntry, cfg.ZExit, cfg.OrderSize)
	if err != nil {
		return err
	}

	var recorder engine.Recorder
	if store != nil {
		recorder = store
	}
	bt := engine.New(
		source,
		book.New(cfg.Depth),
		signalsvc.NewEngine(cfg.Window),
		strat,
		execution.NewSimulator(cfg.FeeRate, logger),
		accounting.NewAccountant(cfg.InitialCash, logger),
		recorder,
		cfg.RiskFreeRate,
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)
	if store != nil && cfg.ListenAddr != "" {
		server := web.NewServer(cfg.ListenAddr, store, store, logger)
		g.Go(func() error { return server.Start(gctx) })
		logger.Info("dashboard listening", zap.String("addr", cfg.ListenAddr))
	}

	result, err := bt.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		stop()
		_ = g.Wait()
		return err
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("run interrupted, reporting partial results")
	}

	printSummary(result, logger)

	// keep serving the dashboard for live sources until interrupted
	stop()
	return g.Wait()
}

func newSource(cfg config.Config, logger *zap.Logger) (feed.Source, error) {
	switch cfg.Source {
	case config.SourceCSV:
		return feed.OpenCSV(cfg.DataFile, logger)
	case config.SourceSynthetic:
		params := feed.DefaultSyntheticParams()
		params.Seed = cfg.Seed
		params.Depth = cfg.Depth
		return feed.NewSyntheticSource(params), nil
	case config.SourceBinance:
		client := binance.NewClient("", "")
		return feed.NewBinanceSource(client, cfg.Symbol, cfg.Depth, cfg.PollInterval, logger), nil
	case config.SourceBybit:
		client := bybit.NewClient()
		return feed.NewBybitSource(client, cfg.Symbol, cfg.PollInterval, logger), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

func printSummary(result *engine.Result, logger *zap.Logger) {
	s := result.Summary

	sharpe := "n/a"
	if s.HasSharpe {
		sharpe = fmt.Sprintf("%.2f", s.Sharpe)
	}
	winRate := "n/a"
	if s.HasWinRate {
		winRate = fmt.Sprintf("%.1f%% (%d/%d)", s.WinRate*100, s.WinningTrades, s.ClosedTrades)
	}

	lines := fmt.Sprintf(
		"BACKTEST SUMMARY\n\n"+
			"Events processed   %d\n"+
			"Fills executed     %d\n"+
			"Total PnL          %s (%.2f%%)\n"+
			"Realized / Unrlzd  %s / %s\n"+
			"Final equity       %s\n"+
			"Sharpe (ann.)      %s\n"+
			"Max drawdown       %s (%.2f%%)\n"+
			"Win rate           %s\n"+
			"Avg trade PnL      %s\n"+
			"Skipped            %d malformed, %d crossed, %d invalid, %d no-liquidity",
		result.Diagnostics.EventsProcessed,
		result.Diagnostics.FillsExecuted,
		s.TotalPnL.StringFixed(2), s.TotalReturnPct,
		s.RealizedPnL.StringFixed(2), s.UnrealizedPnL.StringFixed(2),
		s.FinalEquity.StringFixed(2),
		sharpe,
		s.MaxDrawdown.StringFixed(2), s.MaxDrawdownPct,
		winRate,
		s.AvgTradePnL.StringFixed(2),
		result.Diagnostics.MalformedRecords,
		result.Diagnostics.CrossedBooks,
		result.Diagnostics.InvalidSnapshots,
		result.Diagnostics.EmptyBookSkips,
	)

	if trend, err := indicators.SummarizeMids(result.Mids); err == nil {
		regime := "range-bound"
		if trend.Trending {
			regime = "trending up"
		}
		lines += fmt.Sprintf("\nMarket regime      %s (EMA20 %s, EMA50 %s, RSI %s)",
			regime, trend.FastEMA.StringFixed(2), trend.SlowEMA.StringFixed(2), trend.RSI.StringFixed(1))
	} else {
		logger.Debug("trend summary unavailable", zap.Error(err))
	}

	fmt.Println(summaryStyle.Render(lines))
}
