package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Feed source kinds.
const (
	SourceCSV       = "csv"
	SourceSynthetic = "synthetic"
	SourceBinance   = "binance"
	SourceBybit     = "bybit"
)

// Config holds every knob of a backtest run.
type Config struct {
	Source       string
	DataFile     string
	Symbol       string
	Depth        int
	Window       int
	ZEntry       float64
	ZExit        float64
	OrderSize    int64
	FeeRate      decimal.Decimal
	InitialCash  decimal.Decimal
	RiskFreeRate float64
	Seed         int64
	PollInterval time.Duration
	JournalDir   string
	ListenAddr   string
}

type configTmp struct {
	Source       string        `yaml:"source"`
	DataFile     string        `yaml:"data_file,omitempty"`
	Symbol       string        `yaml:"symbol,omitempty"`
	Depth        int           `yaml:"depth,omitempty"`
	Window       int           `yaml:"window,omitempty"`
	ZEntry       float64       `yaml:"z_entry,omitempty"`
	ZExit        float64       `yaml:"z_exit"`
	OrderSize    int64         `yaml:"order_size,omitempty"`
	FeeRate      string        `yaml:"fee_rate,omitempty"`
	InitialCash  string        `yaml:"initial_cash,omitempty"`
	RiskFreeRate float64       `yaml:"risk_free_rate"`
	Seed         int64         `yaml:"seed,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	JournalDir   string        `yaml:"journal_dir,omitempty"`
	ListenAddr   string        `yaml:"listen_addr,omitempty"`
}

// Default returns the config a run starts from before flags or yaml
// override it.
func Default() Config {
	return Config{
		Source:       SourceSynthetic,
		Symbol:       "BTCUSDT",
		Depth:        5,
		Window:       100,
		ZEntry:       2.0,
		ZExit:        0.5,
		OrderSize:    100,
		FeeRate:      decimal.NewFromFloat(0.001),
		InitialCash:  decimal.NewFromInt(100000),
		RiskFreeRate: 0,
		Seed:         1,
		PollInterval: time.Second,
		JournalDir:   "./wal/backtest",
		ListenAddr:   ":8080",
	}
}

// Get reads the configuration from a yaml file when -config is given,
// otherwise from individual flags. The result is always validated.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	source := flag.String("source", SourceSynthetic, "event source: csv, synthetic, binance or bybit")
	dataFile := flag.String("data", "", "path to a csv event file (source=csv)")
	symbol := flag.String("symbol", "BTCUSDT", "exchange symbol for live sources")
	depth := flag.Int("depth", 5, "book depth per side")
	window := flag.Int("window", 100, "rolling window for the z-score")
	zEntry := flag.Float64("zentry", 2.0, "z-score entry threshold")
	zExit := flag.Float64("zexit", 0.5, "z-score exit threshold")
	orderSize := flag.Int64("ordersize", 100, "units per position")
	feeRate := flag.String("fee", "0.001", "taker fee rate, example 0.001 for 10bps")
	initialCash := flag.String("cash", "100000", "starting cash")
	riskFree := flag.Float64("riskfree", 0, "annual risk-free rate for the sharpe ratio")
	seed := flag.Int64("seed", 1, "seed for the synthetic source")
	pollInterval := flag.Duration("pollinterval", time.Second, "poll interval for live sources")
	journalDir := flag.String("journal", "./wal/backtest", "journal directory, empty disables persistence")
	listenAddr := flag.String("addr", ":8080", "dashboard listen address")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	cfg := Config{
		Source:       *source,
		DataFile:     *dataFile,
		Symbol:       *symbol,
		Depth:        *depth,
		Window:       *window,
		ZEntry:       *zEntry,
		ZExit:        *zExit,
		OrderSize:    *orderSize,
		RiskFreeRate: *riskFree,
		Seed:         *seed,
		PollInterval: *pollInterval,
		JournalDir:   *journalDir,
		ListenAddr:   *listenAddr,
	}

	var err error
	cfg.FeeRate, err = decimal.NewFromString(*feeRate)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --fee provided, --fee=%s", *feeRate)
	}
	cfg.InitialCash, err = decimal.NewFromString(*initialCash)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --cash provided, --cash=%s", *initialCash)
	}

	return cfg, cfg.Validate()
}

func getYaml(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseYAML(raw)
}

// ParseYAML decodes a yaml document on top of the defaults.
func ParseYAML(raw []byte) (Config, error) {
	tmp := configTmp{ZEntry: -1, ZExit: -1, RiskFreeRate: 0}
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if tmp.Source != "" {
		cfg.Source = tmp.Source
	}
	if tmp.DataFile != "" {
		cfg.DataFile = tmp.DataFile
	}
	if tmp.Symbol != "" {
		cfg.Symbol = tmp.Symbol
	}
	if tmp.Depth != 0 {
		cfg.Depth = tmp.Depth
	}
	if tmp.Window != 0 {
		cfg.Window = tmp.Window
	}
	if tmp.ZEntry >= 0 {
		cfg.ZEntry = tmp.ZEntry
	}
	if tmp.ZExit >= 0 {
		cfg.ZExit = tmp.ZExit
	}
	if tmp.OrderSize != 0 {
		cfg.OrderSize = tmp.OrderSize
	}
	if tmp.FeeRate != "" {
		fee, err := decimal.NewFromString(tmp.FeeRate)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'fee_rate' param in yaml config: %w", err)
		}
		cfg.FeeRate = fee
	}
	if tmp.InitialCash != "" {
		cash, err := decimal.NewFromString(tmp.InitialCash)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'initial_cash' param in yaml config: %w", err)
		}
		cfg.InitialCash = cash
	}
	cfg.RiskFreeRate = tmp.RiskFreeRate
	if tmp.Seed != 0 {
		cfg.Seed = tmp.Seed
	}
	if tmp.PollInterval != 0 {
		cfg.PollInterval = tmp.PollInterval
	}
	if tmp.JournalDir != "" {
		cfg.JournalDir = tmp.JournalDir
	}
	if tmp.ListenAddr != "" {
		cfg.ListenAddr = tmp.ListenAddr
	}

	return cfg, cfg.Validate()
}

// Validate rejects parameter combinations the run cannot start with.
func (c Config) Validate() error {
	switch c.Source {
	case SourceCSV:
		if c.DataFile == "" {
			return fmt.Errorf("source csv requires a data file")
		}
	case SourceSynthetic:
	case SourceBinance, SourceBybit:
		if c.Symbol == "" {
			return fmt.Errorf("source %s requires a symbol", c.Source)
		}
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}

	if c.Depth <= 0 {
		return fmt.Errorf("depth must be positive, got %d", c.Depth)
	}
	if c.Window < 2 {
		return fmt.Errorf("window must be at least 2, got %d", c.Window)
	}
	if c.ZExit < 0 {
		return fmt.Errorf("z_exit must be non-negative, got %v", c.ZExit)
	}
	if c.ZEntry <= c.ZExit {
		return fmt.Errorf("z_entry (%v) must exceed z_exit (%v)", c.ZEntry, c.ZExit)
	}
	if c.OrderSize <= 0 {
		return fmt.Errorf("order_size must be positive, got %d", c.OrderSize)
	}
	if c.FeeRate.IsNegative() {
		return fmt.Errorf("fee_rate must be non-negative, got %s", c.FeeRate)
	}
	if !c.InitialCash.IsPositive() {
		return fmt.Errorf("initial_cash must be positive, got %s", c.InitialCash)
	}
	return nil
}

// WriteYAML renders the config as a yaml document.
func (c Config) WriteYAML() ([]byte, error) {
	tmp := configTmp{
		Source:       c.Source,
		DataFile:     c.DataFile,
		Symbol:       c.Symbol,
		Depth:        c.Depth,
		Window:       c.Window,
		ZEntry:       c.ZEntry,
		ZExit:        c.ZExit,
		OrderSize:    c.OrderSize,
		FeeRate:      c.FeeRate.String(),
		InitialCash:  c.InitialCash.String(),
		RiskFreeRate: c.RiskFreeRate,
		Seed:         c.Seed,
		PollInterval: c.PollInterval,
		JournalDir:   c.JournalDir,
		ListenAddr:   c.ListenAddr,
	}
	return yaml.Marshal(tmp)
}
