package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseYAMLOverridesDefaults(t *testing.T) {
	cfg, err := ParseYAML([]byte(`
source: csv
data_file: events.csv
depth: 10
window: 50
z_entry: 1.5
z_exit: 0.25
order_size: 20
fee_rate: "0.002"
initial_cash: "50000"
risk_free_rate: 0.03
listen_addr: ":9090"
`))
	require.NoError(t, err)

	assert.Equal(t, SourceCSV, cfg.Source)
	assert.Equal(t, "events.csv", cfg.DataFile)
	assert.Equal(t, 10, cfg.Depth)
	assert.Equal(t, 50, cfg.Window)
	assert.Equal(t, 1.5, cfg.ZEntry)
	assert.Equal(t, 0.25, cfg.ZExit)
	assert.Equal(t, int64(20), cfg.OrderSize)
	assert.True(t, cfg.FeeRate.Equal(decimal.NewFromFloat(0.002)))
	assert.True(t, cfg.InitialCash.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, 0.03, cfg.RiskFreeRate)
	assert.Equal(t, ":9090", cfg.ListenAddr)
}

func TestParseYAMLKeepsDefaultsForOmittedFields(t *testing.T) {
	cfg, err := ParseYAML([]byte("source: synthetic\n"))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Depth)
	assert.Equal(t, 100, cfg.Window)
	assert.Equal(t, 2.0, cfg.ZEntry)
	assert.Equal(t, 0.5, cfg.ZExit)
	assert.True(t, cfg.FeeRate.Equal(decimal.NewFromFloat(0.001)))
}

func TestZeroZExitIsHonored(t *testing.T) {
	cfg, err := ParseYAML([]byte("source: synthetic\nz_exit: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.ZExit)
}

func TestZeroZEntryFailsValidationInsteadOfDefaulting(t *testing.T) {
	_, err := ParseYAML([]byte("source: synthetic\nz_entry: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "z_entry")
}

func TestValidateRejectsBadParameters(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown source":        func(c *Config) { c.Source = "tape" },
		"csv without data file": func(c *Config) { c.Source = SourceCSV; c.DataFile = "" },
		"zero depth":            func(c *Config) { c.Depth = 0 },
		"window below 2":        func(c *Config) { c.Window = 1 },
		"negative z_exit":       func(c *Config) { c.ZExit = -0.1 },
		"entry below exit":      func(c *Config) { c.ZEntry = 0.4; c.ZExit = 0.5 },
		"zero order size":       func(c *Config) { c.OrderSize = 0 },
		"negative fee":          func(c *Config) { c.FeeRate = decimal.NewFromFloat(-0.001) },
		"zero cash":             func(c *Config) { c.InitialCash = decimal.Zero },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Source = SourceCSV
	cfg.DataFile = "events.csv"
	cfg.ZEntry = 3.0

	raw, err := cfg.WriteYAML()
	require.NoError(t, err)

	parsed, err := ParseYAML(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg.Source, parsed.Source)
	assert.Equal(t, cfg.ZEntry, parsed.ZEntry)
	assert.True(t, parsed.FeeRate.Equal(cfg.FeeRate))
}
