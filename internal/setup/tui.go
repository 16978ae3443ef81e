// Package setup holds the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/microsim/config"
)

const generatedConfigFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1)
)

// RunTUI walks the user through a backtest configuration and writes it
// to config.gen.yaml.
func RunTUI() error {
	cfg := config.Default()

	var (
		dataFile     string
		symbol       = cfg.Symbol
		windowStr    = strconv.Itoa(cfg.Window)
		zEntryStr    = fmt.Sprintf("%g", cfg.ZEntry)
		zExitStr     = fmt.Sprintf("%g", cfg.ZExit)
		orderSizeStr = strconv.FormatInt(cfg.OrderSize, 10)
		feeStr       = cfg.FeeRate.String()
		cashStr      = cfg.InitialCash.String()
		confirm      bool
	)

	clearAndHeader("STEP 1: EVENT SOURCE")
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where do book events come from?").
				Options(
					huh.NewOption("Synthetic random walk", config.SourceSynthetic),
					huh.NewOption("CSV file", config.SourceCSV),
					huh.NewOption("Binance depth polling", config.SourceBinance),
					huh.NewOption("Bybit ticker polling", config.SourceBybit),
				).
				Value(&cfg.Source),
		),
	).Run()
	if err != nil {
		return err
	}

	switch cfg.Source {
	case config.SourceCSV:
		clearAndHeader("STEP 2: DATA FILE")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("CSV event file").
					Description("Path to a file with snapshot and update rows").
					Value(&dataFile).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("path cannot be empty")
						}
						return nil
					}),
			),
		).Run()
	case config.SourceBinance, config.SourceBybit:
		clearAndHeader("STEP 2: SYMBOL")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Exchange symbol").
					Description("e.g. BTCUSDT").
					Value(&symbol).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("symbol cannot be empty")
						}
						return nil
					}),
			),
		).Run()
	}
	if err != nil {
		return err
	}

	clearAndHeader("STEP 3: STRATEGY")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Rolling window").
				Description("Mid prices per z-score window, e.g. 100").
				Value(&windowStr).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Entry threshold").
				Description("Absolute z-score that opens a position, e.g. 2.0").
				Value(&zEntryStr).
				Validate(validateFloat),
			huh.NewInput().
				Title("Exit threshold").
				Description("Z-score band that closes it, e.g. 0.5").
				Value(&zExitStr).
				Validate(validateFloat),
			huh.NewInput().
				Title("Order size").
				Description("Units per position, e.g. 100").
				Value(&orderSizeStr).
				Validate(validatePositiveInt),
		),
	).Run()
	if err != nil {
		return err
	}

	clearAndHeader("STEP 4: COSTS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Taker fee rate").
				Description("e.g. 0.001 for 10 bps").
				Value(&feeStr).
				Validate(validateDecimal),
			huh.NewInput().
				Title("Initial cash").
				Value(&cashStr).
				Validate(validateDecimal),
		),
	).Run()
	if err != nil {
		return err
	}

	cfg.DataFile = dataFile
	cfg.Symbol = symbol
	cfg.Window, _ = strconv.Atoi(windowStr)
	cfg.ZEntry, _ = strconv.ParseFloat(zEntryStr, 64)
	cfg.ZExit, _ = strconv.ParseFloat(zExitStr, 64)
	cfg.OrderSize, _ = strconv.ParseInt(orderSizeStr, 10, 64)
	cfg.FeeRate, _ = decimal.NewFromString(feeStr)
	cfg.InitialCash, _ = decimal.NewFromString(cashStr)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration rejected: %w", err)
	}

	clearAndHeader("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Source: %s\nWindow: %d\nEntry/Exit z: %g / %g\nOrder size: %d\nFee: %s\nCash: %s\n",
		cfg.Source, cfg.Window, cfg.ZEntry, cfg.ZExit, cfg.OrderSize, cfg.FeeRate, cfg.InitialCash,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and run").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	data, err := cfg.WriteYAML()
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(generatedConfigFile, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).
		Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting backtest...", generatedConfigFile)))
	time.Sleep(1500 * time.Millisecond)
	return nil
}

func clearAndHeader(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("MICROSIM CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Replay an order book, trade the mean reversion.\n"))
	fmt.Println(stepStyle.Render(step))
}

func validatePositiveInt(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if v <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateFloat(s string) error {
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("must be a number")
	}
	return nil
}

func validateDecimal(s string) error {
	if _, err := decimal.NewFromString(s); err != nil {
		return fmt.Errorf("must be a valid number")
	}
	return nil
}
