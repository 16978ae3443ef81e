// Package strategy maps signal snapshots to a target position.
package strategy

import (
	"fmt"

	"github.com/vadiminshakov/microsim/internal/domain"
)

// State is the current stance of the mean-reversion strategy.
type State int

const (
	// StateFlat holds no position.
	StateFlat State = iota
	// StateLong targets +order_size.
	StateLong
	// StateShort targets -order_size.
	StateShort
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateFlat:
		return "flat"
	case StateLong:
		return "long"
	case StateShort:
		return "short"
	default:
		return "unknown"
	}
}

// MeanReversion enters against extreme z-scores and exits once the score
// reverts toward zero. Transitions never go long<->short directly; every
// reversal passes through flat. The strategy is a pure state machine over
// the z-score; it holds no market state beyond its stance.
type MeanReversion struct {
	entryThreshold float64
	exitThreshold  float64
	orderSize      int64
	state          State
}

// NewMeanReversion validates the thresholds and creates the strategy.
// entry must be strictly greater than exit and exit non-negative;
// violating that ordering is a configuration error, not a runtime fault.
func NewMeanReversion(entryThreshold, exitThreshold float64, orderSize int64) (*MeanReversion, error) {
	if exitThreshold < 0 {
		return nil, fmt.Errorf("z_exit must be non-negative, got %v", exitThreshold)
	}
	if entryThreshold <= exitThreshold {
		return nil, fmt.Errorf("z_entry (%v) must be greater than z_exit (%v)", entryThreshold, exitThreshold)
	}
	if orderSize <= 0 {
		return nil, fmt.Errorf("order size must be positive, got %d", orderSize)
	}
	return &MeanReversion{
		entryThreshold: entryThreshold,
		exitThreshold:  exitThreshold,
		orderSize:      orderSize,
	}, nil
}

// Decide advances the state machine for one signal snapshot and returns
// the signed target quantity. An absent z-score keeps the current state:
// "no signal" is not the same as a zero score.
func (m *MeanReversion) Decide(snapshot domain.SignalSnapshot) int64 {
	if !snapshot.HasZScore {
		return m.target()
	}

	z := snapshot.ZScore
	switch m.state {
	case StateFlat:
		if z <= -m.entryThreshold {
			m.state = StateLong
		} else if z >= m.entryThreshold {
			m.state = StateShort
		}
	case StateLong:
		if z >= -m.exitThreshold {
			m.state = StateFlat
		}
	case StateShort:
		if z <= m.exitThreshold {
			m.state = StateFlat
		}
	}

	return m.target()
}

// State returns the current stance.
func (m *MeanReversion) State() State {
	return m.state
}

// OrderSize returns the configured position size.
func (m *MeanReversion) OrderSize() int64 {
	return m.orderSize
}

func (m *MeanReversion) target() int64 {
	switch m.state {
	case StateLong:
		return m.orderSize
	case StateShort:
		return -m.orderSize
	default:
		return 0
	}
}
