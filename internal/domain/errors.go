package domain

import "github.com/pkg/errors"

// Recoverable error conditions of the replay loop. Each occurrence is
// counted in the run diagnostics instead of aborting the run.
var (
	// ErrInvalidSnapshot marks a snapshot with crossed prices or
	// duplicate levels on one side. The snapshot is rejected wholesale.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrCrossedBook marks an update that would make best_bid >= best_ask.
	// The update is rejected and the book keeps its pre-update state.
	ErrCrossedBook = errors.New("crossed book update rejected")

	// ErrEmptyBook marks an execution attempt against a side with no
	// levels at all. The trade is skipped and retried on a later state.
	ErrEmptyBook = errors.New("empty book side")

	// ErrMalformedRecord marks an input row that cannot be parsed.
	// The row is skipped.
	ErrMalformedRecord = errors.New("malformed record")
)

// ErrInvariantViolation is fatal: accounting arithmetic produced a state
// inconsistent with conservation of cash and position value. The run
// halts immediately rather than producing silently wrong output.
var ErrInvariantViolation = errors.New("accounting invariant violated")
