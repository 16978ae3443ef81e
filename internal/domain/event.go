package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventType distinguishes the two kinds of book events.
type EventType int

const (
	// EventSnapshot replaces both sides of the book wholesale.
	EventSnapshot EventType = iota
	// EventUpdate mutates a single price level.
	EventUpdate
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventSnapshot:
		return "snapshot"
	case EventUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// UpdateAction is the operation an update event applies to a level.
type UpdateAction int

const (
	// ActionUpdate inserts or replaces the level at the given price.
	ActionUpdate UpdateAction = iota
	// ActionRemove deletes the level at the given price if present.
	ActionRemove
)

// ParseUpdateAction converts a string into an UpdateAction.
// "add" is accepted as a synonym for "update".
func ParseUpdateAction(s string) (UpdateAction, error) {
	switch s {
	case "update", "add":
		return ActionUpdate, nil
	case "remove":
		return ActionRemove, nil
	default:
		return 0, fmt.Errorf("invalid action: %q", s)
	}
}

// BookEvent is one replayed change of book state. For snapshots the
// Bids/Asks slices are set; for updates Side, Price, Size and Action are.
type BookEvent struct {
	Timestamp time.Time
	Type      EventType

	// snapshot payload
	Bids []PriceLevel
	Asks []PriceLevel

	// update payload
	Side   Side
	Price  decimal.Decimal
	Size   int64
	Action UpdateAction
}
