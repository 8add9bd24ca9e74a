package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Condition is the direction a price alert watches.
type Condition string

const (
	// ConditionAbove fires when the current price is at or above the target.
	ConditionAbove Condition = "above"
	// ConditionBelow fires when the current price is at or below the target.
	ConditionBelow Condition = "below"
)

// ParseCondition validates and normalizes a condition string.
func ParseCondition(s string) (Condition, error) {
	switch Condition(s) {
	case ConditionAbove:
		return ConditionAbove, nil
	case ConditionBelow:
		return ConditionBelow, nil
	}
	return "", fmt.Errorf("unknown alert condition %q", s)
}

// PriceAlert is a user-created threshold watch on one instrument.
// Once Triggered flips to true the alert is terminal: it is never
// re-evaluated and never fires again.
type PriceAlert struct {
	ID          string
	OwnerID     string
	Symbol      string
	TargetPrice decimal.Decimal
	Condition   Condition
	Triggered   bool
	CreatedAt   time.Time
	TriggeredAt *time.Time
}

// ShouldFire reports whether the alert condition is met at the given price.
// Boundary prices count: an ABOVE alert fires at exactly the target.
func (a *PriceAlert) ShouldFire(price decimal.Decimal) bool {
	switch a.Condition {
	case ConditionAbove:
		return price.GreaterThanOrEqual(a.TargetPrice)
	case ConditionBelow:
		return price.LessThanOrEqual(a.TargetPrice)
	}
	return false
}

// Quote is a normalized current-price observation from the upstream API.
type Quote struct {
	Symbol     string
	Price      decimal.Decimal
	Source     string
	ReceivedAt time.Time
}

// TriggerEvent is handed to notifiers when an alert fires.
type TriggerEvent struct {
	AlertID      string
	OwnerID      string
	Symbol       string
	Condition    Condition
	TargetPrice  decimal.Decimal
	CurrentPrice decimal.Decimal
	TriggeredAt  time.Time
}

// SymbolFailure records one symbol whose price fetch failed during a sweep.
type SymbolFailure struct {
	Symbol string
	Reason string
}

// SweepReport summarizes one evaluation pass over the pending alerts.
// It is returned by on-demand checks so callers can see which symbols
// could not be priced this round.
type SweepReport struct {
	Evaluated int
	Triggered int
	Failures  []SymbolFailure
	StartedAt time.Time
	Duration  time.Duration
}
