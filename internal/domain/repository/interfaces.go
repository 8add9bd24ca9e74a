// Package repository defines the storage interfaces the domain services depend on.
// Following the dependency inversion principle, domain logic depends on these
// interfaces and infrastructure packages provide the concrete implementations.
package repository

import (
	"context"
	"time"

	"pricewatch/internal/domain/model"
)

// AlertStore is the adapter over the external per-user alert collection.
// Implementations are network-backed and may fail transiently; callers must
// treat every error as retryable on a later sweep. No transactional semantics
// across multiple alerts are assumed.
type AlertStore interface {
	// Create stores a new alert and returns its assigned id.
	Create(ctx context.Context, alert *model.PriceAlert) (string, error)

	// List returns the alerts for one owner, or all alerts when ownerID is empty.
	List(ctx context.Context, ownerID string) ([]*model.PriceAlert, error)

	// MarkTriggered flips the terminal triggered flag on an alert.
	// It returns true only for the caller that performed the flip, so
	// concurrent sweeps racing on the same alert collapse to one winner.
	MarkTriggered(ctx context.Context, id string, at time.Time) (bool, error)

	// Delete removes an alert.
	Delete(ctx context.Context, id string) error
}

// TriggerHistory persists fired alerts for audit and read-back.
// This is durable analytical storage; the engine treats it as best-effort
// and never blocks a sweep on it.
type TriggerHistory interface {
	// SaveTrigger appends one fired-alert record.
	SaveTrigger(ctx context.Context, event *model.TriggerEvent) error

	// TriggersSince returns fired-alert records for an owner after the
	// given timestamp.
	TriggersSince(ctx context.Context, ownerID string, since time.Time) ([]*model.TriggerEvent, error)
}
