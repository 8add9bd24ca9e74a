package useCases

import (
	"context"

	"github.com/shopspring/decimal"

	"pricewatch/internal/domain/model"
)

// PriceSource supplies the current price for an instrument. The concrete
// implementation sits behind a TTL cache and a rate limiter, so callers may
// invoke it freely without worrying about upstream quotas.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// AlertService evaluates pending alerts against current prices.
type AlertService interface {
	// Sweep runs one full evaluation pass over all pending alerts.
	// It only returns an error when the alert list itself cannot be
	// loaded; per-symbol and per-alert failures are reported inside
	// the SweepReport instead.
	Sweep(ctx context.Context) (*model.SweepReport, error)
}

// Notifier receives fully-formed trigger events. Delivery is fire-and-forget:
// the evaluation engine never waits on, or reacts to, a notifier's outcome.
type Notifier interface {
	Notify(ctx context.Context, event *model.TriggerEvent)
}
