package app

import (
	"context"

	"github.com/rs/zerolog"

	"pricewatch/internal/domain/model"
	"pricewatch/internal/domain/useCases"
)

// FanoutNotifier delivers one trigger event to every configured channel.
// Channels are independent; a failing one never blocks the others since
// each implementation swallows its own errors.
type FanoutNotifier struct {
	targets []useCases.Notifier
}

func NewFanoutNotifier(targets ...useCases.Notifier) *FanoutNotifier {
	return &FanoutNotifier{targets: targets}
}

func (n *FanoutNotifier) Notify(ctx context.Context, event *model.TriggerEvent) {
	for _, t := range n.targets {
		t.Notify(ctx, event)
	}
}

// LogNotifier writes trigger events to the log. Always part of the fan-out
// so a fired alert leaves a trace even with no other channel configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(ctx context.Context, event *model.TriggerEvent) {
	n.log.Info().
		Str("alert_id", event.AlertID).
		Str("owner_id", event.OwnerID).
		Str("symbol", event.Symbol).
		Str("condition", string(event.Condition)).
		Str("target_price", event.TargetPrice.String()).
		Str("current_price", event.CurrentPrice.String()).
		Msg("alert triggered")
}
