package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pricewatch/internal/domain/useCases"
)

// SweepScheduler drives the evaluation engine on a fixed interval. On-demand
// checks go straight to the engine from the HTTP layer; sweeps are not
// mutually exclusive and the store-level claim keeps overlap harmless.
type SweepScheduler struct {
	engine   useCases.AlertService
	interval time.Duration
	log      zerolog.Logger
}

func NewSweepScheduler(engine useCases.AlertService, interval time.Duration, log zerolog.Logger) *SweepScheduler {
	return &SweepScheduler{
		engine:   engine,
		interval: interval,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Run sweeps immediately, then on every tick until the context is cancelled.
// A sweep failure is logged and the schedule continues; the engine is built
// to degrade to "did nothing this sweep" and recover on the next one.
func (s *SweepScheduler) Run(ctx context.Context) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *SweepScheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.engine.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.log.Error().Err(err).Msg("scheduled sweep failed")
	}
}
