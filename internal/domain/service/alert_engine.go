// Package service implements the domain services. It depends only on domain
// models and the repository/useCases interfaces, never on infrastructure.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/domain/model"
	"pricewatch/internal/domain/repository"
	"pricewatch/internal/domain/useCases"
)

// AlertEngineConfig bounds how hard one sweep leans on the upstream.
type AlertEngineConfig struct {
	// BatchSize is how many distinct symbols are fetched concurrently.
	BatchSize int
	// BatchDelay is the pause between successive batches. The rate limiter
	// only spaces single calls; this delay keeps a sweep over many symbols
	// from reading as a burst to the upstream.
	BatchDelay time.Duration
}

// AlertEngine evaluates pending price alerts against current prices.
//
// One sweep loads all untriggered alerts, groups them by symbol so K alerts
// on one instrument cost a single fetch, prices the symbols in fixed-size
// concurrent batches, and fires every alert whose condition is met. Firing
// claims the terminal triggered flag through the store before notifying, so
// overlapping sweeps never double-notify.
type AlertEngine struct {
	store    repository.AlertStore
	prices   useCases.PriceSource
	notifier useCases.Notifier
	history  repository.TriggerHistory // optional, best-effort

	batchSize  int
	batchDelay time.Duration
	log        zerolog.Logger
}

// NewAlertEngine wires an engine from its injected collaborators.
// history may be nil when no durable trigger log is configured.
func NewAlertEngine(
	store repository.AlertStore,
	prices useCases.PriceSource,
	notifier useCases.Notifier,
	history repository.TriggerHistory,
	cfg AlertEngineConfig,
	log zerolog.Logger,
) *AlertEngine {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &AlertEngine{
		store:      store,
		prices:     prices,
		notifier:   notifier,
		history:    history,
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay,
		log:        log.With().Str("component", "alert_engine").Logger(),
	}
}

var _ useCases.AlertService = (*AlertEngine)(nil)

// Sweep runs one full evaluation pass. It returns an error only when the
// alert list itself cannot be loaded; a symbol whose fetch fails is skipped
// for this sweep and reported in the SweepReport, and a store failure on an
// individual alert is logged and skipped. A sweep that prices zero symbols
// triggers nothing and exits normally.
func (e *AlertEngine) Sweep(ctx context.Context) (*model.SweepReport, error) {
	started := time.Now()
	report := &model.SweepReport{StartedAt: started}

	alerts, err := e.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("loading alerts: %w", err)
	}

	symbols, groups := groupPending(alerts)
	e.log.Debug().Int("alerts", len(alerts)).Int("symbols", len(symbols)).Msg("sweep started")

	for start := 0; start < len(symbols); start += e.batchSize {
		if start > 0 {
			if err := e.interBatchPause(ctx); err != nil {
				report.Duration = time.Since(started)
				return report, err
			}
		}

		end := start + e.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		for sym, res := range e.fetchBatch(ctx, batch) {
			if res.err != nil {
				e.log.Warn().Str("symbol", sym).Err(res.err).Msg("price fetch failed, skipping group this sweep")
				report.Failures = append(report.Failures, model.SymbolFailure{
					Symbol: sym,
					Reason: res.err.Error(),
				})
				continue
			}
			for _, alert := range groups[sym] {
				report.Evaluated++
				if alert.ShouldFire(res.price) {
					e.fire(ctx, alert, res.price, report)
				}
			}
		}
	}

	report.Duration = time.Since(started)
	e.log.Info().
		Int("evaluated", report.Evaluated).
		Int("triggered", report.Triggered).
		Int("failed_symbols", len(report.Failures)).
		Dur("took", report.Duration).
		Msg("sweep finished")
	return report, nil
}

// groupPending filters out terminal alerts and groups the rest by symbol,
// keeping symbols in first-seen order so sweeps process groups stably.
func groupPending(alerts []*model.PriceAlert) ([]string, map[string][]*model.PriceAlert) {
	var symbols []string
	groups := make(map[string][]*model.PriceAlert)
	for _, a := range alerts {
		if a.Triggered {
			continue
		}
		if _, seen := groups[a.Symbol]; !seen {
			symbols = append(symbols, a.Symbol)
		}
		groups[a.Symbol] = append(groups[a.Symbol], a)
	}
	return symbols, groups
}

type priceResult struct {
	price decimal.Decimal
	err   error
}

// fetchBatch prices one batch of symbols concurrently. Peak in-flight
// upstream calls are therefore bounded by the configured batch size.
func (e *AlertEngine) fetchBatch(ctx context.Context, symbols []string) map[string]priceResult {
	results := make(map[string]priceResult, len(symbols))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			price, err := e.prices.Price(ctx, sym)
			mu.Lock()
			results[sym] = priceResult{price: price, err: err}
			mu.Unlock()
		}(sym)
	}
	wg.Wait()
	return results
}

func (e *AlertEngine) interBatchPause(ctx context.Context) error {
	if e.batchDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(e.batchDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fire commits the terminal trigger state and emits the notification.
// The store claim makes the flip single-winner: a concurrent sweep that
// lost the race gets claimed=false and stays silent.
func (e *AlertEngine) fire(ctx context.Context, alert *model.PriceAlert, price decimal.Decimal, report *model.SweepReport) {
	now := time.Now()
	claimed, err := e.store.MarkTriggered(ctx, alert.ID, now)
	if err != nil {
		e.log.Error().Str("alert_id", alert.ID).Err(err).Msg("failed to mark alert triggered")
		return
	}
	if !claimed {
		return
	}
	report.Triggered++

	event := &model.TriggerEvent{
		AlertID:      alert.ID,
		OwnerID:      alert.OwnerID,
		Symbol:       alert.Symbol,
		Condition:    alert.Condition,
		TargetPrice:  alert.TargetPrice,
		CurrentPrice: price,
		TriggeredAt:  now,
	}
	e.notifier.Notify(ctx, event)

	if e.history != nil {
		if err := e.history.SaveTrigger(ctx, event); err != nil {
			e.log.Warn().Str("alert_id", alert.ID).Err(err).Msg("failed to persist trigger history")
		}
	}
}
