package dto

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"pricewatch/internal/domain/model"
)

var validate = validator.New()

// CreateAlertRequest is the inbound payload for creating a price alert.
type CreateAlertRequest struct {
	OwnerID     string `json:"owner_id" validate:"required"`
	Symbol      string `json:"symbol" validate:"required,uppercase"`
	TargetPrice string `json:"target_price" validate:"required"`
	Condition   string `json:"condition" validate:"required,oneof=above below"`
}

// ToModel validates the request and converts it to a domain alert.
func (r *CreateAlertRequest) ToModel() (*model.PriceAlert, error) {
	if err := validate.Struct(r); err != nil {
		return nil, err
	}
	target, err := decimal.NewFromString(r.TargetPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid target_price %q: %w", r.TargetPrice, err)
	}
	if !target.IsPositive() {
		return nil, fmt.Errorf("target_price must be positive, got %s", target)
	}
	condition, err := model.ParseCondition(r.Condition)
	if err != nil {
		return nil, err
	}
	return &model.PriceAlert{
		OwnerID:     r.OwnerID,
		Symbol:      r.Symbol,
		TargetPrice: target,
		Condition:   condition,
		CreatedAt:   time.Now(),
	}, nil
}

// AlertDTO represents a data transfer object for price alerts
type AlertDTO struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Symbol      string     `json:"symbol"`
	TargetPrice string     `json:"target_price"`
	Condition   string     `json:"condition"`
	Triggered   bool       `json:"triggered"`
	CreatedAt   time.Time  `json:"created_at"`
	TriggeredAt *time.Time `json:"triggered_at,omitempty"`
}

// AlertFromModel creates an AlertDTO from a domain model
func AlertFromModel(a *model.PriceAlert) *AlertDTO {
	return &AlertDTO{
		ID:          a.ID,
		OwnerID:     a.OwnerID,
		Symbol:      a.Symbol,
		TargetPrice: a.TargetPrice.String(),
		Condition:   string(a.Condition),
		Triggered:   a.Triggered,
		CreatedAt:   a.CreatedAt,
		TriggeredAt: a.TriggeredAt,
	}
}

func AlertsFromModels(alerts []*model.PriceAlert) []*AlertDTO {
	dtos := make([]*AlertDTO, len(alerts))
	for i, a := range alerts {
		dtos[i] = AlertFromModel(a)
	}
	return dtos
}

// TriggerEventDTO is the wire shape of a fired alert.
type TriggerEventDTO struct {
	AlertID      string    `json:"alert_id"`
	OwnerID      string    `json:"owner_id"`
	Symbol       string    `json:"symbol"`
	Condition    string    `json:"condition"`
	TargetPrice  string    `json:"target_price"`
	CurrentPrice string    `json:"current_price"`
	TriggeredAt  time.Time `json:"triggered_at"`
}

// TriggerEventFromModel creates a TriggerEventDTO from a domain model
func TriggerEventFromModel(e *model.TriggerEvent) *TriggerEventDTO {
	return &TriggerEventDTO{
		AlertID:      e.AlertID,
		OwnerID:      e.OwnerID,
		Symbol:       e.Symbol,
		Condition:    string(e.Condition),
		TargetPrice:  e.TargetPrice.String(),
		CurrentPrice: e.CurrentPrice.String(),
		TriggeredAt:  e.TriggeredAt,
	}
}

func TriggerEventsFromModels(events []*model.TriggerEvent) []*TriggerEventDTO {
	dtos := make([]*TriggerEventDTO, len(events))
	for i, e := range events {
		dtos[i] = TriggerEventFromModel(e)
	}
	return dtos
}

// QuoteDTO is the response shape of the market-data read endpoint.
type QuoteDTO struct {
	Symbol     string    `json:"symbol"`
	Price      string    `json:"price"`
	Source     string    `json:"source,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

func QuoteFromModel(q *model.Quote) *QuoteDTO {
	return &QuoteDTO{
		Symbol:     q.Symbol,
		Price:      q.Price.String(),
		Source:     q.Source,
		ReceivedAt: q.ReceivedAt,
	}
}

// SweepReportDTO reports an on-demand check back to the caller, including
// the symbols that could not be priced this round.
type SweepReportDTO struct {
	Evaluated  int                `json:"evaluated"`
	Triggered  int                `json:"triggered"`
	Failures   []SymbolFailureDTO `json:"failures,omitempty"`
	DurationMS int64              `json:"duration_ms"`
}

type SymbolFailureDTO struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

func SweepReportFromModel(r *model.SweepReport) *SweepReportDTO {
	out := &SweepReportDTO{
		Evaluated:  r.Evaluated,
		Triggered:  r.Triggered,
		DurationMS: r.Duration.Milliseconds(),
	}
	for _, f := range r.Failures {
		out.Failures = append(out.Failures, SymbolFailureDTO{Symbol: f.Symbol, Reason: f.Reason})
	}
	return out
}
