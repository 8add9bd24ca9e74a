package queue

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"pricewatch/internal/domain/model"
	"pricewatch/internal/domain/useCases"
)

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaNotifier publishes trigger events to a Kafka topic. Downstream
// delivery channels (push, mail, whatever consumes the topic) are someone
// else's concern; the engine only hands the event off.
type KafkaNotifier struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

// NewKafkaNotifier creates a Kafka-backed notifier.
func NewKafkaNotifier(config KafkaConfig, log zerolog.Logger) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{}, // symbol-keyed so one instrument stays ordered
		RequiredAcks: kafka.RequireAll,
	}

	return &KafkaNotifier{
		writer: writer,
		log:    log.With().Str("component", "kafka_notifier").Logger(),
	}
}

var _ useCases.Notifier = (*KafkaNotifier)(nil)

// triggerMessage is the wire shape published to the topic.
type triggerMessage struct {
	AlertID      string    `json:"alert_id"`
	OwnerID      string    `json:"owner_id"`
	Symbol       string    `json:"symbol"`
	Condition    string    `json:"condition"`
	TargetPrice  string    `json:"target_price"`
	CurrentPrice string    `json:"current_price"`
	TriggeredAt  time.Time `json:"triggered_at"`
}

// Notify publishes the trigger event. Failures are logged and swallowed:
// the evaluation engine does not depend on delivery.
func (n *KafkaNotifier) Notify(ctx context.Context, event *model.TriggerEvent) {
	data, err := json.Marshal(triggerMessage{
		AlertID:      event.AlertID,
		OwnerID:      event.OwnerID,
		Symbol:       event.Symbol,
		Condition:    string(event.Condition),
		TargetPrice:  event.TargetPrice.String(),
		CurrentPrice: event.CurrentPrice.String(),
		TriggeredAt:  event.TriggeredAt,
	})
	if err != nil {
		n.log.Error().Err(err).Msg("failed to marshal trigger event")
		return
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Symbol),
		Value: data,
		Time:  event.TriggeredAt,
	})
	if err != nil {
		n.log.Warn().Str("alert_id", event.AlertID).Err(err).Msg("failed to publish trigger event")
	}
}

// Close closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
