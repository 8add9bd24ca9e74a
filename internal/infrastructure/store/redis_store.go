// Package store provides AlertStore implementations. RedisAlertStore is the
// production adapter over the hosted document store; MemoryAlertStore backs
// tests and Redis-less local runs.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"pricewatch/internal/domain/model"
	"pricewatch/internal/domain/repository"
)

const (
	alertKeyPrefix = "alert:"
	allAlertsKey   = "alerts:all"
	ownerKeyPrefix = "alerts:owner:"
)

// markTriggeredScript flips the triggered flag only when it is still unset,
// returning 1 to the single caller that performed the flip. This is the
// claim step that collapses duplicate notifications from overlapping sweeps.
var markTriggeredScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "triggered") == "1" then
	return 0
end
redis.call("HSET", KEYS[1], "triggered", "1", "triggered_at", ARGV[1])
return 1
`)

// RedisAlertStore implements AlertStore on Redis, one hash per alert plus
// per-owner index sets.
type RedisAlertStore struct {
	client *redis.Client
}

func NewRedisAlertStore(addr, password string, db int) *RedisAlertStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisAlertStore{client: client}
}

var _ repository.AlertStore = (*RedisAlertStore)(nil)

// Ping verifies connectivity, used by bootstrap to decide on the fallback.
func (s *RedisAlertStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisAlertStore) Create(ctx context.Context, alert *model.PriceAlert) (string, error) {
	id := uuid.New().String()
	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, alertKeyPrefix+id, map[string]any{
		"owner":      alert.OwnerID,
		"symbol":     alert.Symbol,
		"target":     alert.TargetPrice.String(),
		"condition":  string(alert.Condition),
		"triggered":  "0",
		"created_at": createdAt.Format(time.RFC3339Nano),
	})
	pipe.SAdd(ctx, allAlertsKey, id)
	pipe.SAdd(ctx, ownerKeyPrefix+alert.OwnerID, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store alert: %w", err)
	}
	return id, nil
}

func (s *RedisAlertStore) List(ctx context.Context, ownerID string) ([]*model.PriceAlert, error) {
	indexKey := allAlertsKey
	if ownerID != "" {
		indexKey = ownerKeyPrefix + ownerID
	}
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list alert ids: %w", err)
	}
	if len(ids) == 0 {
		return []*model.PriceAlert{}, nil
	}

	// Fetch all hashes in one pipeline round trip.
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, alertKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}

	result := make([]*model.PriceAlert, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue // index entry pointing at a deleted alert
		}
		alert, err := alertFromHash(ids[i], fields)
		if err != nil {
			continue // skip malformed documents
		}
		result = append(result, alert)
	}
	return result, nil
}

func (s *RedisAlertStore) MarkTriggered(ctx context.Context, id string, at time.Time) (bool, error) {
	n, err := markTriggeredScript.Run(ctx, s.client,
		[]string{alertKeyPrefix + id},
		at.Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to mark alert %s triggered: %w", id, err)
	}
	return n == 1, nil
}

func (s *RedisAlertStore) Delete(ctx context.Context, id string) error {
	owner, err := s.client.HGet(ctx, alertKeyPrefix+id, "owner").Result()
	if err == redis.Nil {
		return fmt.Errorf("alert %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load alert %s: %w", id, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, alertKeyPrefix+id)
	pipe.SRem(ctx, allAlertsKey, id)
	pipe.SRem(ctx, ownerKeyPrefix+owner, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete alert %s: %w", id, err)
	}
	return nil
}

func alertFromHash(id string, fields map[string]string) (*model.PriceAlert, error) {
	target, err := decimal.NewFromString(fields["target"])
	if err != nil {
		return nil, fmt.Errorf("bad target price: %w", err)
	}
	condition, err := model.ParseCondition(fields["condition"])
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("bad created_at: %w", err)
	}

	alert := &model.PriceAlert{
		ID:          id,
		OwnerID:     fields["owner"],
		Symbol:      fields["symbol"],
		TargetPrice: target,
		Condition:   condition,
		Triggered:   fields["triggered"] == "1",
		CreatedAt:   createdAt,
	}
	if ts, ok := fields["triggered_at"]; ok && ts != "" {
		if at, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			alert.TriggeredAt = &at
		}
	}
	return alert, nil
}
