package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pricewatch/internal/domain/model"
	"pricewatch/internal/domain/repository"
)

// MemoryAlertStore is a simple in-memory implementation of AlertStore for
// tests and local runs without Redis. It preserves insertion order in List
// so sweeps process groups deterministically.
type MemoryAlertStore struct {
	mu     sync.RWMutex
	alerts map[string]*model.PriceAlert
	order  []string
}

func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{
		alerts: make(map[string]*model.PriceAlert),
	}
}

var _ repository.AlertStore = (*MemoryAlertStore)(nil)

func (s *MemoryAlertStore) Create(ctx context.Context, alert *model.PriceAlert) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *alert
	stored.ID = uuid.New().String()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.alerts[stored.ID] = &stored
	s.order = append(s.order, stored.ID)
	return stored.ID, nil
}

func (s *MemoryAlertStore) List(ctx context.Context, ownerID string) ([]*model.PriceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.PriceAlert, 0, len(s.order))
	for _, id := range s.order {
		a, ok := s.alerts[id]
		if !ok {
			continue
		}
		if ownerID != "" && a.OwnerID != ownerID {
			continue
		}
		// Copies keep callers from mutating stored state.
		cp := *a
		result = append(result, &cp)
	}
	return result, nil
}

func (s *MemoryAlertStore) MarkTriggered(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return false, fmt.Errorf("alert %s not found", id)
	}
	if a.Triggered {
		return false, nil
	}
	a.Triggered = true
	a.TriggeredAt = &at
	return true, nil
}

func (s *MemoryAlertStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[id]; !ok {
		return fmt.Errorf("alert %s not found", id)
	}
	delete(s.alerts, id)
	return nil
}
