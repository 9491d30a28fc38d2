package memory

import (
	"context"
	"sync"
	"time"

	"github.com/armtemiy/armlab/pkg/domain"
)

// PurchaseStore implements ports.PurchaseStore in memory.
type PurchaseStore struct {
	mu        sync.RWMutex
	purchases map[string]domain.Purchase
}

// NewPurchaseStore creates an empty purchase store.
func NewPurchaseStore() *PurchaseStore {
	return &PurchaseStore{purchases: make(map[string]domain.Purchase)}
}

func (s *PurchaseStore) CreatePurchase(ctx context.Context, p *domain.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchases[p.ID] = *p
	return nil
}

func (s *PurchaseStore) UpdatePurchaseStatus(ctx context.Context, id string, status domain.PurchaseStatus, chargeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.purchases[id]
	if !ok {
		return domain.ErrPurchaseNotFound
	}
	p.Status = status
	if chargeID != "" {
		p.ChargeID = chargeID
	}
	p.UpdatedAt = time.Now()
	s.purchases[id] = p
	return nil
}

func (s *PurchaseStore) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.purchases[id]
	if !ok {
		return nil, domain.ErrPurchaseNotFound
	}
	return &p, nil
}

func (s *PurchaseStore) HasPaid(ctx context.Context, userID, itemSlug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.purchases {
		if p.UserID == userID && p.ItemSlug == itemSlug && p.Status == domain.PurchasePaid {
			return true, nil
		}
	}
	return false, nil
}
