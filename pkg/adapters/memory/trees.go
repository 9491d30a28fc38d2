package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/armtemiy/armlab/pkg/domain"
)

// TreeStore implements ports.TreeStore in memory.
// The override is kept in its wire form so callers never share pointers with it.
type TreeStore struct {
	mu  sync.RWMutex
	raw []byte
}

// NewTreeStore creates an empty tree store.
func NewTreeStore() *TreeStore {
	return &TreeStore{}
}

func (s *TreeStore) SaveOverride(ctx context.Context, tree *domain.Tree) error {
	raw, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to encode tree override: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = raw
	return nil
}

func (s *TreeStore) LoadOverride(ctx context.Context) (*domain.Tree, error) {
	s.mu.RLock()
	raw := s.raw
	s.mu.RUnlock()

	if raw == nil {
		return nil, domain.ErrNoOverride
	}
	var tree domain.Tree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode tree override: %w", err)
	}
	return &tree, nil
}

func (s *TreeStore) DeleteOverride(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = nil
	return nil
}
