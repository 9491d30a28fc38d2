package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/armtemiy/armlab/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultTreeKey holds the admin tree override.
const DefaultTreeKey = "armlab:tree:override"

// TreeStore implements ports.TreeStore using a single Redis key.
type TreeStore struct {
	client *backend.Client
	key    string
}

// NewTreeStore creates a tree store. An empty key selects DefaultTreeKey.
func NewTreeStore(client *backend.Client, key string) *TreeStore {
	if key == "" {
		key = DefaultTreeKey
	}
	return &TreeStore{client: client, key: key}
}

func (s *TreeStore) SaveOverride(ctx context.Context, tree *domain.Tree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save tree override: %w", err)
	}
	return nil
}

func (s *TreeStore) LoadOverride(ctx context.Context) (*domain.Tree, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrNoOverride
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tree override: %w", err)
	}

	var tree domain.Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tree: %w", err)
	}
	return &tree, nil
}

func (s *TreeStore) DeleteOverride(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
