package ports

import (
	"context"

	"github.com/armtemiy/armlab/pkg/domain"
)

// StateStore defines the interface for persisting traversal state.
// Sessions survive process restarts when backed by a durable store.
type StateStore interface {
	// Save persists the state for a given session ID.
	Save(ctx context.Context, sessionID string, state *domain.State) error

	// Load retrieves the state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.State, error)

	// Delete removes the state for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the ids of all known sessions.
	List(ctx context.Context) ([]string, error)
}

// TreeStore keeps the admin-loaded tree override.
type TreeStore interface {
	SaveOverride(ctx context.Context, tree *domain.Tree) error
	// LoadOverride returns domain.ErrNoOverride when nothing is stored.
	LoadOverride(ctx context.Context) (*domain.Tree, error)
	DeleteOverride(ctx context.Context) error
}
