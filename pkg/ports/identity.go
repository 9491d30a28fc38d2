package ports

import (
	"context"

	"github.com/armtemiy/armlab/pkg/domain"
)

// IdentityProvider resolves the current caller.
// It returns (nil, nil) when the host platform has not provided a user yet.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (*domain.User, error)
}

// IdentityFunc adapts a function to IdentityProvider.
type IdentityFunc func(ctx context.Context) (*domain.User, error)

// CurrentUser calls f(ctx).
func (f IdentityFunc) CurrentUser(ctx context.Context) (*domain.User, error) {
	return f(ctx)
}
