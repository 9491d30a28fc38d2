package telegram

import (
	"context"

	"github.com/armtemiy/armlab/pkg/domain"
)

type ctxKey struct{}

// WithUser stores the authenticated caller on ctx.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFrom returns the caller stored by WithUser, or nil.
func UserFrom(ctx context.Context) *domain.User {
	u, _ := ctx.Value(ctxKey{}).(*domain.User)
	return u
}

// Identity implements ports.IdentityProvider over the request context.
type Identity struct{}

// CurrentUser returns the user placed on ctx by the auth middleware.
func (Identity) CurrentUser(ctx context.Context) (*domain.User, error) {
	return UserFrom(ctx), nil
}
