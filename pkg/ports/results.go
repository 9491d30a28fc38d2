package ports

import (
	"context"

	"github.com/armtemiy/armlab/pkg/domain"
)

// ResultStore persists users and completed diagnostic outcomes.
type ResultStore interface {
	// UpsertUser ensures a user record exists for the external id and returns its internal id.
	// Repeated calls with the same external id return the same internal id.
	UpsertUser(ctx context.Context, externalID, username string, isAdmin bool) (string, error)

	// InsertDiagnosticResult stores one outcome. userID is nil for anonymous callers.
	InsertDiagnosticResult(ctx context.Context, userID *string, treeID string, answers map[string]string, result domain.ResultSnapshot) error
}
