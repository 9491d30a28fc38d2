package ports

import (
	"context"

	"github.com/armtemiy/armlab/pkg/domain"
)

// PaymentGateway issues invoices that the client opens on the host platform.
type PaymentGateway interface {
	CreateInvoice(ctx context.Context, req domain.InvoiceRequest) (string, error)
}

// PurchaseStore keeps purchase bookkeeping and answers entitlement queries.
type PurchaseStore interface {
	CreatePurchase(ctx context.Context, p *domain.Purchase) error
	// UpdatePurchaseStatus returns domain.ErrPurchaseNotFound for unknown ids.
	UpdatePurchaseStatus(ctx context.Context, id string, status domain.PurchaseStatus, chargeID string) error
	GetPurchase(ctx context.Context, id string) (*domain.Purchase, error)
	// HasPaid reports whether the user holds a paid purchase of itemSlug.
	HasPaid(ctx context.Context, userID, itemSlug string) (bool, error)
}
