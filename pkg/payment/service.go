package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/armtemiy/armlab/internal/logging"
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/armtemiy/armlab/pkg/ports"
	"github.com/google/uuid"
)

const (
	DefaultItemSlug       = "premium-branch"
	DefaultPrice          = 1
	DefaultInvoiceTimeout = 10 * time.Second
	DefaultClaimTTL       = 15 * time.Minute

	// PayloadPrefix marks invoice payloads that carry a purchase id.
	PayloadPrefix = "purchase:"

	invoiceTitle       = "Armtemiy Lab"
	invoiceDescription = "Доступ к продвинутой ветке диагностики"
)

// Service runs the unlock flow.
type Service struct {
	gateway   ports.PaymentGateway
	purchases ports.PurchaseStore

	itemSlug string
	price    int
	timeout  time.Duration
	admins   map[string]bool
	claimTTL time.Duration

	mu     sync.Mutex
	claims map[string]time.Time // user id -> expiry

	logger    *slog.Logger
	onInvoice func(outcome string)
	now       func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithItem sets the premium item slug and its Stars price.
func WithItem(slug string, price int) Option {
	return func(s *Service) {
		if slug != "" {
			s.itemSlug = slug
		}
		if price > 0 {
			s.price = price
		}
	}
}

// WithInvoiceTimeout bounds the gateway call.
func WithInvoiceTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClaimTTL bounds how long a client-reported payment unlocks premium
// content before the bot confirms it.
func WithClaimTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.claimTTL = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithAdmins sets the external user ids that always see premium content.
func WithAdmins(ids ...string) Option {
	return func(s *Service) {
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				s.admins[id] = true
			}
		}
	}
}

// WithLogger configures a logger for the Service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithInvoiceHook is called with "created" or "failed" after each invoice attempt.
func WithInvoiceHook(fn func(outcome string)) Option {
	return func(s *Service) {
		s.onInvoice = fn
	}
}

// NewService creates the unlock service.
func NewService(gateway ports.PaymentGateway, purchases ports.PurchaseStore, opts ...Option) *Service {
	s := &Service{
		gateway:   gateway,
		purchases: purchases,
		itemSlug:  DefaultItemSlug,
		price:     DefaultPrice,
		timeout:   DefaultInvoiceTimeout,
		admins:    make(map[string]bool),
		claimTTL:  DefaultClaimTTL,
		claims:    make(map[string]time.Time),
		logger:    logging.NewNop(),
		onInvoice: func(string) {},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ItemSlug returns the premium item slug.
func (s *Service) ItemSlug() string { return s.itemSlug }

// Price returns the premium price in Stars.
func (s *Service) Price() int { return s.price }

// IsAdmin reports whether the user id is configured as admin.
func (s *Service) IsAdmin(user *domain.User) bool {
	return user != nil && s.admins[user.ID]
}

// Access computes the gating flags for user. Anonymous callers get none.
// Only confirmed purchases count as an entitlement; an unconfirmed client
// report unlocks premium in this process until its claim expires.
func (s *Service) Access(ctx context.Context, user *domain.User) (domain.Access, error) {
	if user == nil {
		return domain.Access{}, nil
	}
	if s.IsAdmin(user) {
		return domain.Access{IsAdmin: true, PremiumUnlocked: true}, nil
	}
	paid, err := s.purchases.HasPaid(ctx, user.ID, s.itemSlug)
	if err != nil {
		return domain.Access{}, fmt.Errorf("failed to check entitlement: %w", err)
	}
	return domain.Access{PremiumUnlocked: paid || s.claimed(user.ID)}, nil
}

// CreateInvoice records a pending purchase and requests an invoice link.
// The gateway call is bounded by the invoice timeout; on failure the purchase
// is marked failed.
func (s *Service) CreateInvoice(ctx context.Context, user *domain.User) (*domain.Invoice, error) {
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}

	now := s.now()
	purchase := &domain.Purchase{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ItemSlug:  s.itemSlug,
		Amount:    s.price,
		Status:    domain.PurchasePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.purchases.CreatePurchase(ctx, purchase); err != nil {
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	link, err := s.gateway.CreateInvoice(callCtx, domain.InvoiceRequest{
		ItemSlug:    s.itemSlug,
		UserID:      user.ID,
		Amount:      s.price,
		Payload:     Payload(purchase.ID),
		Title:       invoiceTitle,
		Description: invoiceDescription,
	})
	if err == nil && link == "" {
		err = errors.New("gateway returned an empty invoice link")
	}
	if err != nil {
		s.onInvoice("failed")
		if uerr := s.purchases.UpdatePurchaseStatus(ctx, purchase.ID, domain.PurchaseFailed, ""); uerr != nil {
			s.logger.Warn("failed to mark purchase failed", "purchase_id", purchase.ID, "err", uerr)
		}
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	if err := s.purchases.UpdatePurchaseStatus(ctx, purchase.ID, domain.PurchaseCreated, ""); err != nil {
		s.logger.Warn("failed to mark purchase created", "purchase_id", purchase.ID, "err", err)
	}
	s.onInvoice("created")
	s.logger.Info("invoice created", "purchase_id", purchase.ID, "user_id", user.ID, "amount", s.price)

	return &domain.Invoice{PurchaseID: purchase.ID, Link: link}, nil
}

// ReportStatus applies the status reported by the client after the invoice UI closed.
// paid records an unconfirmed claim, pending is a no-op, anything else returns
// domain.ErrNotPaid. A cancelled or failed purchase cannot be reported paid.
// Only MarkPaid settles a purchase.
func (s *Service) ReportStatus(ctx context.Context, user *domain.User, purchaseID string, status domain.InvoiceStatus) (domain.Access, error) {
	if user == nil {
		return domain.Access{}, domain.ErrUnauthenticated
	}

	purchase, err := s.purchases.GetPurchase(ctx, purchaseID)
	if err != nil {
		return domain.Access{}, err
	}
	if purchase.UserID != user.ID {
		return domain.Access{}, domain.ErrForbidden
	}

	switch status {
	case domain.InvoicePaid:
		switch purchase.Status {
		case domain.PurchasePaid:
		case domain.PurchaseCancelled, domain.PurchaseFailed:
			return domain.Access{}, fmt.Errorf("%w: purchase is %s", domain.ErrNotPaid, purchase.Status)
		default:
			if err := s.purchases.UpdatePurchaseStatus(ctx, purchaseID, domain.PurchaseReported, ""); err != nil {
				return domain.Access{}, fmt.Errorf("failed to record reported payment: %w", err)
			}
			s.claim(user.ID)
			s.logger.Info("payment reported by client", "purchase_id", purchaseID, "user_id", user.ID)
		}
		return s.Access(ctx, user)
	case domain.InvoicePending:
		return s.Access(ctx, user)
	case domain.InvoiceCancelled:
		s.markIfOpen(ctx, purchase, domain.PurchaseCancelled)
	default:
		s.markIfOpen(ctx, purchase, domain.PurchaseFailed)
	}
	return domain.Access{}, fmt.Errorf("%w: %s", domain.ErrNotPaid, status)
}

// MarkPaid confirms a payment reported by the bot. payload is the invoice payload.
func (s *Service) MarkPaid(ctx context.Context, payload, chargeID string) (*domain.Purchase, error) {
	id, ok := ParsePayload(payload)
	if !ok {
		return nil, fmt.Errorf("unexpected invoice payload %q", payload)
	}
	if err := s.purchases.UpdatePurchaseStatus(ctx, id, domain.PurchasePaid, chargeID); err != nil {
		return nil, fmt.Errorf("failed to confirm purchase %s: %w", id, err)
	}
	s.logger.Info("payment confirmed", "purchase_id", id, "charge_id", chargeID)
	p, err := s.purchases.GetPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	s.forget(p.UserID)
	return p, nil
}

// CheckPayload validates a pre-checkout payload against the purchase book.
func (s *Service) CheckPayload(ctx context.Context, payload string, amount int) error {
	id, ok := ParsePayload(payload)
	if !ok {
		return fmt.Errorf("unexpected invoice payload %q", payload)
	}
	p, err := s.purchases.GetPurchase(ctx, id)
	if err != nil {
		return err
	}
	if p.Amount != amount {
		return fmt.Errorf("amount mismatch: expected %d, got %d", p.Amount, amount)
	}
	if p.Status == domain.PurchaseFailed || p.Status == domain.PurchaseCancelled {
		return fmt.Errorf("purchase %s is %s", id, p.Status)
	}
	return nil
}

func (s *Service) markIfOpen(ctx context.Context, p *domain.Purchase, status domain.PurchaseStatus) {
	if p.Status == domain.PurchasePaid {
		return
	}
	s.forget(p.UserID)
	if err := s.purchases.UpdatePurchaseStatus(ctx, p.ID, status, ""); err != nil {
		s.logger.Warn("failed to update purchase", "purchase_id", p.ID, "status", status, "err", err)
	}
}

func (s *Service) claim(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[userID] = s.now().Add(s.claimTTL)
}

func (s *Service) claimed(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.claims[userID]
	if ok && !s.now().Before(exp) {
		delete(s.claims, userID)
		return false
	}
	return ok
}

func (s *Service) forget(userID string) {
	s.mu.Lock()
	delete(s.claims, userID)
	s.mu.Unlock()
}

// Payload builds the invoice payload for a purchase id.
func Payload(purchaseID string) string {
	return PayloadPrefix + purchaseID
}

// ParsePayload extracts the purchase id from an invoice payload.
func ParsePayload(payload string) (string, bool) {
	id, ok := strings.CutPrefix(payload, PayloadPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
