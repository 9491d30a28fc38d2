package domain

import "time"

// PurchaseStatus follows an invoice from creation to settlement.
type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCreated   PurchaseStatus = "created"
	PurchasePaid      PurchaseStatus = "paid"
	PurchaseFailed    PurchaseStatus = "failed"
	PurchaseCancelled PurchaseStatus = "cancelled"

	// PurchaseReported means the client saw the invoice close as paid and
	// the bot has not confirmed the charge yet. It grants nothing on its own.
	PurchaseReported PurchaseStatus = "reported_paid"
)

// InvoiceStatus is what the host platform reports after the invoice UI closes.
type InvoiceStatus string

const (
	InvoicePaid      InvoiceStatus = "paid"
	InvoicePending   InvoiceStatus = "pending"
	InvoiceCancelled InvoiceStatus = "cancelled"
	InvoiceFailed    InvoiceStatus = "failed"
)

// Purchase is the bookkeeping record of one premium unlock attempt.
type Purchase struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"` // external id
	ItemSlug  string         `json:"item_slug"`
	Amount    int            `json:"amount"`
	Status    PurchaseStatus `json:"status"`
	ChargeID  string         `json:"charge_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// InvoiceRequest is handed to the payment gateway.
type InvoiceRequest struct {
	ItemSlug    string
	UserID      string
	Amount      int
	Payload     string
	Title       string
	Description string
}

// Invoice is a created invoice ready to be opened by the client.
type Invoice struct {
	PurchaseID string `json:"purchase_id"`
	Link       string `json:"invoice_link"`
}
