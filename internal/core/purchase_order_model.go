package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PurchaseOrderStatus string

const (
	PODraft             PurchaseOrderStatus = "draft"
	POSent              PurchaseOrderStatus = "sent"
	POPartiallyReceived PurchaseOrderStatus = "partially_received"
	POReceived          PurchaseOrderStatus = "received"
	POCancelled         PurchaseOrderStatus = "cancelled"
)

var purchaseOrderTransitions = map[PurchaseOrderStatus][]PurchaseOrderStatus{
	PODraft:             {POSent, POReceived, POCancelled},
	POSent:              {POPartiallyReceived, POReceived, POCancelled},
	POPartiallyReceived: {POReceived},
}

// CanTransition reports whether a purchase order may move from s to next.
func (s PurchaseOrderStatus) CanTransition(next PurchaseOrderStatus) bool {
	for _, allowed := range purchaseOrderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PurchaseOrder pre-declares an expected delivery. It never moves stock.
type PurchaseOrder struct {
	ID           int                 `json:"id"`
	OrgID        uuid.UUID           `json:"org_id"`
	SupplierID   int                 `json:"supplier_id"`
	WarehouseID  int                 `json:"warehouse_id"`
	Number       string              `json:"number"`
	Status       PurchaseOrderStatus `json:"status"`
	Currency     string              `json:"currency"`
	Date         time.Time           `json:"date"`
	ExpectedDate *time.Time          `json:"expected_date,omitempty"`
	TotalsBase   decimal.Decimal     `json:"totals_base"`
	TotalsTax    decimal.Decimal     `json:"totals_tax"`
	Total        decimal.Decimal     `json:"total"`
	Notes        string              `json:"notes,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	Lines        []Line              `json:"lines"`
}

type CreatePurchaseOrderInput struct {
	OrgID        uuid.UUID
	SupplierID   int
	WarehouseID  int
	Number       string // blank issues one from the PO series
	Currency     string
	Date         time.Time
	ExpectedDate *time.Time
	Notes        string
	Lines        []LineInput
}

// SupplierInvoice is an inbound invoice. Posting it receives every product
// line into the invoice's warehouse.
//
// Lifecycle: draft → posted, or draft → cancelled. A posted supplier invoice
// cannot be cancelled because stock receipts are not reversed.
type SupplierInvoice struct {
	ID                    int             `json:"id"`
	OrgID                 uuid.UUID       `json:"org_id"`
	SupplierID            int             `json:"supplier_id"`
	WarehouseID           int             `json:"warehouse_id"`
	PurchaseOrderID       *int            `json:"purchase_order_id,omitempty"`
	Number                string          `json:"number"`
	SupplierInvoiceNumber string          `json:"supplier_invoice_number,omitempty"`
	Status                DocumentStatus  `json:"status"`
	PaymentStatus         PaymentStatus   `json:"payment_status"`
	Currency              string          `json:"currency"`
	Date                  time.Time       `json:"date"`
	DueDate               *time.Time      `json:"due_date,omitempty"`
	TotalsBase            decimal.Decimal `json:"totals_base"`
	TotalsTax             decimal.Decimal `json:"totals_tax"`
	Total                 decimal.Decimal `json:"total"`
	AmountPaid            decimal.Decimal `json:"amount_paid"`
	Notes                 string          `json:"notes,omitempty"`
	PostedAt              *time.Time      `json:"posted_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	Lines                 []Line          `json:"lines"`
	Payments              []Payment       `json:"payments"`
}

type CreateSupplierInvoiceInput struct {
	OrgID                 uuid.UUID
	SupplierID            int
	WarehouseID           int
	PurchaseOrderID       *int
	Number                string // blank issues one from the SI series
	SupplierInvoiceNumber string
	Currency              string
	Date                  time.Time
	DueDate               *time.Time
	Notes                 string
	Lines                 []LineInput
}
