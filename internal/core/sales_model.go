package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultInvoiceSeries is used when an invoice is posted without an explicit series.
const DefaultInvoiceSeries = "A"

// Invoice is a customer invoice. Series, Year and Number are assigned at posting.
//
// Lifecycle: draft → posted → cancelled, with PaymentStatus derived from payments
// while posted.
type Invoice struct {
	ID            int             `json:"id"`
	OrgID         uuid.UUID       `json:"org_id"`
	CustomerID    int             `json:"customer_id"`
	Series        string          `json:"series"`
	Year          *int            `json:"year,omitempty"`
	Number        *int            `json:"number,omitempty"`
	Status        DocumentStatus  `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Currency      string          `json:"currency"`
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	TotalsBase    decimal.Decimal `json:"totals_base"`
	TotalsTax     decimal.Decimal `json:"totals_tax"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Notes         string          `json:"notes,omitempty"`
	// Reserved for tax-authority submission; never computed by the ledger.
	VerifactuStatus string     `json:"verifactu_status"`
	VerifactuHash   string     `json:"verifactu_hash,omitempty"`
	VerifactuQRText string     `json:"verifactu_qr_text,omitempty"`
	PostedAt        *time.Time `json:"posted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	Lines           []Line     `json:"lines"`
	Payments        []Payment  `json:"payments"`
}

// DisplayNumber is the human-readable posted number, or "" for drafts.
func (i Invoice) DisplayNumber() string {
	if i.Year == nil || i.Number == nil {
		return ""
	}
	return FormatNumber(i.Series, *i.Year, *i.Number)
}

// CreateInvoiceInput holds the header and initial lines of a draft invoice.
type CreateInvoiceInput struct {
	OrgID      uuid.UUID
	CustomerID int
	Currency   string
	IssueDate  time.Time
	DueDate    *time.Time
	Notes      string
	Lines      []LineInput
}

type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRejected QuoteStatus = "rejected"
	QuoteExpired  QuoteStatus = "expired"
)

var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteDraft: {QuoteSent},
	QuoteSent:  {QuoteAccepted, QuoteRejected, QuoteExpired},
}

// CanTransition reports whether a quote may move from s to next.
func (s QuoteStatus) CanTransition(next QuoteStatus) bool {
	for _, allowed := range quoteTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// editable reports whether lines may still change.
func (s QuoteStatus) editable() bool {
	return s == QuoteDraft || s == QuoteSent
}

type Quote struct {
	ID         int             `json:"id"`
	OrgID      uuid.UUID       `json:"org_id"`
	CustomerID int             `json:"customer_id"`
	Number     string          `json:"number"`
	Status     QuoteStatus     `json:"status"`
	Currency   string          `json:"currency"`
	IssueDate  time.Time       `json:"issue_date"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	TotalsBase decimal.Decimal `json:"totals_base"`
	TotalsTax  decimal.Decimal `json:"totals_tax"`
	Total      decimal.Decimal `json:"total"`
	Notes      string          `json:"notes,omitempty"`
	InvoiceID  *int            `json:"invoice_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	Lines      []Line          `json:"lines"`
}

type CreateQuoteInput struct {
	OrgID      uuid.UUID
	CustomerID int
	Number     string // blank issues one from the Q series
	Currency   string
	IssueDate  time.Time
	ValidUntil *time.Time
	Notes      string
	Lines      []LineInput
}

type DeliveryNoteStatus string

const (
	DeliveryDraft DeliveryNoteStatus = "draft"
	DeliveryDone  DeliveryNoteStatus = "done"
)

// DeliveryNote records goods leaving a warehouse. Confirming it depletes stock.
type DeliveryNote struct {
	ID          int                `json:"id"`
	OrgID       uuid.UUID          `json:"org_id"`
	CustomerID  int                `json:"customer_id"`
	WarehouseID int                `json:"warehouse_id"`
	InvoiceID   *int               `json:"invoice_id,omitempty"`
	Number      string             `json:"number"`
	Status      DeliveryNoteStatus `json:"status"`
	Date        time.Time          `json:"date"`
	Notes       string             `json:"notes,omitempty"`
	DoneAt      *time.Time         `json:"done_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	Lines       []Line             `json:"lines"`
}

type CreateDeliveryNoteInput struct {
	OrgID       uuid.UUID
	CustomerID  int
	WarehouseID int
	InvoiceID   *int
	Number      string // blank issues one from the DN series
	Date        time.Time
	Notes       string
	Lines       []LineInput
}
