package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event names emitted by the ledger.
const (
	EventInvoicePaid = "invoice.paid"
)

// Event is an outbound notification. Payload must be JSON-serializable.
type Event struct {
	Name       string    `json:"event"`
	OrgID      uuid.UUID `json:"org_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// InvoicePaidPayload is the payload of an invoice.paid event.
type InvoicePaidPayload struct {
	InvoiceID  int             `json:"invoice_id" jsonschema_description:"Ledger id of the invoice"`
	Number     string          `json:"number" jsonschema_description:"Posted number formatted as SERIES-YEAR-NNNN"`
	CustomerID int             `json:"customer_id" jsonschema_description:"Contact id of the customer"`
	Currency   string          `json:"currency" jsonschema_description:"ISO 4217 currency code"`
	Total      decimal.Decimal `json:"total" jsonschema:"type=string" jsonschema_description:"Invoice total as a decimal string"`
	AmountPaid decimal.Decimal `json:"amount_paid" jsonschema:"type=string" jsonschema_description:"Sum of all payments as a decimal string"`
}

// Notifier delivers ledger events to external subscribers. Delivery is best
// effort: callers log a returned error and carry on.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }
