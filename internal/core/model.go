package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusPosted    DocumentStatus = "posted"
	StatusCancelled DocumentStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

type PaymentMethod string

const (
	MethodTransfer PaymentMethod = "transfer"
	MethodCard     PaymentMethod = "card"
	MethodCash     PaymentMethod = "cash"
)

func (m PaymentMethod) valid() bool {
	switch m {
	case MethodTransfer, MethodCard, MethodCash:
		return true
	}
	return false
}

const (
	defaultUOM      = "unidad"
	defaultCurrency = "EUR"
)

var defaultTaxRate = decimal.NewFromInt(21)

// Line is a priced document line as persisted. Delivery note lines leave the
// monetary fields zero.
type Line struct {
	ID          int             `json:"id"`
	Position    int             `json:"position"`
	ProductID   *int            `json:"product_id,omitempty"`
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	UOM         string          `json:"uom"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	LineBase    decimal.Decimal `json:"line_base"`
	LineTax     decimal.Decimal `json:"line_tax"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

func (l Line) priced() PricedLine {
	return PricedLine{Qty: l.Qty, UnitPrice: l.UnitPrice, DiscountPct: l.DiscountPct, TaxRate: l.TaxRate}
}

// LineInput is the caller-supplied shape of a new line. Nil fields fall back
// to the referenced product's catalog values.
type LineInput struct {
	ProductID   *int
	Description string
	Qty         decimal.Decimal
	UOM         string
	UnitPrice   *decimal.Decimal
	DiscountPct decimal.Decimal
	TaxRate     *decimal.Decimal
}

// Payment is money received against an Invoice or paid against a SupplierInvoice.
type Payment struct {
	ID         int             `json:"id"`
	DocumentID int             `json:"document_id"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
	Method     PaymentMethod   `json:"method"`
	Notes      string          `json:"notes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// PaymentInput carries the mutable fields of a payment.
type PaymentInput struct {
	Amount decimal.Decimal
	Date   time.Time
	Method PaymentMethod
	Notes  string
}

func (p *PaymentInput) normalize() error {
	if !p.Amount.IsPositive() {
		return invalid("payment amount must be positive, got %s", p.Amount)
	}
	if !fitsScale(p.Amount, moneyScale) {
		return invalid("payment amount allows at most %d decimals, got %s", moneyScale, p.Amount)
	}
	if p.Method == "" {
		p.Method = MethodTransfer
	}
	if !p.Method.valid() {
		return invalid("unknown payment method %q", p.Method)
	}
	if p.Date.IsZero() {
		p.Date = time.Now()
	}
	return nil
}

func totalsOf(lines []Line) Totals {
	priced := make([]PricedLine, len(lines))
	for i, l := range lines {
		priced[i] = l.priced()
	}
	return ComputeTotals(priced)
}
