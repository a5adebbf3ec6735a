package app

import (
	"github.com/shopspring/decimal"
)

// Dates in requests are calendar days formatted YYYY-MM-DD. Blank means
// "today" for document dates and "none" for optional ones.

// LineRequest is one document line. Omitted price and tax rate fall back to
// the product catalog.
type LineRequest struct {
	ProductID   *int             `json:"product_id" validate:"omitempty,gt=0"`
	Description string           `json:"description" validate:"required_without=ProductID,max=500"`
	Qty         decimal.Decimal  `json:"qty"`
	UOM         string           `json:"uom" validate:"max=20"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal  `json:"discount_pct"`
	TaxRate     *decimal.Decimal `json:"tax_rate"`
}

// LinesRequest carries lines to append to, or replace on, a draft document.
type LinesRequest struct {
	Lines []LineRequest `json:"lines" validate:"dive"`
}

type CreateInvoiceRequest struct {
	CustomerID int           `json:"customer_id" validate:"required,gt=0"`
	Currency   string        `json:"currency" validate:"omitempty,len=3,alpha"`
	IssueDate  string        `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate    string        `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes      string        `json:"notes" validate:"max=2000"`
	Lines      []LineRequest `json:"lines" validate:"dive"`
}

// PostInvoiceRequest selects the numbering series. Blank uses the configured default.
type PostInvoiceRequest struct {
	Series string `json:"series" validate:"omitempty,max=10,alphanum"`
}

type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Method string          `json:"method" validate:"omitempty,oneof=transfer card cash"`
	Notes  string          `json:"notes" validate:"max=500"`
}

// StockRequest is the body of receive, reserve, release and confirm-outgoing calls.
type StockRequest struct {
	ProductID   int             `json:"product_id" validate:"required,gt=0"`
	WarehouseID int             `json:"warehouse_id" validate:"required,gt=0"`
	Qty         decimal.Decimal `json:"qty"`
	Reason      string          `json:"reason" validate:"omitempty,oneof=purchase sale transfer adjustment return"`
	RefType     string          `json:"ref_type" validate:"max=50"`
	RefID       string          `json:"ref_id" validate:"max=100"`
}

type TransferRequest struct {
	ProductID       int             `json:"product_id" validate:"required,gt=0"`
	FromWarehouseID int             `json:"from_warehouse_id" validate:"required,gt=0"`
	ToWarehouseID   int             `json:"to_warehouse_id" validate:"required,gt=0,nefield=FromWarehouseID"`
	Qty             decimal.Decimal `json:"qty"`
	RefType         string          `json:"ref_type" validate:"max=50"`
	RefID           string          `json:"ref_id" validate:"max=100"`
}

type CreateQuoteRequest struct {
	CustomerID int           `json:"customer_id" validate:"required,gt=0"`
	Number     string        `json:"number" validate:"max=50"`
	Currency   string        `json:"currency" validate:"omitempty,len=3,alpha"`
	IssueDate  string        `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	ValidUntil string        `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
	Notes      string        `json:"notes" validate:"max=2000"`
	Lines      []LineRequest `json:"lines" validate:"dive"`
}

type QuoteStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=sent accepted rejected expired"`
}

type CreateDeliveryNoteRequest struct {
	CustomerID  int           `json:"customer_id" validate:"required,gt=0"`
	WarehouseID int           `json:"warehouse_id" validate:"required,gt=0"`
	InvoiceID   *int          `json:"invoice_id" validate:"omitempty,gt=0"`
	Number      string        `json:"number" validate:"max=50"`
	Date        string        `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Notes       string        `json:"notes" validate:"max=2000"`
	Lines       []LineRequest `json:"lines" validate:"dive"`
}

type CreatePurchaseOrderRequest struct {
	SupplierID   int           `json:"supplier_id" validate:"required,gt=0"`
	WarehouseID  int           `json:"warehouse_id" validate:"required,gt=0"`
	Number       string        `json:"number" validate:"max=50"`
	Currency     string        `json:"currency" validate:"omitempty,len=3,alpha"`
	Date         string        `json:"date" validate:"omitempty,datetime=2006-01-02"`
	ExpectedDate string        `json:"expected_date" validate:"omitempty,datetime=2006-01-02"`
	Notes        string        `json:"notes" validate:"max=2000"`
	Lines        []LineRequest `json:"lines" validate:"dive"`
}

type CreateSupplierInvoiceRequest struct {
	SupplierID            int           `json:"supplier_id" validate:"required,gt=0"`
	WarehouseID           int           `json:"warehouse_id" validate:"required,gt=0"`
	PurchaseOrderID       *int          `json:"purchase_order_id" validate:"omitempty,gt=0"`
	Number                string        `json:"number" validate:"max=50"`
	SupplierInvoiceNumber string        `json:"supplier_invoice_number" validate:"max=100"`
	Currency              string        `json:"currency" validate:"omitempty,len=3,alpha"`
	Date                  string        `json:"date" validate:"omitempty,datetime=2006-01-02"`
	DueDate               string        `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes                 string        `json:"notes" validate:"max=2000"`
	Lines                 []LineRequest `json:"lines" validate:"dive"`
}
