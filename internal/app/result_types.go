package app

import "erp-ledger/internal/core"

// InvoiceListResult is returned by ListInvoices.
type InvoiceListResult struct {
	Invoices []core.Invoice `json:"invoices"`
}

// QuoteListResult is returned by ListQuotes.
type QuoteListResult struct {
	Quotes []core.Quote `json:"quotes"`
}

// DeliveryNoteListResult is returned by ListDeliveryNotes.
type DeliveryNoteListResult struct {
	DeliveryNotes []core.DeliveryNote `json:"delivery_notes"`
}

// PurchaseOrderListResult is returned by ListPurchaseOrders.
type PurchaseOrderListResult struct {
	PurchaseOrders []core.PurchaseOrder `json:"purchase_orders"`
}

// SupplierInvoiceListResult is returned by ListSupplierInvoices.
type SupplierInvoiceListResult struct {
	SupplierInvoices []core.SupplierInvoice `json:"supplier_invoices"`
}

// StockResult is returned by GetStockLevels.
type StockResult struct {
	Levels []core.StockLevel `json:"levels"`
}

// StockMoveListResult is returned by ListStockMoves.
type StockMoveListResult struct {
	ProductID int              `json:"product_id"`
	Moves     []core.StockMove `json:"moves"`
}
