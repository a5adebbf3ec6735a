package app

import (
	"context"

	"erp-ledger/internal/core"

	"github.com/google/uuid"
)

// ApplicationService is the single interface the transport adapters call. It
// validates requests, maps them onto core inputs and returns core entities.
// Implementations contain no transport or display logic.
//
// org is the tenant resolved by the adapter. actor identifies the caller in
// stock move audit records.
type ApplicationService interface {
	// Stock ledger.
	ReceiveStock(ctx context.Context, org uuid.UUID, actor string, req StockRequest) (*core.InventoryItem, error)
	ReserveStock(ctx context.Context, org uuid.UUID, actor string, req StockRequest) (*core.InventoryItem, error)
	ReleaseStock(ctx context.Context, org uuid.UUID, actor string, req StockRequest) (*core.InventoryItem, error)
	ConfirmOutgoing(ctx context.Context, org uuid.UUID, actor string, req StockRequest) (*core.InventoryItem, error)
	TransferStock(ctx context.Context, org uuid.UUID, actor string, req TransferRequest) error
	GetStockLevels(ctx context.Context, org uuid.UUID) (*StockResult, error)
	ListStockMoves(ctx context.Context, org uuid.UUID, productID int) (*StockMoveListResult, error)

	// Customer invoices and their payments.
	CreateInvoice(ctx context.Context, org uuid.UUID, req CreateInvoiceRequest) (*core.Invoice, error)
	GetInvoice(ctx context.Context, org uuid.UUID, id int) (*core.Invoice, error)
	ListInvoices(ctx context.Context, org uuid.UUID, status string) (*InvoiceListResult, error)
	AddInvoiceLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.Invoice, error)
	ReplaceInvoiceLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.Invoice, error)
	PostInvoice(ctx context.Context, org uuid.UUID, id int, req PostInvoiceRequest) (*core.Invoice, error)
	CancelInvoice(ctx context.Context, org uuid.UUID, id int) (*core.Invoice, error)
	RegisterPayment(ctx context.Context, org uuid.UUID, invoiceID int, req PaymentRequest) (*core.Payment, error)
	UpdatePayment(ctx context.Context, org uuid.UUID, paymentID int, req PaymentRequest) (*core.Payment, error)
	DeletePayment(ctx context.Context, org uuid.UUID, paymentID int) error

	// Quotes.
	CreateQuote(ctx context.Context, org uuid.UUID, req CreateQuoteRequest) (*core.Quote, error)
	GetQuote(ctx context.Context, org uuid.UUID, id int) (*core.Quote, error)
	ListQuotes(ctx context.Context, org uuid.UUID, status string) (*QuoteListResult, error)
	AddQuoteLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.Quote, error)
	ReplaceQuoteLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.Quote, error)
	TransitionQuote(ctx context.Context, org uuid.UUID, id int, req QuoteStatusRequest) (*core.Quote, error)
	ConvertQuote(ctx context.Context, org uuid.UUID, id int) (*core.Invoice, error)

	// Delivery notes.
	CreateDeliveryNote(ctx context.Context, org uuid.UUID, req CreateDeliveryNoteRequest) (*core.DeliveryNote, error)
	GetDeliveryNote(ctx context.Context, org uuid.UUID, id int) (*core.DeliveryNote, error)
	ListDeliveryNotes(ctx context.Context, org uuid.UUID) (*DeliveryNoteListResult, error)
	AddDeliveryNoteLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.DeliveryNote, error)
	ConfirmDeliveryNote(ctx context.Context, org uuid.UUID, id int, actor string) (*core.DeliveryNote, error)

	// Purchase orders.
	CreatePurchaseOrder(ctx context.Context, org uuid.UUID, req CreatePurchaseOrderRequest) (*core.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, org uuid.UUID, id int) (*core.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, org uuid.UUID, status string) (*PurchaseOrderListResult, error)
	AddPurchaseOrderLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.PurchaseOrder, error)
	ReplacePurchaseOrderLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.PurchaseOrder, error)
	TransitionPurchaseOrder(ctx context.Context, org uuid.UUID, id int, next core.PurchaseOrderStatus) (*core.PurchaseOrder, error)

	// Supplier invoices and supplier payments.
	CreateSupplierInvoice(ctx context.Context, org uuid.UUID, req CreateSupplierInvoiceRequest) (*core.SupplierInvoice, error)
	GetSupplierInvoice(ctx context.Context, org uuid.UUID, id int) (*core.SupplierInvoice, error)
	ListSupplierInvoices(ctx context.Context, org uuid.UUID, status string) (*SupplierInvoiceListResult, error)
	AddSupplierInvoiceLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.SupplierInvoice, error)
	ReplaceSupplierInvoiceLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.SupplierInvoice, error)
	PostSupplierInvoice(ctx context.Context, org uuid.UUID, id int, actor string) (*core.SupplierInvoice, error)
	CancelSupplierInvoice(ctx context.Context, org uuid.UUID, id int) (*core.SupplierInvoice, error)
	RegisterSupplierPayment(ctx context.Context, org uuid.UUID, invoiceID int, req PaymentRequest) (*core.Payment, error)
	UpdateSupplierPayment(ctx context.Context, org uuid.UUID, paymentID int, req PaymentRequest) (*core.Payment, error)
	DeleteSupplierPayment(ctx context.Context, org uuid.UUID, paymentID int) error
}
