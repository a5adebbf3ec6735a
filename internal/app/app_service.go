package app

import (
	"context"
	"fmt"
	"strings"

	"erp-ledger/internal/core"

	"github.com/google/uuid"
)

type appService struct {
	stock         core.StockLedger
	invoices      core.InvoiceService
	quotes        core.QuoteService
	delivery      core.DeliveryNoteService
	orders        core.PurchaseOrderService
	purchases     core.SupplierInvoiceService
	invoiceSeries string
}

// NewAppService constructs an appService that satisfies ApplicationService.
// invoiceSeries is used when a post request names no series.
func NewAppService(
	stock core.StockLedger,
	invoices core.InvoiceService,
	quotes core.QuoteService,
	delivery core.DeliveryNoteService,
	orders core.PurchaseOrderService,
	purchases core.SupplierInvoiceService,
	invoiceSeries string,
) ApplicationService {
	if invoiceSeries == "" {
		invoiceSeries = core.DefaultInvoiceSeries
	}
	return &appService{
		stock:         stock,
		invoices:      invoices,
		quotes:        quotes,
		delivery:      delivery,
		orders:        orders,
		purchases:     purchases,
		invoiceSeries: invoiceSeries,
	}
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (s *appService) stockRequest(org uuid.UUID, actor string, req StockRequest) (core.StockRequest, error) {
	if err := check(req); err != nil {
		return core.StockRequest{}, err
	}
	return core.StockRequest{
		OrgID:       org,
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Qty:         req.Qty,
		Reason:      core.MoveReason(req.Reason),
		RefType:     req.RefType,
		RefID:       req.RefID,
		CreatedBy:   actor,
	}, nil
}

func (s *appService) ReceiveStock(ctx context.Context, org uuid.UUID, actor string, req StockRequest) (*core.InventoryItem, error) {
	in, err := s.stockRequest(org, actor, req)
	if err != nil {
		return nil, err
	}
	return s.stock.Receive(ctx, in)
}

func (s *appService) ReserveStock(ctx context.Context, org uuid.UUID, actor string, req StockRequest) (*core.InventoryItem, error) {
	in, err := s.stockRequest(org, actor, req)
	if err != nil {
		return nil, err
	}
	return s.stock.Reserve(ctx, in)
}

func (s *appService) ReleaseStock(ctx context.Context, org uuid.UUID, actor string, req StockRequest) (*core.InventoryItem, error) {
	in, err := s.stockRequest(org, actor, req)
	if err != nil {
		return nil, err
	}
	return s.stock.ReleaseReservation(ctx, in)
}

func (s *appService) ConfirmOutgoing(ctx context.Context, org uuid.UUID, actor string, req StockRequest) (*core.InventoryItem, error) {
	in, err := s.stockRequest(org, actor, req)
	if err != nil {
		return nil, err
	}
	return s.stock.ConfirmOutgoing(ctx, in)
}

func (s *appService) TransferStock(ctx context.Context, org uuid.UUID, actor string, req TransferRequest) error {
	if err := check(req); err != nil {
		return err
	}
	return s.stock.Transfer(ctx, core.TransferRequest{
		OrgID:         org,
		ProductID:     req.ProductID,
		FromWarehouse: req.FromWarehouseID,
		ToWarehouse:   req.ToWarehouseID,
		Qty:           req.Qty,
		RefType:       req.RefType,
		RefID:         req.RefID,
		CreatedBy:     actor,
	})
}

func (s *appService) GetStockLevels(ctx context.Context, org uuid.UUID) (*StockResult, error) {
	levels, err := s.stock.GetStockLevels(ctx, org)
	if err != nil {
		return nil, err
	}
	return &StockResult{Levels: nonNil(levels)}, nil
}

func (s *appService) ListStockMoves(ctx context.Context, org uuid.UUID, productID int) (*StockMoveListResult, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("product_id is required: %w", core.ErrValidation)
	}
	moves, err := s.stock.ListMoves(ctx, org, productID)
	if err != nil {
		return nil, err
	}
	return &StockMoveListResult{ProductID: productID, Moves: nonNil(moves)}, nil
}

// ── Invoices ──────────────────────────────────────────────────────────────────

func (s *appService) CreateInvoice(ctx context.Context, org uuid.UUID, req CreateInvoiceRequest) (*core.Invoice, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	issue, err := parseDate(req.IssueDate)
	if err != nil {
		return nil, err
	}
	due, err := parseOptionalDate(req.DueDate)
	if err != nil {
		return nil, err
	}
	return s.invoices.CreateInvoice(ctx, core.CreateInvoiceInput{
		OrgID:      org,
		CustomerID: req.CustomerID,
		Currency:   req.Currency,
		IssueDate:  issue,
		DueDate:    due,
		Notes:      req.Notes,
		Lines:      toLineInputs(req.Lines),
	})
}

func (s *appService) GetInvoice(ctx context.Context, org uuid.UUID, id int) (*core.Invoice, error) {
	return s.invoices.GetInvoice(ctx, org, id)
}

func (s *appService) ListInvoices(ctx context.Context, org uuid.UUID, status string) (*InvoiceListResult, error) {
	invoices, err := s.invoices.ListInvoices(ctx, org, status)
	if err != nil {
		return nil, err
	}
	return &InvoiceListResult{Invoices: nonNil(invoices)}, nil
}

func (s *appService) AddInvoiceLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.Invoice, error) {
	if err := checkAppend(req); err != nil {
		return nil, err
	}
	return s.invoices.AddLines(ctx, org, id, toLineInputs(req.Lines))
}

func (s *appService) ReplaceInvoiceLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.Invoice, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.invoices.ReplaceLines(ctx, org, id, toLineInputs(req.Lines))
}

func (s *appService) PostInvoice(ctx context.Context, org uuid.UUID, id int, req PostInvoiceRequest) (*core.Invoice, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	series := strings.TrimSpace(req.Series)
	if series == "" {
		series = s.invoiceSeries
	}
	return s.invoices.Post(ctx, org, id, series)
}

func (s *appService) CancelInvoice(ctx context.Context, org uuid.UUID, id int) (*core.Invoice, error) {
	return s.invoices.Cancel(ctx, org, id)
}

func (s *appService) RegisterPayment(ctx context.Context, org uuid.UUID, invoiceID int, req PaymentRequest) (*core.Payment, error) {
	in, err := s.paymentInput(req)
	if err != nil {
		return nil, err
	}
	return s.invoices.RegisterPayment(ctx, org, invoiceID, in)
}

func (s *appService) UpdatePayment(ctx context.Context, org uuid.UUID, paymentID int, req PaymentRequest) (*core.Payment, error) {
	in, err := s.paymentInput(req)
	if err != nil {
		return nil, err
	}
	return s.invoices.UpdatePayment(ctx, org, paymentID, in)
}

func (s *appService) DeletePayment(ctx context.Context, org uuid.UUID, paymentID int) error {
	return s.invoices.DeletePayment(ctx, org, paymentID)
}

func (s *appService) paymentInput(req PaymentRequest) (core.PaymentInput, error) {
	if err := check(req); err != nil {
		return core.PaymentInput{}, err
	}
	return toPaymentInput(req)
}

// ── Quotes ────────────────────────────────────────────────────────────────────

func (s *appService) CreateQuote(ctx context.Context, org uuid.UUID, req CreateQuoteRequest) (*core.Quote, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	issue, err := parseDate(req.IssueDate)
	if err != nil {
		return nil, err
	}
	validUntil, err := parseOptionalDate(req.ValidUntil)
	if err != nil {
		return nil, err
	}
	return s.quotes.CreateQuote(ctx, core.CreateQuoteInput{
		OrgID:      org,
		CustomerID: req.CustomerID,
		Number:     req.Number,
		Currency:   req.Currency,
		IssueDate:  issue,
		ValidUntil: validUntil,
		Notes:      req.Notes,
		Lines:      toLineInputs(req.Lines),
	})
}

func (s *appService) GetQuote(ctx context.Context, org uuid.UUID, id int) (*core.Quote, error) {
	return s.quotes.GetQuote(ctx, org, id)
}

func (s *appService) ListQuotes(ctx context.Context, org uuid.UUID, status string) (*QuoteListResult, error) {
	quotes, err := s.quotes.ListQuotes(ctx, org, status)
	if err != nil {
		return nil, err
	}
	return &QuoteListResult{Quotes: nonNil(quotes)}, nil
}

func (s *appService) AddQuoteLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.Quote, error) {
	if err := checkAppend(req); err != nil {
		return nil, err
	}
	return s.quotes.AddLines(ctx, org, id, toLineInputs(req.Lines))
}

func (s *appService) ReplaceQuoteLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.Quote, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.quotes.ReplaceLines(ctx, org, id, toLineInputs(req.Lines))
}

func (s *appService) TransitionQuote(ctx context.Context, org uuid.UUID, id int, req QuoteStatusRequest) (*core.Quote, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.quotes.Transition(ctx, org, id, core.QuoteStatus(req.Status))
}

func (s *appService) ConvertQuote(ctx context.Context, org uuid.UUID, id int) (*core.Invoice, error) {
	return s.quotes.ConvertToInvoice(ctx, org, id)
}

// ── Delivery notes ────────────────────────────────────────────────────────────

func (s *appService) CreateDeliveryNote(ctx context.Context, org uuid.UUID, req CreateDeliveryNoteRequest) (*core.DeliveryNote, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	return s.delivery.CreateDeliveryNote(ctx, core.CreateDeliveryNoteInput{
		OrgID:       org,
		CustomerID:  req.CustomerID,
		WarehouseID: req.WarehouseID,
		InvoiceID:   req.InvoiceID,
		Number:      req.Number,
		Date:        date,
		Notes:       req.Notes,
		Lines:       toLineInputs(req.Lines),
	})
}

func (s *appService) GetDeliveryNote(ctx context.Context, org uuid.UUID, id int) (*core.DeliveryNote, error) {
	return s.delivery.GetDeliveryNote(ctx, org, id)
}

func (s *appService) ListDeliveryNotes(ctx context.Context, org uuid.UUID) (*DeliveryNoteListResult, error) {
	notes, err := s.delivery.ListDeliveryNotes(ctx, org)
	if err != nil {
		return nil, err
	}
	return &DeliveryNoteListResult{DeliveryNotes: nonNil(notes)}, nil
}

func (s *appService) AddDeliveryNoteLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.DeliveryNote, error) {
	if err := checkAppend(req); err != nil {
		return nil, err
	}
	return s.delivery.AddLines(ctx, org, id, toLineInputs(req.Lines))
}

func (s *appService) ConfirmDeliveryNote(ctx context.Context, org uuid.UUID, id int, actor string) (*core.DeliveryNote, error) {
	return s.delivery.Confirm(ctx, org, id, actor)
}

// ── Purchase orders ───────────────────────────────────────────────────────────

func (s *appService) CreatePurchaseOrder(ctx context.Context, org uuid.UUID, req CreatePurchaseOrderRequest) (*core.PurchaseOrder, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	expected, err := parseOptionalDate(req.ExpectedDate)
	if err != nil {
		return nil, err
	}
	return s.orders.CreatePurchaseOrder(ctx, core.CreatePurchaseOrderInput{
		OrgID:        org,
		SupplierID:   req.SupplierID,
		WarehouseID:  req.WarehouseID,
		Number:       req.Number,
		Currency:     req.Currency,
		Date:         date,
		ExpectedDate: expected,
		Notes:        req.Notes,
		Lines:        toLineInputs(req.Lines),
	})
}

func (s *appService) GetPurchaseOrder(ctx context.Context, org uuid.UUID, id int) (*core.PurchaseOrder, error) {
	return s.orders.GetPurchaseOrder(ctx, org, id)
}

func (s *appService) ListPurchaseOrders(ctx context.Context, org uuid.UUID, status string) (*PurchaseOrderListResult, error) {
	orders, err := s.orders.ListPurchaseOrders(ctx, org, status)
	if err != nil {
		return nil, err
	}
	return &PurchaseOrderListResult{PurchaseOrders: nonNil(orders)}, nil
}

func (s *appService) AddPurchaseOrderLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.PurchaseOrder, error) {
	if err := checkAppend(req); err != nil {
		return nil, err
	}
	return s.orders.AddLines(ctx, org, id, toLineInputs(req.Lines))
}

func (s *appService) ReplacePurchaseOrderLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.PurchaseOrder, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.orders.ReplaceLines(ctx, org, id, toLineInputs(req.Lines))
}

func (s *appService) TransitionPurchaseOrder(ctx context.Context, org uuid.UUID, id int, next core.PurchaseOrderStatus) (*core.PurchaseOrder, error) {
	return s.orders.Transition(ctx, org, id, next)
}

// ── Supplier invoices ─────────────────────────────────────────────────────────

func (s *appService) CreateSupplierInvoice(ctx context.Context, org uuid.UUID, req CreateSupplierInvoiceRequest) (*core.SupplierInvoice, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	due, err := parseOptionalDate(req.DueDate)
	if err != nil {
		return nil, err
	}
	return s.purchases.CreateSupplierInvoice(ctx, core.CreateSupplierInvoiceInput{
		OrgID:                 org,
		SupplierID:            req.SupplierID,
		WarehouseID:           req.WarehouseID,
		PurchaseOrderID:       req.PurchaseOrderID,
		Number:                req.Number,
		SupplierInvoiceNumber: req.SupplierInvoiceNumber,
		Currency:              req.Currency,
		Date:                  date,
		DueDate:               due,
		Notes:                 req.Notes,
		Lines:                 toLineInputs(req.Lines),
	})
}

func (s *appService) GetSupplierInvoice(ctx context.Context, org uuid.UUID, id int) (*core.SupplierInvoice, error) {
	return s.purchases.GetSupplierInvoice(ctx, org, id)
}

func (s *appService) ListSupplierInvoices(ctx context.Context, org uuid.UUID, status string) (*SupplierInvoiceListResult, error) {
	invoices, err := s.purchases.ListSupplierInvoices(ctx, org, status)
	if err != nil {
		return nil, err
	}
	return &SupplierInvoiceListResult{SupplierInvoices: nonNil(invoices)}, nil
}

func (s *appService) AddSupplierInvoiceLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.SupplierInvoice, error) {
	if err := checkAppend(req); err != nil {
		return nil, err
	}
	return s.purchases.AddLines(ctx, org, id, toLineInputs(req.Lines))
}

func (s *appService) ReplaceSupplierInvoiceLines(ctx context.Context, org uuid.UUID, id int, req LinesRequest) (*core.SupplierInvoice, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	return s.purchases.ReplaceLines(ctx, org, id, toLineInputs(req.Lines))
}

func (s *appService) PostSupplierInvoice(ctx context.Context, org uuid.UUID, id int, actor string) (*core.SupplierInvoice, error) {
	return s.purchases.Post(ctx, org, id, actor)
}

func (s *appService) CancelSupplierInvoice(ctx context.Context, org uuid.UUID, id int) (*core.SupplierInvoice, error) {
	return s.purchases.Cancel(ctx, org, id)
}

func (s *appService) RegisterSupplierPayment(ctx context.Context, org uuid.UUID, invoiceID int, req PaymentRequest) (*core.Payment, error) {
	in, err := s.paymentInput(req)
	if err != nil {
		return nil, err
	}
	return s.purchases.RegisterPayment(ctx, org, invoiceID, in)
}

func (s *appService) UpdateSupplierPayment(ctx context.Context, org uuid.UUID, paymentID int, req PaymentRequest) (*core.Payment, error) {
	in, err := s.paymentInput(req)
	if err != nil {
		return nil, err
	}
	return s.purchases.UpdatePayment(ctx, org, paymentID, in)
}

func (s *appService) DeleteSupplierPayment(ctx context.Context, org uuid.UUID, paymentID int) error {
	return s.purchases.DeletePayment(ctx, org, paymentID)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// checkAppend is check plus a non-empty line list.
func checkAppend(req LinesRequest) error {
	if err := check(req); err != nil {
		return err
	}
	if len(req.Lines) == 0 {
		return fmt.Errorf("lines is required: %w", core.ErrValidation)
	}
	return nil
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
