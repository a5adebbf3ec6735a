package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SupplierInvoiceService drives inbound invoices. Posting is also the stock
// receipt event; there is no separate goods-received step.
type SupplierInvoiceService interface {
	CreateSupplierInvoice(ctx context.Context, in CreateSupplierInvoiceInput) (*SupplierInvoice, error)
	GetSupplierInvoice(ctx context.Context, org uuid.UUID, id int) (*SupplierInvoice, error)
	ListSupplierInvoices(ctx context.Context, org uuid.UUID, status string) ([]SupplierInvoice, error)
	AddLines(ctx context.Context, org uuid.UUID, id int, lines []LineInput) (*SupplierInvoice, error)
	ReplaceLines(ctx context.Context, org uuid.UUID, id int, lines []LineInput) (*SupplierInvoice, error)
	Post(ctx context.Context, org uuid.UUID, id int, createdBy string) (*SupplierInvoice, error)
	// Cancel voids a draft. Posted supplier invoices are rejected.
	Cancel(ctx context.Context, org uuid.UUID, id int) (*SupplierInvoice, error)

	RegisterPayment(ctx context.Context, org uuid.UUID, invoiceID int, in PaymentInput) (*Payment, error)
	UpdatePayment(ctx context.Context, org uuid.UUID, paymentID int, in PaymentInput) (*Payment, error)
	DeletePayment(ctx context.Context, org uuid.UUID, paymentID int) error
}

type supplierInvoiceService struct {
	pool  *pgxpool.Pool
	seq   SequenceService
	stock StockLedger
}

func NewSupplierInvoiceService(pool *pgxpool.Pool, seq SequenceService, stock StockLedger) SupplierInvoiceService {
	return &supplierInvoiceService{pool: pool, seq: seq, stock: stock}
}

// ── Draft editing ─────────────────────────────────────────────────────────────

func (s *supplierInvoiceService) CreateSupplierInvoice(ctx context.Context, in CreateSupplierInvoiceInput) (*SupplierInvoice, error) {
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := requireContact(ctx, tx, in.OrgID, in.SupplierID, ContactSupplier); err != nil {
		return nil, err
	}
	if err := requireWarehouse(ctx, tx, in.OrgID, in.WarehouseID); err != nil {
		return nil, err
	}
	if in.PurchaseOrderID != nil {
		var supplierID int
		err := tx.QueryRow(ctx,
			"SELECT supplier_id FROM purchase_orders WHERE id = $1 AND org_id = $2", *in.PurchaseOrderID, in.OrgID,
		).Scan(&supplierID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, notFound("purchase order %d", *in.PurchaseOrderID)
			}
			return nil, fmt.Errorf("failed to resolve purchase order: %w", err)
		}
		if supplierID != in.SupplierID {
			return nil, invalid("purchase order %d belongs to a different supplier", *in.PurchaseOrderID)
		}
	}
	lines, err := resolveLines(ctx, tx, in.OrgID, in.Lines, costPrice)
	if err != nil {
		return nil, err
	}
	number, err := documentNumber(ctx, tx, s.seq, in.OrgID, in.Number, SeriesSupplierInvoice)
	if err != nil {
		return nil, err
	}

	var id int
	err = tx.QueryRow(ctx, `
		INSERT INTO supplier_invoices (org_id, supplier_id, warehouse_id, purchase_order_id, number,
		                               supplier_invoice_number, status, payment_status, currency, date, due_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, in.OrgID, in.SupplierID, in.WarehouseID, in.PurchaseOrderID, number, in.SupplierInvoiceNumber,
		string(StatusDraft), string(PaymentUnpaid), currency, date, in.DueDate, in.Notes).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create supplier invoice: %w", err)
	}
	if err := insertLines(ctx, tx, supplierInvoiceLineTable, id, lines); err != nil {
		return nil, err
	}
	if _, _, err := recomputeTotals(ctx, tx, "supplier_invoices", supplierInvoiceLineTable, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit supplier invoice: %w", err)
	}
	return s.GetSupplierInvoice(ctx, in.OrgID, id)
}

func (s *supplierInvoiceService) AddLines(ctx context.Context, org uuid.UUID, id int, inputs []LineInput) (*SupplierInvoice, error) {
	return s.editLines(ctx, org, id, inputs, false)
}

func (s *supplierInvoiceService) ReplaceLines(ctx context.Context, org uuid.UUID, id int, inputs []LineInput) (*SupplierInvoice, error) {
	return s.editLines(ctx, org, id, inputs, true)
}

func (s *supplierInvoiceService) editLines(ctx context.Context, org uuid.UUID, id int, inputs []LineInput, replace bool) (*SupplierInvoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	si, err := lockSupplierInvoice(ctx, tx, org, id)
	if err != nil {
		return nil, err
	}
	if si.Status != StatusDraft {
		return nil, invalid("supplier invoice %d is %s; lines can only change while draft", id, si.Status)
	}
	lines, err := resolveLines(ctx, tx, org, inputs, costPrice)
	if err != nil {
		return nil, err
	}
	if replace {
		if err := deleteLines(ctx, tx, supplierInvoiceLineTable, id); err != nil {
			return nil, err
		}
	}
	if err := insertLines(ctx, tx, supplierInvoiceLineTable, id, lines); err != nil {
		return nil, err
	}
	if _, _, err := recomputeTotals(ctx, tx, "supplier_invoices", supplierInvoiceLineTable, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit supplier invoice lines: %w", err)
	}
	return s.GetSupplierInvoice(ctx, org, id)
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

func (s *supplierInvoiceService) Post(ctx context.Context, org uuid.UUID, id int, createdBy string) (*SupplierInvoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	si, err := lockSupplierInvoice(ctx, tx, org, id)
	if err != nil {
		return nil, err
	}
	switch si.Status {
	case StatusDraft:
	case StatusPosted:
		return nil, invalid("supplier invoice %d is already posted", id)
	default:
		return nil, invalid("supplier invoice %d is %s; only drafts can be posted", id, si.Status)
	}

	_, lineCount, err := recomputeTotals(ctx, tx, "supplier_invoices", supplierInvoiceLineTable, id)
	if err != nil {
		return nil, err
	}
	if lineCount == 0 {
		return nil, invalid("supplier invoice %d has no lines", id)
	}

	lines, err := fetchLines(ctx, tx, supplierInvoiceLineTable, id)
	if err != nil {
		return nil, err
	}
	moving, err := stockedLines(ctx, tx, org, lines)
	if err != nil {
		return nil, err
	}
	if err := s.stock.LockItemsTx(ctx, tx, org, si.WarehouseID, productIDs(moving)); err != nil {
		return nil, err
	}
	for _, l := range moving {
		if _, err := s.stock.ReceiveTx(ctx, tx, StockRequest{
			OrgID:       org,
			ProductID:   *l.ProductID,
			WarehouseID: si.WarehouseID,
			Qty:         l.Qty,
			Reason:      ReasonPurchase,
			RefType:     "supplier_invoice",
			RefID:       strconv.Itoa(id),
			CreatedBy:   createdBy,
		}); err != nil {
			return nil, fmt.Errorf("supplier invoice %d line %d: %w", id, l.Position, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE supplier_invoices SET status = $1, payment_status = $2, posted_at = NOW() WHERE id = $3
	`, string(StatusPosted), string(PaymentUnpaid), id); err != nil {
		return nil, fmt.Errorf("failed to post supplier invoice: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit supplier invoice posting: %w", err)
	}
	return s.GetSupplierInvoice(ctx, org, id)
}

func (s *supplierInvoiceService) Cancel(ctx context.Context, org uuid.UUID, id int) (*SupplierInvoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	si, err := lockSupplierInvoice(ctx, tx, org, id)
	if err != nil {
		return nil, err
	}
	switch si.Status {
	case StatusDraft:
	case StatusPosted:
		return nil, invalid("supplier invoice %d is posted; its stock receipt cannot be reversed", id)
	default:
		return nil, invalid("supplier invoice %d is already %s", id, si.Status)
	}

	if _, err := tx.Exec(ctx, "UPDATE supplier_invoices SET status = $1 WHERE id = $2", string(StatusCancelled), id); err != nil {
		return nil, fmt.Errorf("failed to cancel supplier invoice: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit supplier invoice cancellation: %w", err)
	}
	return s.GetSupplierInvoice(ctx, org, id)
}

// ── Payments ──────────────────────────────────────────────────────────────────

func (s *supplierInvoiceService) RegisterPayment(ctx context.Context, org uuid.UUID, invoiceID int, in PaymentInput) (*Payment, error) {
	var p *Payment
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		p, _, err = supplierInvoicePaymentBook.register(ctx, tx, org, invoiceID, in)
		return err
	})
	return p, err
}

func (s *supplierInvoiceService) UpdatePayment(ctx context.Context, org uuid.UUID, paymentID int, in PaymentInput) (*Payment, error) {
	var p *Payment
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		p, _, err = supplierInvoicePaymentBook.update(ctx, tx, org, paymentID, in)
		return err
	})
	return p, err
}

func (s *supplierInvoiceService) DeletePayment(ctx context.Context, org uuid.UUID, paymentID int) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := supplierInvoicePaymentBook.remove(ctx, tx, org, paymentID)
		return err
	})
}

func (s *supplierInvoiceService) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit supplier payment: %w", err)
	}
	return nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

const supplierInvoiceColumns = `
	id, org_id, supplier_id, warehouse_id, purchase_order_id, number, supplier_invoice_number,
	status, payment_status, currency, date, due_date, totals_base, totals_tax, total, notes,
	posted_at, created_at`

func scanSupplierInvoice(row pgx.Row, si *SupplierInvoice) error {
	return row.Scan(&si.ID, &si.OrgID, &si.SupplierID, &si.WarehouseID, &si.PurchaseOrderID, &si.Number,
		&si.SupplierInvoiceNumber, &si.Status, &si.PaymentStatus, &si.Currency, &si.Date, &si.DueDate,
		&si.TotalsBase, &si.TotalsTax, &si.Total, &si.Notes, &si.PostedAt, &si.CreatedAt)
}

func (s *supplierInvoiceService) GetSupplierInvoice(ctx context.Context, org uuid.UUID, id int) (*SupplierInvoice, error) {
	var si SupplierInvoice
	err := scanSupplierInvoice(s.pool.QueryRow(ctx,
		"SELECT "+supplierInvoiceColumns+" FROM supplier_invoices WHERE id = $1 AND org_id = $2", id, org), &si)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("supplier invoice %d", id)
		}
		return nil, fmt.Errorf("failed to fetch supplier invoice: %w", err)
	}
	if si.Lines, err = fetchLines(ctx, s.pool, supplierInvoiceLineTable, id); err != nil {
		return nil, err
	}
	if si.Payments, err = supplierInvoicePaymentBook.list(ctx, s.pool, id); err != nil {
		return nil, err
	}
	for _, p := range si.Payments {
		si.AmountPaid = si.AmountPaid.Add(p.Amount)
	}
	return &si, nil
}

func (s *supplierInvoiceService) ListSupplierInvoices(ctx context.Context, org uuid.UUID, status string) ([]SupplierInvoice, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+supplierInvoiceColumns+`
		FROM supplier_invoices
		WHERE org_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
	`, org, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query supplier invoices: %w", err)
	}
	defer rows.Close()

	var out []SupplierInvoice
	for rows.Next() {
		var si SupplierInvoice
		if err := scanSupplierInvoice(rows, &si); err != nil {
			return nil, fmt.Errorf("failed to scan supplier invoice: %w", err)
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

func lockSupplierInvoice(ctx context.Context, tx pgx.Tx, org uuid.UUID, id int) (*SupplierInvoice, error) {
	var si SupplierInvoice
	err := scanSupplierInvoice(tx.QueryRow(ctx,
		"SELECT "+supplierInvoiceColumns+" FROM supplier_invoices WHERE id = $1 AND org_id = $2 FOR UPDATE", id, org), &si)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("supplier invoice %d", id)
		}
		return nil, fmt.Errorf("failed to lock supplier invoice: %w", err)
	}
	return &si, nil
}
