package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// paymentBook names a payable document table and its payments table.
type paymentBook struct {
	label    string
	doc      string
	payments string
	parent   string
}

var (
	invoicePaymentBook         = paymentBook{label: "invoice", doc: "invoices", payments: "payments", parent: "invoice_id"}
	supplierInvoicePaymentBook = paymentBook{label: "supplier invoice", doc: "supplier_invoices", payments: "supplier_payments", parent: "supplier_invoice_id"}
)

// paymentChange reports the payment status before and after a payment write.
type paymentChange struct {
	DocumentID int
	Before     PaymentStatus
	After      PaymentStatus
	Paid       decimal.Decimal
}

// NewlyPaid is true when the write moved the document into paid.
func (c paymentChange) NewlyPaid() bool {
	return c.After == PaymentPaid && c.Before != PaymentPaid
}

type payableHeader struct {
	status        DocumentStatus
	paymentStatus PaymentStatus
	total         decimal.Decimal
}

// lockPayable locks the document row so concurrent payments against it serialize.
func (b paymentBook) lockPayable(ctx context.Context, tx pgx.Tx, org uuid.UUID, docID int) (*payableHeader, error) {
	var h payableHeader
	err := tx.QueryRow(ctx,
		fmt.Sprintf("SELECT status, payment_status, total FROM %s WHERE id = $1 AND org_id = $2 FOR UPDATE", b.doc),
		docID, org,
	).Scan(&h.status, &h.paymentStatus, &h.total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("%s %d", b.label, docID)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", b.label, err)
	}
	return &h, nil
}

// sumPaid totals the document's payments, skipping excludeID (0 skips nothing).
func (b paymentBook) sumPaid(ctx context.Context, tx pgx.Tx, docID, excludeID int) (decimal.Decimal, error) {
	var paid decimal.Decimal
	err := tx.QueryRow(ctx,
		fmt.Sprintf("SELECT COALESCE(SUM(amount), 0) FROM %s WHERE %s = $1 AND id <> $2", b.payments, b.parent),
		docID, excludeID,
	).Scan(&paid)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}
	return paid, nil
}

// checkAmount rejects a payment that would settle more than the total. A
// document that is already fully covered accepts no further payments.
func (b paymentBook) checkAmount(docID int, total, paidOthers, amount decimal.Decimal) error {
	if total.IsPositive() && paidOthers.GreaterThanOrEqual(total) {
		return fmt.Errorf("%s %d is already fully paid: %w", b.label, docID, ErrOverpayment)
	}
	if exceedsTotal(total, paidOthers.Add(amount)) {
		return fmt.Errorf("%s %d: paying %s on top of %s would exceed total %s: %w",
			b.label, docID, amount, paidOthers, total, ErrOverpayment)
	}
	return nil
}

// refreshStatus re-derives payment_status from stored payments.
func (b paymentBook) refreshStatus(ctx context.Context, tx pgx.Tx, docID int, total decimal.Decimal) (PaymentStatus, decimal.Decimal, error) {
	paid, err := b.sumPaid(ctx, tx, docID, 0)
	if err != nil {
		return "", decimal.Zero, err
	}
	status := DerivePaymentStatus(total, paid)
	if _, err := tx.Exec(ctx,
		fmt.Sprintf("UPDATE %s SET payment_status = $1 WHERE id = $2", b.doc),
		string(status), docID,
	); err != nil {
		return "", decimal.Zero, fmt.Errorf("failed to update payment status: %w", err)
	}
	return status, paid, nil
}

func (b paymentBook) register(ctx context.Context, tx pgx.Tx, org uuid.UUID, docID int, in PaymentInput) (*Payment, paymentChange, error) {
	var change paymentChange
	if err := in.normalize(); err != nil {
		return nil, change, err
	}
	h, err := b.lockPayable(ctx, tx, org, docID)
	if err != nil {
		return nil, change, err
	}
	if h.status != StatusPosted {
		return nil, change, invalid("payments require a posted %s, %s %d is %s", b.label, b.label, docID, h.status)
	}
	paid, err := b.sumPaid(ctx, tx, docID, 0)
	if err != nil {
		return nil, change, err
	}
	if err := b.checkAmount(docID, h.total, paid, in.Amount); err != nil {
		return nil, change, err
	}

	p := Payment{DocumentID: docID, Amount: in.Amount, Date: in.Date, Method: in.Method, Notes: in.Notes}
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (org_id, %s, amount, date, method, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, b.payments, b.parent), org, docID, in.Amount, in.Date, string(in.Method), in.Notes).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, change, fmt.Errorf("failed to insert payment: %w", err)
	}

	after, paidNow, err := b.refreshStatus(ctx, tx, docID, h.total)
	if err != nil {
		return nil, change, err
	}
	return &p, paymentChange{DocumentID: docID, Before: h.paymentStatus, After: after, Paid: paidNow}, nil
}

// paymentOwner resolves the document a payment belongs to within org.
func (b paymentBook) paymentOwner(ctx context.Context, tx pgx.Tx, org uuid.UUID, paymentID int) (int, error) {
	var docID int
	err := tx.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND org_id = $2", b.parent, b.payments),
		paymentID, org,
	).Scan(&docID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, notFound("payment %d", paymentID)
		}
		return 0, fmt.Errorf("failed to resolve payment: %w", err)
	}
	return docID, nil
}

func (b paymentBook) update(ctx context.Context, tx pgx.Tx, org uuid.UUID, paymentID int, in PaymentInput) (*Payment, paymentChange, error) {
	var change paymentChange
	if err := in.normalize(); err != nil {
		return nil, change, err
	}
	docID, err := b.paymentOwner(ctx, tx, org, paymentID)
	if err != nil {
		return nil, change, err
	}
	h, err := b.lockPayable(ctx, tx, org, docID)
	if err != nil {
		return nil, change, err
	}
	if h.status != StatusPosted {
		return nil, change, invalid("payments require a posted %s, %s %d is %s", b.label, b.label, docID, h.status)
	}
	others, err := b.sumPaid(ctx, tx, docID, paymentID)
	if err != nil {
		return nil, change, err
	}
	if err := b.checkAmount(docID, h.total, others, in.Amount); err != nil {
		return nil, change, err
	}

	p := Payment{ID: paymentID, DocumentID: docID, Amount: in.Amount, Date: in.Date, Method: in.Method, Notes: in.Notes}
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE %s SET amount = $1, date = $2, method = $3, notes = $4
		WHERE id = $5
		RETURNING created_at
	`, b.payments), in.Amount, in.Date, string(in.Method), in.Notes, paymentID).Scan(&p.CreatedAt)
	if err != nil {
		return nil, change, fmt.Errorf("failed to update payment: %w", err)
	}

	after, paidNow, err := b.refreshStatus(ctx, tx, docID, h.total)
	if err != nil {
		return nil, change, err
	}
	return &p, paymentChange{DocumentID: docID, Before: h.paymentStatus, After: after, Paid: paidNow}, nil
}

func (b paymentBook) remove(ctx context.Context, tx pgx.Tx, org uuid.UUID, paymentID int) (paymentChange, error) {
	var change paymentChange
	docID, err := b.paymentOwner(ctx, tx, org, paymentID)
	if err != nil {
		return change, err
	}
	h, err := b.lockPayable(ctx, tx, org, docID)
	if err != nil {
		return change, err
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", b.payments), paymentID); err != nil {
		return change, fmt.Errorf("failed to delete payment: %w", err)
	}
	after, paidNow, err := b.refreshStatus(ctx, tx, docID, h.total)
	if err != nil {
		return change, err
	}
	return paymentChange{DocumentID: docID, Before: h.paymentStatus, After: after, Paid: paidNow}, nil
}

func (b paymentBook) list(ctx context.Context, q pgxRowQuerier, docID int) ([]Payment, error) {
	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT id, %s, amount, date, method, notes, created_at
		FROM %s
		WHERE %s = $1
		ORDER BY date, id
	`, b.parent, b.payments, b.parent), docID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Amount, &p.Date, &p.Method, &p.Notes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
