package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// InvoiceService drives the customer invoice lifecycle and its payments.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*Invoice, error)
	GetInvoice(ctx context.Context, org uuid.UUID, id int) (*Invoice, error)
	ListInvoices(ctx context.Context, org uuid.UUID, status string) ([]Invoice, error)

	// AddLines appends lines to a draft invoice and recomputes its totals.
	AddLines(ctx context.Context, org uuid.UUID, id int, lines []LineInput) (*Invoice, error)
	// ReplaceLines atomically swaps every line of a draft invoice.
	ReplaceLines(ctx context.Context, org uuid.UUID, id int, lines []LineInput) (*Invoice, error)
	RecomputeTotals(ctx context.Context, org uuid.UUID, id int) (*Invoice, error)

	// Post numbers the invoice from series (DefaultInvoiceSeries when blank),
	// freezes its totals and makes its lines immutable.
	Post(ctx context.Context, org uuid.UUID, id int, series string) (*Invoice, error)
	// Cancel voids a draft, or a posted invoice with no payments.
	Cancel(ctx context.Context, org uuid.UUID, id int) (*Invoice, error)

	// Payments. Each write re-derives payment_status; the first write that
	// makes the invoice paid fires an invoice.paid event after commit.
	RegisterPayment(ctx context.Context, org uuid.UUID, invoiceID int, in PaymentInput) (*Payment, error)
	UpdatePayment(ctx context.Context, org uuid.UUID, paymentID int, in PaymentInput) (*Payment, error)
	DeletePayment(ctx context.Context, org uuid.UUID, paymentID int) error
}

type invoiceService struct {
	pool     *pgxpool.Pool
	seq      SequenceService
	notifier Notifier
	log      logrus.FieldLogger
}

func NewInvoiceService(pool *pgxpool.Pool, seq SequenceService, notifier Notifier, log logrus.FieldLogger) InvoiceService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &invoiceService{pool: pool, seq: seq, notifier: notifier, log: log}
}

// ── Draft editing ─────────────────────────────────────────────────────────────

func (s *invoiceService) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*Invoice, error) {
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := requireContact(ctx, tx, in.OrgID, in.CustomerID, ""); err != nil {
		return nil, err
	}
	lines, err := resolveLines(ctx, tx, in.OrgID, in.Lines, salePrice)
	if err != nil {
		return nil, err
	}

	id, err := insertInvoiceTx(ctx, tx, in.OrgID, in.CustomerID, currency, in.IssueDate, in.DueDate, in.Notes)
	if err != nil {
		return nil, err
	}
	if err := insertLines(ctx, tx, invoiceLineTable, id, lines); err != nil {
		return nil, err
	}
	if _, _, err := recomputeTotals(ctx, tx, "invoices", invoiceLineTable, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice: %w", err)
	}
	return s.GetInvoice(ctx, in.OrgID, id)
}

func (s *invoiceService) AddLines(ctx context.Context, org uuid.UUID, id int, inputs []LineInput) (*Invoice, error) {
	return s.editLines(ctx, org, id, inputs, false)
}

func (s *invoiceService) ReplaceLines(ctx context.Context, org uuid.UUID, id int, inputs []LineInput) (*Invoice, error) {
	return s.editLines(ctx, org, id, inputs, true)
}

func (s *invoiceService) editLines(ctx context.Context, org uuid.UUID, id int, inputs []LineInput, replace bool) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockInvoice(ctx, tx, org, id)
	if err != nil {
		return nil, err
	}
	if status != StatusDraft {
		return nil, invalid("invoice %d is %s; lines can only change while draft", id, status)
	}

	lines, err := resolveLines(ctx, tx, org, inputs, salePrice)
	if err != nil {
		return nil, err
	}
	if replace {
		if err := deleteLines(ctx, tx, invoiceLineTable, id); err != nil {
			return nil, err
		}
	}
	if err := insertLines(ctx, tx, invoiceLineTable, id, lines); err != nil {
		return nil, err
	}
	if _, _, err := recomputeTotals(ctx, tx, "invoices", invoiceLineTable, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice lines: %w", err)
	}
	return s.GetInvoice(ctx, org, id)
}

func (s *invoiceService) RecomputeTotals(ctx context.Context, org uuid.UUID, id int) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockInvoice(ctx, tx, org, id)
	if err != nil {
		return nil, err
	}
	if status != StatusDraft {
		return nil, invalid("invoice %d is %s; totals are frozen", id, status)
	}
	if _, _, err := recomputeTotals(ctx, tx, "invoices", invoiceLineTable, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit totals: %w", err)
	}
	return s.GetInvoice(ctx, org, id)
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

func (s *invoiceService) Post(ctx context.Context, org uuid.UUID, id int, series string) (*Invoice, error) {
	series = strings.TrimSpace(series)
	if series == "" {
		series = DefaultInvoiceSeries
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockInvoice(ctx, tx, org, id)
	if err != nil {
		return nil, err
	}
	if status == StatusPosted {
		return nil, invalid("invoice %d is already posted", id)
	}
	if status != StatusDraft {
		return nil, invalid("invoice %d is %s; only drafts can be posted", id, status)
	}

	_, lineCount, err := recomputeTotals(ctx, tx, "invoices", invoiceLineTable, id)
	if err != nil {
		return nil, err
	}
	if lineCount == 0 {
		return nil, invalid("invoice %d has no lines", id)
	}

	year, number, err := s.seq.NextNumberTx(ctx, tx, org, series)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE invoices
		SET status = $1, series = $2, year = $3, number = $4, payment_status = $5, posted_at = NOW()
		WHERE id = $6
	`, string(StatusPosted), series, year, number, string(PaymentUnpaid), id); err != nil {
		return nil, fmt.Errorf("failed to post invoice: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice posting: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"org_id":     org,
		"invoice_id": id,
		"number":     FormatNumber(series, year, number),
	}).Info("invoice posted")
	return s.GetInvoice(ctx, org, id)
}

func (s *invoiceService) Cancel(ctx context.Context, org uuid.UUID, id int) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockInvoice(ctx, tx, org, id)
	if err != nil {
		return nil, err
	}
	if status == StatusCancelled {
		return nil, invalid("invoice %d is already cancelled", id)
	}
	paid, err := invoicePaymentBook.sumPaid(ctx, tx, id, 0)
	if err != nil {
		return nil, err
	}
	if paid.IsPositive() {
		return nil, invalid("invoice %d has payments and cannot be cancelled", id)
	}

	if _, err := tx.Exec(ctx, "UPDATE invoices SET status = $1 WHERE id = $2", string(StatusCancelled), id); err != nil {
		return nil, fmt.Errorf("failed to cancel invoice: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice cancellation: %w", err)
	}
	return s.GetInvoice(ctx, org, id)
}

// ── Payments ──────────────────────────────────────────────────────────────────

func (s *invoiceService) RegisterPayment(ctx context.Context, org uuid.UUID, invoiceID int, in PaymentInput) (*Payment, error) {
	var p *Payment
	change, err := s.paymentTx(ctx, func(tx pgx.Tx) (paymentChange, error) {
		var c paymentChange
		var err error
		p, c, err = invoicePaymentBook.register(ctx, tx, org, invoiceID, in)
		return c, err
	})
	if err != nil {
		return nil, err
	}
	s.afterPayment(ctx, org, change)
	return p, nil
}

func (s *invoiceService) UpdatePayment(ctx context.Context, org uuid.UUID, paymentID int, in PaymentInput) (*Payment, error) {
	var p *Payment
	change, err := s.paymentTx(ctx, func(tx pgx.Tx) (paymentChange, error) {
		var c paymentChange
		var err error
		p, c, err = invoicePaymentBook.update(ctx, tx, org, paymentID, in)
		return c, err
	})
	if err != nil {
		return nil, err
	}
	s.afterPayment(ctx, org, change)
	return p, nil
}

func (s *invoiceService) DeletePayment(ctx context.Context, org uuid.UUID, paymentID int) error {
	_, err := s.paymentTx(ctx, func(tx pgx.Tx) (paymentChange, error) {
		return invoicePaymentBook.remove(ctx, tx, org, paymentID)
	})
	return err
}

func (s *invoiceService) paymentTx(ctx context.Context, fn func(tx pgx.Tx) (paymentChange, error)) (paymentChange, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return paymentChange{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	change, err := fn(tx)
	if err != nil {
		return paymentChange{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return paymentChange{}, fmt.Errorf("failed to commit payment: %w", err)
	}
	return change, nil
}

// afterPayment fires invoice.paid once the payment is durable. Failures are
// logged and never surface to the caller.
func (s *invoiceService) afterPayment(ctx context.Context, org uuid.UUID, change paymentChange) {
	if !change.NewlyPaid() {
		return
	}
	entry := s.log.WithFields(logrus.Fields{"org_id": org, "invoice_id": change.DocumentID, "event": EventInvoicePaid})

	inv, err := s.GetInvoice(ctx, org, change.DocumentID)
	if err != nil {
		entry.WithError(err).Warn("failed to load invoice for notification")
		return
	}
	event := Event{
		Name:       EventInvoicePaid,
		OrgID:      org,
		OccurredAt: time.Now().UTC(),
		Payload: InvoicePaidPayload{
			InvoiceID:  inv.ID,
			Number:     inv.DisplayNumber(),
			CustomerID: inv.CustomerID,
			Currency:   inv.Currency,
			Total:      inv.Total,
			AmountPaid: change.Paid,
		},
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		entry.WithError(err).Warn("notification hook failed")
		return
	}
	entry.Debug("notification delivered")
}

// ── Reads ─────────────────────────────────────────────────────────────────────

const invoiceColumns = `
	id, org_id, customer_id, series, year, number, status, payment_status, currency,
	issue_date, due_date, totals_base, totals_tax, total, notes,
	verifactu_status, verifactu_hash, verifactu_qr_text, posted_at, created_at`

func scanInvoice(row pgx.Row, inv *Invoice) error {
	return row.Scan(
		&inv.ID, &inv.OrgID, &inv.CustomerID, &inv.Series, &inv.Year, &inv.Number,
		&inv.Status, &inv.PaymentStatus, &inv.Currency,
		&inv.IssueDate, &inv.DueDate, &inv.TotalsBase, &inv.TotalsTax, &inv.Total, &inv.Notes,
		&inv.VerifactuStatus, &inv.VerifactuHash, &inv.VerifactuQRText, &inv.PostedAt, &inv.CreatedAt,
	)
}

func (s *invoiceService) GetInvoice(ctx context.Context, org uuid.UUID, id int) (*Invoice, error) {
	var inv Invoice
	err := scanInvoice(s.pool.QueryRow(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE id = $1 AND org_id = $2", id, org), &inv)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("invoice %d", id)
		}
		return nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}

	if inv.Lines, err = fetchLines(ctx, s.pool, invoiceLineTable, id); err != nil {
		return nil, err
	}
	if inv.Payments, err = invoicePaymentBook.list(ctx, s.pool, id); err != nil {
		return nil, err
	}
	for _, p := range inv.Payments {
		inv.AmountPaid = inv.AmountPaid.Add(p.Amount)
	}
	return &inv, nil
}

// ListInvoices returns invoice headers, newest first. An empty status lists all.
func (s *invoiceService) ListInvoices(ctx context.Context, org uuid.UUID, status string) ([]Invoice, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE org_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
	`, org, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := scanInvoice(rows, &inv); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func lockInvoice(ctx context.Context, tx pgx.Tx, org uuid.UUID, id int) (DocumentStatus, error) {
	var status DocumentStatus
	err := tx.QueryRow(ctx,
		"SELECT status FROM invoices WHERE id = $1 AND org_id = $2 FOR UPDATE", id, org,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", notFound("invoice %d", id)
		}
		return "", fmt.Errorf("failed to lock invoice: %w", err)
	}
	return status, nil
}

func insertInvoiceTx(ctx context.Context, tx pgx.Tx, org uuid.UUID, customerID int, currency string,
	issueDate time.Time, dueDate *time.Time, notes string) (int, error) {
	if issueDate.IsZero() {
		issueDate = time.Now()
	}
	var id int
	err := tx.QueryRow(ctx, `
		INSERT INTO invoices (org_id, customer_id, status, payment_status, currency, issue_date, due_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, org, customerID, string(StatusDraft), string(PaymentUnpaid), currency, issueDate, dueDate, notes).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create draft invoice: %w", err)
	}
	return id, nil
}

func normalizeCurrency(c string) (string, error) {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return defaultCurrency, nil
	}
	if len(c) != 3 {
		return "", invalid("currency must be a 3-letter ISO code, got %q", c)
	}
	return c, nil
}
