package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuoteService manages quotes and their one-time conversion into invoices.
type QuoteService interface {
	CreateQuote(ctx context.Context, in CreateQuoteInput) (*Quote, error)
	GetQuote(ctx context.Context, org uuid.UUID, id int) (*Quote, error)
	ListQuotes(ctx context.Context, org uuid.UUID, status string) ([]Quote, error)
	AddLines(ctx context.Context, org uuid.UUID, id int, lines []LineInput) (*Quote, error)
	ReplaceLines(ctx context.Context, org uuid.UUID, id int, lines []LineInput) (*Quote, error)
	// Transition moves the quote along draft → sent → accepted|rejected|expired.
	Transition(ctx context.Context, org uuid.UUID, id int, next QuoteStatus) (*Quote, error)
	// ConvertToInvoice copies an accepted quote into a new draft invoice. A quote
	// that was already converted returns its existing invoice.
	ConvertToInvoice(ctx context.Context, org uuid.UUID, id int) (*Invoice, error)
}

type quoteService struct {
	pool     *pgxpool.Pool
	seq      SequenceService
	invoices InvoiceService
}

func NewQuoteService(pool *pgxpool.Pool, seq SequenceService, invoices InvoiceService) QuoteService {
	return &quoteService{pool: pool, seq: seq, invoices: invoices}
}

func (s *quoteService) CreateQuote(ctx context.Context, in CreateQuoteInput) (*Quote, error) {
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	issue := in.IssueDate
	if issue.IsZero() {
		issue = time.Now()
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
	number, err := documentNumber(ctx, tx, s.seq, in.OrgID, in.Number, SeriesQuote)
	if err != nil {
		return nil, err
	}

	var id int
	err = tx.QueryRow(ctx, `
		INSERT INTO quotes (org_id, customer_id, number, status, currency, issue_date, valid_until, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, in.OrgID, in.CustomerID, number, string(QuoteDraft), currency, issue, in.ValidUntil, in.Notes).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}
	if err := insertLines(ctx, tx, quoteLineTable, id, lines); err != nil {
		return nil, err
	}
	if _, _, err := recomputeTotals(ctx, tx, "quotes", quoteLineTable, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit quote: %w", err)
	}
	return s.GetQuote(ctx, in.OrgID, id)
}

func (s *quoteService) AddLines(ctx context.Context, org uuid.UUID, id int, inputs []LineInput) (*Quote, error) {
	return s.editLines(ctx, org, id, inputs, false)
}

func (s *quoteService) ReplaceLines(ctx context.Context, org uuid.UUID, id int, inputs []LineInput) (*Quote, error) {
	return s.editLines(ctx, org, id, inputs, true)
}

func (s *quoteService) editLines(ctx context.Context, org uuid.UUID, id int, inputs []LineInput, replace bool) (*Quote, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	q, err := lockQuote(ctx, tx, org, id)
	if err != nil {
		return nil, err
	}
	if !q.Status.editable() {
		return nil, invalid("quote %d is %s; lines can only change while draft or sent", id, q.Status)
	}

	lines, err := resolveLines(ctx, tx, org, inputs, salePrice)
	if err != nil {
		return nil, err
	}
	if replace {
		if err := deleteLines(ctx, tx, quoteLineTable, id); err != nil {
			return nil, err
		}
	}
	if err := insertLines(ctx, tx, quoteLineTable, id, lines); err != nil {
		return nil, err
	}
	if _, _, err := recomputeTotals(ctx, tx, "quotes", quoteLineTable, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit quote lines: %w", err)
	}
	return s.GetQuote(ctx, org, id)
}

func (s *quoteService) Transition(ctx context.Context, org uuid.UUID, id int, next QuoteStatus) (*Quote, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	q, err := lockQuote(ctx, tx, org, id)
	if err != nil {
		return nil, err
	}
	if !q.Status.CanTransition(next) {
		return nil, invalid("quote %d cannot move from %s to %s", id, q.Status, next)
	}
	if _, err := tx.Exec(ctx, "UPDATE quotes SET status = $1 WHERE id = $2", string(next), id); err != nil {
		return nil, fmt.Errorf("failed to update quote status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit quote status: %w", err)
	}
	return s.GetQuote(ctx, org, id)
}

func (s *quoteService) ConvertToInvoice(ctx context.Context, org uuid.UUID, id int) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// The quote row lock serializes concurrent conversions of the same quote.
	q, err := lockQuote(ctx, tx, org, id)
	if err != nil {
		return nil, err
	}
	if q.InvoiceID != nil {
		return s.invoices.GetInvoice(ctx, org, *q.InvoiceID)
	}
	if q.Status != QuoteAccepted {
		return nil, invalid("quote %d is %s; only accepted quotes can be invoiced", id, q.Status)
	}

	lines, err := fetchLines(ctx, tx, quoteLineTable, id)
	if err != nil {
		return nil, err
	}
	invoiceID, err := insertInvoiceTx(ctx, tx, org, q.CustomerID, q.Currency, time.Now(), nil, q.Notes)
	if err != nil {
		return nil, err
	}
	if err := insertLines(ctx, tx, invoiceLineTable, invoiceID, lines); err != nil {
		return nil, err
	}
	if _, _, err := recomputeTotals(ctx, tx, "invoices", invoiceLineTable, invoiceID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, "UPDATE quotes SET invoice_id = $1 WHERE id = $2", invoiceID, id); err != nil {
		return nil, fmt.Errorf("failed to link quote to invoice: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit quote conversion: %w", err)
	}
	return s.invoices.GetInvoice(ctx, org, invoiceID)
}

// ── Reads ─────────────────────────────────────────────────────────────────────

const quoteColumns = `
	id, org_id, customer_id, number, status, currency, issue_date, valid_until,
	totals_base, totals_tax, total, notes, invoice_id, created_at`

func scanQuote(row pgx.Row, q *Quote) error {
	return row.Scan(&q.ID, &q.OrgID, &q.CustomerID, &q.Number, &q.Status, &q.Currency, &q.IssueDate, &q.ValidUntil,
		&q.TotalsBase, &q.TotalsTax, &q.Total, &q.Notes, &q.InvoiceID, &q.CreatedAt)
}

func (s *quoteService) GetQuote(ctx context.Context, org uuid.UUID, id int) (*Quote, error) {
	var q Quote
	err := scanQuote(s.pool.QueryRow(ctx, "SELECT "+quoteColumns+" FROM quotes WHERE id = $1 AND org_id = $2", id, org), &q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("quote %d", id)
		}
		return nil, fmt.Errorf("failed to fetch quote: %w", err)
	}
	if q.Lines, err = fetchLines(ctx, s.pool, quoteLineTable, id); err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *quoteService) ListQuotes(ctx context.Context, org uuid.UUID, status string) ([]Quote, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+quoteColumns+`
		FROM quotes
		WHERE org_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
	`, org, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var out []Quote
	for rows.Next() {
		var q Quote
		if err := scanQuote(rows, &q); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func lockQuote(ctx context.Context, tx pgx.Tx, org uuid.UUID, id int) (*Quote, error) {
	var q Quote
	err := scanQuote(tx.QueryRow(ctx,
		"SELECT "+quoteColumns+" FROM quotes WHERE id = $1 AND org_id = $2 FOR UPDATE", id, org), &q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("quote %d", id)
		}
		return nil, fmt.Errorf("failed to lock quote: %w", err)
	}
	return &q, nil
}
