package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Series prefixes used when a document is created without a caller-supplied number.
const (
	SeriesQuote           = "Q"
	SeriesDeliveryNote    = "DN"
	SeriesPurchaseOrder   = "PO"
	SeriesSupplierInvoice = "SI"
)

// SequenceService issues gapless per-(org, series, year) numbers.
type SequenceService interface {
	// NextNumber issues a number in its own transaction. Use only where no
	// document write needs to share the transaction.
	NextNumber(ctx context.Context, org uuid.UUID, series string) (year, number int, err error)
	// NextNumberTx issues a number inside the caller's transaction. The sequence
	// row stays locked until that transaction ends, so a rollback releases the
	// number and concurrent callers for the same series queue behind it.
	NextNumberTx(ctx context.Context, tx pgx.Tx, org uuid.UUID, series string) (year, number int, err error)
}

type sequenceService struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewSequenceService(pool *pgxpool.Pool) SequenceService {
	return &sequenceService{pool: pool, now: time.Now}
}

// NewSequenceServiceWithClock is NewSequenceService with an injectable clock for year rollover.
func NewSequenceServiceWithClock(pool *pgxpool.Pool, now func() time.Time) SequenceService {
	return &sequenceService{pool: pool, now: now}
}

func (s *sequenceService) NextNumber(ctx context.Context, org uuid.UUID, series string) (int, int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	year, number, err := s.NextNumberTx(ctx, tx, org, series)
	if err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return year, number, nil
}

func (s *sequenceService) NextNumberTx(ctx context.Context, tx pgx.Tx, org uuid.UUID, series string) (int, int, error) {
	series = strings.TrimSpace(series)
	if series == "" {
		return 0, 0, invalid("series is required")
	}
	year := s.now().Year()

	// The upsert takes the row lock on the existing sequence row, or creates it
	// at 1, and holds it until the caller's transaction ends.
	var number int
	err := tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (org_id, series, year, last_number)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (org_id, series, year)
		DO UPDATE SET last_number = invoice_sequences.last_number + 1
		RETURNING last_number
	`, org, series, year).Scan(&number)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to generate gapless sequence number: %w", err)
	}
	return year, number, nil
}

// FormatNumber renders a sequence position as "<series>-<year>-<0000>".
func FormatNumber(series string, year, number int) string {
	return fmt.Sprintf("%s-%d-%04d", series, year, number)
}

// documentNumber returns the caller-supplied number, or issues one from series.
func documentNumber(ctx context.Context, tx pgx.Tx, seq SequenceService, org uuid.UUID, supplied, series string) (string, error) {
	if n := strings.TrimSpace(supplied); n != "" {
		return n, nil
	}
	year, number, err := seq.NextNumberTx(ctx, tx, org, series)
	if err != nil {
		return "", err
	}
	return FormatNumber(series, year, number), nil
}
