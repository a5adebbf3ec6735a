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

// DeliveryNoteService records outgoing deliveries. Confirming a note is the
// point where sales deplete physical stock, independent of invoicing.
type DeliveryNoteService interface {
	CreateDeliveryNote(ctx context.Context, in CreateDeliveryNoteInput) (*DeliveryNote, error)
	GetDeliveryNote(ctx context.Context, org uuid.UUID, id int) (*DeliveryNote, error)
	ListDeliveryNotes(ctx context.Context, org uuid.UUID) ([]DeliveryNote, error)
	AddLines(ctx context.Context, org uuid.UUID, id int, lines []LineInput) (*DeliveryNote, error)
	// Confirm ships every stocked product line from the note's warehouse and marks it done.
	// Any stock shortfall aborts the whole confirmation.
	Confirm(ctx context.Context, org uuid.UUID, id int, createdBy string) (*DeliveryNote, error)
}

type deliveryNoteService struct {
	pool  *pgxpool.Pool
	seq   SequenceService
	stock StockLedger
}

func NewDeliveryNoteService(pool *pgxpool.Pool, seq SequenceService, stock StockLedger) DeliveryNoteService {
	return &deliveryNoteService{pool: pool, seq: seq, stock: stock}
}

func (s *deliveryNoteService) CreateDeliveryNote(ctx context.Context, in CreateDeliveryNoteInput) (*DeliveryNote, error) {
	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := requireContact(ctx, tx, in.OrgID, in.CustomerID, ""); err != nil {
		return nil, err
	}
	if err := requireWarehouse(ctx, tx, in.OrgID, in.WarehouseID); err != nil {
		return nil, err
	}
	if in.InvoiceID != nil {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1 AND org_id = $2)", *in.InvoiceID, in.OrgID,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to resolve invoice: %w", err)
		}
		if !exists {
			return nil, notFound("invoice %d", *in.InvoiceID)
		}
	}
	lines, err := resolveLines(ctx, tx, in.OrgID, in.Lines, salePrice)
	if err != nil {
		return nil, err
	}
	number, err := documentNumber(ctx, tx, s.seq, in.OrgID, in.Number, SeriesDeliveryNote)
	if err != nil {
		return nil, err
	}

	var id int
	err = tx.QueryRow(ctx, `
		INSERT INTO delivery_notes (org_id, customer_id, warehouse_id, invoice_id, number, status, date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, in.OrgID, in.CustomerID, in.WarehouseID, in.InvoiceID, number, string(DeliveryDraft), date, in.Notes).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery note: %w", err)
	}
	if err := insertLines(ctx, tx, deliveryNoteLineTable, id, lines); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delivery note: %w", err)
	}
	return s.GetDeliveryNote(ctx, in.OrgID, id)
}

func (s *deliveryNoteService) AddLines(ctx context.Context, org uuid.UUID, id int, inputs []LineInput) (*DeliveryNote, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	dn, err := lockDeliveryNote(ctx, tx, org, id)
	if err != nil {
		return nil, err
	}
	if dn.Status != DeliveryDraft {
		return nil, invalid("delivery note %d is %s; lines can only change while draft", id, dn.Status)
	}
	lines, err := resolveLines(ctx, tx, org, inputs, salePrice)
	if err != nil {
		return nil, err
	}
	if err := insertLines(ctx, tx, deliveryNoteLineTable, id, lines); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delivery note lines: %w", err)
	}
	return s.GetDeliveryNote(ctx, org, id)
}

func (s *deliveryNoteService) Confirm(ctx context.Context, org uuid.UUID, id int, createdBy string) (*DeliveryNote, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	dn, err := lockDeliveryNote(ctx, tx, org, id)
	if err != nil {
		return nil, err
	}
	if dn.Status != DeliveryDraft {
		return nil, invalid("delivery note %d is already %s", id, dn.Status)
	}

	lines, err := fetchLines(ctx, tx, deliveryNoteLineTable, id)
	if err != nil {
		return nil, err
	}
	moving, err := stockedLines(ctx, tx, org, lines)
	if err != nil {
		return nil, err
	}
	if err := s.stock.LockItemsTx(ctx, tx, org, dn.WarehouseID, productIDs(moving)); err != nil {
		return nil, err
	}
	for _, l := range moving {
		if _, err := s.stock.ConfirmOutgoingTx(ctx, tx, StockRequest{
			OrgID:       org,
			ProductID:   *l.ProductID,
			WarehouseID: dn.WarehouseID,
			Qty:         l.Qty,
			Reason:      ReasonSale,
			RefType:     "DN",
			RefID:       strconv.Itoa(id),
			CreatedBy:   createdBy,
		}); err != nil {
			return nil, fmt.Errorf("delivery note %d line %d: %w", id, l.Position, err)
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE delivery_notes SET status = $1, done_at = NOW() WHERE id = $2", string(DeliveryDone), id,
	); err != nil {
		return nil, fmt.Errorf("failed to mark delivery note done: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delivery confirmation: %w", err)
	}
	return s.GetDeliveryNote(ctx, org, id)
}

// ── Reads ─────────────────────────────────────────────────────────────────────

const deliveryNoteColumns = `
	id, org_id, customer_id, warehouse_id, invoice_id, number, status, date, notes, done_at, created_at`

func scanDeliveryNote(row pgx.Row, dn *DeliveryNote) error {
	return row.Scan(&dn.ID, &dn.OrgID, &dn.CustomerID, &dn.WarehouseID, &dn.InvoiceID, &dn.Number,
		&dn.Status, &dn.Date, &dn.Notes, &dn.DoneAt, &dn.CreatedAt)
}

func (s *deliveryNoteService) GetDeliveryNote(ctx context.Context, org uuid.UUID, id int) (*DeliveryNote, error) {
	var dn DeliveryNote
	err := scanDeliveryNote(s.pool.QueryRow(ctx,
		"SELECT "+deliveryNoteColumns+" FROM delivery_notes WHERE id = $1 AND org_id = $2", id, org), &dn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("delivery note %d", id)
		}
		return nil, fmt.Errorf("failed to fetch delivery note: %w", err)
	}
	if dn.Lines, err = fetchLines(ctx, s.pool, deliveryNoteLineTable, id); err != nil {
		return nil, err
	}
	return &dn, nil
}

func (s *deliveryNoteService) ListDeliveryNotes(ctx context.Context, org uuid.UUID) ([]DeliveryNote, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+deliveryNoteColumns+" FROM delivery_notes WHERE org_id = $1 ORDER BY created_at DESC, id DESC", org)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery notes: %w", err)
	}
	defer rows.Close()

	var out []DeliveryNote
	for rows.Next() {
		var dn DeliveryNote
		if err := scanDeliveryNote(rows, &dn); err != nil {
			return nil, fmt.Errorf("failed to scan delivery note: %w", err)
		}
		out = append(out, dn)
	}
	return out, rows.Err()
}

func lockDeliveryNote(ctx context.Context, tx pgx.Tx, org uuid.UUID, id int) (*DeliveryNote, error) {
	var dn DeliveryNote
	err := scanDeliveryNote(tx.QueryRow(ctx,
		"SELECT "+deliveryNoteColumns+" FROM delivery_notes WHERE id = $1 AND org_id = $2 FOR UPDATE", id, org), &dn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("delivery note %d", id)
		}
		return nil, fmt.Errorf("failed to lock delivery note: %w", err)
	}
	return &dn, nil
}
