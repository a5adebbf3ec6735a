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

// PurchaseOrderService manages purchase orders. State changes here are
// bookkeeping only; stock is received when a supplier invoice is posted.
type PurchaseOrderService interface {
	CreatePurchaseOrder(ctx context.Context, in CreatePurchaseOrderInput) (*PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, org uuid.UUID, id int) (*PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, org uuid.UUID, status string) ([]PurchaseOrder, error)
	AddLines(ctx context.Context, org uuid.UUID, id int, lines []LineInput) (*PurchaseOrder, error)
	ReplaceLines(ctx context.Context, org uuid.UUID, id int, lines []LineInput) (*PurchaseOrder, error)
	// Transition applies send, partial receipt, receipt or cancellation.
	Transition(ctx context.Context, org uuid.UUID, id int, next PurchaseOrderStatus) (*PurchaseOrder, error)
}

type purchaseOrderService struct {
	pool *pgxpool.Pool
	seq  SequenceService
}

func NewPurchaseOrderService(pool *pgxpool.Pool, seq SequenceService) PurchaseOrderService {
	return &purchaseOrderService{pool: pool, seq: seq}
}

func (s *purchaseOrderService) CreatePurchaseOrder(ctx context.Context, in CreatePurchaseOrderInput) (*PurchaseOrder, error) {
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
	lines, err := resolveLines(ctx, tx, in.OrgID, in.Lines, costPrice)
	if err != nil {
		return nil, err
	}
	number, err := documentNumber(ctx, tx, s.seq, in.OrgID, in.Number, SeriesPurchaseOrder)
	if err != nil {
		return nil, err
	}

	var id int
	err = tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (org_id, supplier_id, warehouse_id, number, status, currency, date, expected_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, in.OrgID, in.SupplierID, in.WarehouseID, number, string(PODraft), currency, date, in.ExpectedDate, in.Notes).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase order: %w", err)
	}
	if err := insertLines(ctx, tx, purchaseOrderLineTable, id, lines); err != nil {
		return nil, err
	}
	if _, _, err := recomputeTotals(ctx, tx, "purchase_orders", purchaseOrderLineTable, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase order: %w", err)
	}
	return s.GetPurchaseOrder(ctx, in.OrgID, id)
}

func (s *purchaseOrderService) AddLines(ctx context.Context, org uuid.UUID, id int, inputs []LineInput) (*PurchaseOrder, error) {
	return s.editLines(ctx, org, id, inputs, false)
}

func (s *purchaseOrderService) ReplaceLines(ctx context.Context, org uuid.UUID, id int, inputs []LineInput) (*PurchaseOrder, error) {
	return s.editLines(ctx, org, id, inputs, true)
}

func (s *purchaseOrderService) editLines(ctx context.Context, org uuid.UUID, id int, inputs []LineInput, replace bool) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	po, err := lockPurchaseOrder(ctx, tx, org, id)
	if err != nil {
		return nil, err
	}
	if po.Status != PODraft {
		return nil, invalid("purchase order %d is %s; lines can only change while draft", id, po.Status)
	}
	lines, err := resolveLines(ctx, tx, org, inputs, costPrice)
	if err != nil {
		return nil, err
	}
	if replace {
		if err := deleteLines(ctx, tx, purchaseOrderLineTable, id); err != nil {
			return nil, err
		}
	}
	if err := insertLines(ctx, tx, purchaseOrderLineTable, id, lines); err != nil {
		return nil, err
	}
	if _, _, err := recomputeTotals(ctx, tx, "purchase_orders", purchaseOrderLineTable, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase order lines: %w", err)
	}
	return s.GetPurchaseOrder(ctx, org, id)
}

func (s *purchaseOrderService) Transition(ctx context.Context, org uuid.UUID, id int, next PurchaseOrderStatus) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	po, err := lockPurchaseOrder(ctx, tx, org, id)
	if err != nil {
		return nil, err
	}
	if !po.Status.CanTransition(next) {
		return nil, invalid("purchase order %d cannot move from %s to %s", id, po.Status, next)
	}
	if _, err := tx.Exec(ctx, "UPDATE purchase_orders SET status = $1 WHERE id = $2", string(next), id); err != nil {
		return nil, fmt.Errorf("failed to update purchase order status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase order status: %w", err)
	}
	return s.GetPurchaseOrder(ctx, org, id)
}

// ── Reads ─────────────────────────────────────────────────────────────────────

const purchaseOrderColumns = `
	id, org_id, supplier_id, warehouse_id, number, status, currency, date, expected_date,
	totals_base, totals_tax, total, notes, created_at`

func scanPurchaseOrder(row pgx.Row, po *PurchaseOrder) error {
	return row.Scan(&po.ID, &po.OrgID, &po.SupplierID, &po.WarehouseID, &po.Number, &po.Status, &po.Currency,
		&po.Date, &po.ExpectedDate, &po.TotalsBase, &po.TotalsTax, &po.Total, &po.Notes, &po.CreatedAt)
}

func (s *purchaseOrderService) GetPurchaseOrder(ctx context.Context, org uuid.UUID, id int) (*PurchaseOrder, error) {
	var po PurchaseOrder
	err := scanPurchaseOrder(s.pool.QueryRow(ctx,
		"SELECT "+purchaseOrderColumns+" FROM purchase_orders WHERE id = $1 AND org_id = $2", id, org), &po)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("purchase order %d", id)
		}
		return nil, fmt.Errorf("failed to fetch purchase order: %w", err)
	}
	if po.Lines, err = fetchLines(ctx, s.pool, purchaseOrderLineTable, id); err != nil {
		return nil, err
	}
	return &po, nil
}

func (s *purchaseOrderService) ListPurchaseOrders(ctx context.Context, org uuid.UUID, status string) ([]PurchaseOrder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+purchaseOrderColumns+`
		FROM purchase_orders
		WHERE org_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
	`, org, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase orders: %w", err)
	}
	defer rows.Close()

	var out []PurchaseOrder
	for rows.Next() {
		var po PurchaseOrder
		if err := scanPurchaseOrder(rows, &po); err != nil {
			return nil, fmt.Errorf("failed to scan purchase order: %w", err)
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

func lockPurchaseOrder(ctx context.Context, tx pgx.Tx, org uuid.UUID, id int) (*PurchaseOrder, error) {
	var po PurchaseOrder
	err := scanPurchaseOrder(tx.QueryRow(ctx,
		"SELECT "+purchaseOrderColumns+" FROM purchase_orders WHERE id = $1 AND org_id = $2 FOR UPDATE", id, org), &po)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("purchase order %d", id)
		}
		return nil, fmt.Errorf("failed to lock purchase order: %w", err)
	}
	return &po, nil
}
