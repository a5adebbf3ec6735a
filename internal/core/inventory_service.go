package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// StockLedger maintains on-hand and reserved quantities per (org, product, warehouse)
// and the append-only movement log that explains them.
//
// Every mutation locks the inventory_items row first and re-reads it under the lock.
type StockLedger interface {
	// Standalone operations (manage their own transactions).
	Receive(ctx context.Context, req StockRequest) (*InventoryItem, error)
	Reserve(ctx context.Context, req StockRequest) (*InventoryItem, error)
	ReleaseReservation(ctx context.Context, req StockRequest) (*InventoryItem, error)
	ConfirmOutgoing(ctx context.Context, req StockRequest) (*InventoryItem, error)
	Transfer(ctx context.Context, req TransferRequest) error

	// TX-scoped operations: used by document lifecycles so stock changes commit
	// or roll back together with the document transition.
	ReceiveTx(ctx context.Context, tx pgx.Tx, req StockRequest) (*InventoryItem, error)
	ReserveTx(ctx context.Context, tx pgx.Tx, req StockRequest) (*InventoryItem, error)
	ReleaseReservationTx(ctx context.Context, tx pgx.Tx, req StockRequest) (*InventoryItem, error)
	ConfirmOutgoingTx(ctx context.Context, tx pgx.Tx, req StockRequest) (*InventoryItem, error)
	TransferTx(ctx context.Context, tx pgx.Tx, req TransferRequest) error
	// LockItemsTx locks the rows of several products in one warehouse in
	// ascending product order. Multi-line documents call it before touching
	// any row so that all writers acquire locks in (product, warehouse) order.
	LockItemsTx(ctx context.Context, tx pgx.Tx, org uuid.UUID, warehouseID int, productIDs []int) error

	// Reads.
	GetItem(ctx context.Context, org uuid.UUID, productID, warehouseID int) (*InventoryItem, error)
	GetStockLevels(ctx context.Context, org uuid.UUID) ([]StockLevel, error)
	ListMoves(ctx context.Context, org uuid.UUID, productID int) ([]StockMove, error)
}

type inventoryService struct {
	pool *pgxpool.Pool
}

func NewStockLedger(pool *pgxpool.Pool) StockLedger {
	return &inventoryService{pool: pool}
}

// ── Standalone operations ─────────────────────────────────────────────────────

// inTx runs fn in its own transaction and commits on success.
func (s *inventoryService) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *inventoryService) standalone(ctx context.Context, req StockRequest,
	op func(context.Context, pgx.Tx, StockRequest) (*InventoryItem, error)) (*InventoryItem, error) {
	var item *InventoryItem
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		item, err = op(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *inventoryService) Receive(ctx context.Context, req StockRequest) (*InventoryItem, error) {
	return s.standalone(ctx, req, s.ReceiveTx)
}

func (s *inventoryService) Reserve(ctx context.Context, req StockRequest) (*InventoryItem, error) {
	return s.standalone(ctx, req, s.ReserveTx)
}

func (s *inventoryService) ReleaseReservation(ctx context.Context, req StockRequest) (*InventoryItem, error) {
	return s.standalone(ctx, req, s.ReleaseReservationTx)
}

func (s *inventoryService) ConfirmOutgoing(ctx context.Context, req StockRequest) (*InventoryItem, error) {
	return s.standalone(ctx, req, s.ConfirmOutgoingTx)
}

func (s *inventoryService) Transfer(ctx context.Context, req TransferRequest) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.TransferTx(ctx, tx, req)
	})
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

// ReceiveTx adds qty to on-hand stock and logs an inbound move into the warehouse.
func (s *inventoryService) ReceiveTx(ctx context.Context, tx pgx.Tx, req StockRequest) (*InventoryItem, error) {
	if err := checkQty(req.Qty); err != nil {
		return nil, err
	}
	reason, err := reasonOr(req.Reason, ReasonAdjustment)
	if err != nil {
		return nil, err
	}

	item, uom, err := lockItem(ctx, tx, req.OrgID, req.ProductID, req.WarehouseID)
	if err != nil {
		return nil, err
	}
	item.OnHand = item.OnHand.Add(req.Qty)
	if err := storeItem(ctx, tx, item); err != nil {
		return nil, err
	}

	to := req.WarehouseID
	if err := appendMove(ctx, tx, StockMove{
		OrgID:       req.OrgID,
		ProductID:   req.ProductID,
		Qty:         req.Qty,
		UOM:         uom,
		WarehouseTo: &to,
		Reason:      reason,
		RefType:     req.RefType,
		RefID:       req.RefID,
		CreatedBy:   req.CreatedBy,
	}); err != nil {
		return nil, err
	}
	return item, nil
}

// ReserveTx places a soft hold on available stock. No move is logged.
func (s *inventoryService) ReserveTx(ctx context.Context, tx pgx.Tx, req StockRequest) (*InventoryItem, error) {
	if err := checkQty(req.Qty); err != nil {
		return nil, err
	}
	item, _, err := lockItem(ctx, tx, req.OrgID, req.ProductID, req.WarehouseID)
	if err != nil {
		return nil, err
	}
	if item.Available().LessThan(req.Qty) {
		return nil, fmt.Errorf("cannot reserve product %d in warehouse %d: available %s, requested %s: %w",
			req.ProductID, req.WarehouseID, item.Available(), req.Qty, ErrInsufficientStock)
	}
	item.Reserved = item.Reserved.Add(req.Qty)
	if err := storeItem(ctx, tx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// ReleaseReservationTx drops up to qty of the reservation. Releasing more than
// is reserved clamps at zero.
func (s *inventoryService) ReleaseReservationTx(ctx context.Context, tx pgx.Tx, req StockRequest) (*InventoryItem, error) {
	if err := checkQty(req.Qty); err != nil {
		return nil, err
	}
	item, _, err := lockItem(ctx, tx, req.OrgID, req.ProductID, req.WarehouseID)
	if err != nil {
		return nil, err
	}
	item.Reserved = item.Reserved.Sub(decimal.Min(req.Qty, item.Reserved))
	if err := storeItem(ctx, tx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// ConfirmOutgoingTx removes qty from on-hand stock, consuming any reservation
// first, and logs an outbound move from the warehouse.
func (s *inventoryService) ConfirmOutgoingTx(ctx context.Context, tx pgx.Tx, req StockRequest) (*InventoryItem, error) {
	if err := checkQty(req.Qty); err != nil {
		return nil, err
	}
	reason, err := reasonOr(req.Reason, ReasonSale)
	if err != nil {
		return nil, err
	}

	item, uom, err := lockItem(ctx, tx, req.OrgID, req.ProductID, req.WarehouseID)
	if err != nil {
		return nil, err
	}
	if item.OnHand.LessThan(req.Qty) {
		return nil, fmt.Errorf("cannot ship product %d from warehouse %d: on hand %s, requested %s: %w",
			req.ProductID, req.WarehouseID, item.OnHand, req.Qty, ErrInsufficientStock)
	}
	item.Reserved = item.Reserved.Sub(decimal.Min(item.Reserved, req.Qty))
	item.OnHand = item.OnHand.Sub(req.Qty)
	if err := storeItem(ctx, tx, item); err != nil {
		return nil, err
	}

	from := req.WarehouseID
	if err := appendMove(ctx, tx, StockMove{
		OrgID:         req.OrgID,
		ProductID:     req.ProductID,
		Qty:           req.Qty.Neg(),
		UOM:           uom,
		WarehouseFrom: &from,
		Reason:        reason,
		RefType:       req.RefType,
		RefID:         req.RefID,
		CreatedBy:     req.CreatedBy,
	}); err != nil {
		return nil, err
	}
	return item, nil
}

// TransferTx is an outgoing leg followed by a receiving leg, both tagged as transfers.
func (s *inventoryService) TransferTx(ctx context.Context, tx pgx.Tx, req TransferRequest) error {
	if req.FromWarehouse == req.ToWarehouse {
		return invalid("transfer source and destination must differ")
	}
	if err := checkQty(req.Qty); err != nil {
		return err
	}

	// Lock both rows in warehouse-id order so opposing transfers cannot deadlock.
	first, second := req.FromWarehouse, req.ToWarehouse
	if second < first {
		first, second = second, first
	}
	for _, wh := range []int{first, second} {
		if _, _, err := lockItem(ctx, tx, req.OrgID, req.ProductID, wh); err != nil {
			return err
		}
	}

	leg := StockRequest{
		OrgID:     req.OrgID,
		ProductID: req.ProductID,
		Qty:       req.Qty,
		Reason:    ReasonTransfer,
		RefType:   req.RefType,
		RefID:     req.RefID,
		CreatedBy: req.CreatedBy,
	}
	leg.WarehouseID = req.FromWarehouse
	if _, err := s.ConfirmOutgoingTx(ctx, tx, leg); err != nil {
		return fmt.Errorf("transfer outgoing leg: %w", err)
	}
	leg.WarehouseID = req.ToWarehouse
	if _, err := s.ReceiveTx(ctx, tx, leg); err != nil {
		return fmt.Errorf("transfer receiving leg: %w", err)
	}
	return nil
}

func (s *inventoryService) LockItemsTx(ctx context.Context, tx pgx.Tx, org uuid.UUID, warehouseID int, productIDs []int) error {
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		if _, _, err := lockItem(ctx, tx, org, id, warehouseID); err != nil {
			return err
		}
	}
	return nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *inventoryService) GetItem(ctx context.Context, org uuid.UUID, productID, warehouseID int) (*InventoryItem, error) {
	var it InventoryItem
	err := s.pool.QueryRow(ctx, `
		SELECT id, org_id, product_id, warehouse_id, qty_on_hand, qty_reserved, updated_at
		FROM inventory_items
		WHERE org_id = $1 AND product_id = $2 AND warehouse_id = $3
	`, org, productID, warehouseID).Scan(
		&it.ID, &it.OrgID, &it.ProductID, &it.WarehouseID, &it.OnHand, &it.Reserved, &it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("no stock for product %d in warehouse %d", productID, warehouseID)
		}
		return nil, fmt.Errorf("failed to fetch inventory item: %w", err)
	}
	return &it, nil
}

func (s *inventoryService) GetStockLevels(ctx context.Context, org uuid.UUID) ([]StockLevel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.sku, p.name, w.id, w.code,
		       ii.qty_on_hand, ii.qty_reserved,
		       ii.qty_on_hand - ii.qty_reserved AS qty_available,
		       p.cost_price
		FROM inventory_items ii
		JOIN products p   ON p.id = ii.product_id
		JOIN warehouses w ON w.id = ii.warehouse_id
		WHERE ii.org_id = $1
		ORDER BY p.sku, w.code
	`, org)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(
			&sl.ProductID, &sl.SKU, &sl.ProductName,
			&sl.WarehouseID, &sl.WarehouseCode,
			&sl.OnHand, &sl.Reserved, &sl.Available, &sl.CostPrice,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, sl)
	}
	return levels, rows.Err()
}

// ListMoves returns the movement history of a product, oldest first.
func (s *inventoryService) ListMoves(ctx context.Context, org uuid.UUID, productID int) ([]StockMove, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, org_id, product_id, qty, uom, warehouse_from, warehouse_to,
		       reason, ref_type, ref_id, created_by, created_at
		FROM stock_moves
		WHERE org_id = $1 AND product_id = $2
		ORDER BY created_at, id
	`, org, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock moves: %w", err)
	}
	defer rows.Close()

	var moves []StockMove
	for rows.Next() {
		var m StockMove
		if err := rows.Scan(&m.ID, &m.OrgID, &m.ProductID, &m.Qty, &m.UOM, &m.WarehouseFrom, &m.WarehouseTo,
			&m.Reason, &m.RefType, &m.RefID, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock move: %w", err)
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func checkQty(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return invalid("quantity must be positive, got %s", qty)
	}
	if !fitsScale(qty, qtyScale) {
		return invalid("quantity allows at most %d decimals, got %s", qtyScale, qty)
	}
	return nil
}

func reasonOr(r, fallback MoveReason) (MoveReason, error) {
	if r == "" {
		return fallback, nil
	}
	if !r.valid() {
		return "", invalid("unknown stock move reason %q", r)
	}
	return r, nil
}

// lockItem validates tenant ownership, creates the inventory row if it does not
// exist yet, then locks it and returns the values read under the lock along
// with the product's unit of measure.
func lockItem(ctx context.Context, tx pgx.Tx, org uuid.UUID, productID, warehouseID int) (*InventoryItem, string, error) {
	p, err := loadProduct(ctx, tx, org, productID)
	if err != nil {
		return nil, "", err
	}
	if err := requireWarehouse(ctx, tx, org, warehouseID); err != nil {
		return nil, "", err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO inventory_items (org_id, product_id, warehouse_id, qty_on_hand, qty_reserved)
		VALUES ($1, $2, $3, 0, 0)
		ON CONFLICT (org_id, product_id, warehouse_id) DO NOTHING
	`, org, productID, warehouseID); err != nil {
		return nil, "", fmt.Errorf("failed to upsert inventory item: %w", err)
	}

	var it InventoryItem
	err = tx.QueryRow(ctx, `
		SELECT id, org_id, product_id, warehouse_id, qty_on_hand, qty_reserved, updated_at
		FROM inventory_items
		WHERE org_id = $1 AND product_id = $2 AND warehouse_id = $3
		FOR UPDATE
	`, org, productID, warehouseID).Scan(
		&it.ID, &it.OrgID, &it.ProductID, &it.WarehouseID, &it.OnHand, &it.Reserved, &it.UpdatedAt,
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to lock inventory item: %w", err)
	}
	return &it, p.UOM, nil
}

func storeItem(ctx context.Context, tx pgx.Tx, it *InventoryItem) error {
	err := tx.QueryRow(ctx, `
		UPDATE inventory_items
		SET qty_on_hand = $1, qty_reserved = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`, it.OnHand, it.Reserved, it.ID).Scan(&it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update inventory item: %w", err)
	}
	return nil
}

func appendMove(ctx context.Context, tx pgx.Tx, m StockMove) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_moves (org_id, product_id, qty, uom, warehouse_from, warehouse_to,
		                         reason, ref_type, ref_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.OrgID, m.ProductID, m.Qty, m.UOM, m.WarehouseFrom, m.WarehouseTo,
		string(m.Reason), m.RefType, m.RefID, m.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to insert stock move: %w", err)
	}
	return nil
}
