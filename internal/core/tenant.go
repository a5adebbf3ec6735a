package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// pgxQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxRowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ContactKind is the directory tag of a contact.
type ContactKind string

const (
	ContactClient   ContactKind = "client"
	ContactEmployee ContactKind = "employee"
	ContactSupplier ContactKind = "supplier"
)

// requireContact checks that the contact belongs to org and, when kind is
// non-empty, that it carries that tag.
func requireContact(ctx context.Context, q pgxQuerier, org uuid.UUID, contactID int, kind ContactKind) error {
	var got ContactKind
	err := q.QueryRow(ctx,
		"SELECT kind FROM contacts WHERE id = $1 AND org_id = $2",
		contactID, org,
	).Scan(&got)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("contact %d", contactID)
		}
		return fmt.Errorf("failed to resolve contact: %w", err)
	}
	if kind != "" && got != kind {
		return invalid("contact %d is a %s, expected %s", contactID, got, kind)
	}
	return nil
}

func requireWarehouse(ctx context.Context, q pgxQuerier, org uuid.UUID, warehouseID int) error {
	var id int
	err := q.QueryRow(ctx,
		"SELECT id FROM warehouses WHERE id = $1 AND org_id = $2",
		warehouseID, org,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("warehouse %d", warehouseID)
		}
		return fmt.Errorf("failed to resolve warehouse: %w", err)
	}
	return nil
}

func loadProduct(ctx context.Context, q pgxQuerier, org uuid.UUID, productID int) (*Product, error) {
	var p Product
	err := q.QueryRow(ctx, `
		SELECT id, org_id, sku, name, uom, tax_rate, price, cost_price, is_service
		FROM products
		WHERE id = $1 AND org_id = $2
	`, productID, org).Scan(&p.ID, &p.OrgID, &p.SKU, &p.Name, &p.UOM, &p.TaxRate, &p.Price, &p.CostPrice, &p.IsService)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("product %d", productID)
		}
		return nil, fmt.Errorf("failed to resolve product: %w", err)
	}
	return &p, nil
}
