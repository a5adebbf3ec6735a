package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// lineTable names a document's owned line table. Values are compile-time
// constants and are safe to interpolate into SQL.
type lineTable struct {
	name   string
	parent string
	priced bool
}

var (
	invoiceLineTable         = lineTable{name: "invoice_lines", parent: "invoice_id", priced: true}
	quoteLineTable           = lineTable{name: "quote_lines", parent: "quote_id", priced: true}
	deliveryNoteLineTable    = lineTable{name: "delivery_note_lines", parent: "delivery_note_id"}
	purchaseOrderLineTable   = lineTable{name: "purchase_order_lines", parent: "purchase_order_id", priced: true}
	supplierInvoiceLineTable = lineTable{name: "supplier_invoice_lines", parent: "supplier_invoice_id", priced: true}
)

// priceSource selects which catalog price a line defaults to.
type priceSource int

const (
	salePrice priceSource = iota
	costPrice
)

// resolveLines validates inputs, fills catalog defaults and computes per-line amounts.
// Every referenced product must belong to org. Figures finer than their column
// scale are rejected so stored lines reproduce the stored totals.
func resolveLines(ctx context.Context, q pgxQuerier, org uuid.UUID, inputs []LineInput, src priceSource) ([]Line, error) {
	out := make([]Line, 0, len(inputs))
	for i, in := range inputs {
		n := i + 1
		if in.Qty.IsNegative() {
			return nil, invalid("line %d: quantity cannot be negative, got %s", n, in.Qty)
		}
		if in.DiscountPct.IsNegative() || in.DiscountPct.GreaterThan(hundred) {
			return nil, invalid("line %d: discount must be between 0 and 100, got %s", n, in.DiscountPct)
		}
		if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
			return nil, invalid("line %d: unit price cannot be negative, got %s", n, in.UnitPrice)
		}
		if in.TaxRate != nil && in.TaxRate.IsNegative() {
			return nil, invalid("line %d: tax rate cannot be negative, got %s", n, in.TaxRate)
		}
		if !fitsScale(in.Qty, qtyScale) {
			return nil, invalid("line %d: quantity allows at most %d decimals, got %s", n, qtyScale, in.Qty)
		}
		if !fitsScale(in.DiscountPct, rateScale) {
			return nil, invalid("line %d: discount allows at most %d decimals, got %s", n, rateScale, in.DiscountPct)
		}
		if in.UnitPrice != nil && !fitsScale(*in.UnitPrice, moneyScale) {
			return nil, invalid("line %d: unit price allows at most %d decimals, got %s", n, moneyScale, in.UnitPrice)
		}
		if in.TaxRate != nil && !fitsScale(*in.TaxRate, rateScale) {
			return nil, invalid("line %d: tax rate allows at most %d decimals, got %s", n, rateScale, in.TaxRate)
		}

		l := Line{
			ProductID:   in.ProductID,
			Description: in.Description,
			Qty:         in.Qty,
			UOM:         in.UOM,
			DiscountPct: in.DiscountPct,
			UnitPrice:   decimal.Zero,
			TaxRate:     defaultTaxRate,
		}

		if in.ProductID != nil {
			p, err := loadProduct(ctx, q, org, *in.ProductID)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n, err)
			}
			if l.Description == "" {
				l.Description = p.Name
			}
			if l.UOM == "" {
				l.UOM = p.UOM
			}
			l.TaxRate = p.TaxRate
			if src == costPrice {
				l.UnitPrice = p.CostPrice
			} else {
				l.UnitPrice = p.Price
			}
		} else if l.Description == "" {
			return nil, invalid("line %d: description is required when no product is set", n)
		}

		if l.UOM == "" {
			l.UOM = defaultUOM
		}
		if in.UnitPrice != nil {
			l.UnitPrice = *in.UnitPrice
		}
		if in.TaxRate != nil {
			l.TaxRate = *in.TaxRate
		}

		amounts := ComputeLine(l.priced())
		l.LineBase, l.LineTax, l.LineTotal = amounts.Base, amounts.Tax, amounts.Total
		out = append(out, l)
	}
	return out, nil
}

// insertLines appends lines to a document starting after its current last position.
func insertLines(ctx context.Context, tx pgx.Tx, t lineTable, docID int, lines []Line) error {
	var pos int
	if err := tx.QueryRow(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(position), 0) FROM %s WHERE %s = $1", t.name, t.parent),
		docID,
	).Scan(&pos); err != nil {
		return fmt.Errorf("failed to read line positions: %w", err)
	}

	for i := range lines {
		pos++
		lines[i].Position = pos
		var err error
		if t.priced {
			err = tx.QueryRow(ctx, fmt.Sprintf(`
				INSERT INTO %s (%s, position, product_id, description, qty, uom,
				                unit_price, discount_pct, tax_rate, line_base, line_tax, line_total)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				RETURNING id
			`, t.name, t.parent),
				docID, pos, lines[i].ProductID, lines[i].Description, lines[i].Qty, lines[i].UOM,
				lines[i].UnitPrice, lines[i].DiscountPct, lines[i].TaxRate,
				lines[i].LineBase, lines[i].LineTax, lines[i].LineTotal,
			).Scan(&lines[i].ID)
		} else {
			err = tx.QueryRow(ctx, fmt.Sprintf(`
				INSERT INTO %s (%s, position, product_id, description, qty, uom)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id
			`, t.name, t.parent),
				docID, pos, lines[i].ProductID, lines[i].Description, lines[i].Qty, lines[i].UOM,
			).Scan(&lines[i].ID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert line %d: %w", i+1, err)
		}
	}
	return nil
}

func deleteLines(ctx context.Context, tx pgx.Tx, t lineTable, docID int) error {
	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", t.name, t.parent), docID); err != nil {
		return fmt.Errorf("failed to delete lines: %w", err)
	}
	return nil
}

// fetchLines always reads from storage so totals reflect every committed writer.
func fetchLines(ctx context.Context, q pgxRowQuerier, t lineTable, docID int) ([]Line, error) {
	cols := "id, position, product_id, description, qty, uom, unit_price, discount_pct, tax_rate, line_base, line_tax, line_total"
	if !t.priced {
		cols = "id, position, product_id, description, qty, uom, 0::numeric, 0::numeric, 0::numeric, 0::numeric, 0::numeric, 0::numeric"
	}
	rows, err := q.Query(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 ORDER BY position, id", cols, t.name, t.parent),
		docID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.Position, &l.ProductID, &l.Description, &l.Qty, &l.UOM,
			&l.UnitPrice, &l.DiscountPct, &l.TaxRate, &l.LineBase, &l.LineTax, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// recomputeTotals re-reads every line of the document and stores the derived totals.
func recomputeTotals(ctx context.Context, tx pgx.Tx, docTable string, t lineTable, docID int) (Totals, int, error) {
	lines, err := fetchLines(ctx, tx, t, docID)
	if err != nil {
		return Totals{}, 0, err
	}
	totals := totalsOf(lines)
	if _, err := tx.Exec(ctx,
		fmt.Sprintf("UPDATE %s SET totals_base = $1, totals_tax = $2, total = $3 WHERE id = $4", docTable),
		totals.Base, totals.Tax, totals.Total, docID,
	); err != nil {
		return Totals{}, 0, fmt.Errorf("failed to store totals: %w", err)
	}
	return totals, len(lines), nil
}

// stocked reports whether a line moves physical stock: it must reference a
// non-service product and carry a positive quantity.
func stocked(ctx context.Context, q pgxQuerier, org uuid.UUID, l Line) (bool, error) {
	if l.ProductID == nil || !l.Qty.IsPositive() {
		return false, nil
	}
	p, err := loadProduct(ctx, q, org, *l.ProductID)
	if err != nil {
		return false, err
	}
	return !p.IsService, nil
}

// stockedLines keeps the lines that move physical stock, in document order.
func stockedLines(ctx context.Context, q pgxQuerier, org uuid.UUID, lines []Line) ([]Line, error) {
	var out []Line
	for _, l := range lines {
		ok, err := stocked(ctx, q, org, l)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func productIDs(lines []Line) []int {
	ids := make([]int, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, *l.ProductID)
	}
	return ids
}
