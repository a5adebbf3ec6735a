// verify-db audits a ledger database for drift between derived state and the
// records it is derived from. It exits non-zero when any check finds a
// violation.
//
// Usage: go run ./cmd/verify-db
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"erp-ledger/internal/config"
	"erp-ledger/internal/core"
	"erp-ledger/internal/db"
	"erp-ledger/internal/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// check is one audit query. Every returned row describes a violation.
type check struct {
	tag   string
	query string
	args  []any
}

var documentSeries = []string{
	core.SeriesQuote, core.SeriesDeliveryNote, core.SeriesPurchaseOrder, core.SeriesSupplierInvoice,
}

var checks = []check{
	{
		tag: "STOCK",
		query: `
			WITH net AS (
				SELECT org_id, product_id, COALESCE(warehouse_to, warehouse_from) AS warehouse_id, SUM(qty) AS qty
				FROM stock_moves
				GROUP BY 1, 2, 3
			)
			SELECT format('org %s product %s warehouse %s: on hand %s but moves net %s',
			              i.org_id, i.product_id, i.warehouse_id, i.qty_on_hand, COALESCE(n.qty, 0))
			FROM inventory_items i
			LEFT JOIN net n USING (org_id, product_id, warehouse_id)
			WHERE i.qty_on_hand <> COALESCE(n.qty, 0)`,
	},
	{
		tag: "SEQUENCE",
		query: `
			SELECT format('org %s series %s year %s: counter %s but %s numbered invoices (max %s)',
			              s.org_id, s.series, s.year, s.last_number, COUNT(i.id), COALESCE(MAX(i.number), 0))
			FROM invoice_sequences s
			LEFT JOIN invoices i
			       ON i.org_id = s.org_id AND i.series = s.series AND i.year = s.year AND i.number IS NOT NULL
			WHERE s.series <> ALL($1::text[])
			GROUP BY s.org_id, s.series, s.year, s.last_number
			HAVING COUNT(i.id) <> s.last_number OR COALESCE(MAX(i.number), 0) <> s.last_number`,
		args: []any{documentSeries},
	},
	{
		tag: "PAYMENTS",
		query: `
			SELECT format('invoice %s: paid %s exceeds total %s', i.id, SUM(p.amount), i.total)
			FROM invoices i
			JOIN payments p ON p.invoice_id = i.id
			GROUP BY i.id, i.total
			HAVING SUM(p.amount) - i.total > $1`,
		args: []any{core.PaymentTolerance},
	},
	{
		tag: "PAYMENTS",
		query: `
			SELECT format('supplier invoice %s: paid %s exceeds total %s', si.id, SUM(p.amount), si.total)
			FROM supplier_invoices si
			JOIN supplier_payments p ON p.supplier_invoice_id = si.id
			GROUP BY si.id, si.total
			HAVING SUM(p.amount) - si.total > $1`,
		args: []any{core.PaymentTolerance},
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("logging: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	version, dirty, err := db.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("[VERSION] %v", err)
	}
	if dirty {
		logger.Fatalf("[VERSION] schema version %d is dirty; fix the failed migration first", version)
	}
	logger.Infof("[VERSION] schema at %d", version)

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("[CONNECT] %v", err)
	}
	defer pool.Close()

	violations := 0
	for _, c := range checks {
		n, err := run(ctx, pool, c, logger)
		if err != nil {
			logger.Fatalf("[%s] %v", c.tag, err)
		}
		violations += n
	}

	if violations > 0 {
		logger.Errorf("[DONE] %d violation(s) found", violations)
		os.Exit(1)
	}
	logger.Info("[DONE] ledger is consistent")
}

func run(ctx context.Context, pool *pgxpool.Pool, c check, logger logrus.FieldLogger) (int, error) {
	rows, err := pool.Query(ctx, c.query, c.args...)
	if err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return n, fmt.Errorf("scan failed: %w", err)
		}
		logger.Warnf("[%s] %s", c.tag, msg)
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	if n == 0 {
		logger.Infof("[%s] ok", c.tag)
	}
	return n, nil
}
