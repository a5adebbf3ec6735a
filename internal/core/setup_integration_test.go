package core_test

import (
	"context"
	"io"
	"os"
	"testing"

	"erp-ledger/internal/core"
	"erp-ledger/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	orgA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	orgB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

// Seeded ids.
const (
	customerA = 1
	supplierA = 2
	customerB = 3

	widgetA  = 1 // physical, price 10.00, cost 6.00, 21%
	serviceA = 2 // service, price 50.00, 10%
	widgetB  = 3
	gadgetA  = 4 // physical, price 4.50, cost 2.25, 21%

	mainWH   = 1
	secondWH = 2
	mainWHB  = 3
)

// services bundles every ledger service wired against the test pool.
type services struct {
	pool      *pgxpool.Pool
	seq       core.SequenceService
	stock     core.StockLedger
	invoices  core.InvoiceService
	quotes    core.QuoteService
	delivery  core.DeliveryNoteService
	orders    core.PurchaseOrderService
	purchases core.SupplierInvoiceService
	notifier  *recordingNotifier
}

type recordingNotifier struct {
	events chan core.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e core.Event) error {
	n.events <- e
	return nil
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	if _, err := db.MigrateUp(dbURL); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE supplier_payments, supplier_invoice_lines, supplier_invoices,
			purchase_order_lines, purchase_orders, delivery_note_lines, delivery_notes,
			quote_lines, quotes, payments, invoice_lines, invoices, invoice_sequences,
			stock_moves, inventory_items, warehouses, products, contacts, organizations
			RESTART IDENTITY CASCADE;

		INSERT INTO organizations (id, name) VALUES
		('11111111-1111-1111-1111-111111111111', 'Org A'),
		('22222222-2222-2222-2222-222222222222', 'Org B');

		INSERT INTO contacts (id, org_id, kind, name) VALUES
		(1, '11111111-1111-1111-1111-111111111111', 'client',   'Acme Retail'),
		(2, '11111111-1111-1111-1111-111111111111', 'supplier', 'Parts Supply'),
		(3, '22222222-2222-2222-2222-222222222222', 'client',   'Other Tenant Client');

		INSERT INTO products (id, org_id, sku, name, uom, tax_rate, price, cost_price, is_service) VALUES
		(1, '11111111-1111-1111-1111-111111111111', 'W-1', 'Widget',     'unidad', 21.00, 10.00, 6.00, false),
		(2, '11111111-1111-1111-1111-111111111111', 'S-1', 'Consulting', 'hora',   10.00, 50.00, 0.00, true),
		(3, '22222222-2222-2222-2222-222222222222', 'W-1', 'Widget B',   'unidad', 21.00, 12.00, 7.00, false),
		(4, '11111111-1111-1111-1111-111111111111', 'G-1', 'Gadget',     'unidad', 21.00,  4.50, 2.25, false);

		INSERT INTO warehouses (id, org_id, code, name, is_primary) VALUES
		(1, '11111111-1111-1111-1111-111111111111', 'MAIN',   'Main',      true),
		(2, '11111111-1111-1111-1111-111111111111', 'SECOND', 'Overflow',  false),
		(3, '22222222-2222-2222-2222-222222222222', 'MAIN',   'B Main',    true);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}
	return pool
}

func setupServices(t *testing.T) (*services, context.Context) {
	t.Helper()
	pool := setupTestDB(t)

	log := logrus.New()
	log.SetOutput(io.Discard)

	notifier := &recordingNotifier{events: make(chan core.Event, 16)}
	seq := core.NewSequenceService(pool)
	stock := core.NewStockLedger(pool)
	invoices := core.NewInvoiceService(pool, seq, notifier, log)

	return &services{
		pool:      pool,
		seq:       seq,
		stock:     stock,
		invoices:  invoices,
		quotes:    core.NewQuoteService(pool, seq, invoices),
		delivery:  core.NewDeliveryNoteService(pool, seq, stock),
		orders:    core.NewPurchaseOrderService(pool, seq),
		purchases: core.NewSupplierInvoiceService(pool, seq, stock),
		notifier:  notifier,
	}, context.Background()
}
