// restore-seed is a one-shot tool to restore the demo tenant: one
// organization with a customer, a supplier, two warehouses and a small
// catalog. It prints a bearer token for the tenant so the API can be
// exercised straight away.
//
// Usage: go run ./cmd/restore-seed
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	webAdapter "erp-ledger/internal/adapters/web"
	"erp-ledger/internal/config"
	"erp-ledger/internal/db"
	"erp-ledger/internal/logging"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// demoOrg is fixed so repeated runs upsert the same tenant.
var demoOrg = uuid.MustParse("6f1c2b8e-4d3a-4b7e-9a51-0c2d7e8f9a10")

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("logging: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		logger.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	logger.Info("Restoring organization...")
	_, err = tx.Exec(ctx, `
		INSERT INTO organizations (id, name)
		VALUES ($1, 'Demo Distribución S.L.')
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, demoOrg)
	if err != nil {
		logger.Fatalf("Failed to restore organization: %v", err)
	}

	logger.Info("Restoring contacts...")
	_, err = tx.Exec(ctx, `
		INSERT INTO contacts (org_id, kind, name, email)
		SELECT $1::uuid, c.kind, c.name, c.email
		FROM (VALUES
		    ('client',   'Ferretería López',       'compras@ferreterialopez.example'),
		    ('supplier', 'Suministros Industriales','ventas@suministros.example')
		) AS c(kind, name, email)
		WHERE NOT EXISTS (
		    SELECT 1 FROM contacts x WHERE x.org_id = $1::uuid AND x.name = c.name
		)
	`, demoOrg)
	if err != nil {
		logger.Fatalf("Failed to restore contacts: %v", err)
	}

	logger.Info("Restoring warehouses...")
	_, err = tx.Exec(ctx, `
		INSERT INTO warehouses (org_id, code, name, is_primary)
		VALUES ($1, 'MAD', 'Madrid central', true),
		       ($1, 'BCN', 'Barcelona', false)
		ON CONFLICT (org_id, code) DO UPDATE SET name = EXCLUDED.name, is_primary = EXCLUDED.is_primary
	`, demoOrg)
	if err != nil {
		logger.Fatalf("Failed to restore warehouses: %v", err)
	}

	logger.Info("Restoring catalog...")
	_, err = tx.Exec(ctx, `
		INSERT INTO products (org_id, sku, name, uom, tax_rate, price, cost_price, is_service)
		SELECT $1::uuid, p.sku, p.name, p.uom, p.tax_rate, p.price, p.cost_price, p.is_service
		FROM (VALUES
		    ('TOR-M8',  'Tornillo M8 (caja 100)', 'caja',   21.00, 12.50, 7.20,  false),
		    ('TAL-18V', 'Taladro 18V',            'unidad', 21.00, 89.90, 55.00, false),
		    ('GUA-NIT', 'Guantes nitrilo',        'par',    10.00, 3.20,  1.10,  false),
		    ('INST',    'Instalación (hora)',     'hora',   21.00, 40.00, 0,     true)
		) AS p(sku, name, uom, tax_rate, price, cost_price, is_service)
		ON CONFLICT (org_id, sku) DO UPDATE
		  SET name = EXCLUDED.name,
		      uom = EXCLUDED.uom,
		      tax_rate = EXCLUDED.tax_rate,
		      price = EXCLUDED.price,
		      cost_price = EXCLUDED.cost_price,
		      is_service = EXCLUDED.is_service
	`, demoOrg)
	if err != nil {
		logger.Fatalf("Failed to restore catalog: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Fatalf("Failed to commit: %v", err)
	}
	logger.WithField("org_id", demoOrg).Info("Seed data restored successfully")

	token, err := webAdapter.SignToken(cfg.JWTSecret, demoOrg, "restore-seed", 24*time.Hour)
	if err != nil {
		logger.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Fprintf(os.Stdout, "Authorization: Bearer %s\n", token)
}
