package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "erp-ledger/internal/adapters/web"
	"erp-ledger/internal/app"
	"erp-ledger/internal/config"
	"erp-ledger/internal/core"
	"erp-ledger/internal/db"
	"erp-ledger/internal/logging"
	"erp-ledger/internal/notify"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		changed, err := db.MigrateUp(cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("migrate: %v", err)
		}
		logger.WithField("changed", changed).Info("schema up to date")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()

	notifier, closeNotifier, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("notifier: %v", err)
	}
	defer closeNotifier()

	seq := core.NewSequenceService(pool)
	stock := core.NewStockLedger(pool)
	invoices := core.NewInvoiceService(pool, seq, notifier, logger)
	quotes := core.NewQuoteService(pool, seq, invoices)
	delivery := core.NewDeliveryNoteService(pool, seq, stock)
	orders := core.NewPurchaseOrderService(pool, seq)
	purchases := core.NewSupplierInvoiceService(pool, seq, stock)

	svc := app.NewAppService(stock, invoices, quotes, delivery, orders, purchases, cfg.InvoiceSeries)
	handler := webAdapter.NewHandler(svc, webAdapter.Options{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("graceful shutdown failed")
		}
	}
}

// buildNotifier fans invoice events out to every configured sink. With no
// sink configured events are only logged.
func buildNotifier(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (core.Notifier, func(), error) {
	var sinks notify.Multi
	closeFn := func() {}

	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookTimeout))
		logger.WithField("url", cfg.WebhookURL).Info("webhook notifications enabled")
	}
	if cfg.PubSubProjectID != "" {
		ps, err := notify.NewPubSub(ctx, cfg.PubSubProjectID, cfg.PubSubTopic, cfg.PubSubCredentialsJSON)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, ps)
		closeFn = func() {
			if err := ps.Close(); err != nil {
				logger.WithError(err).Warn("pubsub close failed")
			}
		}
		logger.WithField("topic", cfg.PubSubTopic).Info("pubsub notifications enabled")
	}
	if len(sinks) == 0 {
		return notify.NewLog(logger), closeFn, nil
	}
	return sinks, closeFn, nil
}
