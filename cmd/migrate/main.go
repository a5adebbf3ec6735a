// migrate applies or rolls back the embedded ledger schema.
//
// Usage:
//
//	go run ./cmd/migrate up
//	go run ./cmd/migrate down 1
//	go run ./cmd/migrate version
package main

import (
	"fmt"
	"os"
	"strconv"

	"erp-ledger/internal/config"
	"erp-ledger/internal/db"
	"erp-ledger/internal/logging"

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

	if err := run(cfg.DatabaseURL, os.Args[1:], logger); err != nil {
		logger.Fatal(err)
	}
}

func run(dbURL string, args []string, logger logrus.FieldLogger) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: migrate up | down N | version")
	}
	switch args[0] {
	case "up":
		changed, err := db.MigrateUp(dbURL)
		if err != nil {
			return err
		}
		logger.WithField("changed", changed).Info("migrations applied")
	case "down":
		if len(args) != 2 {
			return fmt.Errorf("usage: migrate down N")
		}
		steps, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid step count %q: %w", args[1], err)
		}
		if err := db.MigrateDown(dbURL, steps); err != nil {
			return err
		}
		logger.WithField("steps", steps).Info("migrations rolled back")
	case "version":
		v, dirty, err := db.MigrationVersion(dbURL)
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"version": v, "dirty": dirty}).Info("schema version")
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}
