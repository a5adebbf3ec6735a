package notify

import (
	"context"

	"erp-ledger/internal/core"

	"github.com/sirupsen/logrus"
)

// Log records events in the process log. It is the fallback when no external
// target is configured.
type Log struct {
	log logrus.FieldLogger
}

func NewLog(log logrus.FieldLogger) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(_ context.Context, e core.Event) error {
	l.log.WithFields(logrus.Fields{
		"event":       e.Name,
		"org_id":      e.OrgID,
		"occurred_at": e.OccurredAt,
		"payload":     e.Payload,
	}).Info("ledger event")
	return nil
}
