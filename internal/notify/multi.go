package notify

import (
	"context"
	"errors"
	"fmt"

	"erp-ledger/internal/core"

	"golang.org/x/sync/errgroup"
)

// Multi delivers each event to every notifier concurrently. One failing
// target does not stop the others; all errors are joined.
type Multi []core.Notifier

func (m Multi) Notify(ctx context.Context, e core.Event) error {
	errs := make([]error, len(m))
	var g errgroup.Group
	for i, n := range m {
		g.Go(func() error {
			if err := n.Notify(ctx, e); err != nil {
				errs[i] = fmt.Errorf("notifier %d: %w", i, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
