package billing

import (
	"context"
	"errors"
	"time"

	"inbound-genie/pkg/logger"
)

// AccountLister pages through every account id.
type AccountLister interface {
	ListAccountIDs(ctx context.Context, after string, limit int) ([]string, error)
}

// Worker periodically reconciles every account so calls missed by the
// webhook path get billed eventually.
type Worker struct {
	accounts   AccountLister
	reconciler *Reconciler
	interval   time.Duration
	batch      int
}

func NewWorker(accounts AccountLister, reconciler *Reconciler, interval time.Duration, batch int) *Worker {
	if batch <= 0 {
		batch = 100
	}
	return &Worker{accounts: accounts, reconciler: reconciler, interval: interval, batch: batch}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log := logger.From(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Info("reconcile worker started", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			log.Info("reconcile worker stopped")
			return
		case <-ticker.C:
			total, err := w.ReconcileAll(ctx)
			if err != nil {
				log.Error("reconcile cycle failed", "err", err)
				continue
			}
			log.Info("reconcile cycle finished", "processed", total.Processed, "errors", total.Errors, "skipped", total.Skipped)
		}
	}
}

// ReconcileAll runs one reconciliation pass over all accounts. Accounts locked
// by another runner are skipped; per-account failures are counted, not returned.
// The returned error is only set when accounts could not be listed.
func (w *Worker) ReconcileAll(ctx context.Context) (Result, error) {
	var total Result
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		ids, err := w.accounts.ListAccountIDs(ctx, after, w.batch)
		if err != nil {
			return total, err
		}
		for _, id := range ids {
			res, err := w.reconciler.ReconcileUnbilledCalls(ctx, id)
			if errors.Is(err, ErrReconcileInProgress) {
				continue
			}
			if err != nil {
				logger.From(ctx).Warn("reconcile account failed", "account_id", id, "err", err)
				total.Errors++
				continue
			}
			total.add(res)
		}
		if len(ids) < w.batch {
			return total, nil
		}
		after = ids[len(ids)-1]
	}
}
