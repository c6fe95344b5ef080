package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"inbound-genie/internal/calls"
	"inbound-genie/internal/metrics"
	"inbound-genie/pkg/logger"
)

var ErrReconcileInProgress = errors.New("billing: reconciliation already running for account")

// CallSource lists the call records of an account.
type CallSource interface {
	ListCallsForAccount(ctx context.Context, accountID string) ([]calls.Call, error)
}

// Result summarizes one reconciliation run.
// Processed counts new deductions, Errors counts calls that failed and will
// be retried next run, Skipped counts calls billed concurrently by someone else.
type Result struct {
	AccountID string `json:"account_id"`
	Processed int    `json:"processed"`
	Errors    int    `json:"errors"`
	Skipped   int    `json:"skipped"`
}

func (r *Result) add(o Result) {
	r.Processed += o.Processed
	r.Errors += o.Errors
	r.Skipped += o.Skipped
}

type Reconciler struct {
	calls  CallSource
	store  LedgerStore
	biller *Biller

	workers int
	locker  Locker
	lockTTL time.Duration
}

func NewReconciler(src CallSource, store LedgerStore, biller *Biller) *Reconciler {
	return &Reconciler{calls: src, store: store, biller: biller, workers: 1}
}

// WithWorkers sets how many calls of one account are billed in parallel.
func (r *Reconciler) WithWorkers(n int) *Reconciler {
	if n < 1 {
		n = 1
	}
	r.workers = n
	return r
}

// WithLocker makes runs for the same account mutually exclusive across processes.
func (r *Reconciler) WithLocker(l Locker, ttl time.Duration) *Reconciler {
	r.locker, r.lockTTL = l, ttl
	return r
}

// ReconcileUnbilledCalls bills every billable call of the account that has no
// usage log yet. A failing call is counted and the run moves on; the call
// stays unbilled and the next run retries it.
func (r *Reconciler) ReconcileUnbilledCalls(ctx context.Context, accountID string) (Result, error) {
	res := Result{AccountID: accountID}
	if accountID == "" {
		return res, calls.ErrInvalidArgument
	}
	log := logger.From(ctx).With("account_id", accountID)
	start := time.Now()

	if r.locker != nil {
		key := reconcileLockKey(accountID)
		ok, err := r.locker.TryLock(ctx, key, r.lockTTL)
		if err != nil {
			metrics.ReconcileRuns.WithLabelValues("error").Inc()
			return res, fmt.Errorf("acquire reconcile lock: %w", err)
		}
		if !ok {
			metrics.ReconcileRuns.WithLabelValues("locked").Inc()
			return res, ErrReconcileInProgress
		}
		defer func() {
			if err := r.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
				log.Warn("release reconcile lock failed", "err", err)
			}
		}()
	}

	pending, err := r.unbilled(ctx, accountID)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return res, err
	}

	if r.workers <= 1 || len(pending) <= 1 {
		for _, c := range pending {
			res.add(r.billOne(ctx, c))
		}
	} else {
		res.add(r.billParallel(ctx, pending))
	}

	metrics.ReconcileRuns.WithLabelValues("ok").Inc()
	metrics.ReconcileCalls.WithLabelValues("processed").Add(float64(res.Processed))
	metrics.ReconcileCalls.WithLabelValues("skipped").Add(float64(res.Skipped))
	metrics.ReconcileCalls.WithLabelValues("error").Add(float64(res.Errors))
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())

	log.Info("reconciliation finished",
		"candidates", len(pending),
		"processed", res.Processed,
		"errors", res.Errors,
		"skipped", res.Skipped,
	)
	return res, nil
}

// unbilled returns the billable calls of the account minus those already in
// the usage log.
func (r *Reconciler) unbilled(ctx context.Context, accountID string) ([]calls.Call, error) {
	all, err := r.calls.ListCallsForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	billed, err := r.store.BilledCallIDs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list billed calls: %w", err)
	}

	out := make([]calls.Call, 0, len(all))
	for _, c := range all {
		if !calls.IsBillable(c) {
			continue
		}
		if _, ok := billed[c.CallID]; ok {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *Reconciler) billOne(ctx context.Context, c calls.Call) Result {
	outcome, err := r.biller.deduct(ctx, c)
	if err != nil {
		logger.From(ctx).Warn("reconcile call failed", "account_id", c.AccountID, "call_id", c.CallID, "err", err)
		return Result{Errors: 1}
	}
	switch outcome {
	case OutcomeBilled:
		return Result{Processed: 1}
	default:
		return Result{Skipped: 1}
	}
}

func (r *Reconciler) billParallel(ctx context.Context, pending []calls.Call) Result {
	jobs := make(chan calls.Call, len(pending))
	var (
		mu  sync.Mutex
		res Result
		wg  sync.WaitGroup
	)

	workers := min(r.workers, len(pending))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				one := r.billOne(ctx, c)
				mu.Lock()
				res.add(one)
				mu.Unlock()
			}
		}()
	}

	for _, c := range pending {
		jobs <- c
	}
	close(jobs)
	wg.Wait()
	return res
}
