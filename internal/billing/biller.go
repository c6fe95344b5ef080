// Package billing turns ended calls into ledger deductions.
//
// Biller bills a single call (webhook path), Reconciler sweeps an account for
// billable calls that were never billed, and Worker runs the sweep on a timer.
// Exactly-once billing is owned by the ledger store; this package only decides
// whether and how much to deduct.
package billing

import (
	"context"
	"fmt"
	"time"

	"inbound-genie/internal/calls"
	"inbound-genie/internal/credits"
	"inbound-genie/internal/metrics"
	"inbound-genie/internal/notify"
	"inbound-genie/internal/wallet"
	"inbound-genie/pkg/logger"

	"github.com/shopspring/decimal"
)

// LedgerStore is the part of the wallet store billing depends on.
type LedgerStore interface {
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	HasUsageLogForCall(ctx context.Context, callID string) (bool, error)
	BilledCallIDs(ctx context.Context, accountID string) (map[string]struct{}, error)
	RecordUsage(ctx context.Context, req wallet.UsageRequest) (wallet.UsageResult, error)
}

type Outcome int

const (
	OutcomeNotBillable Outcome = iota + 1
	OutcomeAlreadyBilled
	OutcomeBilled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotBillable:
		return metrics.OutcomeNotBillable
	case OutcomeAlreadyBilled:
		return metrics.OutcomeAlreadyBilled
	case OutcomeBilled:
		return metrics.OutcomeBilled
	default:
		return "unknown"
	}
}

type Biller struct {
	store LedgerStore
	sink  notify.Sink
	clock func() time.Time
}

// NewBiller builds a biller. sink may be nil, in which case alerts are only logged.
func NewBiller(store LedgerStore, sink notify.Sink) *Biller {
	return &Biller{store: store, sink: sink, clock: time.Now}
}

// BillCall runs the whole pipeline for one ended call:
// billable check, already-billed check, credit computation, deduction and
// the low-balance alert. Calling it again for the same call is a no-op.
func (b *Biller) BillCall(ctx context.Context, c calls.Call) (Outcome, error) {
	if !calls.IsBillable(c) {
		metrics.CallsBilled.WithLabelValues(metrics.OutcomeNotBillable).Inc()
		return OutcomeNotBillable, nil
	}

	billed, err := b.store.HasUsageLogForCall(ctx, c.CallID)
	if err != nil {
		metrics.CallsBilled.WithLabelValues(metrics.OutcomeError).Inc()
		return 0, fmt.Errorf("check usage log for call %s: %w", c.CallID, err)
	}
	if billed {
		metrics.CallsBilled.WithLabelValues(metrics.OutcomeAlreadyBilled).Inc()
		return OutcomeAlreadyBilled, nil
	}

	return b.deduct(ctx, c)
}

// deduct assumes c is billable and records its usage.
func (b *Biller) deduct(ctx context.Context, c calls.Call) (Outcome, error) {
	if c.DurationSeconds == nil {
		return OutcomeNotBillable, nil
	}
	amount, err := credits.ForDuration(*c.DurationSeconds)
	if err != nil {
		metrics.CallsBilled.WithLabelValues(metrics.OutcomeError).Inc()
		return 0, fmt.Errorf("call %s: %w", c.CallID, err)
	}

	res, err := b.store.RecordUsage(ctx, wallet.UsageRequest{
		AccountID:       c.AccountID,
		CallID:          c.CallID,
		AmountUsed:      amount,
		DurationSeconds: *c.DurationSeconds,
	})
	if err != nil {
		metrics.CallsBilled.WithLabelValues(metrics.OutcomeError).Inc()
		return 0, fmt.Errorf("record usage for call %s: %w", c.CallID, err)
	}

	log := logger.From(ctx).With("account_id", c.AccountID, "call_id", c.CallID)
	if res.Outcome == wallet.UsageAlreadyExists {
		metrics.CallsBilled.WithLabelValues(metrics.OutcomeAlreadyBilled).Inc()
		log.Debug("call already billed")
		return OutcomeAlreadyBilled, nil
	}

	metrics.CallsBilled.WithLabelValues(metrics.OutcomeBilled).Inc()
	metrics.CreditsDeducted.Add(amount.InexactFloat64())
	log.Info("call billed",
		"credits", amount.String(),
		"balance_before", res.BalanceBefore.String(),
		"balance_after", res.BalanceAfter.String(),
	)

	if alert, ok := credits.LowBalanceAlert(res.BalanceBefore, res.BalanceAfter); ok {
		b.notify(ctx, c, alert)
	}
	return OutcomeBilled, nil
}

// notify never fails the deduction that triggered it.
func (b *Biller) notify(ctx context.Context, c calls.Call, alert credits.Alert) {
	metrics.LowBalanceAlerts.WithLabelValues(string(alert.Severity)).Inc()
	log := logger.From(ctx).With("account_id", c.AccountID, "call_id", c.CallID, "severity", string(alert.Severity))
	if b.sink == nil {
		log.Warn("low balance alert without sink", "balance", alert.Balance.String())
		return
	}
	if err := b.sink.Emit(ctx, notify.FromAlert(c.AccountID, c.CallID, alert, b.clock())); err != nil {
		metrics.NotificationFailures.Inc()
		log.Warn("low balance notification failed", "err", err)
	}
}
