package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"inbound-genie/internal/calls"
	"inbound-genie/internal/credits"
	"inbound-genie/internal/notify"
	"inbound-genie/internal/wallet"

	"github.com/shopspring/decimal"
)

func call(id, account string, status calls.CallStatus, seconds *int) calls.Call {
	return calls.Call{
		CallID:          id,
		AccountID:       account,
		Status:          status,
		DurationSeconds: seconds,
		CreatedAt:       time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func newStore(balance int64) *wallet.MemoryStore {
	return wallet.NewMemoryStore(wallet.Account{ID: "acct", Balance: decimal.NewFromInt(balance)})
}

// failingStore rejects RecordUsage for selected calls.
type failingStore struct {
	*wallet.MemoryStore
	failCalls map[string]bool
}

func (f *failingStore) RecordUsage(ctx context.Context, req wallet.UsageRequest) (wallet.UsageResult, error) {
	if f.failCalls[req.CallID] {
		return wallet.UsageResult{}, errors.New("ledger unavailable")
	}
	return f.MemoryStore.RecordUsage(ctx, req)
}

func TestBillCall_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(50)
	b := NewBiller(store, notify.NewMemorySink())
	c := call("c1", "acct", calls.CallStatusCompleted, calls.Seconds(90))

	got, err := b.BillCall(ctx, c)
	if err != nil || got != OutcomeBilled {
		t.Fatalf("first bill: outcome=%s err=%v", got, err)
	}
	got, err = b.BillCall(ctx, c)
	if err != nil || got != OutcomeAlreadyBilled {
		t.Fatalf("second bill: outcome=%s err=%v", got, err)
	}

	bal, _ := store.GetBalance(ctx, "acct")
	if !bal.Equal(decimal.NewFromFloat(48.5)) {
		t.Fatalf("expected exactly one deduction of 1.5, balance=%s", bal)
	}
	logs, _ := store.ListUsage(ctx, wallet.UsageQuery{AccountID: "acct"})
	if len(logs) != 1 {
		t.Fatalf("expected 1 usage log, got %d", len(logs))
	}
	if !logs[0].AmountUsed.Equal(decimal.NewFromFloat(1.5)) || logs[0].DurationSeconds != 90 {
		t.Fatalf("unexpected usage log: %+v", logs[0])
	}
}

func TestBillCall_NotBillable(t *testing.T) {
	ctx := context.Background()
	store := newStore(50)
	b := NewBiller(store, nil)

	cases := []calls.Call{
		call("p", "acct", calls.CallStatusPending, calls.Seconds(30)),
		call("ip", "acct", calls.CallStatusInProgress, calls.Seconds(30)),
		call("nodur", "acct", calls.CallStatusCompleted, nil),
	}
	for _, c := range cases {
		got, err := b.BillCall(ctx, c)
		if err != nil || got != OutcomeNotBillable {
			t.Fatalf("%s: outcome=%s err=%v", c.CallID, got, err)
		}
	}
	if bal, _ := store.GetBalance(ctx, "acct"); !bal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance should be untouched, got %s", bal)
	}
}

func TestBillCall_ZeroDurationIsBilledForZero(t *testing.T) {
	ctx := context.Background()
	store := newStore(50)
	b := NewBiller(store, nil)

	got, err := b.BillCall(ctx, call("z", "acct", calls.CallStatusNotConnected, calls.Seconds(0)))
	if err != nil || got != OutcomeBilled {
		t.Fatalf("outcome=%s err=%v", got, err)
	}
	if ok, _ := store.HasUsageLogForCall(ctx, "z"); !ok {
		t.Fatalf("expected usage log for zero-length call")
	}
	if bal, _ := store.GetBalance(ctx, "acct"); !bal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected balance 50, got %s", bal)
	}
}

func TestBillCall_NegativeDurationFails(t *testing.T) {
	b := NewBiller(newStore(50), nil)
	_, err := b.BillCall(context.Background(), call("neg", "acct", calls.CallStatusCompleted, calls.Seconds(-5)))
	if !errors.Is(err, credits.ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestBillCall_LowBalanceAlertOncePerCrossing(t *testing.T) {
	ctx := context.Background()
	store := newStore(11)
	sink := notify.NewMemorySink()
	b := NewBiller(store, sink)

	// 11 -> 9 crosses 10: warning
	if _, err := b.BillCall(ctx, call("a", "acct", calls.CallStatusCompleted, calls.Seconds(120))); err != nil {
		t.Fatalf("bill a: %v", err)
	}
	// 9 -> 8: no crossing
	if _, err := b.BillCall(ctx, call("b", "acct", calls.CallStatusCompleted, calls.Seconds(60))); err != nil {
		t.Fatalf("bill b: %v", err)
	}
	// replay of a: no deduction, no alert
	if _, err := b.BillCall(ctx, call("a", "acct", calls.CallStatusCompleted, calls.Seconds(120))); err != nil {
		t.Fatalf("replay a: %v", err)
	}
	// 8 -> 4 drops below 5 but was already under 10: no alert
	if _, err := b.BillCall(ctx, call("c", "acct", calls.CallStatusCompleted, calls.Seconds(240))); err != nil {
		t.Fatalf("bill c: %v", err)
	}

	got := sink.Notifications()
	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if got[0].Severity != credits.SeverityWarning || got[0].CallID != "a" {
		t.Fatalf("unexpected notification: %+v", got[0])
	}
}

func TestBillCall_CriticalAlertWhenCrossingTenLandsUnderFive(t *testing.T) {
	ctx := context.Background()
	sink := notify.NewMemorySink()
	b := NewBiller(newStore(12), sink)

	// 12 -> 3
	if _, err := b.BillCall(ctx, call("big", "acct", calls.CallStatusCompleted, calls.Seconds(540))); err != nil {
		t.Fatalf("bill: %v", err)
	}
	got := sink.Notifications()
	if len(got) != 1 || got[0].Severity != credits.SeverityCritical {
		t.Fatalf("expected one critical notification, got %+v", got)
	}
}

func TestBillCall_NotificationFailureKeepsDeduction(t *testing.T) {
	ctx := context.Background()
	store := newStore(11)
	sink := notify.NewMemorySink()
	sink.FailWith(errors.New("smtp down"))
	b := NewBiller(store, sink)

	got, err := b.BillCall(ctx, call("x", "acct", calls.CallStatusCompleted, calls.Seconds(120)))
	if err != nil || got != OutcomeBilled {
		t.Fatalf("outcome=%s err=%v", got, err)
	}
	if bal, _ := store.GetBalance(ctx, "acct"); !bal.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("expected balance 9, got %s", bal)
	}
}

func TestBillCall_StoreErrorSurfaces(t *testing.T) {
	store := &failingStore{MemoryStore: newStore(10), failCalls: map[string]bool{"x": true}}
	b := NewBiller(store, nil)
	if _, err := b.BillCall(context.Background(), call("x", "acct", calls.CallStatusCompleted, calls.Seconds(60))); err == nil {
		t.Fatalf("expected error")
	}
}
