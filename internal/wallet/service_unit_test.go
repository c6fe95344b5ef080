package wallet

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"inbound-genie/internal/credits"

	"github.com/shopspring/decimal"
)

// The Postgres Service relies on SELECT ... FOR UPDATE and the unique
// constraint on usage_logs; end-to-end balance behavior is covered through
// MemoryStore, which shares the validation and clamping helpers.

func TestService_RejectsInvalidArgsWithoutDB(t *testing.T) {
	svc := NewService((*sql.DB)(nil))
	ctx := context.Background()

	if _, err := svc.RecordUsage(ctx, UsageRequest{CallID: "c"}); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := svc.TopUp(ctx, "a", TopUpRequest{Amount: decimal.NewFromInt(1), Source: TopUpSourceAdmin}); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := svc.GrantTrial(ctx, ""); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := svc.GetBalance(ctx, ""); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := svc.HasUsageLogForCall(ctx, ""); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func fixedClock() func() time.Time {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestMemoryStore_RecordUsage_DeductsOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(Account{ID: "acct-1", Balance: decimal.NewFromInt(50)}).WithClock(fixedClock())

	req := UsageRequest{AccountID: "acct-1", CallID: "call-1", AmountUsed: decimal.NewFromFloat(1.5), DurationSeconds: 90}
	res, err := m.RecordUsage(ctx, req)
	if err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if res.Outcome != UsageInserted {
		t.Fatalf("expected inserted, got %s", res.Outcome)
	}
	if !res.BalanceAfter.Equal(decimal.NewFromFloat(48.5)) {
		t.Fatalf("expected 48.5, got %s", res.BalanceAfter)
	}

	res, err = m.RecordUsage(ctx, req)
	if err != nil {
		t.Fatalf("RecordUsage replay: %v", err)
	}
	if res.Outcome != UsageAlreadyExists {
		t.Fatalf("expected already_exists, got %s", res.Outcome)
	}

	bal, _ := m.GetBalance(ctx, "acct-1")
	if !bal.Equal(decimal.NewFromFloat(48.5)) {
		t.Fatalf("balance changed on replay: %s", bal)
	}
	logs, _ := m.ListUsage(ctx, UsageQuery{AccountID: "acct-1"})
	if len(logs) != 1 {
		t.Fatalf("expected 1 usage log, got %d", len(logs))
	}
	if ok, _ := m.HasUsageLogForCall(ctx, "call-1"); !ok {
		t.Fatalf("expected usage log for call-1")
	}
}

func TestMemoryStore_RecordUsage_ClampsAtZero(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(Account{ID: "a", Balance: decimal.NewFromInt(1)})

	res, err := m.RecordUsage(ctx, UsageRequest{AccountID: "a", CallID: "c", AmountUsed: decimal.NewFromInt(3), DurationSeconds: 180})
	if err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if !res.BalanceAfter.IsZero() {
		t.Fatalf("expected balance clamped to 0, got %s", res.BalanceAfter)
	}
}

func TestMemoryStore_RecordUsage_UnknownAccount(t *testing.T) {
	m := NewMemoryStore()
	_, err := m.RecordUsage(context.Background(), UsageRequest{AccountID: "nope", CallID: "c", AmountUsed: decimal.NewFromInt(1)})
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_TopUp_IdempotentAndMarksPaid(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(Account{ID: "a", Balance: decimal.NewFromInt(2)})

	req := TopUpRequest{Amount: decimal.NewFromInt(30), Source: TopUpSourcePurchase, IdempotencyKey: "order-1"}
	t1, acct, err := m.TopUp(ctx, "a", req)
	if err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	if !acct.Balance.Equal(decimal.NewFromInt(32)) {
		t.Fatalf("expected 32, got %s", acct.Balance)
	}
	if acct.PaymentStatus != credits.PaymentStatusPaid {
		t.Fatalf("expected paid, got %q", acct.PaymentStatus)
	}

	t2, acct, err := m.TopUp(ctx, "a", req)
	if err != nil {
		t.Fatalf("TopUp replay: %v", err)
	}
	if t1.ID != t2.ID {
		t.Fatalf("replay should return original top-up")
	}
	if !acct.Balance.Equal(decimal.NewFromInt(32)) {
		t.Fatalf("replay credited twice: %s", acct.Balance)
	}
}

func TestMemoryStore_GrantTrial_Once(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore().WithClock(fixedClock())

	acct, granted, err := m.GrantTrial(ctx, "new")
	if err != nil {
		t.Fatalf("GrantTrial: %v", err)
	}
	if !granted {
		t.Fatalf("expected grant")
	}
	if !acct.Balance.Equal(decimal.NewFromInt(credits.TrialGrantCredits)) {
		t.Fatalf("expected %d credits, got %s", credits.TrialGrantCredits, acct.Balance)
	}
	want := fixedClock()().Add(credits.TrialDuration)
	if acct.TrialExpiresAt == nil || !acct.TrialExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, acct.TrialExpiresAt)
	}

	acct, granted, err = m.GrantTrial(ctx, "new")
	if err != nil {
		t.Fatalf("GrantTrial again: %v", err)
	}
	if granted {
		t.Fatalf("second grant should be a no-op")
	}
	if !acct.Balance.Equal(decimal.NewFromInt(credits.TrialGrantCredits)) {
		t.Fatalf("balance changed on second grant: %s", acct.Balance)
	}
	if n := len(m.TopUps()); n != 1 {
		t.Fatalf("expected 1 top-up, got %d", n)
	}
}

func TestMemoryStore_ListAccountIDs_Pages(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(Account{ID: "c"}, Account{ID: "a"}, Account{ID: "b"})

	page, err := m.ListAccountIDs(ctx, "", 2)
	if err != nil {
		t.Fatalf("ListAccountIDs: %v", err)
	}
	if len(page) != 2 || page[0] != "a" || page[1] != "b" {
		t.Fatalf("unexpected first page: %v", page)
	}
	page, _ = m.ListAccountIDs(ctx, "b", 2)
	if len(page) != 1 || page[0] != "c" {
		t.Fatalf("unexpected second page: %v", page)
	}
}

func TestMemoryStore_SumUsage(t *testing.T) {
	ctx := context.Background()
	clock := fixedClock()
	m := NewMemoryStore(Account{ID: "a", Balance: decimal.NewFromInt(100)}).WithClock(clock)

	for i, secs := range []int{90, 30} {
		req := UsageRequest{AccountID: "a", CallID: string(rune('x' + i)), AmountUsed: decimal.NewFromInt(int64(secs)).Div(decimal.NewFromInt(60)), DurationSeconds: secs}
		if _, err := m.RecordUsage(ctx, req); err != nil {
			t.Fatalf("RecordUsage: %v", err)
		}
	}

	now := clock()
	got, err := m.SumUsage(ctx, "a", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("SumUsage: %v", err)
	}
	if got.BilledCalls != 2 || !got.CreditsUsed.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected totals: %+v", got)
	}

	if _, err := m.SumUsage(ctx, "a", now, now); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument for empty range, got %v", err)
	}
}
