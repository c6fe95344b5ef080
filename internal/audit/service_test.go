package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestService_AppendRequiresAccountAndType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{Type: EventTypeCreditTopUp}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if err := svc.Append(context.Background(), Event{AccountID: "a"}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestService_LogTopUp(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	actor := Actor{UserID: "admin-1", Role: "admin", IP: "1.2.3.4"}
	if err := svc.LogTopUp(context.Background(), "acct", actor, "25", "admin", "goodwill", "k1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.Type != EventTypeCreditTopUp || e.IPAddress != "1.2.3.4" || e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("unexpected event: %+v", e)
	}
	var md map[string]any
	if err := json.Unmarshal([]byte(e.Metadata), &md); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if md["amount"] != "25" || md["idempotency_key"] != "k1" {
		t.Fatalf("unexpected metadata: %v", md)
	}
}

func TestService_LogTrialAndReconciliation(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.LogTrialGranted(ctx, "acct", Actor{}, time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("trial: %v", err)
	}
	if err := svc.LogReconciliation(ctx, "acct", Actor{UserID: "u"}, 2, 1, 0); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 || evs[0].Type != EventTypeTrialGranted || evs[1].Type != EventTypeReconciliationRun {
		t.Fatalf("unexpected events: %+v", evs)
	}
}
