package credits

import (
	"testing"
	"time"
)

func TestIsExpired(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	if IsExpired(nil, now) {
		t.Fatalf("account without trial must never be expired")
	}
	past := now.Add(-time.Second)
	if !IsExpired(&past, now) {
		t.Fatalf("expected expired")
	}
	exact := now
	if IsExpired(&exact, now) {
		t.Fatalf("expiry instant itself is not expired")
	}
}

func TestIsOnFreeTrial(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	expiresAt := now.Add(time.Second)

	if !IsOnFreeTrial(&expiresAt, "pending", now) {
		t.Fatalf("expected active trial one second before expiry")
	}
	if IsOnFreeTrial(&expiresAt, "pending", now.Add(2*time.Second)) {
		t.Fatalf("expected trial over once now > expiresAt")
	}
	if IsOnFreeTrial(&expiresAt, PaymentStatusPaid, now) {
		t.Fatalf("paid accounts are never on free trial")
	}
	if IsOnFreeTrial(nil, "", now) {
		t.Fatalf("no expiry means no trial")
	}
}

func TestDaysRemaining(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	if DaysRemaining(nil, now) != nil {
		t.Fatalf("expected nil without expiry")
	}

	cases := []struct {
		left time.Duration
		want int
	}{
		{TrialDuration, 7},
		{6*24*time.Hour + time.Minute, 7},
		{24 * time.Hour, 1},
		{time.Second, 1},
		{0, 0},
		{-48 * time.Hour, 0},
	}
	for _, tc := range cases {
		exp := now.Add(tc.left)
		got := DaysRemaining(&exp, now)
		if got == nil || *got != tc.want {
			t.Fatalf("DaysRemaining(%s) = %v, want %d", tc.left, got, tc.want)
		}
	}
}

func TestTrialStateFor(t *testing.T) {
	granted := time.Unix(1700000000, 0).UTC()
	exp := TrialExpiry(granted)
	st := TrialStateFor(&exp, "", granted.Add(36*time.Hour))
	if !st.OnFreeTrial || st.Expired {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.DaysRemaining == nil || *st.DaysRemaining != 6 {
		t.Fatalf("expected 6 days remaining, got %v", st.DaysRemaining)
	}
	if TrialGrant().IntPart() != TrialGrantCredits {
		t.Fatalf("expected 100 credit grant")
	}
}
