package credits

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestStatusFor_Buckets(t *testing.T) {
	cases := []struct {
		balance string
		status  Status
		tier    Tier
	}{
		{"100", StatusHealthy, TierHealthy},
		{"20", StatusHealthy, TierHealthy},
		{"19.99", StatusLow, TierLow},
		{"10", StatusLow, TierLow},
		{"9.99", StatusLow, TierGettingLow},
		{"5", StatusLow, TierGettingLow},
		{"4.99", StatusCritical, TierCritical},
		{"0", StatusCritical, TierCritical},
	}
	for _, tc := range cases {
		got := StatusFor(decimal.RequireFromString(tc.balance))
		if got.Status != tc.status || got.Tier != tc.tier {
			t.Fatalf("StatusFor(%s) = %s/%s, want %s/%s", tc.balance, got.Status, got.Tier, tc.status, tc.tier)
		}
		if got.Message == "" {
			t.Fatalf("StatusFor(%s): expected message", tc.balance)
		}
	}
}

func TestStatusFor_LowBucketsKeepDistinctMessages(t *testing.T) {
	low := StatusFor(decimal.NewFromInt(15))
	gettingLow := StatusFor(decimal.NewFromInt(7))
	if low.Status != gettingLow.Status {
		t.Fatalf("expected same status, got %s and %s", low.Status, gettingLow.Status)
	}
	if low.Message == gettingLow.Message {
		t.Fatalf("expected different messages for the two low buckets")
	}
}

func TestLowBalanceAlert(t *testing.T) {
	d := decimal.RequireFromString
	cases := []struct {
		name     string
		before   string
		after    string
		alert    bool
		severity Severity
	}{
		{"stays healthy", "50", "30", false, ""},
		{"crosses into low bucket only", "25", "15", false, ""},
		{"crosses below 10", "12", "8", true, SeverityWarning},
		{"lands exactly on 10", "12", "10", false, ""},
		{"crosses below 10 and 5 at once", "12", "3", true, SeverityCritical},
		{"already under 10, crosses 5", "8", "4.5", false, ""},
		{"already critical", "4", "2", false, ""},
		{"already low, stays above 5", "9", "6", false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, ok := LowBalanceAlert(d(tc.before), d(tc.after))
			if ok != tc.alert {
				t.Fatalf("alert = %v, want %v", ok, tc.alert)
			}
			if ok && a.Severity != tc.severity {
				t.Fatalf("severity = %s, want %s", a.Severity, tc.severity)
			}
			if ok && !a.Balance.Equal(d(tc.after)) {
				t.Fatalf("balance = %s, want %s", a.Balance, tc.after)
			}
		})
	}
}
