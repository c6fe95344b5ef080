package credits

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is the low-balance notification decided for a single deduction.
type Alert struct {
	Severity Severity
	Title    string
	Message  string
	Balance  decimal.Decimal
}

// LowBalanceAlert decides whether a deduction that moved the balance from
// before to after must notify the account owner.
//
// A notification is due only when the deduction crosses below 10 credits.
// Severity follows the new balance: critical under 5, warning otherwise.
// A balance already under 10 never re-alerts, even when it drops below 5.
func LowBalanceAlert(before, after decimal.Decimal) (Alert, bool) {
	if !before.GreaterThanOrEqual(LowThreshold) || !after.LessThan(LowThreshold) {
		return Alert{}, false
	}

	if after.LessThan(CriticalThreshold) {
		return Alert{
			Severity: SeverityCritical,
			Title:    "Critical credit balance",
			Message:  fmt.Sprintf("Only %s credits left. Add credits immediately to keep your agents calling.", after.StringFixed(2)),
			Balance:  after,
		}, true
	}
	return Alert{
		Severity: SeverityWarning,
		Title:    "Low credit balance",
		Message:  fmt.Sprintf("Your balance dropped to %s credits. Consider adding credits soon.", after.StringFixed(2)),
		Balance:  after,
	}, true
}
