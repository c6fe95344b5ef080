package credits

import (
	"time"

	"github.com/shopspring/decimal"
)

// Free trial constants used when provisioning a new account.
const (
	TrialDuration     = 7 * 24 * time.Hour
	TrialGrantCredits = 100
)

// PaymentStatusPaid marks an account that has paid at least once.
// Any other value (including empty) leaves a running trial active.
const PaymentStatusPaid = "paid"

const day = 24 * time.Hour

// TrialGrant returns the trial grant amount as a credit value.
func TrialGrant() decimal.Decimal { return decimal.NewFromInt(TrialGrantCredits) }

// TrialExpiry returns when a trial granted at grantedAt ends.
func TrialExpiry(grantedAt time.Time) time.Time { return grantedAt.Add(TrialDuration) }

// IsExpired reports whether now is past expiresAt. Accounts without a trial
// expiry are never expired.
func IsExpired(expiresAt *time.Time, now time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return now.After(*expiresAt)
}

// IsOnFreeTrial is true only while a trial expiry is set, not yet passed,
// and the account has not paid.
func IsOnFreeTrial(expiresAt *time.Time, paymentStatus string, now time.Time) bool {
	if expiresAt == nil {
		return false
	}
	if paymentStatus == PaymentStatusPaid {
		return false
	}
	return !IsExpired(expiresAt, now)
}

// DaysRemaining is the ceiling of the days left until expiresAt, floored at 0.
// It returns nil when there is no trial expiry.
func DaysRemaining(expiresAt *time.Time, now time.Time) *int {
	if expiresAt == nil {
		return nil
	}
	left := expiresAt.Sub(now)
	days := 0
	if left > 0 {
		days = int((left + day - 1) / day)
	}
	return &days
}

type TrialState struct {
	OnFreeTrial   bool       `json:"on_free_trial"`
	Expired       bool       `json:"expired"`
	DaysRemaining *int       `json:"days_remaining"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func TrialStateFor(expiresAt *time.Time, paymentStatus string, now time.Time) TrialState {
	return TrialState{
		OnFreeTrial:   IsOnFreeTrial(expiresAt, paymentStatus, now),
		Expired:       IsExpired(expiresAt, now),
		DaysRemaining: DaysRemaining(expiresAt, now),
		ExpiresAt:     expiresAt,
	}
}
