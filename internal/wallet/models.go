package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the credit balance of one customer account.
//
// Balance invariant: the balance only moves together with a usage log row
// (debit) or a top-up row (credit) written in the same transaction.
// It never goes below zero.
type Account struct {
	ID      string          `json:"id" db:"id"`
	Balance decimal.Decimal `json:"balance" db:"balance"`

	// TrialExpiresAt is set once, when the free trial is granted.
	TrialExpiresAt *time.Time `json:"trial_expires_at,omitempty" db:"trial_expires_at"`
	PaymentStatus  string     `json:"payment_status" db:"payment_status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type UsageType string

const UsageTypeCall UsageType = "call"

// UsageLog is the immutable proof that a call has been billed.
// At most one row exists per (call_id, usage_type).
type UsageLog struct {
	ID        string    `json:"id" db:"id"`
	AccountID string    `json:"account_id" db:"account_id"`
	CallID    string    `json:"call_id" db:"call_id"`
	UsageType UsageType `json:"usage_type" db:"usage_type"`

	// AmountUsed is in credits (fractional minutes).
	AmountUsed      decimal.Decimal `json:"amount_used" db:"amount_used"`
	DurationSeconds int             `json:"duration_seconds" db:"duration_seconds"`
	BalanceAfter    decimal.Decimal `json:"balance_after" db:"balance_after"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type TopUpSource string

const (
	TopUpSourcePurchase TopUpSource = "purchase"
	TopUpSourceAdmin    TopUpSource = "admin"
	TopUpSourceTrial    TopUpSource = "trial"
)

// TopUp is an append-only credit grant. IdempotencyKey is unique per account.
type TopUp struct {
	ID        string          `json:"id" db:"id"`
	AccountID string          `json:"account_id" db:"account_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Source    TopUpSource     `json:"source" db:"source"`
	Reason    string          `json:"reason,omitempty" db:"reason"`

	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UsageOutcome distinguishes a fresh deduction from one that already existed.
// A duplicate is not an error.
type UsageOutcome int

const (
	UsageInserted UsageOutcome = iota + 1
	UsageAlreadyExists
)

func (o UsageOutcome) String() string {
	switch o {
	case UsageInserted:
		return "inserted"
	case UsageAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

type UsageRequest struct {
	AccountID       string
	CallID          string
	AmountUsed      decimal.Decimal
	DurationSeconds int
}

type UsageResult struct {
	Outcome UsageOutcome
	Log     UsageLog

	// BalanceBefore equals BalanceAfter when Outcome is UsageAlreadyExists.
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
}

type TopUpRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Source         TopUpSource     `json:"source"`
	Reason         string          `json:"reason,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type UsageQuery struct {
	AccountID string
	From      time.Time
	To        time.Time
	Limit     int
}

// UsageTotals aggregates usage logs over a time range.
type UsageTotals struct {
	BilledCalls int             `json:"billed_calls"`
	CreditsUsed decimal.Decimal `json:"credits_used"`
}
