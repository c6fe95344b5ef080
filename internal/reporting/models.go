package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// UsageSummaryRequest is always scoped to one account.
type UsageSummaryRequest struct {
	AccountID string    `json:"account_id"`
	Range     TimeRange `json:"range"`
}

type UsageSummary struct {
	AccountID string    `json:"account_id"`
	Range     TimeRange `json:"range"`

	TotalCalls        int `json:"total_calls"`
	CompletedCalls    int `json:"completed_calls"`
	FailedCalls       int `json:"failed_calls"`
	NotConnectedCalls int `json:"not_connected_calls"`
	NightTimeCalls    int `json:"night_time_dont_call_calls"`
	InProgressCalls   int `json:"in_progress_calls"`
	PendingCalls      int `json:"pending_calls"`

	// BillableCalls is how many calls qualify for billing; BilledCalls is how
	// many carry a usage log. A gap means reconciliation has work to do.
	BillableCalls int `json:"billable_calls"`
	BilledCalls   int `json:"billed_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
	RecordedCalls          int `json:"recorded_calls"`

	CreditsUsed decimal.Decimal `json:"credits_used"`
}
