package credits

import "github.com/shopspring/decimal"

// Status is the coarse balance health shown to users.
// It is always derived from the current balance and never stored.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusLow      Status = "low"
	StatusCritical Status = "critical"
)

// Tier keeps the two "low" buckets apart. [10,20) and [5,10) share
// StatusLow but carry different messages.
type Tier string

const (
	TierHealthy    Tier = "healthy"
	TierLow        Tier = "low"
	TierGettingLow Tier = "getting_low"
	TierCritical   Tier = "critical"
)

// Balance thresholds in credits. Each bucket includes its lower bound.
var (
	HealthyThreshold  = decimal.NewFromInt(20)
	LowThreshold      = decimal.NewFromInt(10)
	CriticalThreshold = decimal.NewFromInt(5)
)

const (
	MessageHealthy    = "Your credit balance is healthy."
	MessageLow        = "Your balance is running low. Consider adding credits soon."
	MessageGettingLow = "Your balance is getting low. Add credits to avoid interrupted calls."
	MessageCritical   = "Your balance is critical. Add credits immediately to keep your agents calling."
)

type BalanceState struct {
	Status  Status `json:"status"`
	Tier    Tier   `json:"tier"`
	Message string `json:"message"`
}

// StatusFor maps a balance onto its status bucket:
//
//	balance >= 20       healthy
//	10 <= balance < 20  low
//	5  <= balance < 10  low (getting_low tier)
//	balance < 5         critical
func StatusFor(balance decimal.Decimal) BalanceState {
	switch {
	case balance.GreaterThanOrEqual(HealthyThreshold):
		return BalanceState{Status: StatusHealthy, Tier: TierHealthy, Message: MessageHealthy}
	case balance.GreaterThanOrEqual(LowThreshold):
		return BalanceState{Status: StatusLow, Tier: TierLow, Message: MessageLow}
	case balance.GreaterThanOrEqual(CriticalThreshold):
		return BalanceState{Status: StatusLow, Tier: TierGettingLow, Message: MessageGettingLow}
	default:
		return BalanceState{Status: StatusCritical, Tier: TierCritical, Message: MessageCritical}
	}
}
