package calls

import "time"

// Call is an account-scoped voice call placed or received by an AI agent.
//
// Calls are written by the call-ended webhook. Billing never mutates a call;
// it references CallID from the usage log instead.
type Call struct {
	CallID    string `json:"call_id" db:"call_id"`
	AccountID string `json:"account_id" db:"account_id"`
	AgentID   string `json:"agent_id,omitempty" db:"agent_id"`

	From string `json:"from" db:"from_number"`
	To   string `json:"to" db:"to_number"`

	Status CallStatus `json:"status" db:"status"`

	// DurationSeconds is nil until the vendor reports a duration.
	DurationSeconds *int `json:"duration_seconds" db:"duration_seconds"`

	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusPending           CallStatus = "pending"
	CallStatusInProgress        CallStatus = "in_progress"
	CallStatusCompleted         CallStatus = "completed"
	CallStatusFailed            CallStatus = "failed"
	CallStatusNotConnected      CallStatus = "not_connected"
	CallStatusNightTimeDontCall CallStatus = "night_time_dont_call"
)

// Valid reports whether s is one of the known statuses.
func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusPending, CallStatusInProgress, CallStatusCompleted,
		CallStatusFailed, CallStatusNotConnected, CallStatusNightTimeDontCall:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a call in status s will not continue.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusNotConnected, CallStatusNightTimeDontCall:
		return true
	default:
		return false
	}
}

// IsBillable reports whether the call may produce a usage charge:
// a terminal status and a reported duration.
//
// pending and in_progress are rejected first, even when a duration is
// already present.
func IsBillable(c Call) bool {
	if c.Status == CallStatusPending || c.Status == CallStatusInProgress {
		return false
	}
	if !c.Status.IsTerminal() {
		return false
	}
	return c.DurationSeconds != nil
}

// Seconds returns a pointer to n, for building calls with a duration.
func Seconds(n int) *int { return &n }
