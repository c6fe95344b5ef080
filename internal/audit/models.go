package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - account_id is required; every event concerns one account.
// - actor and ip capture are best-effort; do not block money flows on audit failures.
//
// Storage (Postgres): table audit_events, INSERT-only.
type Event struct {
	ID        string `json:"id" db:"id"`
	AccountID string `json:"account_id" db:"account_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event (if applicable).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCreditTopUp       EventType = "credit_topup"
	EventTypeTrialGranted      EventType = "trial_granted"
	EventTypeReconciliationRun EventType = "reconciliation_run"
)

// Actor identifies who triggered an event.
type Actor struct {
	UserID string
	Role   string
	IP     string
}
