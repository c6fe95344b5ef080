// Package notify delivers account notifications (low-balance alerts) to the
// configured sinks. Delivery is best-effort: callers log failures and move on.
package notify

import (
	"context"
	"errors"
	"time"

	"inbound-genie/internal/credits"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidNotification = errors.New("notify: invalid notification")

type Notification struct {
	ID        string           `json:"id"`
	AccountID string           `json:"account_id"`
	Severity  credits.Severity `json:"severity"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Balance   decimal.Decimal  `json:"balance"`
	// CallID is the deduction that triggered the notification, if any.
	CallID    string    `json:"call_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink receives notifications.
type Sink interface {
	Emit(ctx context.Context, n Notification) error
}

// FromAlert builds a notification for an alert raised by a call deduction.
func FromAlert(accountID, callID string, a credits.Alert, now time.Time) Notification {
	return Notification{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Severity:  a.Severity,
		Title:     a.Title,
		Message:   a.Message,
		Balance:   a.Balance,
		CallID:    callID,
		CreatedAt: now.UTC(),
	}
}

func (n Notification) validate() error {
	if n.ID == "" || n.AccountID == "" {
		return ErrInvalidNotification
	}
	switch n.Severity {
	case credits.SeverityWarning, credits.SeverityCritical:
		return nil
	default:
		return ErrInvalidNotification
	}
}
