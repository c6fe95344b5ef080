package notify

import (
	"context"

	"inbound-genie/pkg/logger"
)

// LogSink writes notifications to the structured log. Useful in local dev
// where no broker is running.
type LogSink struct{}

func (LogSink) Emit(ctx context.Context, n Notification) error {
	if err := n.validate(); err != nil {
		return err
	}
	logger.From(ctx).Info("notification",
		"notification_id", n.ID,
		"account_id", n.AccountID,
		"severity", string(n.Severity),
		"title", n.Title,
		"balance", n.Balance.String(),
		"call_id", n.CallID,
	)
	return nil
}
