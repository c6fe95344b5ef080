package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: no Update/Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
// Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.AccountID == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogTopUp records a credit top-up granted by an admin or a purchase.
func (s *Service) LogTopUp(ctx context.Context, accountID string, actor Actor, amount, source, reason, idempotencyKey string) error {
	return s.Append(ctx, Event{
		AccountID:   accountID,
		Type:        EventTypeCreditTopUp,
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		IPAddress:   actor.IP,
		Message:     reason,
		Metadata: metadata(map[string]any{
			"amount":          amount,
			"source":          source,
			"idempotency_key": idempotencyKey,
		}),
	})
}

func (s *Service) LogTrialGranted(ctx context.Context, accountID string, actor Actor, expiresAt time.Time) error {
	return s.Append(ctx, Event{
		AccountID:   accountID,
		Type:        EventTypeTrialGranted,
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		IPAddress:   actor.IP,
		Message:     "free trial granted",
		Metadata:    metadata(map[string]any{"trial_expires_at": expiresAt.UTC().Format(time.RFC3339)}),
	})
}

// LogReconciliation records a manually triggered reconciliation run and its counts.
func (s *Service) LogReconciliation(ctx context.Context, accountID string, actor Actor, processed, errs, skipped int) error {
	return s.Append(ctx, Event{
		AccountID:   accountID,
		Type:        EventTypeReconciliationRun,
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		IPAddress:   actor.IP,
		Message:     "reconciliation run",
		Metadata: metadata(map[string]any{
			"processed": processed,
			"errors":    errs,
			"skipped":   skipped,
		}),
	})
}

func metadata(m map[string]any) string {
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}
