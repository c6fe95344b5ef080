package notify

import (
	"context"
	"database/sql"
)

// NOTE: PostgresSink assumes a notifications table read by the dashboard:
// notifications (id PK, account_id, severity, title, message, balance NUMERIC,
// call_id NULL, read_at NULL, created_at).
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink { return &PostgresSink{db: db} }

func (s *PostgresSink) Emit(ctx context.Context, n Notification) error {
	if err := n.validate(); err != nil {
		return err
	}
	const q = `
INSERT INTO notifications (id, account_id, severity, title, message, balance, call_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8)
ON CONFLICT (id) DO NOTHING
`
	_, err := s.db.ExecContext(ctx, q,
		n.ID,
		n.AccountID,
		string(n.Severity),
		n.Title,
		n.Message,
		n.Balance,
		n.CallID,
		n.CreatedAt,
	)
	return err
}
