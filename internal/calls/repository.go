package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
)

// Repository is the call record source used by billing and reporting.
// Every read is scoped to one account.
type Repository interface {
	ListCallsForAccount(ctx context.Context, accountID string) ([]Call, error)
	ListCallsInRange(ctx context.Context, accountID string, from, to time.Time) ([]Call, error)
	GetCall(ctx context.Context, callID string) (Call, error)
	UpsertCall(ctx context.Context, c Call) (Call, error)
}

var (
	_ Repository = (*PostgresRepo)(nil)
	_ Repository = (*MemoryRepo)(nil)
)

// NOTE: PostgresRepo assumes a calls table keyed by call_id with an index on
// (account_id, created_at).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `call_id, account_id, agent_id, from_number, to_number, status, duration_seconds, recording_url, created_at, updated_at`

func (r *PostgresRepo) ListCallsForAccount(ctx context.Context, accountID string) ([]Call, error) {
	if accountID == "" {
		return nil, ErrInvalidArgument
	}
	q := `SELECT ` + callColumns + `
FROM calls
WHERE account_id = $1
ORDER BY created_at ASC
`
	return r.query(ctx, q, accountID)
}

func (r *PostgresRepo) ListCallsInRange(ctx context.Context, accountID string, from, to time.Time) ([]Call, error) {
	if accountID == "" {
		return nil, ErrInvalidArgument
	}
	q := `SELECT ` + callColumns + `
FROM calls
WHERE account_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at ASC
`
	return r.query(ctx, q, accountID, from, to)
}

func (r *PostgresRepo) GetCall(ctx context.Context, callID string) (Call, error) {
	if callID == "" {
		return Call{}, ErrInvalidArgument
	}
	q := `SELECT ` + callColumns + `
FROM calls
WHERE call_id = $1
`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, callID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

// UpsertCall inserts the call or refreshes its status, duration and recording.
// The owning account and created_at of an existing row never change, and a
// terminal status is never replaced by a later non-terminal one.
func (r *PostgresRepo) UpsertCall(ctx context.Context, c Call) (Call, error) {
	if c.CallID == "" || c.AccountID == "" || !c.Status.Valid() {
		return Call{}, ErrInvalidArgument
	}
	q := `
INSERT INTO calls (` + callColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (call_id)
DO UPDATE SET status = CASE
                  WHEN calls.status IN ('completed', 'failed', 'not_connected', 'night_time_dont_call') THEN calls.status
                  ELSE EXCLUDED.status
              END,
              duration_seconds = COALESCE(EXCLUDED.duration_seconds, calls.duration_seconds),
              recording_url = COALESCE(NULLIF(EXCLUDED.recording_url, ''), calls.recording_url),
              updated_at = EXCLUDED.updated_at
RETURNING ` + callColumns + `
`
	var dur sql.NullInt64
	if c.DurationSeconds != nil {
		dur = sql.NullInt64{Int64: int64(*c.DurationSeconds), Valid: true}
	}
	return scanCall(r.db.QueryRowContext(ctx, q,
		c.CallID,
		c.AccountID,
		c.AgentID,
		c.From,
		c.To,
		c.Status,
		dur,
		c.RecordingURL,
		c.CreatedAt,
		c.UpdatedAt,
	))
}

func (r *PostgresRepo) query(ctx context.Context, q string, args ...any) ([]Call, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var c Call
	var dur sql.NullInt64
	if err := row.Scan(
		&c.CallID,
		&c.AccountID,
		&c.AgentID,
		&c.From,
		&c.To,
		&c.Status,
		&dur,
		&c.RecordingURL,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return Call{}, err
	}
	if dur.Valid {
		c.DurationSeconds = Seconds(int(dur.Int64))
	}
	return c, nil
}
