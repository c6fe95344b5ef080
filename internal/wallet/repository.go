package wallet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// NOTE: This repository assumes the following tables exist:
// - accounts (id PK, balance NUMERIC, trial_expires_at, payment_status, ...)
// - usage_logs (immutable; UNIQUE (call_id, usage_type))
// - credit_topups (immutable; UNIQUE (account_id, idempotency_key))

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const accountColumns = `id, balance, trial_expires_at, payment_status, created_at, updated_at`

func scanAccount(row *sql.Row) (Account, error) {
	var a Account
	var trial sql.NullTime
	if err := row.Scan(
		&a.ID,
		&a.Balance,
		&trial,
		&a.PaymentStatus,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	if trial.Valid {
		t := trial.Time
		a.TrialExpiresAt = &t
	}
	return a, nil
}

func getAccount(ctx context.Context, q queryer, accountID string) (Account, error) {
	return scanAccount(q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID))
}

// lockAccount serializes money operations per account.
func lockAccount(ctx context.Context, tx *sql.Tx, accountID string) (Account, error) {
	return scanAccount(tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID))
}

func ensureAccount(ctx context.Context, tx *sql.Tx, accountID string, now time.Time) error {
	const q = `
INSERT INTO accounts (id, balance, payment_status, created_at, updated_at)
VALUES ($1, 0, '', $2, $2)
ON CONFLICT (id) DO NOTHING
`
	_, err := tx.ExecContext(ctx, q, accountID, now)
	return err
}

func setBalance(ctx context.Context, tx *sql.Tx, accountID string, balance decimal.Decimal, now time.Time) error {
	const q = `UPDATE accounts SET balance = $2, updated_at = $3 WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, accountID, balance, now)
	return err
}

func startTrial(ctx context.Context, tx *sql.Tx, accountID string, balance decimal.Decimal, expiresAt, now time.Time) error {
	const q = `UPDATE accounts SET balance = $2, trial_expires_at = $3, updated_at = $4 WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, accountID, balance, expiresAt, now)
	return err
}

func markPaid(ctx context.Context, tx *sql.Tx, accountID string, now time.Time) error {
	const q = `UPDATE accounts SET payment_status = 'paid', updated_at = $2 WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, accountID, now)
	return err
}

const usageColumns = `id, account_id, call_id, usage_type, amount_used, duration_seconds, balance_after, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUsage(row rowScanner) (UsageLog, error) {
	var u UsageLog
	err := row.Scan(
		&u.ID,
		&u.AccountID,
		&u.CallID,
		&u.UsageType,
		&u.AmountUsed,
		&u.DurationSeconds,
		&u.BalanceAfter,
		&u.CreatedAt,
	)
	return u, err
}

func findUsageByCall(ctx context.Context, q queryer, callID string, usageType UsageType) (UsageLog, bool, error) {
	u, err := scanUsage(q.QueryRowContext(ctx,
		`SELECT `+usageColumns+` FROM usage_logs WHERE call_id = $1 AND usage_type = $2 LIMIT 1`,
		callID, usageType,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UsageLog{}, false, nil
		}
		return UsageLog{}, false, err
	}
	return u, true, nil
}

func insertUsage(ctx context.Context, tx *sql.Tx, u UsageLog) error {
	q := `INSERT INTO usage_logs (` + usageColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := tx.ExecContext(ctx, q,
		u.ID,
		u.AccountID,
		u.CallID,
		u.UsageType,
		u.AmountUsed,
		u.DurationSeconds,
		u.BalanceAfter,
		u.CreatedAt,
	)
	return err
}

func listUsage(ctx context.Context, db *sql.DB, uq UsageQuery) ([]UsageLog, error) {
	q := `SELECT ` + usageColumns + `
FROM usage_logs
WHERE account_id = $1
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at DESC
LIMIT $4
`
	rows, err := db.QueryContext(ctx, q, uq.AccountID, nullTime(uq.From), nullTime(uq.To), uq.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]UsageLog, 0)
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func billedCallIDs(ctx context.Context, db *sql.DB, accountID string) (map[string]struct{}, error) {
	const q = `SELECT call_id FROM usage_logs WHERE account_id = $1 AND usage_type = $2`
	rows, err := db.QueryContext(ctx, q, accountID, UsageTypeCall)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func listAccountIDs(ctx context.Context, db *sql.DB, after string, limit int) ([]string, error) {
	const q = `SELECT id FROM accounts WHERE id > $1 ORDER BY id ASC LIMIT $2`
	rows, err := db.QueryContext(ctx, q, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func findTopUpByIdempotency(ctx context.Context, tx *sql.Tx, accountID, key string) (TopUp, bool, error) {
	const q = `
SELECT id, account_id, amount, source, reason, idempotency_key, created_at
FROM credit_topups
WHERE account_id = $1 AND idempotency_key = $2
LIMIT 1
`
	var t TopUp
	err := tx.QueryRowContext(ctx, q, accountID, key).Scan(
		&t.ID,
		&t.AccountID,
		&t.Amount,
		&t.Source,
		&t.Reason,
		&t.IdempotencyKey,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TopUp{}, false, nil
		}
		return TopUp{}, false, err
	}
	return t, true, nil
}

func insertTopUp(ctx context.Context, tx *sql.Tx, t TopUp) error {
	const q = `
INSERT INTO credit_topups (id, account_id, amount, source, reason, idempotency_key, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := tx.ExecContext(ctx, q,
		t.ID,
		t.AccountID,
		t.Amount,
		t.Source,
		t.Reason,
		t.IdempotencyKey,
		t.CreatedAt,
	)
	return err
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func sumUsage(ctx context.Context, db *sql.DB, accountID string, from, to time.Time) (UsageTotals, error) {
	const q = `
SELECT COUNT(*), COALESCE(SUM(amount_used), 0)
FROM usage_logs
WHERE account_id = $1 AND usage_type = $2 AND created_at >= $3 AND created_at < $4
`
	var out UsageTotals
	err := db.QueryRowContext(ctx, q, accountID, UsageTypeCall, from, to).Scan(&out.BilledCalls, &out.CreditsUsed)
	return out, err
}
