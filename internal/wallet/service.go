package wallet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"inbound-genie/internal/credits"
	"inbound-genie/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is the Postgres-backed ledger store.
//
// Money invariants:
// - No balance update without a usage log or top-up row in the same transaction
// - Usage logs and top-ups are append-only
// - A call is billed at most once: UNIQUE (call_id, usage_type)
// - Balances are clamped at zero on debit
type Service struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, clock: time.Now}
}

// errDuplicateUsage aborts the transaction when a concurrent writer inserted
// the same call first.
var errDuplicateUsage = errors.New("wallet: duplicate usage log")

func (s *Service) GetAccount(ctx context.Context, accountID string) (Account, error) {
	if accountID == "" {
		return Account{}, ErrInvalidArgument
	}
	return getAccount(ctx, s.db, accountID)
}

func (s *Service) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	a, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

func (s *Service) HasUsageLogForCall(ctx context.Context, callID string) (bool, error) {
	if callID == "" {
		return false, ErrInvalidArgument
	}
	_, ok, err := findUsageByCall(ctx, s.db, callID, UsageTypeCall)
	return ok, err
}

// BilledCallIDs returns the ids of every call already billed for the account.
func (s *Service) BilledCallIDs(ctx context.Context, accountID string) (map[string]struct{}, error) {
	if accountID == "" {
		return nil, ErrInvalidArgument
	}
	return billedCallIDs(ctx, s.db, accountID)
}

// RecordUsage debits a call's credits and writes its usage log atomically.
//
// If the call was already billed (found under the account lock, or lost a
// race on the unique constraint) the result is UsageAlreadyExists and the
// balance is untouched.
func (s *Service) RecordUsage(ctx context.Context, req UsageRequest) (UsageResult, error) {
	if err := validateUsageReq(req); err != nil {
		return UsageResult{}, err
	}

	now := s.clock().UTC()
	var out UsageResult

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		acct, err := lockAccount(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}

		if existing, ok, err := findUsageByCall(ctx, tx, req.CallID, UsageTypeCall); err != nil {
			return err
		} else if ok {
			out = UsageResult{Outcome: UsageAlreadyExists, Log: existing, BalanceBefore: acct.Balance, BalanceAfter: acct.Balance}
			return nil
		}

		after := debit(acct.Balance, req.AmountUsed)
		entry := UsageLog{
			ID:              uuid.NewString(),
			AccountID:       req.AccountID,
			CallID:          req.CallID,
			UsageType:       UsageTypeCall,
			AmountUsed:      req.AmountUsed,
			DurationSeconds: req.DurationSeconds,
			BalanceAfter:    after,
			CreatedAt:       now,
		}
		if err := insertUsage(ctx, tx, entry); err != nil {
			if utils.IsUniqueViolation(err) {
				return errDuplicateUsage
			}
			return err
		}
		if err := setBalance(ctx, tx, req.AccountID, after, now); err != nil {
			return err
		}

		out = UsageResult{Outcome: UsageInserted, Log: entry, BalanceBefore: acct.Balance, BalanceAfter: after}
		return nil
	})
	if errors.Is(err, errDuplicateUsage) {
		return s.alreadyBilled(ctx, req)
	}
	if err != nil {
		return UsageResult{}, err
	}
	return out, nil
}

func (s *Service) alreadyBilled(ctx context.Context, req UsageRequest) (UsageResult, error) {
	existing, _, err := findUsageByCall(ctx, s.db, req.CallID, UsageTypeCall)
	if err != nil {
		return UsageResult{}, err
	}
	bal, err := s.GetBalance(ctx, req.AccountID)
	if err != nil {
		return UsageResult{}, err
	}
	return UsageResult{Outcome: UsageAlreadyExists, Log: existing, BalanceBefore: bal, BalanceAfter: bal}, nil
}

// TopUp credits an account. Replaying the same idempotency key returns the
// original top-up and the current account without crediting twice.
// Purchases also mark the account as paid, which ends any running trial.
func (s *Service) TopUp(ctx context.Context, accountID string, req TopUpRequest) (TopUp, Account, error) {
	if err := validateTopUpReq(accountID, req); err != nil {
		return TopUp{}, Account{}, err
	}

	now := s.clock().UTC()
	var outTopUp TopUp
	var outAcct Account

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		acct, err := lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}

		if existing, ok, err := findTopUpByIdempotency(ctx, tx, accountID, req.IdempotencyKey); err != nil {
			return err
		} else if ok {
			outTopUp, outAcct = existing, acct
			return nil
		}

		t := TopUp{
			ID:             uuid.NewString(),
			AccountID:      accountID,
			Amount:         req.Amount,
			Source:         req.Source,
			Reason:         req.Reason,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      now,
		}
		if err := insertTopUp(ctx, tx, t); err != nil {
			return err
		}
		acct.Balance = acct.Balance.Add(req.Amount)
		if err := setBalance(ctx, tx, accountID, acct.Balance, now); err != nil {
			return err
		}
		if req.Source == TopUpSourcePurchase {
			if err := markPaid(ctx, tx, accountID, now); err != nil {
				return err
			}
			acct.PaymentStatus = credits.PaymentStatusPaid
		}
		acct.UpdatedAt = now

		outTopUp, outAcct = t, acct
		return nil
	})

	return outTopUp, outAcct, err
}

// GrantTrial provisions the account if needed and grants the free trial once.
// The bool result is false when a trial had already been granted.
func (s *Service) GrantTrial(ctx context.Context, accountID string) (Account, bool, error) {
	if accountID == "" {
		return Account{}, false, ErrInvalidArgument
	}

	now := s.clock().UTC()
	var out Account
	var granted bool

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureAccount(ctx, tx, accountID, now); err != nil {
			return err
		}
		acct, err := lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if acct.TrialExpiresAt != nil {
			out = acct
			return nil
		}

		grant := credits.TrialGrant()
		expiresAt := credits.TrialExpiry(now)
		if err := insertTopUp(ctx, tx, TopUp{
			ID:             uuid.NewString(),
			AccountID:      accountID,
			Amount:         grant,
			Source:         TopUpSourceTrial,
			Reason:         "free trial",
			IdempotencyKey: trialIdempotencyKey(accountID),
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		acct.Balance = acct.Balance.Add(grant)
		acct.TrialExpiresAt = &expiresAt
		acct.UpdatedAt = now
		if err := startTrial(ctx, tx, accountID, acct.Balance, expiresAt, now); err != nil {
			return err
		}

		out, granted = acct, true
		return nil
	})

	return out, granted, err
}

func (s *Service) ListUsage(ctx context.Context, q UsageQuery) ([]UsageLog, error) {
	if q.AccountID == "" {
		return nil, ErrInvalidArgument
	}
	q.Limit = clampLimit(q.Limit)
	return listUsage(ctx, s.db, q)
}

// SumUsage totals the call usage of an account in [from, to).
func (s *Service) SumUsage(ctx context.Context, accountID string, from, to time.Time) (UsageTotals, error) {
	if accountID == "" || !to.After(from) {
		return UsageTotals{}, ErrInvalidArgument
	}
	return sumUsage(ctx, s.db, accountID, from, to)
}

// ListAccountIDs pages through accounts in id order, starting after the given id.
func (s *Service) ListAccountIDs(ctx context.Context, after string, limit int) ([]string, error) {
	return listAccountIDs(ctx, s.db, after, clampLimit(limit))
}

func debit(balance, amount decimal.Decimal) decimal.Decimal {
	after := balance.Sub(amount)
	if after.IsNegative() {
		return decimal.Zero
	}
	return after
}

func trialIdempotencyKey(accountID string) string { return "trial:" + accountID }

const (
	defaultLimit = 100
	maxLimit     = 1000
)

func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

func validateUsageReq(req UsageRequest) error {
	if req.AccountID == "" || req.CallID == "" {
		return ErrInvalidArgument
	}
	if req.AmountUsed.IsNegative() || req.DurationSeconds < 0 {
		return ErrInvalidArgument
	}
	return nil
}

func validateTopUpReq(accountID string, req TopUpRequest) error {
	if accountID == "" || req.IdempotencyKey == "" {
		return ErrInvalidArgument
	}
	if !req.Amount.IsPositive() {
		return ErrInvalidArgument
	}
	switch req.Source {
	case TopUpSourcePurchase, TopUpSourceAdmin:
		return nil
	default:
		return ErrInvalidArgument
	}
}
