package wallet

import (
	"context"
	"sort"
	"sync"
	"time"

	"inbound-genie/internal/credits"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory ledger store useful for tests and local dev.
// It mirrors the Postgres Service semantics, one mutex standing in for the row lock.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	usage    []UsageLog
	topups   []TopUp
	clock    func() time.Time
}

func NewMemoryStore(seed ...Account) *MemoryStore {
	m := &MemoryStore{accounts: make(map[string]Account), clock: time.Now}
	for _, a := range seed {
		m.accounts[a.ID] = a
	}
	return m
}

// WithClock overrides the store clock.
func (m *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	m.clock = clock
	return m
}

func (m *MemoryStore) GetAccount(_ context.Context, accountID string) (Account, error) {
	if accountID == "" {
		return Account{}, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (m *MemoryStore) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	a, err := m.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

func (m *MemoryStore) HasUsageLogForCall(_ context.Context, callID string) (bool, error) {
	if callID == "" {
		return false, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.findUsage(callID)
	return ok, nil
}

func (m *MemoryStore) BilledCallIDs(_ context.Context, accountID string) (map[string]struct{}, error) {
	if accountID == "" {
		return nil, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{})
	for _, u := range m.usage {
		if u.AccountID == accountID && u.UsageType == UsageTypeCall {
			out[u.CallID] = struct{}{}
		}
	}
	return out, nil
}

func (m *MemoryStore) RecordUsage(_ context.Context, req UsageRequest) (UsageResult, error) {
	if err := validateUsageReq(req); err != nil {
		return UsageResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[req.AccountID]
	if !ok {
		return UsageResult{}, ErrNotFound
	}
	if existing, ok := m.findUsage(req.CallID); ok {
		return UsageResult{Outcome: UsageAlreadyExists, Log: existing, BalanceBefore: acct.Balance, BalanceAfter: acct.Balance}, nil
	}

	now := m.clock().UTC()
	before := acct.Balance
	after := debit(before, req.AmountUsed)
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
	m.usage = append(m.usage, entry)
	acct.Balance = after
	acct.UpdatedAt = now
	m.accounts[req.AccountID] = acct

	return UsageResult{Outcome: UsageInserted, Log: entry, BalanceBefore: before, BalanceAfter: after}, nil
}

func (m *MemoryStore) TopUp(_ context.Context, accountID string, req TopUpRequest) (TopUp, Account, error) {
	if err := validateTopUpReq(accountID, req); err != nil {
		return TopUp{}, Account{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[accountID]
	if !ok {
		return TopUp{}, Account{}, ErrNotFound
	}
	for _, t := range m.topups {
		if t.AccountID == accountID && t.IdempotencyKey == req.IdempotencyKey {
			return t, acct, nil
		}
	}

	now := m.clock().UTC()
	t := TopUp{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		Amount:         req.Amount,
		Source:         req.Source,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
	}
	m.topups = append(m.topups, t)
	acct.Balance = acct.Balance.Add(req.Amount)
	if req.Source == TopUpSourcePurchase {
		acct.PaymentStatus = credits.PaymentStatusPaid
	}
	acct.UpdatedAt = now
	m.accounts[accountID] = acct
	return t, acct, nil
}

func (m *MemoryStore) GrantTrial(_ context.Context, accountID string) (Account, bool, error) {
	if accountID == "" {
		return Account{}, false, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock().UTC()
	acct, ok := m.accounts[accountID]
	if !ok {
		acct = Account{ID: accountID, Balance: decimal.Zero, CreatedAt: now, UpdatedAt: now}
	}
	if acct.TrialExpiresAt != nil {
		m.accounts[accountID] = acct
		return acct, false, nil
	}

	grant := credits.TrialGrant()
	expiresAt := credits.TrialExpiry(now)
	m.topups = append(m.topups, TopUp{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		Amount:         grant,
		Source:         TopUpSourceTrial,
		Reason:         "free trial",
		IdempotencyKey: trialIdempotencyKey(accountID),
		CreatedAt:      now,
	})
	acct.Balance = acct.Balance.Add(grant)
	acct.TrialExpiresAt = &expiresAt
	acct.UpdatedAt = now
	m.accounts[accountID] = acct
	return acct, true, nil
}

func (m *MemoryStore) ListUsage(_ context.Context, q UsageQuery) ([]UsageLog, error) {
	if q.AccountID == "" {
		return nil, ErrInvalidArgument
	}
	limit := clampLimit(q.Limit)

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]UsageLog, 0)
	for _, u := range m.usage {
		if u.AccountID != q.AccountID {
			continue
		}
		if !q.From.IsZero() && u.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !u.CreatedAt.Before(q.To) {
			continue
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) SumUsage(_ context.Context, accountID string, from, to time.Time) (UsageTotals, error) {
	if accountID == "" || !to.After(from) {
		return UsageTotals{}, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := UsageTotals{CreditsUsed: decimal.Zero}
	for _, u := range m.usage {
		if u.AccountID != accountID || u.UsageType != UsageTypeCall {
			continue
		}
		if u.CreatedAt.Before(from) || !u.CreatedAt.Before(to) {
			continue
		}
		out.BilledCalls++
		out.CreditsUsed = out.CreditsUsed.Add(u.AmountUsed)
	}
	return out, nil
}

func (m *MemoryStore) ListAccountIDs(_ context.Context, after string, limit int) ([]string, error) {
	limit = clampLimit(limit)
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// TopUps returns a copy of every recorded top-up.
func (m *MemoryStore) TopUps() []TopUp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TopUp(nil), m.topups...)
}

func (m *MemoryStore) findUsage(callID string) (UsageLog, bool) {
	for _, u := range m.usage {
		if u.CallID == callID && u.UsageType == UsageTypeCall {
			return u, true
		}
	}
	return UsageLog{}, false
}
