package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
// It enforces account isolation on reads like the Postgres version.
type MemoryRepo struct {
	mu    sync.Mutex
	calls map[string]Call
}

func NewMemoryRepo(seed ...Call) *MemoryRepo {
	r := &MemoryRepo{calls: make(map[string]Call, len(seed))}
	for _, c := range seed {
		r.calls[c.CallID] = c
	}
	return r
}

func (r *MemoryRepo) ListCallsForAccount(ctx context.Context, accountID string) ([]Call, error) {
	if accountID == "" {
		return nil, ErrInvalidArgument
	}
	return r.filter(func(c Call) bool { return c.AccountID == accountID }), nil
}

func (r *MemoryRepo) ListCallsInRange(ctx context.Context, accountID string, from, to time.Time) ([]Call, error) {
	if accountID == "" {
		return nil, ErrInvalidArgument
	}
	return r.filter(func(c Call) bool {
		if c.AccountID != accountID {
			return false
		}
		return !c.CreatedAt.Before(from) && c.CreatedAt.Before(to)
	}), nil
}

func (r *MemoryRepo) GetCall(ctx context.Context, callID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) UpsertCall(ctx context.Context, c Call) (Call, error) {
	if c.CallID == "" || c.AccountID == "" || !c.Status.Valid() {
		return Call{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.calls[c.CallID]; ok {
		if !existing.Status.IsTerminal() {
			existing.Status = c.Status
		}
		if c.DurationSeconds != nil {
			existing.DurationSeconds = c.DurationSeconds
		}
		if c.RecordingURL != "" {
			existing.RecordingURL = c.RecordingURL
		}
		existing.UpdatedAt = c.UpdatedAt
		r.calls[c.CallID] = existing
		return existing, nil
	}
	r.calls[c.CallID] = c
	return c, nil
}

func (r *MemoryRepo) filter(keep func(Call) bool) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range r.calls {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CallID < out[j].CallID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
