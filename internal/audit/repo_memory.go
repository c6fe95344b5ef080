package audit

import (
	"context"
	"sync"
)

// MemoryRepo keeps audit events in memory; tests and local dev only.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns every event in append order.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// EventsFor returns the events of one account.
func (r *MemoryRepo) EventsFor(accountID string, typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.AccountID == accountID && (typ == "" || e.Type == typ) {
			out = append(out, e)
		}
	}
	return out
}
