package notify

import (
	"context"
	"sync"
)

// MemorySink keeps notifications in memory for tests and local dev.
type MemorySink struct {
	mu    sync.Mutex
	items []Notification
	err   error
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

// FailWith makes every following Emit return err.
func (m *MemorySink) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemorySink) Emit(_ context.Context, n Notification) error {
	if err := n.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items = append(m.items, n)
	return nil
}

func (m *MemorySink) Notifications() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.items...)
}
