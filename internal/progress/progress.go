// Package progress tracks the state of long-running batch operations per
// session, so the presentation layer can poll while a batch runs, and holds
// the cooperative cancellation marks checked between batch pages.
package progress

import (
	"context"
	"sync"
	"time"
)

// Record is the externally visible state of the most recent batch operation
// on a session.
type Record struct {
	Op      string     `json:"op"`
	State   string     `json:"state"` // running | done | cancelled
	Done    int        `json:"done"`
	Skipped int        `json:"skipped"`
	Failed  int        `json:"failed"`
	Total   int        `json:"total"`
	Message string     `json:"message"`
	Start   *time.Time `json:"start_time,omitempty"`
	End     *time.Time `json:"end_time,omitempty"`
}

// Store persists progress records and cancellation marks.
type Store interface {
	Set(ctx context.Context, sessionID string, rec Record) error
	Get(ctx context.Context, sessionID string) (Record, bool, error)
	MarkCancel(ctx context.Context, sessionID string) error
	IsCancelled(ctx context.Context, sessionID string) (bool, error)
	ClearCancel(ctx context.Context, sessionID string) error
}

// Memory is an in-process Store for tests and single-binary runs.
type Memory struct {
	mu        sync.RWMutex
	records   map[string]Record
	cancelled map[string]bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record), cancelled: make(map[string]bool)}
}

func (m *Memory) Set(_ context.Context, sessionID string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[sessionID] = rec
	return nil
}

func (m *Memory) Get(_ context.Context, sessionID string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[sessionID]
	return rec, ok, nil
}

func (m *Memory) MarkCancel(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled[sessionID] = true
	return nil
}

func (m *Memory) IsCancelled(_ context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancelled[sessionID], nil
}

func (m *Memory) ClearCancel(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancelled, sessionID)
	return nil
}
