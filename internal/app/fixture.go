package app

import (
	"context"
	"sync"

	"github.com/indexflow/indexflow/internal/auth"
	"github.com/indexflow/indexflow/internal/memo"
	"github.com/indexflow/indexflow/internal/ops"
	_ "github.com/indexflow/indexflow/internal/ops/builtin" // registers ReverseString, Memory source/target
	"github.com/indexflow/indexflow/internal/tracking"
)

// Fixture provides a complete set of in-process services for tests,
// modeled on sinktest/all.Fixture: a fully-wired Engine, but backed by an
// in-memory tracking store instead of a live database connection, so
// package tests never need a running Postgres/MySQL.
type Fixture struct {
	*Engine
}

// NewFixture builds a Fixture with the process-wide operator registry
// (ops.Global), a fresh auth registry, memo cache, and in-memory tracking
// store.
func NewFixture() *Fixture {
	return &Fixture{Engine: &Engine{
		Registry: ops.Global(),
		Auth:     auth.New(),
		Memo:     memo.New(),
		Store:    NewMemoryStore(),
	}}
}

// MemoryStore is an in-memory tracking.Store, used by tests in place of
// internal/tracking/pg or internal/tracking/mysql.
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[string]tracking.RowTracking
	states map[string][]byte
	setup  map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:   make(map[string]tracking.RowTracking),
		states: make(map[string][]byte),
		setup:  make(map[string][]byte),
	}
}

func rowKey(flowID, sourceID, primaryKey string) string {
	return flowID + "\x00" + sourceID + "\x00" + primaryKey
}

func stateKey(flowID, sourceID string) string {
	return flowID + "\x00" + sourceID
}

func (m *MemoryStore) GetRowTracking(ctx context.Context, flowID, sourceID, primaryKey string) (tracking.RowTracking, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.rows[rowKey(flowID, sourceID, primaryKey)]
	return rt, ok, nil
}

func (m *MemoryStore) PutRowTracking(ctx context.Context, flowID, sourceID, primaryKey string, rt tracking.RowTracking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[rowKey(flowID, sourceID, primaryKey)] = rt
	return nil
}

func (m *MemoryStore) GetSourceState(ctx context.Context, flowID, sourceID string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[stateKey(flowID, sourceID)]
	return s, ok, nil
}

func (m *MemoryStore) PutSourceState(ctx context.Context, flowID, sourceID string, state []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[stateKey(flowID, sourceID)] = state
	return nil
}

func (m *MemoryStore) GetSetupMetadata(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.setup[key]
	return v, ok, nil
}

func (m *MemoryStore) PutSetupMetadata(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setup[key] = value
	return nil
}

func (m *MemoryStore) DeleteSetupMetadata(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.setup, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
