package builtin

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/indexflow/indexflow/internal/ops"
	"github.com/indexflow/indexflow/internal/schema"
	"github.com/indexflow/indexflow/internal/value"
)

type memTargetFactory struct{}

func (memTargetFactory) Analyze(ctx *ops.AnalyzeContext, spec json.RawMessage, rowSchema schema.StructSchema) (ops.TargetAnalysis, error) {
	return ops.TargetAnalysis{ValueSchema: rowSchema}, nil
}

func (memTargetFactory) BuildExecutor(ctx context.Context, spec json.RawMessage, analysis ops.TargetAnalysis) (ops.TargetExecutor, error) {
	return NewMemoryTarget(), nil
}

// MemoryTarget is a test double for an export target: it applies each
// batch's upserts/tombstones to an in-memory map under one lock, letting
// tests assert on the target's final reconciled state directly instead of
// querying a real sink.
type MemoryTarget struct {
	mu   sync.Mutex
	rows map[string]value.Value
}

// NewMemoryTarget returns an empty MemoryTarget.
func NewMemoryTarget() *MemoryTarget {
	return &MemoryTarget{rows: make(map[string]value.Value)}
}

func (t *MemoryTarget) Apply(ctx context.Context, batch []ops.TargetOp) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, op := range batch {
		key := op.Key.String()
		if op.Value == nil {
			delete(t.rows, key)
			continue
		}
		t.rows[key] = *op.Value
	}
	return nil
}

// Get returns the row currently stored under key, for test assertions.
func (t *MemoryTarget) Get(key string) (value.Value, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.rows[key]
	return v, ok
}

// Len reports how many rows are currently present.
func (t *MemoryTarget) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}
