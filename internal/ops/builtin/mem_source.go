package builtin

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/indexflow/indexflow/internal/ops"
	"github.com/indexflow/indexflow/internal/schema"
	"github.com/indexflow/indexflow/internal/value"
)

// memSourceSpec configures a "Memory" source: a fixed row schema, with
// rows supplied entirely through the MemorySource test handle rather than
// any spec field.
type memSourceSpec struct {
	RowSchema []memField `json:"row_schema"`
}

type memField struct {
	Name string `json:"name"`
}

type memSourceFactory struct{}

func (memSourceFactory) Analyze(ctx *ops.AnalyzeContext, rawSpec json.RawMessage) (ops.SourceAnalysis, error) {
	var spec memSourceSpec
	if len(rawSpec) > 0 {
		if err := json.Unmarshal(rawSpec, &spec); err != nil {
			return ops.SourceAnalysis{}, err
		}
	}
	fields := make([]schema.FieldSchema, len(spec.RowSchema))
	for i, f := range spec.RowSchema {
		fields[i] = schema.FieldSchema{
			Name:      f.Name,
			ValueType: schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())},
		}
	}
	return ops.SourceAnalysis{RowSchema: schema.StructSchema{Fields: fields}}, nil
}

func (memSourceFactory) BuildExecutor(ctx context.Context, spec json.RawMessage, analysis ops.SourceAnalysis) (ops.SourceExecutor, error) {
	return NewMemorySource(), nil
}

// MemorySource is a test double standing in for an external source
// system: its row set is mutated directly by test code via Put/Delete,
// and List reports every item whose Ordinal exceeds the since-state
// cursor. A directly-mutable in-memory table, letting indexer tests drive
// reconciliation scenarios without a live external system.
type MemorySource struct {
	mu      sync.Mutex
	items   map[string]ops.SourceItem
	ordinal int64
}

// NewMemorySource returns an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{items: make(map[string]ops.SourceItem)}
}

// Put upserts a row under key, bumping the source's ordinal clock.
func (m *MemorySource) Put(key value.Value, row value.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ordinal++
	m.items[key.String()] = ops.SourceItem{PrimaryKey: key, Row: &row, Ordinal: m.ordinal}
}

// Delete marks key as removed, bumping the source's ordinal clock.
func (m *MemorySource) Delete(key value.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ordinal++
	m.items[key.String()] = ops.SourceItem{PrimaryKey: key, Row: nil, Ordinal: m.ordinal}
}

// List returns every item with Ordinal greater than sinceState's encoded
// cursor, plus the new cursor to persist.
func (m *MemorySource) List(ctx context.Context, sinceState []byte) ([]ops.SourceItem, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	since := decodeCursor(sinceState)
	var out []ops.SourceItem
	maxOrdinal := since
	for _, it := range m.items {
		if it.Ordinal > since {
			out = append(out, it)
		}
		if it.Ordinal > maxOrdinal {
			maxOrdinal = it.Ordinal
		}
	}
	return out, encodeCursor(maxOrdinal), nil
}

func decodeCursor(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	var n int64
	for _, c := range b {
		n = n<<8 | int64(c)
	}
	return n
}

func encodeCursor(n int64) []byte {
	return []byte{
		byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32),
		byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n),
	}
}
