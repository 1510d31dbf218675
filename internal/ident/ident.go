// Package ident holds the identifiers the engine threads through plans,
// collectors, and the tracking store: flow names, source ids, and
// target-qualified table names. Modeled on internal/util/ident
// (ident.Table, ident.Schema, generic TableMap/SchemaMap).
package ident

import "strings"

// Ident is a case-preserving identifier, quoted on demand by a concrete
// target implementation. The core never interprets its contents beyond
// equality and ordering.
type Ident struct {
	raw string
}

// New wraps a raw string as an Ident.
func New(raw string) Ident { return Ident{raw: raw} }

// Raw returns the identifier's original text.
func (i Ident) Raw() string { return i.raw }

func (i Ident) String() string { return i.raw }

// Schema names a namespace (a target database/schema) that tables live
// under.
type Schema struct {
	raw string
}

// NewSchema wraps a raw schema name.
func NewSchema(raw string) Schema { return Schema{raw: raw} }

func (s Schema) Raw() string   { return s.raw }
func (s Schema) String() string { return s.raw }

// Table names a table within a Schema.
type Table struct {
	schema Schema
	name   string
}

// NewTable builds a Table within the given schema.
func NewTable(schema Schema, name string) Table {
	return Table{schema: schema, name: name}
}

// ParseTable splits "schema.table" into its parts. If there is no dot, the
// whole string is treated as the table name in an empty schema.
func ParseTable(raw string) Table {
	if idx := strings.LastIndex(raw, "."); idx >= 0 {
		return Table{schema: NewSchema(raw[:idx]), name: raw[idx+1:]}
	}
	return Table{name: raw}
}

func (t Table) Schema() Schema { return t.schema }
func (t Table) Name() string   { return t.name }

func (t Table) Raw() string {
	if t.schema.raw == "" {
		return t.name
	}
	return t.schema.raw + "." + t.name
}

func (t Table) String() string { return t.Raw() }

// TableMap is an insertion-ordered map keyed by Table, mirroring the
// teacher's ident.TableMap[V] generic helper.
type TableMap[V any] struct {
	order []Table
	index map[Table]int
	vals  []V
}

// Put inserts or replaces the value for key.
func (m *TableMap[V]) Put(key Table, val V) {
	if m.index == nil {
		m.index = make(map[Table]int)
	}
	if i, ok := m.index[key]; ok {
		m.vals[i] = val
		return
	}
	m.index[key] = len(m.order)
	m.order = append(m.order, key)
	m.vals = append(m.vals, val)
}

// Get returns the value for key and whether it was present.
func (m *TableMap[V]) Get(key Table) (V, bool) {
	var zero V
	if m.index == nil {
		return zero, false
	}
	if i, ok := m.index[key]; ok {
		return m.vals[i], true
	}
	return zero, false
}

// GetZero returns the value for key, or the zero value of V if absent.
func (m *TableMap[V]) GetZero(key Table) V {
	v, _ := m.Get(key)
	return v
}

// Range iterates entries in insertion order, stopping early on error.
func (m *TableMap[V]) Range(fn func(Table, V) error) error {
	for i, k := range m.order {
		if err := fn(k, m.vals[i]); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of entries.
func (m *TableMap[V]) Len() int { return len(m.order) }

// SchemaMap is the Schema-keyed analogue of TableMap.
type SchemaMap[V any] struct {
	order []Schema
	index map[Schema]int
	vals  []V
}

func (m *SchemaMap[V]) Put(key Schema, val V) {
	if m.index == nil {
		m.index = make(map[Schema]int)
	}
	if i, ok := m.index[key]; ok {
		m.vals[i] = val
		return
	}
	m.index[key] = len(m.order)
	m.order = append(m.order, key)
	m.vals = append(m.vals, val)
}

func (m *SchemaMap[V]) Get(key Schema) (V, bool) {
	var zero V
	if m.index == nil {
		return zero, false
	}
	if i, ok := m.index[key]; ok {
		return m.vals[i], true
	}
	return zero, false
}

func (m *SchemaMap[V]) Range(fn func(Schema, V) error) error {
	for i, k := range m.order {
		if err := fn(k, m.vals[i]); err != nil {
			return err
		}
	}
	return nil
}
