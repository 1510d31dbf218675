// Package jsonschema emits JSON-Schema documents for LLM-bound structured
// outputs from an EnrichedValueType, and the paired extractor that turns an
// LLM's JSON response back into a runtime Value. Ported line-for-line in
// behavior (not in code shape) from the original's base/json_schema.rs,
// including its known latent gaps around nullable types nested in unions.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/schema"
	"github.com/indexflow/indexflow/internal/value"
)

// Options mirrors ToJsonSchemaOptions.
type Options struct {
	// FieldsAlwaysRequired, if true, lists every field in "required" and
	// adds "null" to a nullable field's "type".
	FieldsAlwaysRequired bool
	// SupportsFormat emits "format" for uuid/date/time/date-time/duration.
	SupportsFormat bool
	// ExtractDescriptions hoists field descriptions into a separate
	// instructions block instead of inlining them.
	ExtractDescriptions bool
	// TopLevelMustBeObject wraps a non-struct root in {"value": ...}.
	TopLevelMustBeObject bool
	// SupportsAdditionalProperties emits "additionalProperties": false.
	SupportsAdditionalProperties bool
}

// Schema is a JSON Schema document under construction, represented as a
// plain map: encoding/json writes its keys in sorted order, and a struct's
// "properties" keep field declaration order through orderedProperties.
type Schema map[string]any

type builder struct {
	opts               Options
	extraInstructions  []fieldInstruction // insertion order, matches IndexMap
	extraInstructionIdx map[string]int
}

type fieldInstruction struct {
	path string
	text string
}

func newBuilder(opts Options) *builder {
	return &builder{opts: opts, extraInstructionIdx: make(map[string]int)}
}

func (b *builder) addDescription(s Schema, description string, fieldPath []string) {
	if b.opts.ExtractDescriptions {
		path := strings.Join(fieldPath, ".")
		if idx, ok := b.extraInstructionIdx[path]; ok {
			b.extraInstructions[idx].text += "\n\n" + description
			return
		}
		b.extraInstructionIdx[path] = len(b.extraInstructions)
		b.extraInstructions = append(b.extraInstructions, fieldInstruction{path: path, text: description})
		return
	}
	existing, _ := s["description"].(string)
	if existing != "" {
		s["description"] = existing + "\n\n" + description
	} else {
		s["description"] = description
	}
}

func (b *builder) forBasicValueType(s Schema, bt schema.BasicValueType, fieldPath []string) Schema {
	switch bt.Kind() {
	case schema.KindStr, schema.KindBytes:
		s["type"] = "string"
	case schema.KindBool:
		s["type"] = "boolean"
	case schema.KindInt64:
		s["type"] = "integer"
	case schema.KindFloat32, schema.KindFloat64:
		s["type"] = "number"
	case schema.KindRange:
		s["type"] = "array"
		s["items"] = Schema{"type": "integer"}
		s["minItems"] = 2
		s["maxItems"] = 2
		b.addDescription(s, "A range represented by a list of two positions, start pos (inclusive), end pos (exclusive).", fieldPath)
	case schema.KindUuid:
		s["type"] = "string"
		if b.opts.SupportsFormat {
			s["format"] = "uuid"
		}
		b.addDescription(s, "A UUID, e.g. 123e4567-e89b-12d3-a456-426614174000", fieldPath)
	case schema.KindDate:
		s["type"] = "string"
		if b.opts.SupportsFormat {
			s["format"] = "date"
		}
		b.addDescription(s, "A date in YYYY-MM-DD format, e.g. 2025-03-27", fieldPath)
	case schema.KindTime:
		s["type"] = "string"
		if b.opts.SupportsFormat {
			s["format"] = "time"
		}
		b.addDescription(s, "A time in HH:MM:SS format, e.g. 13:32:12", fieldPath)
	case schema.KindLocalDateTime:
		s["type"] = "string"
		if b.opts.SupportsFormat {
			s["format"] = "date-time"
		}
		b.addDescription(s, "Date time without timezone offset in YYYY-MM-DDTHH:MM:SS format, e.g. 2025-03-27T13:32:12", fieldPath)
	case schema.KindOffsetDateTime:
		s["type"] = "string"
		if b.opts.SupportsFormat {
			s["format"] = "date-time"
		}
		b.addDescription(s, "Date time with timezone offset in RFC3339, e.g. 2025-03-27T13:32:12Z, 2025-03-27T07:32:12.313-06:00", fieldPath)
	case schema.KindTimeDelta:
		s["type"] = "string"
		if b.opts.SupportsFormat {
			s["format"] = "duration"
		}
		b.addDescription(s, "A duration, e.g. 'PT1H2M3S' (ISO 8601) or '1 day 2 hours 3 seconds'", fieldPath)
	case schema.KindJson:
		// Any value; no type constraint.
	case schema.KindVector:
		items := b.forBasicValueType(Schema{}, bt.VectorElement(), fieldPath)
		s["type"] = "array"
		s["items"] = items
		if dim, ok := bt.VectorDimension(); ok {
			s["minItems"] = dim
			s["maxItems"] = dim
		}
	case schema.KindUnion:
		oneOf := make([]Schema, 0, len(bt.UnionTypes()))
		for _, t := range bt.UnionTypes() {
			oneOf = append(oneOf, b.forBasicValueType(Schema{}, t, fieldPath))
		}
		s["oneOf"] = oneOf
	}
	return s
}

func (b *builder) forStructSchema(s Schema, ss schema.StructSchema, fieldPath []string) Schema {
	if ss.Description != "" {
		b.addDescription(s, ss.Description, fieldPath)
	}

	properties := make(map[string]any, len(ss.Fields))
	propertyOrder := make([]string, 0, len(ss.Fields))
	required := make([]string, 0, len(ss.Fields))

	for _, f := range ss.Fields {
		fieldSchema := Schema{}
		fp := append(append([]string{}, fieldPath...), f.Name)
		if f.Description != "" {
			b.addDescription(fieldSchema, f.Description, fp)
		}
		fieldSchema = b.forEnrichedValueType(fieldSchema, f.ValueType, fp)

		if b.opts.FieldsAlwaysRequired && f.ValueType.Nullable {
			addNullType(fieldSchema)
		}

		properties[f.Name] = fieldSchema
		propertyOrder = append(propertyOrder, f.Name)

		if b.opts.FieldsAlwaysRequired || !f.ValueType.Nullable {
			required = append(required, f.Name)
		}
	}

	s["type"] = "object"
	s["properties"] = orderedProperties{order: propertyOrder, values: properties}
	s["required"] = required
	if b.opts.SupportsAdditionalProperties {
		s["additionalProperties"] = false
	}
	return s
}

// addNullType implements the upstream's type-widening rule verbatim,
// including its documented gap: a schema with no "type" key at all (e.g. a
// oneOf-only union schema), or whose "type" is anything other than a
// string or array, is left unchanged.
func addNullType(s Schema) {
	existing, ok := s["type"]
	if !ok {
		return
	}
	switch t := existing.(type) {
	case string:
		s["type"] = []string{t, "null"}
	case []string:
		s["type"] = append(t, "null")
	default:
		// Unrecognized "type" shape (e.g. already a union produced by
		// another branch): left untouched rather than guessed at.
	}
}

func (b *builder) forValueType(s Schema, vt schema.ValueType, fieldPath []string) Schema {
	switch {
	case vt.IsBasic():
		return b.forBasicValueType(s, vt.Basic(), fieldPath)
	case vt.IsStruct():
		return b.forStructSchema(s, vt.Struct(), fieldPath)
	default:
		items := b.forStructSchema(Schema{}, vt.Table().Row, fieldPath)
		s["type"] = "array"
		s["items"] = items
		return s
	}
}

func (b *builder) forEnrichedValueType(s Schema, evt schema.EnrichedValueType, fieldPath []string) Schema {
	return b.forValueType(s, evt.Typ, fieldPath)
}

func (b *builder) buildExtraInstructions() string {
	if len(b.extraInstructions) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Instructions for specific fields:\n\n")
	for _, fi := range b.extraInstructions {
		path := fi.path
		if path == "" {
			path = "(root object)"
		}
		fmt.Fprintf(&sb, "- %s: %s\n\n", path, fi.text)
	}
	return sb.String()
}

// orderedProperties preserves struct field order through MarshalJSON,
// since Go's map[string]any would otherwise sort keys alphabetically.
type orderedProperties struct {
	order  []string
	values map[string]any
}

func (p orderedProperties) MarshalJSON() ([]byte, error) {
	var buf strings.Builder
	buf.WriteByte('{')
	for i, k := range p.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return []byte(buf.String()), nil
}

// Extractor turns an LLM's raw JSON response back into a runtime Value,
// undoing the top-level object wrapper if one was added.
type Extractor struct {
	valueType           schema.ValueType
	objectWrapperField  string
}

// Extract parses raw JSON and converts it to a value.Value conforming to
// the original (pre-wrapping) value type.
func (e *Extractor) Extract(raw []byte) (value.Value, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return value.Value{}, errs.Client("invalid JSON response: %v", err)
	}
	if e.objectWrapperField != "" {
		obj, ok := parsed.(map[string]any)
		if !ok {
			return value.Value{}, errs.Client("field %q not found: response is not an object", e.objectWrapperField)
		}
		inner, ok := obj[e.objectWrapperField]
		if !ok {
			inner = nil
		}
		parsed = inner
	}
	return value.FromJSON(parsed, e.valueType)
}

// Output bundles the emitted schema with its extraction sidecar and any
// hoisted field instructions.
type Output struct {
	Schema            Schema
	ExtraInstructions string
	Extractor         *Extractor
}

// Build emits a JSON Schema for vt under opts.
func Build(vt schema.EnrichedValueType, opts Options) (Output, error) {
	b := newBuilder(opts)

	var sch Schema
	var wrapperField string
	if opts.TopLevelMustBeObject && !vt.Typ.IsStruct() {
		wrapperField = "value"
		wrapperStruct := schema.StructSchema{
			Fields: []schema.FieldSchema{{Name: wrapperField, ValueType: vt}},
		}
		sch = b.forStructSchema(Schema{}, wrapperStruct, nil)
	} else {
		sch = b.forEnrichedValueType(Schema{}, vt, nil)
	}

	return Output{
		Schema:            sch,
		ExtraInstructions: b.buildExtraInstructions(),
		Extractor:         &Extractor{valueType: vt.Typ, objectWrapperField: wrapperField},
	}, nil
}
