package indexer

import (
	"github.com/indexflow/indexflow/internal/ops"
)

// UniqueByKey implements a "last one wins" de-duplication of a source's
// change-set by primary key: when two items share the same serialized
// key, the one with the higher Ordinal survives. Ported from
// msort.UniqueByKey, adapted from HLC-time mutation de-duplication to
// ordinal-based source-item de-duplication. The input slice is modified
// in place and the compacted view returned.
//
// Panics if any item's primary key serializes to the empty string, the
// same sanity check the original performs on empty mutation keys.
func UniqueByKey(x []ops.SourceItem, keyOf func(ops.SourceItem) string) []ops.SourceItem {
	seenIdx := make(map[string]int, len(x))

	dest := len(x)
	for src := len(x) - 1; src >= 0; src-- {
		key := keyOf(x[src])
		if key == "" {
			panic("empty source item primary key")
		}

		if curIdx, found := seenIdx[key]; found {
			if x[src].Ordinal > x[curIdx].Ordinal {
				x[curIdx] = x[src]
			}
		} else {
			dest--
			seenIdx[key] = dest
			x[dest] = x[src]
		}
	}

	return x[dest:]
}
