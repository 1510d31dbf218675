// Package tracking defines the abstract persistence contract the row
// indexer needs: per-row fingerprints and exported-key manifests,
// per-source state tokens, and setup-metadata CRUD for schema migrations.
// Concrete backends live in internal/tracking/pg and internal/tracking/mysql,
// grounded on the Stager/types.go contract, generalized from CDC
// mutation tracking to row-fingerprint tracking.
package tracking

import (
	"context"

	"github.com/indexflow/indexflow/internal/fingerprint"
)

// RowTracking is the tracking store's record of a source row's last
// successful indexing: the fingerprint it was indexed under, and the
// manifest of keys it exported to each target (so a later update can
// diff away stale keys).
type RowTracking struct {
	Fingerprint      fingerprint.Digest
	ExportedManifest ExportedKeysManifest
}

// ExportedKeysManifest maps a target name to the set of keys (serialized,
// target-opaque) that row last wrote there.
type ExportedKeysManifest map[string][]string

// Store is the tracking contract the row indexer, source indexer, and
// live updater depend on. FlowID/SourceID namespace rows and state tokens
// per flow and per source within that flow.
type Store interface {
	// GetRowTracking returns the previously recorded tracking state for
	// primaryKey, or ok=false if this row has never been indexed.
	GetRowTracking(ctx context.Context, flowID, sourceID, primaryKey string) (rt RowTracking, ok bool, err error)

	// PutRowTracking atomically records rt for primaryKey. The contract
	// has no way to share a transaction with a target write: the row
	// indexer applies target operations first and records tracking last.
	PutRowTracking(ctx context.Context, flowID, sourceID, primaryKey string, rt RowTracking) error

	// GetSourceState returns the last persisted polling state token for
	// (flowID, sourceID), or ok=false if the source has never been
	// polled.
	GetSourceState(ctx context.Context, flowID, sourceID string) (state []byte, ok bool, err error)

	// PutSourceState persists the polling state token.
	PutSourceState(ctx context.Context, flowID, sourceID string, state []byte) error

	// SetupMetadata CRUD, used by schema-migration tooling external to
	// the core engine.
	GetSetupMetadata(ctx context.Context, key string) (value []byte, ok bool, err error)
	PutSetupMetadata(ctx context.Context, key string, value []byte) error
	DeleteSetupMetadata(ctx context.Context, key string) error

	// Close releases the store's underlying connection resources.
	Close() error
}
