// Package pg implements the tracking store contract on PostgreSQL via
// pgx/pgxpool. Grounded on provider.go's ProvideStagingPool
// (stdpool.OpenPgxAsStaging) and the general "open, ping with a startup
// retry loop, log version" shape of stdpool's MySQL opener, adapted from a
// single-connection *sql.DB to a pgxpool.Pool since pgx is the Postgres
// driver used throughout the surrounding wire_gen graphs.
package pg

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/fingerprint"
	"github.com/indexflow/indexflow/internal/tracking"
)

const setupTableDDL = `
CREATE TABLE IF NOT EXISTS indexflow_row_tracking (
	flow_id TEXT NOT NULL,
	source_id TEXT NOT NULL,
	primary_key TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	exported_manifest JSONB NOT NULL,
	PRIMARY KEY (flow_id, source_id, primary_key)
);
CREATE TABLE IF NOT EXISTS indexflow_source_state (
	flow_id TEXT NOT NULL,
	source_id TEXT NOT NULL,
	state BYTEA NOT NULL,
	PRIMARY KEY (flow_id, source_id)
);
CREATE TABLE IF NOT EXISTS indexflow_setup_metadata (
	key TEXT PRIMARY KEY,
	value BYTEA NOT NULL
);
`

// Store is a Postgres-backed tracking.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, retrying transient startup errors, runs the setup
// DDL, and returns a ready Store.
func Open(ctx context.Context, dsn string, waitForStartup bool) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "invalid postgres DSN")
	}

	var pool *pgxpool.Pool
ping:
	pool, err = pgxpool.NewWithConfig(ctx, cfg)
	if err == nil {
		err = pool.Ping(ctx)
	}
	if err != nil {
		if waitForStartup {
			log.WithError(err).Info("waiting for postgres to become ready")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
				goto ping
			}
		}
		return nil, errors.Wrap(err, "could not connect to postgres")
	}

	if _, err := pool.Exec(ctx, setupTableDDL); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "could not apply tracking-store setup DDL")
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) GetRowTracking(ctx context.Context, flowID, sourceID, primaryKey string) (tracking.RowTracking, bool, error) {
	var fp string
	var manifestJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT fingerprint, exported_manifest FROM indexflow_row_tracking WHERE flow_id=$1 AND source_id=$2 AND primary_key=$3`,
		flowID, sourceID, primaryKey,
	).Scan(&fp, &manifestJSON)
	if isNoRows(err) {
		return tracking.RowTracking{}, false, nil
	}
	if err != nil {
		return tracking.RowTracking{}, false, errs.Retryable(err)
	}
	digest, err := decodeDigest(fp)
	if err != nil {
		return tracking.RowTracking{}, false, errs.Internal(err)
	}
	var manifest tracking.ExportedKeysManifest
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		return tracking.RowTracking{}, false, errs.Internal(err)
	}
	return tracking.RowTracking{Fingerprint: digest, ExportedManifest: manifest}, true, nil
}

func (s *Store) PutRowTracking(ctx context.Context, flowID, sourceID, primaryKey string, rt tracking.RowTracking) error {
	manifestJSON, err := json.Marshal(rt.ExportedManifest)
	if err != nil {
		return errs.Internal(err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO indexflow_row_tracking (flow_id, source_id, primary_key, fingerprint, exported_manifest)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (flow_id, source_id, primary_key)
		DO UPDATE SET fingerprint = EXCLUDED.fingerprint, exported_manifest = EXCLUDED.exported_manifest
	`, flowID, sourceID, primaryKey, rt.Fingerprint.String(), manifestJSON)
	if err != nil {
		return errs.Retryable(err)
	}
	return nil
}

func (s *Store) GetSourceState(ctx context.Context, flowID, sourceID string) ([]byte, bool, error) {
	var state []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM indexflow_source_state WHERE flow_id=$1 AND source_id=$2`, flowID, sourceID,
	).Scan(&state)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Retryable(err)
	}
	return state, true, nil
}

func (s *Store) PutSourceState(ctx context.Context, flowID, sourceID string, state []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexflow_source_state (flow_id, source_id, state)
		VALUES ($1, $2, $3)
		ON CONFLICT (flow_id, source_id) DO UPDATE SET state = EXCLUDED.state
	`, flowID, sourceID, state)
	if err != nil {
		return errs.Retryable(err)
	}
	return nil
}

func (s *Store) GetSetupMetadata(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM indexflow_setup_metadata WHERE key=$1`, key).Scan(&value)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Retryable(err)
	}
	return value, true, nil
}

func (s *Store) PutSetupMetadata(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexflow_setup_metadata (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return errs.Retryable(err)
	}
	return nil
}

func (s *Store) DeleteSetupMetadata(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM indexflow_setup_metadata WHERE key=$1`, key)
	if err != nil {
		return errs.Retryable(err)
	}
	return nil
}

func decodeDigest(s string) (fingerprint.Digest, error) {
	var d fingerprint.Digest
	raw, err := decodeBase64URL(s)
	if err != nil {
		return d, err
	}
	copy(d[:], raw)
	return d, nil
}
