// Package mysql implements the tracking store contract on MySQL via
// database/sql and go-sql-driver/mysql. Grounded directly on
// internal/util/stdpool.OpenMySQLAsTarget's ping-with-startup-retry loop,
// generalized from opening a types.TargetPool to opening a tracking.Store.
// The DSN is passed to the driver unchanged.
package mysql

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/fingerprint"
	"github.com/indexflow/indexflow/internal/tracking"
)

const setupDDL = `
CREATE TABLE IF NOT EXISTS indexflow_row_tracking (
	flow_id VARCHAR(255) NOT NULL,
	source_id VARCHAR(255) NOT NULL,
	primary_key_value VARCHAR(767) NOT NULL,
	fingerprint VARCHAR(255) NOT NULL,
	exported_manifest JSON NOT NULL,
	PRIMARY KEY (flow_id, source_id, primary_key_value)
);
CREATE TABLE IF NOT EXISTS indexflow_source_state (
	flow_id VARCHAR(255) NOT NULL,
	source_id VARCHAR(255) NOT NULL,
	state BLOB NOT NULL,
	PRIMARY KEY (flow_id, source_id)
);
CREATE TABLE IF NOT EXISTS indexflow_setup_metadata (
	meta_key VARCHAR(255) PRIMARY KEY,
	value BLOB NOT NULL
);
`

// Store is a MySQL-backed tracking.Store.
type Store struct {
	db *sql.DB
}

// Open connects to dsn (a standard go-sql-driver/mysql DSN), retrying
// transient startup errors when waitForStartup is set, runs the setup
// DDL, and returns a ready Store.
func Open(ctx context.Context, dsn string, waitForStartup bool) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}

ping:
	if err := db.PingContext(ctx); err != nil {
		if waitForStartup && isMySQLStartupError(err) {
			log.WithError(err).Info("waiting for mysql to become ready")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
				goto ping
			}
		}
		db.Close()
		return nil, pkgerrors.Wrap(err, "could not ping mysql")
	}

	var version string
	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "could not query mysql version")
	}
	log.Infof("tracking store connected to mysql %s", version)

	for _, stmt := range splitStatements(setupDDL) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, pkgerrors.Wrap(err, "could not apply tracking-store setup DDL")
		}
	}

	return &Store{db: db}, nil
}

func isMySQLStartupError(err error) bool {
	return errors.Is(err, sqldriver.ErrBadConn)
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) GetRowTracking(ctx context.Context, flowID, sourceID, primaryKey string) (tracking.RowTracking, bool, error) {
	var fp string
	var manifestJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, exported_manifest FROM indexflow_row_tracking WHERE flow_id=? AND source_id=? AND primary_key_value=?`,
		flowID, sourceID, primaryKey,
	).Scan(&fp, &manifestJSON)
	if errors.Is(err, sql.ErrNoRows) {
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO indexflow_row_tracking (flow_id, source_id, primary_key_value, fingerprint, exported_manifest)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE fingerprint = VALUES(fingerprint), exported_manifest = VALUES(exported_manifest)
	`, flowID, sourceID, primaryKey, rt.Fingerprint.String(), manifestJSON)
	if err != nil {
		return errs.Retryable(err)
	}
	return nil
}

func (s *Store) GetSourceState(ctx context.Context, flowID, sourceID string) ([]byte, bool, error) {
	var state []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM indexflow_source_state WHERE flow_id=? AND source_id=?`, flowID, sourceID,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Retryable(err)
	}
	return state, true, nil
}

func (s *Store) PutSourceState(ctx context.Context, flowID, sourceID string, state []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO indexflow_source_state (flow_id, source_id, state)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE state = VALUES(state)
	`, flowID, sourceID, state)
	if err != nil {
		return errs.Retryable(err)
	}
	return nil
}

func (s *Store) GetSetupMetadata(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM indexflow_setup_metadata WHERE meta_key=?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Retryable(err)
	}
	return value, true, nil
}

func (s *Store) PutSetupMetadata(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO indexflow_setup_metadata (meta_key, value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)
	`, key, value)
	if err != nil {
		return errs.Retryable(err)
	}
	return nil
}

func (s *Store) DeleteSetupMetadata(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM indexflow_setup_metadata WHERE meta_key=?`, key)
	if err != nil {
		return errs.Retryable(err)
	}
	return nil
}

func decodeDigest(s string) (fingerprint.Digest, error) {
	var d fingerprint.Digest
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return d, err
	}
	copy(d[:], raw)
	return d, nil
}

// splitStatements breaks a multi-statement DDL block into individual
// statements, since database/sql does not support multi-statement Exec
// for most drivers.
func splitStatements(ddl string) []string {
	var out []string
	for _, stmt := range strings.Split(ddl, ";") {
		if trimmed := strings.TrimSpace(stmt); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
