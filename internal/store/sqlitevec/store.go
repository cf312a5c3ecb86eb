// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

// Package sqlitevec implements store.IdentityStore backed by SQLite with the
// sqlite-vec extension. Vectors live in a vec0 virtual table configured for
// cosine distance, with status as a filterable metadata column so revoked
// records are excluded inside the KNN query rather than post-filtered.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vface-dev/vface/internal/store"
	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

func init() {
	sqlite_vec.Auto()

	store.RegisterBackend("sqlite", func(cfg store.Config) (store.IdentityStore, error) {
		return New(cfg)
	})
}

// Compile-time interface check.
var _ store.IdentityStore = (*Store)(nil)

var collectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store implements store.IdentityStore on a vec0 virtual table.
type Store struct {
	db         *sql.DB
	collection string
	dim        int
}

// New opens (or creates) the SQLite database at cfg.Path. The collection
// itself is created later by EnsureCollection so startup can retry it.
func New(cfg store.Config) (*Store, error) {
	if !collectionName.MatchString(cfg.Collection) {
		return nil, vfaceerr.Errorf(vfaceerr.CodeStoreInvalidInput,
			"invalid collection name %q", cfg.Collection)
	}
	if cfg.VectorDim < 1 {
		return nil, vfaceerr.Errorf(vfaceerr.CodeStoreInvalidInput,
			"vector dimension must be positive, got %d", cfg.VectorDim)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "pinging sqlite db")
	}

	return &Store{db: db, collection: cfg.Collection, dim: cfg.VectorDim}, nil
}

// EnsureCollection creates the vec0 virtual table if absent. A concurrent
// creator winning the race surfaces as "already exists", which is success.
func (s *Store) EnsureCollection(ctx context.Context) error {
	ddl := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
	storage_key INTEGER PRIMARY KEY,
	embedding FLOAT[%d] distance_metric=cosine,
	status TEXT,
	+fingerprint TEXT,
	+user_id TEXT,
	+enrolled_at INTEGER,
	+meta TEXT
)`, s.collection, s.dim)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "creating collection")
	}
	return nil
}

// Upsert writes the record under the fingerprint's derived storage key.
// vec0 does not support ON CONFLICT; delete first for upsert.
func (s *Store) Upsert(ctx context.Context, fingerprint string, vector []float32, payload store.RecordPayload) error {
	key, err := store.StorageKey(fingerprint)
	if err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeStoreInvalidInput, "serializing embedding")
	}

	metaJSON := []byte("{}")
	if len(payload.Metadata) > 0 {
		metaJSON, err = json.Marshal(payload.Metadata)
		if err != nil {
			return vfaceerr.Wrap(err, vfaceerr.CodeStoreInvalidInput, "marshalling metadata")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE storage_key = ?`, s.collection), int64(key)); err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "deleting existing record",
			vfaceerr.FieldFingerprint(fingerprint))
	}

	insert := fmt.Sprintf(
		`INSERT INTO %s(storage_key, embedding, status, fingerprint, user_id, enrolled_at, meta)
VALUES (?, ?, ?, ?, ?, ?, ?)`, s.collection)
	if _, err := tx.ExecContext(ctx, insert,
		int64(key), blob, string(payload.Status), payload.Fingerprint,
		payload.UserID, payload.EnrolledAt.Unix(), string(metaJSON)); err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "inserting record",
			vfaceerr.FieldFingerprint(fingerprint))
	}

	if err := tx.Commit(); err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "committing upsert")
	}
	return nil
}

// SearchSimilar runs a KNN query restricted to active records. sqlite-vec
// reports cosine distance (1 - similarity); hits are converted and the
// threshold applied on similarity.
func (s *Store) SearchSimilar(ctx context.Context, vector []float32, threshold float64, topK int) ([]store.Match, error) {
	if topK < 1 {
		topK = 1
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, vfaceerr.Wrap(err, vfaceerr.CodeStoreInvalidInput, "serializing query vector")
	}

	q := fmt.Sprintf(
		`SELECT fingerprint, user_id, distance
FROM %s
WHERE embedding MATCH ? AND k = ? AND status = ?
ORDER BY distance`, s.collection)

	rows, err := s.db.QueryContext(ctx, q, blob, topK, string(store.StatusActive))
	if err != nil {
		return nil, vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "searching collection")
	}
	defer func() { _ = rows.Close() }()

	var matches []store.Match
	for rows.Next() {
		var m store.Match
		var distance float64
		if err := rows.Scan(&m.Fingerprint, &m.UserID, &distance); err != nil {
			return nil, vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "scanning search result")
		}

		similarity := 1 - distance
		if similarity < threshold {
			continue
		}
		m.Score = store.RoundScore(similarity)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "iterating search results")
	}

	return matches, nil
}

// Revoke flips the record's status to revoked, keeping the vector and
// payload. vec0 metadata columns cannot be updated in place; the row is
// re-inserted with the new status inside one transaction.
func (s *Store) Revoke(ctx context.Context, fingerprint string) error {
	key, err := store.StorageKey(fingerprint)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	sel := fmt.Sprintf(
		`SELECT embedding, status, fingerprint, user_id, enrolled_at, meta
FROM %s WHERE storage_key = ?`, s.collection)

	var (
		blob       []byte
		status     string
		fp         string
		userID     string
		enrolledAt int64
		meta       string
	)
	err = tx.QueryRowContext(ctx, sel, int64(key)).Scan(&blob, &status, &fp, &userID, &enrolledAt, &meta)
	if err == sql.ErrNoRows {
		return vfaceerr.New(vfaceerr.CodeStoreRecordNotFound, "no record for fingerprint",
			vfaceerr.FieldFingerprint(fingerprint))
	}
	if err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "reading record",
			vfaceerr.FieldFingerprint(fingerprint))
	}

	if store.Status(status) == store.StatusRevoked {
		// Terminal state; revoke is idempotent.
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE storage_key = ?`, s.collection), int64(key)); err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "deleting record for status change")
	}

	insert := fmt.Sprintf(
		`INSERT INTO %s(storage_key, embedding, status, fingerprint, user_id, enrolled_at, meta)
VALUES (?, ?, ?, ?, ?, ?, ?)`, s.collection)
	if _, err := tx.ExecContext(ctx, insert,
		int64(key), blob, string(store.StatusRevoked), fp, userID, enrolledAt, meta); err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "re-inserting revoked record")
	}

	if err := tx.Commit(); err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "committing revoke")
	}
	return nil
}

// CollectionInfo returns point counts for the health probe.
func (s *Store) CollectionInfo(ctx context.Context) (*store.CollectionInfo, error) {
	q := fmt.Sprintf(
		`SELECT COUNT(*), COALESCE(SUM(status = ?), 0) FROM %s`, s.collection)

	var points, active int64
	if err := s.db.QueryRowContext(ctx, q, string(store.StatusActive)).Scan(&points, &active); err != nil {
		return nil, vfaceerr.Wrap(err, vfaceerr.CodeStoreUnreachable, "reading collection stats")
	}

	return &store.CollectionInfo{
		Name:      s.collection,
		Backend:   "sqlite",
		Points:    points,
		Active:    active,
		VectorDim: s.dim,
		Status:    "green",
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
